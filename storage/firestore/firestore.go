// Package firestore provides a Firestore implementation of the hookgen.Store interface.
// User quota records live in the "users" collection, keyed by user ID.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

// Storage implements hookgen.Store and hookgen.GenerationRecorder using Google Cloud Firestore
type Storage struct {
	client                *firestore.Client
	usersCollection       string
	generationsCollection string
}

var (
	_ hookgen.Store              = (*Storage)(nil)
	_ hookgen.GenerationRecorder = (*Storage)(nil)
)

// Config holds Firestore storage configuration
type Config struct {
	// UsersCollection is the Firestore collection for user quota records
	// Default: "users"
	UsersCollection string

	// GenerationsCollection is the Firestore collection for generation history
	// Default: "generations"
	GenerationsCollection string
}

// New creates a new Firestore storage adapter
func New(client *firestore.Client, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}

	if config.UsersCollection == "" {
		config.UsersCollection = "users"
	}
	if config.GenerationsCollection == "" {
		config.GenerationsCollection = "generations"
	}

	return &Storage{
		client:                client,
		usersCollection:       config.UsersCollection,
		generationsCollection: config.GenerationsCollection,
	}, nil
}

// GetRecord implements hookgen.Store
func (s *Storage) GetRecord(ctx context.Context, userID string) (*hookgen.Record, error) {
	snap, err := s.client.Collection(s.usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, hookgen.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if !snap.Exists() {
		return nil, hookgen.ErrRecordNotFound
	}
	return recordFromData(userID, snap.Data()), nil
}

// SetRecord implements hookgen.Store
func (s *Storage) SetRecord(ctx context.Context, rec *hookgen.Record) error {
	if rec == nil || rec.UserID == "" {
		return fmt.Errorf("invalid record")
	}

	// The users collection is shared with profile data, so only our fields are written.
	_, err := s.client.Collection(s.usersCollection).Doc(rec.UserID).Set(ctx, recordData(rec), firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to set record: %w", err)
	}
	return nil
}

// IncrementGenerations implements hookgen.Store with a read-modify-write transaction
func (s *Storage) IncrementGenerations(ctx context.Context, userID, day string, now time.Time) (*hookgen.Record, error) {
	if userID == "" {
		return nil, fmt.Errorf("invalid user ID")
	}

	doc := s.client.Collection(s.usersCollection).Doc(userID)
	var written *hookgen.Record

	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		rec := &hookgen.Record{UserID: userID}

		snap, err := tx.Get(doc)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil && snap.Exists() {
			rec = recordFromData(userID, snap.Data())
		}

		hadCreatedAt := !rec.CreatedAt.IsZero()
		rec.Increment(day, now)
		written = rec
		return tx.Set(doc, counterData(rec, !hadCreatedAt), firestore.MergeAll)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to increment generations: %w", err)
	}
	return written, nil
}

// UpdateRecord implements hookgen.Store
func (s *Storage) UpdateRecord(ctx context.Context, userID string, update hookgen.RecordUpdate) error {
	var updates []firestore.Update
	if update.IsPro != nil {
		updates = append(updates, firestore.Update{Path: "isPro", Value: *update.IsPro})
	}
	if update.IsAdmin != nil {
		updates = append(updates, firestore.Update{Path: "isAdmin", Value: *update.IsAdmin})
	}
	if update.IsOnline != nil {
		updates = append(updates, firestore.Update{Path: "isOnline", Value: *update.IsOnline})
	}
	if update.ResetGenerations {
		updates = append(updates, firestore.Update{Path: "generationsToday", Value: 0})
	}
	if !update.Now.IsZero() {
		updates = append(updates, firestore.Update{Path: "lastActivity", Value: update.Now.UTC()})
	}

	doc := s.client.Collection(s.usersCollection).Doc(userID)
	if len(updates) == 0 {
		_, err := s.GetRecord(ctx, userID)
		return err
	}

	// Update fails with NotFound when the document is missing
	if _, err := doc.Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return hookgen.ErrRecordNotFound
		}
		return fmt.Errorf("failed to update record: %w", err)
	}
	return nil
}

// DeleteRecord implements hookgen.Store
func (s *Storage) DeleteRecord(ctx context.Context, userID string) error {
	if _, err := s.client.Collection(s.usersCollection).Doc(userID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// ListRecords implements hookgen.Store
func (s *Storage) ListRecords(ctx context.Context) ([]*hookgen.Record, error) {
	iter := s.client.Collection(s.usersCollection).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	recs := []*hookgen.Record{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list records: %w", err)
		}
		recs = append(recs, recordFromData(snap.Ref.ID, snap.Data()))
	}
	return recs, nil
}

// SaveGeneration implements hookgen.GenerationRecorder
func (s *Storage) SaveGeneration(ctx context.Context, gen *hookgen.Generation) (string, error) {
	if gen == nil {
		return "", fmt.Errorf("invalid generation")
	}

	coll := s.client.Collection(s.generationsCollection)
	doc := coll.NewDoc()
	if gen.ID != "" {
		doc = coll.Doc(gen.ID)
	}

	data := map[string]interface{}{
		"userId":     gen.UserID,
		"requestId":  gen.RequestID,
		"niche":      gen.Niche,
		"videoStyle": gen.VideoStyle,
		"tone":       gen.Tone,
		"duration":   gen.Duration,
		"topic":      gen.Topic,
		"language":   gen.Language,
		"createdAt":  gen.CreatedAt,
	}
	if gen.Result != nil {
		data["result"] = gen.Result
	}

	if _, err := doc.Set(ctx, data); err != nil {
		return "", fmt.Errorf("failed to save generation: %w", err)
	}
	return doc.ID, nil
}

func recordData(rec *hookgen.Record) map[string]interface{} {
	return map[string]interface{}{
		"email":              rec.Email,
		"generationsToday":   rec.GenerationsToday,
		"generationsTotal":   rec.GenerationsTotal,
		"lastGenerationDate": rec.LastGenerationDate,
		"isPro":              rec.IsPro,
		"isAdmin":            rec.IsAdmin,
		"isOnline":           rec.IsOnline,
		"createdAt":          rec.CreatedAt,
		"lastActivity":       rec.LastActivity,
	}
}

// counterData holds the fields an increment changes. createdAt is only
// written when the document did not carry one.
func counterData(rec *hookgen.Record, withCreatedAt bool) map[string]interface{} {
	data := map[string]interface{}{
		"generationsToday":   rec.GenerationsToday,
		"generationsTotal":   rec.GenerationsTotal,
		"lastGenerationDate": rec.LastGenerationDate,
		"lastActivity":       rec.LastActivity,
	}
	if withCreatedAt {
		data["createdAt"] = rec.CreatedAt
	}
	return data
}

func recordFromData(userID string, data map[string]interface{}) *hookgen.Record {
	return &hookgen.Record{
		UserID:             userID,
		Email:              getString(data, "email"),
		GenerationsToday:   getInt(data, "generationsToday"),
		GenerationsTotal:   getInt(data, "generationsTotal"),
		LastGenerationDate: getString(data, "lastGenerationDate"),
		IsPro:              getBool(data, "isPro"),
		IsAdmin:            getBool(data, "isAdmin"),
		IsOnline:           getBool(data, "isOnline"),
		CreatedAt:          getTime(data, "createdAt"),
		LastActivity:       getTime(data, "lastActivity"),
	}
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func getBool(data map[string]interface{}, key string) bool {
	if v, ok := data[key].(bool); ok {
		return v
	}
	return false
}

func getInt(data map[string]interface{}, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(math.Round(v))
	default:
		return 0
	}
}

// getTime accepts Firestore timestamps and ISO-8601 strings written by web clients.
func getTime(data map[string]interface{}, key string) time.Time {
	switch v := data[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
