// Package redis provides a Redis implementation of the hookgen.Store interface.
// Each user is a hash; the daily increment runs as a Lua script so it is atomic.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

// Storage implements hookgen.Store and hookgen.GenerationRecorder using Redis
type Storage struct {
	client  redis.UniversalClient
	config  Config
	scripts map[string]*redis.Script
}

var (
	_ hookgen.Store              = (*Storage)(nil)
	_ hookgen.GenerationRecorder = (*Storage)(nil)
)

// Config holds Redis storage configuration
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "{hookgen}:").
	// Scripts and transactions touch several keys at once, so on a cluster
	// the prefix must carry a hash tag to keep every key in one slot.
	KeyPrefix string

	// GenerationTTL is the TTL for stored generations (0 = no expiration)
	GenerationTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyPrefix:     defaultKeyPrefix,
		GenerationTTL: 30 * 24 * time.Hour,
	}
}

const defaultKeyPrefix = "{hookgen}:"

// New creates a new Redis storage adapter
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring.
// Cluster clients require a hash-tagged KeyPrefix.
func New(client redis.UniversalClient, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaultKeyPrefix
	}
	if _, ok := client.(*redis.ClusterClient); ok && !hasHashTag(config.KeyPrefix) {
		return nil, fmt.Errorf("redis cluster requires a hash-tagged key prefix such as %q, got %q", defaultKeyPrefix, config.KeyPrefix)
	}

	s := &Storage{
		client:  client,
		config:  config,
		scripts: make(map[string]*redis.Script),
	}
	s.loadScripts()
	return s, nil
}

// loadScripts compiles the Lua scripts used for atomic record updates
func (s *Storage) loadScripts() {
	// Count one generation, restarting the daily counter on a new day
	s.scripts["increment"] = redis.NewScript(`
		local key = KEYS[1]
		local index = KEYS[2]
		local userID = ARGV[1]
		local day = ARGV[2]
		local now = ARGV[3]

		if redis.call('EXISTS', key) == 0 then
			redis.call('HSET', key, 'id', userID, 'createdAt', now, 'generationsTotal', 0)
		end

		local last = redis.call('HGET', key, 'lastGenerationDate')
		if last ~= day then
			redis.call('HSET', key, 'generationsToday', 0)
		end

		redis.call('HINCRBY', key, 'generationsToday', 1)
		redis.call('HINCRBY', key, 'generationsTotal', 1)
		redis.call('HSET', key, 'lastGenerationDate', day, 'lastActivity', now)
		redis.call('SADD', index, userID)

		return redis.call('HGETALL', key)
	`)

	// Apply field updates only when the record exists
	s.scripts["update"] = redis.NewScript(`
		local key = KEYS[1]
		if redis.call('EXISTS', key) == 0 then
			return 0
		end
		if #ARGV > 0 then
			redis.call('HSET', key, unpack(ARGV))
		end
		return 1
	`)
}

// GetRecord implements hookgen.Store
func (s *Storage) GetRecord(ctx context.Context, userID string) (*hookgen.Record, error) {
	fields, err := s.client.HGetAll(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if len(fields) == 0 {
		return nil, hookgen.ErrRecordNotFound
	}
	return decodeRecord(fields)
}

// SetRecord implements hookgen.Store
func (s *Storage) SetRecord(ctx context.Context, rec *hookgen.Record) error {
	if rec == nil || rec.UserID == "" {
		return fmt.Errorf("invalid record")
	}

	key := s.userKey(rec.UserID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, encodeRecord(rec))
		pipe.SAdd(ctx, s.indexKey(), rec.UserID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set record: %w", err)
	}
	return nil
}

// IncrementGenerations implements hookgen.Store
func (s *Storage) IncrementGenerations(ctx context.Context, userID, day string, now time.Time) (*hookgen.Record, error) {
	if userID == "" {
		return nil, fmt.Errorf("invalid user ID")
	}

	keys := []string{s.userKey(userID), s.indexKey()}
	result, err := s.scripts["increment"].Run(ctx, s.client, keys, userID, day, formatTime(now)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to increment generations: %w", err)
	}

	fields, err := parseHash(result)
	if err != nil {
		return nil, err
	}
	return decodeRecord(fields)
}

// UpdateRecord implements hookgen.Store
func (s *Storage) UpdateRecord(ctx context.Context, userID string, update hookgen.RecordUpdate) error {
	var args []interface{}
	if update.IsPro != nil {
		args = append(args, "isPro", formatBool(*update.IsPro))
	}
	if update.IsAdmin != nil {
		args = append(args, "isAdmin", formatBool(*update.IsAdmin))
	}
	if update.IsOnline != nil {
		args = append(args, "isOnline", formatBool(*update.IsOnline))
	}
	if update.ResetGenerations {
		args = append(args, "generationsToday", 0)
	}
	if !update.Now.IsZero() {
		args = append(args, "lastActivity", formatTime(update.Now))
	}

	found, err := s.scripts["update"].Run(ctx, s.client, []string{s.userKey(userID)}, args...).Int()
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if found == 0 {
		return hookgen.ErrRecordNotFound
	}
	return nil
}

// DeleteRecord implements hookgen.Store
func (s *Storage) DeleteRecord(ctx context.Context, userID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.userKey(userID))
		pipe.SRem(ctx, s.indexKey(), userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// ListRecords implements hookgen.Store
func (s *Storage) ListRecords(ctx context.Context) ([]*hookgen.Record, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	if len(ids) == 0 {
		return []*hookgen.Record{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.userKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	recs := make([]*hookgen.Record, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		rec, err := decodeRecord(fields)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].UserID < recs[j].UserID
		}
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	return recs, nil
}

// SaveGeneration implements hookgen.GenerationRecorder
func (s *Storage) SaveGeneration(ctx context.Context, gen *hookgen.Generation) (string, error) {
	if gen == nil {
		return "", fmt.Errorf("invalid generation")
	}

	id := gen.ID
	if id == "" {
		id = uuid.NewString()
	}
	stored := *gen
	stored.ID = id

	data, err := json.Marshal(&stored)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.generationKey(id), data, s.config.GenerationTTL)
		pipe.LPush(ctx, s.userGenerationsKey(gen.UserID), id)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to save generation: %w", err)
	}
	return id, nil
}

// GetGeneration returns a stored generation by ID.
func (s *Storage) GetGeneration(ctx context.Context, id string) (*hookgen.Generation, error) {
	data, err := s.client.Get(ctx, s.generationKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, hookgen.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}

	var gen hookgen.Generation
	if err := json.Unmarshal(data, &gen); err != nil {
		return nil, fmt.Errorf("failed to unmarshal generation: %w", err)
	}
	return &gen, nil
}

// Close closes the Redis client
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// hasHashTag reports whether prefix contains a non-empty {tag}.
func hasHashTag(prefix string) bool {
	open := strings.IndexByte(prefix, '{')
	if open < 0 {
		return false
	}
	end := strings.IndexByte(prefix[open+1:], '}')
	return end > 0
}

func (s *Storage) userKey(userID string) string {
	return fmt.Sprintf("%suser:%s", s.config.KeyPrefix, userID)
}

func (s *Storage) indexKey() string {
	return s.config.KeyPrefix + "users"
}

func (s *Storage) generationKey(id string) string {
	return fmt.Sprintf("%sgeneration:%s", s.config.KeyPrefix, id)
}

func (s *Storage) userGenerationsKey(userID string) string {
	return fmt.Sprintf("%sgenerations:%s", s.config.KeyPrefix, userID)
}

func encodeRecord(rec *hookgen.Record) map[string]interface{} {
	return map[string]interface{}{
		"id":                 rec.UserID,
		"email":              rec.Email,
		"generationsToday":   rec.GenerationsToday,
		"generationsTotal":   rec.GenerationsTotal,
		"lastGenerationDate": rec.LastGenerationDate,
		"isPro":              formatBool(rec.IsPro),
		"isAdmin":            formatBool(rec.IsAdmin),
		"isOnline":           formatBool(rec.IsOnline),
		"createdAt":          formatTime(rec.CreatedAt),
		"lastActivity":       formatTime(rec.LastActivity),
	}
}

func decodeRecord(fields map[string]string) (*hookgen.Record, error) {
	rec := &hookgen.Record{
		UserID:             fields["id"],
		Email:              fields["email"],
		LastGenerationDate: fields["lastGenerationDate"],
		IsPro:              fields["isPro"] == "1",
		IsAdmin:            fields["isAdmin"] == "1",
		IsOnline:           fields["isOnline"] == "1",
	}

	var err error
	if rec.GenerationsToday, err = parseInt(fields["generationsToday"]); err != nil {
		return nil, fmt.Errorf("invalid generationsToday: %w", err)
	}
	if rec.GenerationsTotal, err = parseInt(fields["generationsTotal"]); err != nil {
		return nil, fmt.Errorf("invalid generationsTotal: %w", err)
	}
	if rec.CreatedAt, err = parseTime(fields["createdAt"]); err != nil {
		return nil, fmt.Errorf("invalid createdAt: %w", err)
	}
	if rec.LastActivity, err = parseTime(fields["lastActivity"]); err != nil {
		return nil, fmt.Errorf("invalid lastActivity: %w", err)
	}
	return rec, nil
}

// parseHash converts a Lua HGETALL reply into a field map.
func parseHash(result interface{}) (map[string]string, error) {
	items, ok := result.([]interface{})
	if !ok || len(items)%2 != 0 {
		return nil, fmt.Errorf("unexpected script result: %T", result)
	}
	fields := make(map[string]string, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		k, _ := items[i].(string)
		v, _ := items[i+1].(string)
		fields[k] = v
	}
	return fields, nil
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
