// Package memory provides an in-memory implementation of the hookgen.Store interface.
// This implementation is primarily intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

// Storage implements hookgen.Store and hookgen.GenerationRecorder using in-memory maps
type Storage struct {
	mu          sync.RWMutex
	records     map[string]*hookgen.Record
	generations map[string]*hookgen.Generation
}

var (
	_ hookgen.Store              = (*Storage)(nil)
	_ hookgen.GenerationRecorder = (*Storage)(nil)
)

// New creates a new in-memory storage adapter
func New() *Storage {
	return &Storage{
		records:     make(map[string]*hookgen.Record),
		generations: make(map[string]*hookgen.Generation),
	}
}

// GetRecord implements hookgen.Store
func (s *Storage) GetRecord(_ context.Context, userID string) (*hookgen.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, hookgen.ErrRecordNotFound
	}

	// Return a copy to prevent external mutations
	recCopy := *rec
	return &recCopy, nil
}

// SetRecord implements hookgen.Store
func (s *Storage) SetRecord(_ context.Context, rec *hookgen.Record) error {
	if rec == nil || rec.UserID == "" {
		return fmt.Errorf("invalid record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recCopy := *rec
	s.records[rec.UserID] = &recCopy
	return nil
}

// IncrementGenerations implements hookgen.Store
func (s *Storage) IncrementGenerations(_ context.Context, userID, day string, now time.Time) (*hookgen.Record, error) {
	if userID == "" {
		return nil, fmt.Errorf("invalid user ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		rec = &hookgen.Record{UserID: userID}
		s.records[userID] = rec
	}
	rec.Increment(day, now)

	recCopy := *rec
	return &recCopy, nil
}

// UpdateRecord implements hookgen.Store
func (s *Storage) UpdateRecord(_ context.Context, userID string, update hookgen.RecordUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return hookgen.ErrRecordNotFound
	}
	rec.Apply(update)
	return nil
}

// DeleteRecord implements hookgen.Store
func (s *Storage) DeleteRecord(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, userID)
	return nil
}

// ListRecords implements hookgen.Store
func (s *Storage) ListRecords(_ context.Context) ([]*hookgen.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*hookgen.Record, 0, len(s.records))
	for _, rec := range s.records {
		recCopy := *rec
		recs = append(recs, &recCopy)
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
func (s *Storage) SaveGeneration(_ context.Context, gen *hookgen.Generation) (string, error) {
	if gen == nil {
		return "", fmt.Errorf("invalid generation")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	genCopy := *gen
	if genCopy.ID == "" {
		genCopy.ID = uuid.NewString()
	}
	s.generations[genCopy.ID] = &genCopy
	return genCopy.ID, nil
}

// Generations returns the stored generations for a user, oldest first.
func (s *Storage) Generations(userID string) []*hookgen.Generation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var gens []*hookgen.Generation
	for _, gen := range s.generations {
		if gen.UserID == userID {
			genCopy := *gen
			gens = append(gens, &genCopy)
		}
	}
	sort.SliceStable(gens, func(i, j int) bool {
		return gens[i].CreatedAt.Before(gens[j].CreatedAt)
	})
	return gens
}
