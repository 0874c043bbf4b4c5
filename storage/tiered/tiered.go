// Package tiered layers a fast hot store (Redis, memory) over a durable cold
// store (Firestore, Postgres) behind the hookgen.Store interface.
package tiered

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

// Config configures the tiered storage behavior
type Config struct {
	// Hot serves reads and atomic increments (e.g., Redis, Memory)
	Hot hookgen.Store

	// Cold is the source of truth (e.g., Postgres, Firestore)
	Cold hookgen.Store

	// AsyncSync replicates increments to Cold from a background worker.
	// If false, replication happens inline (slower but safer).
	AsyncSync bool

	// SyncBufferSize is the size of the async replication queue (default: 1000)
	SyncBufferSize int

	// AsyncErrorHandler is called when replication to Cold fails.
	AsyncErrorHandler func(error)
}

// Storage implements hookgen.Store with per-operation strategies:
//   - read-through: GetRecord (Hot, then Cold, then fill Hot)
//   - write-through: SetRecord, UpdateRecord, DeleteRecord (Cold, then Hot)
//   - hot-primary: IncrementGenerations (Hot atomic, then replayed on Cold)
//   - cold-only: ListRecords, SaveGeneration
type Storage struct {
	hot  hookgen.Store
	cold hookgen.Store
	conf Config

	syncQueue chan func() error
	shutdown  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// userLocks serialize warm-up, increments and admin writes per user
	userLocks [64]sync.Mutex
}

var (
	_ hookgen.Store              = (*Storage)(nil)
	_ hookgen.GenerationRecorder = (*Storage)(nil)
)

// New creates a new tiered storage adapter.
func New(config Config) (*Storage, error) {
	if config.Hot == nil || config.Cold == nil {
		return nil, errors.New("tiered storage: both hot and cold storage are required")
	}
	if config.SyncBufferSize <= 0 {
		config.SyncBufferSize = 1000
	}

	s := &Storage{
		hot:       config.Hot,
		cold:      config.Cold,
		conf:      config,
		syncQueue: make(chan func() error, config.SyncBufferSize),
		shutdown:  make(chan struct{}),
	}
	if config.AsyncSync {
		s.startWorker()
	}
	return s, nil
}

// Close stops the replication worker after draining queued writes.
func (s *Storage) Close() error {
	if s.conf.AsyncSync {
		s.closeOnce.Do(func() {
			close(s.shutdown)
			s.wg.Wait()
		})
	}
	return nil
}

// startWorker replicates queued writes in order, so per-user writes stay causal.
func (s *Storage) startWorker() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case job := <-s.syncQueue:
				s.run(job)
			case <-s.shutdown:
				for {
					select {
					case job := <-s.syncQueue:
						s.run(job)
					default:
						return
					}
				}
			}
		}
	}()
}

func (s *Storage) run(job func() error) {
	if err := job(); err != nil {
		s.reportError(fmt.Errorf("tiered sync failed: %w", err))
	}
}

func (s *Storage) reportError(err error) {
	if s.conf.AsyncErrorHandler != nil {
		s.conf.AsyncErrorHandler(err)
	}
}

// GetRecord reads Hot first and fills it from Cold on a miss.
func (s *Storage) GetRecord(ctx context.Context, userID string) (*hookgen.Record, error) {
	if rec, err := s.hot.GetRecord(ctx, userID); err == nil {
		return rec, nil
	}

	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	// An increment may have filled Hot while we waited.
	if rec, err := s.hot.GetRecord(ctx, userID); err == nil {
		return rec, nil
	}
	rec, err := s.cold.GetRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	_ = s.hot.SetRecord(ctx, rec) //nolint:errcheck // cache fill
	return rec, nil
}

// SetRecord writes Cold, then Hot.
func (s *Storage) SetRecord(ctx context.Context, rec *hookgen.Record) error {
	if rec == nil || rec.UserID == "" {
		return errors.New("invalid record")
	}
	mu := s.lockFor(rec.UserID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.flush(ctx); err != nil {
		return err
	}
	if err := s.cold.SetRecord(ctx, rec); err != nil {
		return err
	}
	_ = s.hot.SetRecord(ctx, rec) //nolint:errcheck // Cold is source of truth
	return nil
}

// UpdateRecord applies the same update to Cold, then Hot. Counters are never
// copied between tiers here, so a pending increment cannot be overwritten.
func (s *Storage) UpdateRecord(ctx context.Context, userID string, update hookgen.RecordUpdate) error {
	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.flush(ctx); err != nil {
		return err
	}
	if err := s.cold.UpdateRecord(ctx, userID, update); err != nil {
		return err
	}
	if err := s.hot.UpdateRecord(ctx, userID, update); err != nil && !errors.Is(err, hookgen.ErrRecordNotFound) {
		_ = s.hot.DeleteRecord(ctx, userID) //nolint:errcheck // next read refills
	}
	return nil
}

// DeleteRecord removes the record from Cold, then Hot.
func (s *Storage) DeleteRecord(ctx context.Context, userID string) error {
	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.flush(ctx); err != nil {
		return err
	}
	if err := s.cold.DeleteRecord(ctx, userID); err != nil {
		return err
	}
	return s.hot.DeleteRecord(ctx, userID)
}

func (s *Storage) lockFor(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.userLocks[h.Sum32()%uint32(len(s.userLocks))]
}

// flush waits until every replication queued so far has reached Cold.
// Callers hold the user lock, so no new increment for that user can queue.
func (s *Storage) flush(ctx context.Context) error {
	if !s.conf.AsyncSync {
		return nil
	}
	select {
	case <-s.shutdown:
		return nil
	default:
	}
	done := make(chan struct{})
	select {
	case s.syncQueue <- func() error { close(done); return nil }:
	case <-s.shutdown:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IncrementGenerations increments atomically in Hot and replays the same
// increment on Cold. A Hot miss is warmed from Cold first so the all-time
// counter carries over.
func (s *Storage) IncrementGenerations(ctx context.Context, userID, day string, now time.Time) (*hookgen.Record, error) {
	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.hot.GetRecord(ctx, userID); errors.Is(err, hookgen.ErrRecordNotFound) {
		if err := s.flush(ctx); err != nil {
			return nil, err
		}
		if rec, err := s.cold.GetRecord(ctx, userID); err == nil {
			_ = s.hot.SetRecord(ctx, rec) //nolint:errcheck // warm-up
		}
	}

	rec, err := s.hot.IncrementGenerations(ctx, userID, day, now)
	if err != nil {
		return nil, err
	}

	replicate := func(ctx context.Context) error {
		_, err := s.cold.IncrementGenerations(ctx, userID, day, now)
		return err
	}

	if !s.conf.AsyncSync {
		if err := replicate(ctx); err != nil {
			s.reportError(fmt.Errorf("tiered storage: sync cold write failed: %w", err))
		}
		return rec, nil
	}

	select {
	case s.syncQueue <- func() error { return replicate(context.Background()) }:
	default:
		s.reportError(errors.New("tiered storage: sync queue full, dropping cold write"))
	}
	return rec, nil
}

// ListRecords lists from Cold.
func (s *Storage) ListRecords(ctx context.Context) ([]*hookgen.Record, error) {
	return s.cold.ListRecords(ctx)
}

// SaveGeneration stores generations in Cold when it can record them.
func (s *Storage) SaveGeneration(ctx context.Context, gen *hookgen.Generation) (string, error) {
	if rec, ok := s.cold.(hookgen.GenerationRecorder); ok {
		return rec.SaveGeneration(ctx, gen)
	}
	if rec, ok := s.hot.(hookgen.GenerationRecorder); ok {
		return rec.SaveGeneration(ctx, gen)
	}
	return "", errors.New("tiered storage: no generation recorder configured")
}
