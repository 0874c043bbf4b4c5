package tiered

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/hookgen/internal/storetest"
	"github.com/mihaimyh/hookgen/pkg/hookgen"
	"github.com/mihaimyh/hookgen/storage/memory"
)

var errColdDown = errors.New("cold store down")

// flakyStore fails writes while failing is set.
type flakyStore struct {
	*memory.Storage
	mu      sync.Mutex
	failing bool
}

func (f *flakyStore) fail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

func (f *flakyStore) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errColdDown
	}
	return nil
}

func (f *flakyStore) SetRecord(ctx context.Context, rec *hookgen.Record) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.Storage.SetRecord(ctx, rec)
}

func (f *flakyStore) UpdateRecord(ctx context.Context, userID string, update hookgen.RecordUpdate) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.Storage.UpdateRecord(ctx, userID, update)
}

func (f *flakyStore) IncrementGenerations(ctx context.Context, userID, day string, now time.Time) (*hookgen.Record, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return f.Storage.IncrementGenerations(ctx, userID, day, now)
}

// gatedStore holds Cold increments until release is called.
type gatedStore struct {
	*memory.Storage
	started chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func newGatedStore() *gatedStore {
	return &gatedStore{Storage: memory.New(), started: make(chan struct{}, 1), gate: make(chan struct{})}
}

func (g *gatedStore) release() {
	g.once.Do(func() { close(g.gate) })
}

func (g *gatedStore) IncrementGenerations(ctx context.Context, userID, day string, now time.Time) (*hookgen.Record, error) {
	select {
	case g.started <- struct{}{}:
	default:
	}
	<-g.gate
	return g.Storage.IncrementGenerations(ctx, userID, day, now)
}

func newTiered(t *testing.T, conf Config) *Storage {
	t.Helper()
	s, err := New(conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStorage_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) hookgen.Store {
		return newTiered(t, Config{Hot: memory.New(), Cold: memory.New()})
	})
}

func TestStorage_Recorder(t *testing.T) {
	cold := memory.New()
	s := newTiered(t, Config{Hot: memory.New(), Cold: cold})
	storetest.RunRecorder(t, s)
	assert.Len(t, cold.Generations("user1"), 1)
}

func TestNew(t *testing.T) {
	_, err := New(Config{Cold: memory.New()})
	assert.ErrorContains(t, err, "hot and cold storage are required")

	_, err = New(Config{Hot: memory.New()})
	assert.ErrorContains(t, err, "hot and cold storage are required")

	s := newTiered(t, Config{Hot: memory.New(), Cold: memory.New(), AsyncSync: true})
	assert.Equal(t, 1000, cap(s.syncQueue))

	s = newTiered(t, Config{Hot: memory.New(), Cold: memory.New(), SyncBufferSize: 10})
	assert.Equal(t, 10, cap(s.syncQueue))
}

func TestStorage_GetRecord_ReadThrough(t *testing.T) {
	ctx := context.Background()
	hot, cold := memory.New(), memory.New()
	s := newTiered(t, Config{Hot: hot, Cold: cold})

	require.NoError(t, cold.SetRecord(ctx, &hookgen.Record{UserID: "u1", GenerationsTotal: 9}))

	rec, err := s.GetRecord(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 9, rec.GenerationsTotal)

	cached, err := hot.GetRecord(ctx, "u1")
	require.NoError(t, err, "cold hit must fill hot")
	assert.Equal(t, 9, cached.GenerationsTotal)

	_, err = s.GetRecord(ctx, "nobody")
	assert.ErrorIs(t, err, hookgen.ErrRecordNotFound)
}

func TestStorage_WriteThrough(t *testing.T) {
	ctx := context.Background()
	hot, cold := memory.New(), memory.New()
	s := newTiered(t, Config{Hot: hot, Cold: cold})

	require.NoError(t, s.SetRecord(ctx, &hookgen.Record{UserID: "u1"}))
	isPro := true
	require.NoError(t, s.UpdateRecord(ctx, "u1", hookgen.RecordUpdate{IsPro: &isPro}))

	for name, store := range map[string]hookgen.Store{"hot": hot, "cold": cold} {
		rec, err := store.GetRecord(ctx, "u1")
		require.NoError(t, err, name)
		assert.True(t, rec.IsPro, name)
	}

	require.NoError(t, s.DeleteRecord(ctx, "u1"))
	_, err := hot.GetRecord(ctx, "u1")
	assert.ErrorIs(t, err, hookgen.ErrRecordNotFound)
	_, err = cold.GetRecord(ctx, "u1")
	assert.ErrorIs(t, err, hookgen.ErrRecordNotFound)
}

func TestStorage_WriteThrough_ColdFailure(t *testing.T) {
	ctx := context.Background()
	hot := memory.New()
	cold := &flakyStore{Storage: memory.New()}
	s := newTiered(t, Config{Hot: hot, Cold: cold})

	cold.fail(true)
	err := s.SetRecord(ctx, &hookgen.Record{UserID: "u1"})
	assert.ErrorIs(t, err, errColdDown)

	_, err = hot.GetRecord(ctx, "u1")
	assert.ErrorIs(t, err, hookgen.ErrRecordNotFound, "hot must not see writes cold rejected")
}

func TestStorage_Increment_SyncReplicates(t *testing.T) {
	ctx := context.Background()
	hot, cold := memory.New(), memory.New()
	s := newTiered(t, Config{Hot: hot, Cold: cold})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.IncrementGenerations(ctx, "u1", "2025-03-01", now)
	require.NoError(t, err)
	rec, err := s.IncrementGenerations(ctx, "u1", "2025-03-01", now)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.GenerationsToday)

	coldRec, err := cold.GetRecord(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, coldRec.GenerationsToday)
	assert.Equal(t, 2, coldRec.GenerationsTotal)
}

func TestStorage_Increment_WarmsFromCold(t *testing.T) {
	ctx := context.Background()
	hot, cold := memory.New(), memory.New()
	s := newTiered(t, Config{Hot: hot, Cold: cold})

	require.NoError(t, cold.SetRecord(ctx, &hookgen.Record{
		UserID:             "u1",
		GenerationsToday:   2,
		GenerationsTotal:   40,
		LastGenerationDate: "2025-03-01",
		IsPro:              true,
	}))

	rec, err := s.IncrementGenerations(ctx, "u1", "2025-03-01", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 3, rec.GenerationsToday)
	assert.Equal(t, 41, rec.GenerationsTotal)
	assert.True(t, rec.IsPro)
}

func TestStorage_Increment_ColdFailureReported(t *testing.T) {
	ctx := context.Background()
	cold := &flakyStore{Storage: memory.New()}
	var reported []error
	s := newTiered(t, Config{
		Hot:               memory.New(),
		Cold:              cold,
		AsyncErrorHandler: func(err error) { reported = append(reported, err) },
	})

	cold.fail(true)
	rec, err := s.IncrementGenerations(ctx, "u1", "2025-03-01", time.Now())
	require.NoError(t, err, "hot increment stands when cold replication fails")
	assert.Equal(t, 1, rec.GenerationsToday)
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], errColdDown)
}

func TestStorage_Increment_Async(t *testing.T) {
	ctx := context.Background()
	cold := memory.New()
	s, err := New(Config{Hot: memory.New(), Cold: cold, AsyncSync: true})
	require.NoError(t, err)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := s.IncrementGenerations(ctx, "u1", "2025-03-01", now)
		require.NoError(t, err)
	}

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	rec, err := cold.GetRecord(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.GenerationsToday, "close drains queued replication in order")
}

func TestStorage_Increment_QueueFull(t *testing.T) {
	var mu sync.Mutex
	var reported []error
	s := &Storage{
		hot:       memory.New(),
		cold:      memory.New(),
		syncQueue: make(chan func() error, 1),
		shutdown:  make(chan struct{}),
		conf: Config{
			AsyncSync: true,
			AsyncErrorHandler: func(err error) {
				mu.Lock()
				defer mu.Unlock()
				reported = append(reported, err)
			},
		},
	}

	ctx := context.Background()
	require.NoError(t, s.hot.SetRecord(ctx, &hookgen.Record{UserID: "u1"}))
	now := time.Now()
	for i := 0; i < 3; i++ {
		_, err := s.IncrementGenerations(ctx, "u1", "2025-03-01", now)
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reported, 2)
	assert.Contains(t, reported[0].Error(), "queue full")
}

func TestStorage_ListRecords_FromCold(t *testing.T) {
	ctx := context.Background()
	hot, cold := memory.New(), memory.New()
	s := newTiered(t, Config{Hot: hot, Cold: cold})

	require.NoError(t, hot.SetRecord(ctx, &hookgen.Record{UserID: "hot-only"}))
	require.NoError(t, cold.SetRecord(ctx, &hookgen.Record{UserID: "cold"}))

	recs, err := s.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "cold", recs[0].UserID)
}

func TestStorage_UpdateWaitsForPendingReplication(t *testing.T) {
	ctx := context.Background()
	hot, cold := memory.New(), newGatedStore()
	s := newTiered(t, Config{Hot: hot, Cold: cold, AsyncSync: true})
	t.Cleanup(cold.release)

	require.NoError(t, s.SetRecord(ctx, &hookgen.Record{UserID: "u1", IsOnline: true}))
	_, err := s.IncrementGenerations(ctx, "u1", "2025-03-01", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	<-cold.started

	offline, pro := false, true
	updated := make(chan error, 1)
	go func() {
		updated <- s.UpdateRecord(ctx, "u1", hookgen.RecordUpdate{IsOnline: &offline, IsPro: &pro})
	}()

	select {
	case err := <-updated:
		t.Fatalf("update applied before queued increment reached cold: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	cold.release()
	require.NoError(t, <-updated)

	for name, store := range map[string]hookgen.Store{"hot": hot, "cold": cold.Storage} {
		rec, err := store.GetRecord(ctx, "u1")
		require.NoError(t, err, name)
		assert.Equal(t, 1, rec.GenerationsToday, name)
		assert.Equal(t, 1, rec.GenerationsTotal, name)
		assert.False(t, rec.IsOnline, name)
		assert.True(t, rec.IsPro, name)
	}
}

func TestStorage_DeleteAfterPendingReplication(t *testing.T) {
	ctx := context.Background()
	hot, cold := memory.New(), newGatedStore()
	s := newTiered(t, Config{Hot: hot, Cold: cold, AsyncSync: true})
	t.Cleanup(cold.release)

	_, err := s.IncrementGenerations(ctx, "u1", "2025-03-01", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	<-cold.started

	deleted := make(chan error, 1)
	go func() { deleted <- s.DeleteRecord(ctx, "u1") }()
	cold.release()
	require.NoError(t, <-deleted)
	require.NoError(t, s.Close())

	_, err = cold.GetRecord(ctx, "u1")
	assert.ErrorIs(t, err, hookgen.ErrRecordNotFound, "queued increment must not recreate a deleted record")
	_, err = hot.GetRecord(ctx, "u1")
	assert.ErrorIs(t, err, hookgen.ErrRecordNotFound)
}

func TestStorage_UpdateRespectsContext(t *testing.T) {
	hot, cold := memory.New(), newGatedStore()
	s := newTiered(t, Config{Hot: hot, Cold: cold, AsyncSync: true})
	t.Cleanup(cold.release)

	_, err := s.IncrementGenerations(context.Background(), "u1", "2025-03-01", time.Now())
	require.NoError(t, err)
	<-cold.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	offline := false
	err = s.UpdateRecord(ctx, "u1", hookgen.RecordUpdate{IsOnline: &offline})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
