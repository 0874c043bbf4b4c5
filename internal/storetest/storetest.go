// Package storetest holds behaviour tests shared by every hookgen.Store adapter.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

// Options tune the shared store tests.
type Options struct {
	// Writers is the number of concurrent increments in the concurrency test (default: 20)
	Writers int
}

// Run exercises store against the hookgen.Store contract.
// newStore must return an empty store for each call.
func Run(t *testing.T, newStore func(t *testing.T) hookgen.Store, opts ...Options) {
	writers := 20
	if len(opts) > 0 && opts[0].Writers > 0 {
		writers = opts[0].Writers
	}

	t.Run("GetMissing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetRecord(context.Background(), "missing")
		assert.ErrorIs(t, err, hookgen.ErrRecordNotFound)
	})

	t.Run("SetGet", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

		rec := &hookgen.Record{
			UserID:             "user1",
			Email:              "user1@example.com",
			GenerationsToday:   2,
			GenerationsTotal:   7,
			LastGenerationDate: "2025-03-01",
			IsPro:              true,
			CreatedAt:          created,
			LastActivity:       created,
		}
		require.NoError(t, store.SetRecord(ctx, rec))

		got, err := store.GetRecord(ctx, "user1")
		require.NoError(t, err)
		assert.Equal(t, "user1@example.com", got.Email)
		assert.Equal(t, 2, got.GenerationsToday)
		assert.Equal(t, 7, got.GenerationsTotal)
		assert.Equal(t, "2025-03-01", got.LastGenerationDate)
		assert.True(t, got.IsPro)
		assert.False(t, got.IsAdmin)
		assert.True(t, created.Equal(got.CreatedAt))
	})

	t.Run("IncrementCreatesRecord", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

		rec, err := store.IncrementGenerations(ctx, "user1", "2025-03-01", now)
		require.NoError(t, err)
		assert.Equal(t, 1, rec.GenerationsToday)
		assert.Equal(t, 1, rec.GenerationsTotal)
		assert.Equal(t, "2025-03-01", rec.LastGenerationDate)

		got, err := store.GetRecord(ctx, "user1")
		require.NoError(t, err)
		assert.Equal(t, 1, got.GenerationsToday)
	})

	t.Run("IncrementSameDayAccumulates", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

		for i := 1; i <= 3; i++ {
			rec, err := store.IncrementGenerations(ctx, "user1", "2025-03-01", now)
			require.NoError(t, err)
			assert.Equal(t, i, rec.GenerationsToday)
			assert.Equal(t, i, rec.GenerationsTotal)
		}
	})

	t.Run("IncrementNewDayResets", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.SetRecord(ctx, &hookgen.Record{
			UserID:             "user1",
			GenerationsToday:   3,
			GenerationsTotal:   10,
			LastGenerationDate: "2025-03-01",
			CreatedAt:          time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		}))

		rec, err := store.IncrementGenerations(ctx, "user1", "2025-03-02",
			time.Date(2025, 3, 2, 0, 5, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, 1, rec.GenerationsToday)
		assert.Equal(t, 11, rec.GenerationsTotal)
		assert.Equal(t, "2025-03-02", rec.LastGenerationDate)
	})

	t.Run("IncrementConcurrent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

		n := writers
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.IncrementGenerations(ctx, "user1", "2025-03-01", now)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := store.GetRecord(ctx, "user1")
		require.NoError(t, err)
		assert.Equal(t, n, got.GenerationsToday)
		assert.Equal(t, n, got.GenerationsTotal)
	})

	t.Run("UpdateRecord", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.SetRecord(ctx, &hookgen.Record{
			UserID:             "user1",
			GenerationsToday:   3,
			GenerationsTotal:   5,
			LastGenerationDate: "2025-03-01",
			IsOnline:           true,
		}))

		isPro := true
		offline := false
		require.NoError(t, store.UpdateRecord(ctx, "user1", hookgen.RecordUpdate{
			IsPro:            &isPro,
			IsOnline:         &offline,
			ResetGenerations: true,
			Now:              time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC),
		}))

		got, err := store.GetRecord(ctx, "user1")
		require.NoError(t, err)
		assert.True(t, got.IsPro)
		assert.False(t, got.IsOnline)
		assert.Equal(t, 0, got.GenerationsToday)
		assert.Equal(t, 5, got.GenerationsTotal)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		store := newStore(t)
		isPro := true
		err := store.UpdateRecord(context.Background(), "missing", hookgen.RecordUpdate{IsPro: &isPro})
		assert.ErrorIs(t, err, hookgen.ErrRecordNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.SetRecord(ctx, &hookgen.Record{UserID: "user1"}))

		require.NoError(t, store.DeleteRecord(ctx, "user1"))
		_, err := store.GetRecord(ctx, "user1")
		assert.ErrorIs(t, err, hookgen.ErrRecordNotFound)

		assert.NoError(t, store.DeleteRecord(ctx, "user1"))
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		for i, id := range []string{"old", "mid", "new"} {
			require.NoError(t, store.SetRecord(ctx, &hookgen.Record{
				UserID:    id,
				CreatedAt: base.Add(time.Duration(i) * time.Hour),
			}))
		}

		recs, err := store.ListRecords(ctx)
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, "new", recs[0].UserID)
		assert.Equal(t, "mid", recs[1].UserID)
		assert.Equal(t, "old", recs[2].UserID)
	})
}

// RunRecorder exercises recorder against the hookgen.GenerationRecorder contract.
func RunRecorder(t *testing.T, recorder hookgen.GenerationRecorder) {
	id, err := recorder.SaveGeneration(context.Background(), &hookgen.Generation{
		UserID:    "user1",
		RequestID: "req-1",
		Niche:     "fitness",
		Topic:     "morning routine",
		Language:  "en",
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}
