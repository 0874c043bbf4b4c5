package hookgen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

// stubStore fails while err is set and otherwise answers from rec.
type stubStore struct {
	err   error
	rec   *Record
	calls int
}

func (s *stubStore) result() error {
	s.calls++
	return s.err
}

func (s *stubStore) GetRecord(context.Context, string) (*Record, error) {
	if err := s.result(); err != nil {
		return nil, err
	}
	if s.rec == nil {
		return nil, ErrRecordNotFound
	}
	return s.rec, nil
}

func (s *stubStore) SetRecord(context.Context, *Record) error { return s.result() }

func (s *stubStore) IncrementGenerations(context.Context, string, string, time.Time) (*Record, error) {
	return s.rec, s.result()
}

func (s *stubStore) UpdateRecord(context.Context, string, RecordUpdate) error { return s.result() }

func (s *stubStore) DeleteRecord(context.Context, string) error { return s.result() }

func (s *stubStore) ListRecords(context.Context) ([]*Record, error) { return nil, s.result() }

func newTestBreaker(threshold int, states *[]CircuitState) (*DefaultCircuitBreaker, *time.Time) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: threshold,
		ResetTimeout:     time.Minute,
		OnStateChange: func(s CircuitState) {
			*states = append(*states, s)
		},
	})
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	assert.Equal(t, 5, cb.config.FailureThreshold)
	assert.Equal(t, 30*time.Second, cb.config.ResetTimeout)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_Transitions(t *testing.T) {
	var states []CircuitState
	cb, now := newTestBreaker(3, &states)
	ctx := context.Background()
	fail := func() error { return errBackend }
	ok := func() error { return nil }

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errBackend)
	}
	assert.Equal(t, CircuitClosed, cb.State())

	assert.ErrorIs(t, cb.Execute(ctx, fail), errBackend)
	assert.Equal(t, CircuitOpen, cb.State())

	calls := 0
	err := cb.Execute(ctx, func() error { calls++; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls, "open circuit fails fast")

	*now = now.Add(time.Minute)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// A failed trial re-opens immediately
	assert.ErrorIs(t, cb.Execute(ctx, fail), errBackend)
	assert.Equal(t, CircuitOpen, cb.State())

	*now = now.Add(time.Minute)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, CircuitClosed, cb.State())

	assert.Equal(t, []CircuitState{CircuitOpen, CircuitHalfOpen, CircuitOpen, CircuitHalfOpen, CircuitClosed}, states)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	var states []CircuitState
	cb, _ := newTestBreaker(2, &states)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errBackend })
	_ = cb.Execute(ctx, func() error { return nil })
	_ = cb.Execute(ctx, func() error { return errBackend })
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_NotFoundIsNotAFailure(t *testing.T) {
	var states []CircuitState
	cb, _ := newTestBreaker(1, &states)

	err := cb.Execute(context.Background(), func() error { return ErrRecordNotFound })
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_CanceledContext(t *testing.T) {
	var states []CircuitState
	cb, _ := newTestBreaker(1, &states)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestCircuitBreakerStore(t *testing.T) {
	var states []CircuitState
	cb, _ := newTestBreaker(2, &states)
	backend := &stubStore{err: errBackend}
	store := NewCircuitBreakerStore(backend, cb)
	ctx := context.Background()

	_, err := store.GetRecord(ctx, "u1")
	assert.ErrorIs(t, err, errBackend)
	_, err = store.IncrementGenerations(ctx, "u1", "2025-03-01", time.Now())
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, CircuitOpen, cb.State())

	assert.ErrorIs(t, store.SetRecord(ctx, &Record{UserID: "u1"}), ErrCircuitOpen)
	assert.ErrorIs(t, store.UpdateRecord(ctx, "u1", RecordUpdate{}), ErrCircuitOpen)
	assert.ErrorIs(t, store.DeleteRecord(ctx, "u1"), ErrCircuitOpen)
	_, err = store.ListRecords(ctx)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, backend.calls)
}

func TestCircuitBreakerStore_GateFailsOpen(t *testing.T) {
	var states []CircuitState
	cb, _ := newTestBreaker(1, &states)
	store := NewCircuitBreakerStore(&stubStore{err: errBackend}, cb)
	gate, err := NewGate(store, GateConfig{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		d := gate.CheckLimit(context.Background(), "u1")
		assert.True(t, d.Allowed)
	}
}
