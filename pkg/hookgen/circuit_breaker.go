package hookgen

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState represents the current state of the circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker guards calls to a flaky dependency.
type CircuitBreaker interface {
	// Execute runs fn unless the circuit is open.
	Execute(ctx context.Context, fn func() error) error
	// State returns the current state of the circuit breaker.
	State() CircuitState
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit (default: 5)
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before a trial call (default: 30s)
	ResetTimeout time.Duration

	// OnStateChange is called on every transition
	OnStateChange func(state CircuitState)
}

// DefaultCircuitBreaker opens after FailureThreshold consecutive failures and
// lets a single trial through once ResetTimeout has passed.
type DefaultCircuitBreaker struct {
	mu sync.Mutex

	state               CircuitState
	config              CircuitBreakerConfig
	consecutiveFailures int
	openedAt            time.Time
	now                 func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *DefaultCircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	return &DefaultCircuitBreaker{
		state:  CircuitClosed,
		config: config,
		now:    time.Now,
	}
}

func (cb *DefaultCircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

func (cb *DefaultCircuitBreaker) currentState() CircuitState {
	if cb.state == CircuitOpen && cb.now().Sub(cb.openedAt) >= cb.config.ResetTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// Execute runs fn. A missing record is a normal answer, not a failure.
func (cb *DefaultCircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cb.mu.Lock()
	state := cb.currentState()
	if state == CircuitOpen {
		cb.mu.Unlock()
		return ErrCircuitOpen
	}
	if state == CircuitHalfOpen {
		cb.changeState(CircuitHalfOpen)
	}
	cb.mu.Unlock()

	err := fn()
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		cb.failure()
		return err
	}

	cb.success()
	return err
}

func (cb *DefaultCircuitBreaker) success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	cb.changeState(CircuitClosed)
}

func (cb *DefaultCircuitBreaker) failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++
	switch {
	case cb.state == CircuitHalfOpen:
		cb.openedAt = cb.now()
		cb.changeState(CircuitOpen)
	case cb.state == CircuitClosed && cb.consecutiveFailures >= cb.config.FailureThreshold:
		cb.openedAt = cb.now()
		cb.changeState(CircuitOpen)
	}
}

func (cb *DefaultCircuitBreaker) changeState(newState CircuitState) {
	if cb.state == newState {
		return
	}
	cb.state = newState
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(newState)
	}
}

// CircuitBreakerStore wraps a Store with circuit breaker protection.
type CircuitBreakerStore struct {
	store Store
	cb    CircuitBreaker
}

var _ Store = (*CircuitBreakerStore)(nil)

// NewCircuitBreakerStore creates a new store wrapper with circuit breaker.
func NewCircuitBreakerStore(store Store, cb CircuitBreaker) *CircuitBreakerStore {
	return &CircuitBreakerStore{store: store, cb: cb}
}

func (s *CircuitBreakerStore) GetRecord(ctx context.Context, userID string) (*Record, error) {
	var rec *Record
	err := s.cb.Execute(ctx, func() error {
		var e error
		rec, e = s.store.GetRecord(ctx, userID)
		return e
	})
	return rec, err
}

func (s *CircuitBreakerStore) SetRecord(ctx context.Context, rec *Record) error {
	return s.cb.Execute(ctx, func() error {
		return s.store.SetRecord(ctx, rec)
	})
}

func (s *CircuitBreakerStore) IncrementGenerations(ctx context.Context, userID, day string, now time.Time) (*Record, error) {
	var rec *Record
	err := s.cb.Execute(ctx, func() error {
		var e error
		rec, e = s.store.IncrementGenerations(ctx, userID, day, now)
		return e
	})
	return rec, err
}

func (s *CircuitBreakerStore) UpdateRecord(ctx context.Context, userID string, update RecordUpdate) error {
	return s.cb.Execute(ctx, func() error {
		return s.store.UpdateRecord(ctx, userID, update)
	})
}

func (s *CircuitBreakerStore) DeleteRecord(ctx context.Context, userID string) error {
	return s.cb.Execute(ctx, func() error {
		return s.store.DeleteRecord(ctx, userID)
	})
}

func (s *CircuitBreakerStore) ListRecords(ctx context.Context) ([]*Record, error) {
	var recs []*Record
	err := s.cb.Execute(ctx, func() error {
		var e error
		recs, e = s.store.ListRecords(ctx)
		return e
	})
	return recs, err
}
