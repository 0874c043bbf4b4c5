package hookgen_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// reply is one scripted model answer. block waits for the call deadline.
type reply struct {
	text  string
	err   error
	block bool
}

// scriptedModel answers calls in order and repeats its last reply.
type scriptedModel struct {
	mu       sync.Mutex
	replies  []reply
	requests []hookgen.CompletionRequest
}

func newModel(replies ...reply) *scriptedModel {
	return &scriptedModel{replies: replies}
}

func (m *scriptedModel) Complete(ctx context.Context, req hookgen.CompletionRequest) (string, error) {
	m.mu.Lock()
	i := len(m.requests)
	m.requests = append(m.requests, req)
	var r reply
	if len(m.replies) > 0 {
		if i >= len(m.replies) {
			i = len(m.replies) - 1
		}
		r = m.replies[i]
	}
	m.mu.Unlock()

	if r.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return r.text, r.err
}

func (m *scriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *scriptedModel) Request(i int) hookgen.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i]
}

var errStoreDown = errors.New("store down")

// failingStore fails every call.
type failingStore struct{}

func (failingStore) GetRecord(context.Context, string) (*hookgen.Record, error) {
	return nil, errStoreDown
}

func (failingStore) SetRecord(context.Context, *hookgen.Record) error { return errStoreDown }

func (failingStore) IncrementGenerations(context.Context, string, string, time.Time) (*hookgen.Record, error) {
	return nil, errStoreDown
}

func (failingStore) UpdateRecord(context.Context, string, hookgen.RecordUpdate) error {
	return errStoreDown
}

func (failingStore) DeleteRecord(context.Context, string) error { return errStoreDown }

func (failingStore) ListRecords(context.Context) ([]*hookgen.Record, error) {
	return nil, errStoreDown
}

// countingStore counts GetRecord calls on top of another store.
type countingStore struct {
	hookgen.Store
	mu   sync.Mutex
	gets int
}

func (s *countingStore) GetRecord(ctx context.Context, userID string) (*hookgen.Record, error) {
	s.mu.Lock()
	s.gets++
	s.mu.Unlock()
	return s.Store.GetRecord(ctx, userID)
}

func (s *countingStore) Gets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

// contextStore rejects increments on a finished context, like network-backed stores do.
type contextStore struct {
	hookgen.Store
}

func (s contextStore) IncrementGenerations(ctx context.Context, userID, day string, now time.Time) (*hookgen.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.IncrementGenerations(ctx, userID, day, now)
}

// hangupModel answers, then cancels the request context as a departing client would.
type hangupModel struct {
	text   string
	cancel context.CancelFunc
}

func (m *hangupModel) Complete(context.Context, hookgen.CompletionRequest) (string, error) {
	m.cancel()
	return m.text, nil
}
