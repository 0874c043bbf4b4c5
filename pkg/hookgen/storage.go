package hookgen

import (
	"context"
	"time"
)

// Store defines the interface for quota record persistence.
// All methods use concrete types from this package to avoid import cycles.
type Store interface {
	// GetRecord retrieves a user's quota record.
	// Returns ErrRecordNotFound if the user has none.
	GetRecord(ctx context.Context, userID string) (*Record, error)

	// SetRecord creates or replaces a user's quota record.
	SetRecord(ctx context.Context, rec *Record) error

	// IncrementGenerations atomically applies one successful generation on the given day:
	// generationsToday restarts from zero when lastGenerationDate differs from day,
	// then both counters grow by one and lastGenerationDate becomes day.
	// A missing record is created. Returns the record as written.
	IncrementGenerations(ctx context.Context, userID, day string, now time.Time) (*Record, error)

	// UpdateRecord applies an admin mutation.
	// Returns ErrRecordNotFound if the user has no record.
	UpdateRecord(ctx context.Context, userID string, update RecordUpdate) error

	// DeleteRecord removes a user's quota record. Deleting a missing record is not an error.
	DeleteRecord(ctx context.Context, userID string) error

	// ListRecords returns every record, newest first by CreatedAt.
	ListRecords(ctx context.Context) ([]*Record, error)
}

// GenerationRecorder persists successful generations.
type GenerationRecorder interface {
	// SaveGeneration stores a generation and returns its ID.
	SaveGeneration(ctx context.Context, gen *Generation) (string, error)
}
