package hookgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRecordNotFound is returned when a user has no quota record yet
	ErrRecordNotFound = errors.New("quota record not found")

	// ErrStorageUnavailable is returned when storage is unavailable
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidRequest is returned when required generation parameters are missing
	ErrInvalidRequest = errors.New("invalid generation request")

	// ErrUnauthenticated is returned when a request carries no user ID
	ErrUnauthenticated = errors.New("user authentication required")

	// ErrForbidden is returned when a non-admin calls an admin operation
	ErrForbidden = errors.New("admin access required")

	// ErrGenerationFailed is returned when all attempts are exhausted without a captured error
	ErrGenerationFailed = errors.New("generation failed after all retries")

	// ErrModelRequired is returned when a Caller is built without a model
	ErrModelRequired = errors.New("model is required")
)

// TimeoutError is returned when the upstream model does not answer within the call timeout.
// It is terminal: the orchestrator never retries it.
type TimeoutError struct {
	RequestID string
}

func (e *TimeoutError) Error() string {
	return "model request timed out"
}

// RateLimitError is returned when the upstream model rejects a call for rate limiting.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return "model rate limit exceeded"
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// InvalidResponseError wraps parse and schema failures of the model output.
type InvalidResponseError struct {
	Err error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid model response: %v", e.Err)
}

func (e *InvalidResponseError) Unwrap() error {
	return e.Err
}

// QuotaExceededError is returned by Service.Generate when the daily limit is used up.
type QuotaExceededError struct {
	Decision Decision
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily generation limit reached (%d per day)", e.Decision.Limit)
}

// ErrorClass groups errors by how the orchestrator and the HTTP layer react to them.
type ErrorClass string

const (
	ClassNone            ErrorClass = "none"
	ClassTimeout         ErrorClass = "timeout"
	ClassRateLimit       ErrorClass = "rate_limit"
	ClassInvalidResponse ErrorClass = "invalid_response"
	ClassCanceled        ErrorClass = "canceled"
	ClassUnknown         ErrorClass = "unknown"
)

// Terminal reports whether errors of this class must not be retried.
func (c ErrorClass) Terminal() bool {
	return c == ClassTimeout || c == ClassRateLimit || c == ClassCanceled
}

// Classify maps an error onto its ErrorClass.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return ClassTimeout
	}
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return ClassRateLimit
	}
	var invalidErr *InvalidResponseError
	if errors.As(err, &invalidErr) {
		return ClassInvalidResponse
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassCanceled
	}
	if isRateLimitMessage(err.Error()) {
		return ClassRateLimit
	}
	return ClassUnknown
}

func isRateLimitMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit")
}
