package hookgen

import "time"

// Metrics defines the interface for tracking quota and generation operations.
type Metrics interface {
	// RecordQuotaCheck records the outcome and latency of a quota check.
	RecordQuotaCheck(allowed, isPro bool, duration time.Duration)

	// RecordQuotaCommit records a quota commit after a successful generation.
	RecordQuotaCommit(err error)

	// RecordFailOpen records a quota check that was allowed because the store failed.
	RecordFailOpen(reason string)

	// RecordGenerationAttempt records a single upstream call outcome
	// (e.g. "success", "invalid_response", "timeout", "repair_success").
	RecordGenerationAttempt(outcome string)

	// RecordGeneration records the final result of a generation request.
	RecordGeneration(class ErrorClass, duration time.Duration)

	// RecordStorageOperation records the duration and status of a storage operation.
	RecordStorageOperation(operation string, duration time.Duration, err error)

	// RecordCircuitBreakerStateChange records a circuit breaker state change.
	RecordCircuitBreakerStateChange(state string)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordQuotaCheck(allowed, isPro bool, duration time.Duration)            {}
func (n *NoopMetrics) RecordQuotaCommit(err error)                                             {}
func (n *NoopMetrics) RecordFailOpen(reason string)                                            {}
func (n *NoopMetrics) RecordGenerationAttempt(outcome string)                                  {}
func (n *NoopMetrics) RecordGeneration(class ErrorClass, duration time.Duration)               {}
func (n *NoopMetrics) RecordStorageOperation(operation string, duration time.Duration, err error) {}
func (n *NoopMetrics) RecordCircuitBreakerStateChange(state string)                            {}
