package prommetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

// Metrics implements hookgen.Metrics using Prometheus.
type Metrics struct {
	quotaChecksTotal           *prometheus.CounterVec
	quotaCheckDuration         *prometheus.HistogramVec
	quotaCommitsTotal          *prometheus.CounterVec
	failOpenTotal              *prometheus.CounterVec
	generationAttemptsTotal    *prometheus.CounterVec
	generationsTotal           *prometheus.CounterVec
	generationDuration         *prometheus.HistogramVec
	storageOpsDuration         *prometheus.HistogramVec
	storageOpsErrors           *prometheus.CounterVec
	circuitBreakerStateChanges *prometheus.CounterVec
}

var _ hookgen.Metrics = (*Metrics)(nil)

// NewMetrics creates a new Prometheus metrics implementation.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		quotaChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_checks_total",
			Help:      "Total number of daily quota checks.",
		}, []string{"allowed", "tier"}),

		quotaCheckDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quota_check_duration_seconds",
			Help:      "Latency of quota checks.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tier"}),

		quotaCommitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_commits_total",
			Help:      "Total number of quota commits after successful generations.",
		}, []string{"success"}),

		failOpenTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_fail_open_total",
			Help:      "Total number of quota checks allowed because storage failed.",
		}, []string{"reason"}),

		generationAttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_attempts_total",
			Help:      "Total number of upstream model calls by outcome.",
		}, []string{"outcome"}),

		generationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of generation requests by final error class.",
		}, []string{"class"}),

		generationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "End-to-end latency of generation requests.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 50, 90, 150},
		}, []string{"class"}),

		storageOpsDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_duration_seconds",
			Help:      "Latency of storage operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		storageOpsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operation_errors_total",
			Help:      "Total number of storage operation errors.",
		}, []string{"operation"}),

		circuitBreakerStateChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state_changes_total",
			Help:      "Total number of circuit breaker state changes.",
		}, []string{"state"}),
	}
}

func tier(isPro bool) string {
	if isPro {
		return "pro"
	}
	return "free"
}

func (m *Metrics) RecordQuotaCheck(allowed, isPro bool, duration time.Duration) {
	m.quotaChecksTotal.WithLabelValues(strconv.FormatBool(allowed), tier(isPro)).Inc()
	m.quotaCheckDuration.WithLabelValues(tier(isPro)).Observe(duration.Seconds())
}

func (m *Metrics) RecordQuotaCommit(err error) {
	m.quotaCommitsTotal.WithLabelValues(strconv.FormatBool(err == nil)).Inc()
}

func (m *Metrics) RecordFailOpen(reason string) {
	m.failOpenTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordGenerationAttempt(outcome string) {
	m.generationAttemptsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordGeneration(class hookgen.ErrorClass, duration time.Duration) {
	m.generationsTotal.WithLabelValues(string(class)).Inc()
	m.generationDuration.WithLabelValues(string(class)).Observe(duration.Seconds())
}

func (m *Metrics) RecordStorageOperation(operation string, duration time.Duration, err error) {
	m.storageOpsDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.storageOpsErrors.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) RecordCircuitBreakerStateChange(state string) {
	m.circuitBreakerStateChanges.WithLabelValues(state).Inc()
}
