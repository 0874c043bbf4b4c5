package billing

import (
	"time"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

// Config defines the standard configuration all providers accept
type Config struct {
	// Pro receives pro status changes (required)
	Pro ProSetter

	// WebhookSecret is used to verify incoming webhook signatures (required)
	WebhookSecret string

	// WebhookRateLimit caps webhook requests per client IP per WebhookRateWindow (default: 100)
	WebhookRateLimit int

	// WebhookRateWindow is the rate limit window (default: 1m)
	WebhookRateWindow time.Duration

	// OnProChange is called after a pro status change has been stored
	OnProChange func(WebhookEvent)

	// Metrics is an optional metrics collector for webhook processing
	// If nil, metrics are silently ignored
	Metrics Metrics

	// Logger is used for structured logging (default: NoopLogger)
	Logger hookgen.Logger
}
