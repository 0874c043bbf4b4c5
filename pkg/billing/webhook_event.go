package billing

import "time"

// WebhookEvent describes a pro status change applied from a billing webhook.
type WebhookEvent struct {
	// UserID is the internal user identifier
	UserID string

	// IsPro is the pro flag after the update
	IsPro bool

	// Provider is the billing provider name ("stripe")
	Provider string

	// EventType is the provider-specific event type
	EventType string

	// EventTimestamp is when the event occurred (from provider)
	EventTimestamp time.Time
}
