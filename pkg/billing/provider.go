package billing

import (
	"context"
	"net/http"
)

// ProSetter flips a user's pro flag. *hookgen.Admin implements it.
type ProSetter interface {
	SetPro(ctx context.Context, userID string, isPro bool) error
}

// Provider is a billing backend that keeps pro status in sync through webhooks.
type Provider interface {
	// Name returns the provider name (e.g., "stripe")
	Name() string

	// WebhookHandler returns the HTTP handler that processes real-time events.
	WebhookHandler() http.Handler
}
