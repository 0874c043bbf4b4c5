package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/mihaimyh/hookgen/pkg/billing"
	"github.com/mihaimyh/hookgen/pkg/billing/internal"
	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

// handleWebhook verifies and applies a Stripe webhook event
func (p *Provider) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := p.now()
	internal.SetSecurityHeaders(w)

	if r.Method != http.MethodPost {
		internal.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := internal.ReadBodyStrict(w, r, maxWebhookBody)
	if err != nil {
		if errors.Is(err, internal.ErrPayloadTooLarge) {
			internal.WriteError(w, http.StatusRequestEntityTooLarge, "payload too large")
			p.metrics.RecordWebhookError(providerName, "payload_too_large")
			return
		}
		internal.WriteError(w, http.StatusBadRequest, "invalid payload")
		p.metrics.RecordWebhookError(providerName, "invalid_payload")
		return
	}

	event, err := stripe.ConstructEvent(body, r.Header.Get("Stripe-Signature"), p.webhookSecret)
	if err != nil {
		internal.WriteError(w, http.StatusUnauthorized, "unauthorized")
		p.metrics.RecordWebhookError(providerName, "auth_failed")
		p.logger.Warn("webhook signature rejected", hookgen.Field{Key: "error", Value: err.Error()})
		return
	}

	eventType := string(event.Type)
	if eventType == "" {
		eventType = "unknown"
	}
	defer func() {
		p.metrics.RecordWebhookProcessingDuration(providerName, eventType, p.now().Sub(start))
	}()

	applied, err := p.processEvent(r.Context(), &event)
	switch {
	case errors.Is(err, billing.ErrUserNotFound):
		p.logger.Warn("webhook event without user",
			hookgen.Field{Key: "event_id", Value: event.ID},
			hookgen.Field{Key: "event_type", Value: eventType},
		)
		p.metrics.RecordWebhookEvent(providerName, eventType, "ignored")
		_ = internal.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
	case errors.Is(err, billing.ErrInvalidWebhookPayload):
		p.metrics.RecordWebhookEvent(providerName, eventType, "error")
		p.metrics.RecordWebhookError(providerName, "invalid_payload")
		internal.WriteError(w, http.StatusBadRequest, "invalid payload")
	case err != nil:
		p.metrics.RecordWebhookEvent(providerName, eventType, "error")
		p.metrics.RecordWebhookError(providerName, "processing_error")
		p.logger.Error("webhook processing failed",
			hookgen.Field{Key: "event_id", Value: event.ID},
			hookgen.Field{Key: "event_type", Value: eventType},
			hookgen.Field{Key: "error", Value: hookgen.RedactSecrets(err.Error())},
		)
		internal.WriteError(w, http.StatusInternalServerError, "failed to process webhook")
	default:
		status := "ignored"
		if applied {
			status = "success"
		}
		p.metrics.RecordWebhookEvent(providerName, eventType, status)
		_ = internal.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}

// processEvent applies the event and reports whether it changed pro status.
// Event types that do not affect pro status are ignored.
func (p *Provider) processEvent(ctx context.Context, event *stripe.Event) (bool, error) {
	if event.Data == nil {
		return false, billing.ErrInvalidWebhookPayload
	}

	var (
		userID string
		isPro  bool
		err    error
	)
	switch event.Type {
	case "checkout.session.completed":
		userID, err = checkoutUser(event.Data.Raw)
		isPro = true
	case "customer.subscription.created", "customer.subscription.updated":
		var sub *stripe.Subscription
		sub, err = decodeSubscription(event.Data.Raw)
		if err == nil {
			userID, err = subscriptionUser(sub)
			isPro = subscriptionActive(sub.Status)
		}
	case "customer.subscription.deleted":
		var sub *stripe.Subscription
		sub, err = decodeSubscription(event.Data.Raw)
		if err == nil {
			userID, err = subscriptionUser(sub)
		}
	default:
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := p.pro.SetPro(ctx, userID, isPro); err != nil {
		return false, fmt.Errorf("set pro for %s: %w", userID, err)
	}

	p.metrics.RecordProChange(providerName, isPro)
	p.logger.Info("pro status updated",
		hookgen.Field{Key: "user_id", Value: userID},
		hookgen.Field{Key: "is_pro", Value: isPro},
		hookgen.Field{Key: "event_type", Value: string(event.Type)},
	)
	if p.onProChange != nil {
		p.onProChange(billing.WebhookEvent{
			UserID:         userID,
			IsPro:          isPro,
			Provider:       providerName,
			EventType:      string(event.Type),
			EventTimestamp: time.Unix(event.Created, 0).UTC(),
		})
	}
	return true, nil
}

func checkoutUser(raw json.RawMessage) (string, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return "", fmt.Errorf("%w: checkout session: %v", billing.ErrInvalidWebhookPayload, err)
	}
	if session.ClientReferenceID != "" {
		return session.ClientReferenceID, nil
	}
	if id := session.Metadata[metadataUserID]; id != "" {
		return id, nil
	}
	return "", billing.ErrUserNotFound
}

func decodeSubscription(raw json.RawMessage) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("%w: subscription: %v", billing.ErrInvalidWebhookPayload, err)
	}
	return &sub, nil
}

func subscriptionUser(sub *stripe.Subscription) (string, error) {
	if id := sub.Metadata[metadataUserID]; id != "" {
		return id, nil
	}
	return "", billing.ErrUserNotFound
}

func subscriptionActive(status stripe.SubscriptionStatus) bool {
	return status == stripe.SubscriptionStatusActive || status == stripe.SubscriptionStatusTrialing
}
