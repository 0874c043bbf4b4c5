package stripe

import (
	"net/http"
	"strings"
	"time"

	"github.com/mihaimyh/hookgen/pkg/billing"
	"github.com/mihaimyh/hookgen/pkg/billing/internal"
	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

const (
	providerName             = "stripe"
	defaultRateLimitWindow   = time.Minute
	defaultRateLimitRequests = 100
	maxWebhookBody           = 256 * 1024
	metadataUserID           = "user_id"
)

// Provider implements billing.Provider for Stripe. It only consumes webhooks;
// pro status is derived from checkout and subscription events.
type Provider struct {
	pro           billing.ProSetter
	webhookSecret string
	rateLimiter   *internal.RateLimiter
	metrics       billing.Metrics
	logger        hookgen.Logger
	onProChange   func(billing.WebhookEvent)
	now           func() time.Time
}

// NewProvider creates a new Stripe billing provider
func NewProvider(config billing.Config) (*Provider, error) {
	if config.Pro == nil {
		return nil, billing.ErrProviderNotConfigured
	}
	secret := strings.TrimSpace(config.WebhookSecret)
	if secret == "" {
		return nil, billing.ErrProviderNotConfigured
	}

	limit := config.WebhookRateLimit
	if limit <= 0 {
		limit = defaultRateLimitRequests
	}
	window := config.WebhookRateWindow
	if window <= 0 {
		window = defaultRateLimitWindow
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = &billing.NoopMetrics{}
	}
	logger := config.Logger
	if logger == nil {
		logger = &hookgen.NoopLogger{}
	}

	p := &Provider{
		pro:           config.Pro,
		webhookSecret: secret,
		rateLimiter:   internal.NewRateLimiter(limit, window),
		metrics:       metrics,
		logger:        logger,
		onProChange:   config.OnProChange,
		now:           time.Now,
	}
	p.rateLimiter.OnLimited = func(ip string) {
		p.metrics.RecordWebhookError(providerName, "rate_limited")
		p.logger.Warn("webhook rate limited", hookgen.Field{Key: "ip", Value: ip})
	}
	return p, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// WebhookHandler returns the rate-limited HTTP handler for Stripe webhooks
func (p *Provider) WebhookHandler() http.Handler {
	return p.rateLimiter.Middleware(http.HandlerFunc(p.handleWebhook))
}

var _ billing.Provider = (*Provider)(nil)
