package hookgen

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// Quota response headers set by the framework middleware.
const (
	HeaderQuotaLimit     = "X-Quota-Limit"
	HeaderQuotaRemaining = "X-Quota-Remaining"
	HeaderQuotaReset     = "X-Quota-Reset"
)

// GuardConfig holds configuration for a Guard
type GuardConfig struct {
	// Gate enforces the daily quota (required)
	Gate *Gate

	// Access lets admins through without a quota check (optional)
	Access *Access

	// Logger is used for structured logging (default: NoopLogger)
	Logger Logger
}

// Guard applies the check-then-commit quota protocol around an arbitrary
// handler: Admit before it runs, Settle once its status is known.
type Guard struct {
	gate   *Gate
	access *Access
	logger Logger
}

// NewGuard creates a new quota guard
func NewGuard(config GuardConfig) (*Guard, error) {
	if config.Gate == nil {
		return nil, errors.New("gate is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = &NoopLogger{}
	}
	return &Guard{gate: config.Gate, access: config.Access, logger: logger}, nil
}

// Admission is the outcome of Guard.Admit.
type Admission struct {
	UserID   string
	Admin    bool
	Decision Decision
}

// Allowed reports whether the request may proceed.
func (a Admission) Allowed() bool {
	return a.Admin || a.Decision.Allowed
}

// Headers describes the quota as it will stand once this request succeeds.
// Admins get no headers.
func (a Admission) Headers() map[string]string {
	if a.Admin {
		return nil
	}
	remaining := a.Decision.Remaining
	if a.Decision.Allowed {
		remaining--
	}
	if remaining < 0 {
		remaining = 0
	}
	h := map[string]string{
		HeaderQuotaLimit:     strconv.Itoa(a.Decision.Limit),
		HeaderQuotaRemaining: strconv.Itoa(remaining),
	}
	if !a.Decision.ResetAt.IsZero() {
		h[HeaderQuotaReset] = a.Decision.ResetAt.UTC().Format(time.RFC3339)
	}
	return h
}

// Err returns the *QuotaExceededError for a rejected admission, nil otherwise.
func (a Admission) Err() error {
	if a.Allowed() {
		return nil
	}
	return &QuotaExceededError{Decision: a.Decision}
}

// ExceededResponse is the JSON body middleware writes when the quota is used up.
type ExceededResponse struct {
	Error     string    `json:"error"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	IsPro     bool      `json:"isPro"`
	ResetAt   time.Time `json:"resetAt"`
}

// Exceeded builds the rejection body for a.
func (a Admission) Exceeded() ExceededResponse {
	return ExceededResponse{
		Error:   "Daily generation limit reached",
		Limit:   a.Decision.Limit,
		IsPro:   a.Decision.IsPro,
		ResetAt: a.Decision.ResetAt,
	}
}

// Admit decides whether userID may run one more generation.
func (g *Guard) Admit(ctx context.Context, userID string) Admission {
	if g.access != nil && g.access.IsAdmin(ctx, userID) {
		return Admission{UserID: userID, Admin: true, Decision: Decision{Allowed: true, Remaining: -1}}
	}
	return Admission{UserID: userID, Decision: g.gate.CheckLimit(ctx, userID)}
}

// Settle commits one generation when the handler answered with a 2xx status.
// The commit outlives client disconnects. Failures are logged and returned.
func (g *Guard) Settle(ctx context.Context, a Admission, status int) error {
	if status < 200 || status >= 300 || !a.Allowed() {
		return nil
	}
	if _, err := g.gate.Commit(context.WithoutCancel(ctx), a.UserID); err != nil {
		g.logger.Warn("quota commit failed",
			Field{Key: "user_id", Value: a.UserID},
			errField(err),
		)
		return err
	}
	return nil
}
