package hookgen

import (
	"context"
	"errors"
	"time"
)

// GateConfig holds quota gate configuration
type GateConfig struct {
	// FreeLimit is the daily generation limit for free users (default: 3)
	FreeLimit int

	// ProLimit is the daily generation limit for pro users (default: 100)
	ProLimit int

	// Now returns the current time (default: time.Now)
	Now func() time.Time

	// Metrics is used for tracking quota operations (default: NoopMetrics)
	Metrics Metrics

	// Logger is used for structured logging (default: NoopLogger)
	Logger Logger
}

// Gate enforces the per-user daily generation cap.
// Admins are expected to bypass the gate upstream; it has no notion of roles.
type Gate struct {
	store   Store
	config  GateConfig
	metrics Metrics
	logger  Logger
}

// NewGate creates a new quota gate over the given store
func NewGate(store Store, config GateConfig) (*Gate, error) {
	if store == nil {
		return nil, ErrStorageUnavailable
	}

	if config.FreeLimit <= 0 {
		config.FreeLimit = DefaultFreeLimit
	}
	if config.ProLimit <= 0 {
		config.ProLimit = DefaultProLimit
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	logger := config.Logger
	if logger == nil {
		logger = &NoopLogger{}
	}

	return &Gate{
		store:   store,
		config:  config,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// CheckLimit reports whether the user may run one more generation today.
// It never fails: a missing record means full free quota, and any store error
// is treated as allowed so an infrastructure fault never blocks a user.
func (g *Gate) CheckLimit(ctx context.Context, userID string) Decision {
	start := time.Now()
	now := g.config.Now()

	rec, err := g.store.GetRecord(ctx, userID)
	g.metrics.RecordStorageOperation("get_record", time.Since(start), ignoreNotFound(err))

	var d Decision
	switch {
	case errors.Is(err, ErrRecordNotFound):
		d = g.decide(nil, now)
	case err != nil:
		g.logger.Warn("quota check failed, allowing generation",
			Field{Key: "user_id", Value: userID},
			errField(err),
		)
		g.metrics.RecordFailOpen("store_error")
		d = g.decide(nil, now)
	default:
		d = g.decide(rec, now)
	}

	g.metrics.RecordQuotaCheck(d.Allowed, d.IsPro, time.Since(start))
	return d
}

// Commit counts one successful generation against the user's daily quota.
// Call it only after the generation has fully succeeded.
func (g *Gate) Commit(ctx context.Context, userID string) (*Record, error) {
	start := time.Now()
	now := g.config.Now()

	rec, err := g.store.IncrementGenerations(ctx, userID, DayKey(now), now)
	g.metrics.RecordStorageOperation("increment_generations", time.Since(start), err)
	g.metrics.RecordQuotaCommit(err)
	if err != nil {
		return nil, err
	}

	g.logger.Debug("quota committed",
		Field{Key: "user_id", Value: userID},
		Field{Key: "generations_today", Value: rec.GenerationsToday},
	)
	return rec, nil
}

// Usage returns the user's record as seen today together with the current decision.
// Unlike CheckLimit, store errors are returned to the caller.
func (g *Gate) Usage(ctx context.Context, userID string) (*Record, Decision, error) {
	now := g.config.Now()
	rec, err := g.store.GetRecord(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			return nil, Decision{}, err
		}
		rec = &Record{UserID: userID}
	}

	view := *rec
	today := DayKey(now)
	view.GenerationsToday = rec.UsedOn(today)
	return &view, g.decide(rec, now), nil
}

// LimitFor returns the daily limit for a free or pro user.
func (g *Gate) LimitFor(isPro bool) int {
	if isPro {
		return g.config.ProLimit
	}
	return g.config.FreeLimit
}

func (g *Gate) decide(rec *Record, now time.Time) Decision {
	isPro := rec != nil && rec.IsPro
	limit := g.LimitFor(isPro)

	remaining := limit - rec.UsedOn(DayKey(now))
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   remaining > 0,
		Remaining: remaining,
		Limit:     limit,
		IsPro:     isPro,
		ResetAt:   nextResetUTC(now),
	}
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrRecordNotFound) {
		return nil
	}
	return err
}
