package hookgen

import (
	"context"
	"errors"
	"strings"
	"time"
)

// DefaultRoleCacheTTL is how long resolved roles are cached when a RoleCache is configured
const DefaultRoleCacheTTL = 30 * time.Second

// AccessConfig holds role resolution configuration
type AccessConfig struct {
	// AdminEmails grants admin rights to records whose email is listed.
	// Matching is case-insensitive. Records can also carry IsAdmin directly.
	AdminEmails []string

	// Cache holds resolved roles between requests (default: NoopCache)
	Cache RoleCache

	// CacheTTL is the lifetime of a cached role entry (default: 30s)
	CacheTTL time.Duration

	// Logger is used for structured logging (default: NoopLogger)
	Logger Logger
}

// Access resolves admin and pro roles from the user-profile store.
type Access struct {
	store  Store
	admins map[string]struct{}
	cache  RoleCache
	ttl    time.Duration
	logger Logger
}

// NewAccess creates a role resolver over the given store
func NewAccess(store Store, config AccessConfig) (*Access, error) {
	if store == nil {
		return nil, ErrStorageUnavailable
	}

	admins := make(map[string]struct{}, len(config.AdminEmails))
	for _, email := range config.AdminEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			admins[email] = struct{}{}
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = &NoopLogger{}
	}

	cache := config.Cache
	if cache == nil {
		cache = NoopCache{}
	}
	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = DefaultRoleCacheTTL
	}

	return &Access{store: store, admins: admins, cache: cache, ttl: ttl, logger: logger}, nil
}

// IsAdmin reports whether the user bypasses the quota gate.
// Lookup failures resolve to false so the user is still metered.
func (a *Access) IsAdmin(ctx context.Context, userID string) bool {
	return a.Roles(ctx, userID).IsAdmin
}

// IsPro reports whether the user is on the pro plan.
func (a *Access) IsPro(ctx context.Context, userID string) bool {
	return a.Roles(ctx, userID).IsPro
}

// Roles resolves the user's roles, consulting the cache first.
// Store failures yield zero roles and are not cached.
func (a *Access) Roles(ctx context.Context, userID string) Roles {
	if roles, ok := a.cache.Get(userID); ok {
		return roles
	}

	rec, err := a.lookup(ctx, userID)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		a.cache.Set(userID, Roles{}, a.ttl)
		return Roles{}
	case err != nil:
		return Roles{}
	}

	roles := Roles{IsAdmin: rec.IsAdmin || a.IsAdminEmail(rec.Email), IsPro: rec.IsPro}
	a.cache.Set(userID, roles, a.ttl)
	return roles
}

// Invalidate drops any cached roles for userID.
func (a *Access) Invalidate(userID string) {
	a.cache.Invalidate(userID)
}

// IsAdminEmail reports whether the email is in the configured admin set.
func (a *Access) IsAdminEmail(email string) bool {
	if email == "" {
		return false
	}
	_, ok := a.admins[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

func (a *Access) lookup(ctx context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	rec, err := a.store.GetRecord(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			a.logger.Warn("profile lookup failed",
				Field{Key: "user_id", Value: userID},
				errField(err),
			)
		}
		return nil, err
	}
	return rec, nil
}
