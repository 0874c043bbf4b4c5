package hookgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DashboardStats aggregates quota records for the admin dashboard.
type DashboardStats struct {
	TotalUsers              int `json:"totalUsers"`
	ProUsers                int `json:"proUsers"`
	FreeUsers               int `json:"freeUsers"`
	TotalGenerationsToday   int `json:"totalGenerationsToday"`
	TotalGenerationsAllTime int `json:"totalGenerationsAllTime"`
}

// NewUser describes a user created from the back office.
type NewUser struct {
	UserID  string `json:"userId" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	IsPro   bool   `json:"isPro"`
	IsAdmin bool   `json:"isAdmin"`
}

// Admin exposes back-office operations on quota records.
type Admin struct {
	store    Store
	now      func() time.Time
	logger   Logger
	onChange []func(userID string)
}

// NewAdmin creates the back-office operations over the given store
func NewAdmin(store Store, logger Logger) (*Admin, error) {
	if store == nil {
		return nil, ErrStorageUnavailable
	}
	if logger == nil {
		logger = &NoopLogger{}
	}
	return &Admin{store: store, now: time.Now, logger: logger}, nil
}

// OnChange registers fn to run after a user's roles change or the user is removed.
// Register hooks before the Admin is shared between goroutines.
func (a *Admin) OnChange(fn func(userID string)) {
	a.onChange = append(a.onChange, fn)
}

func (a *Admin) changed(userID string) {
	for _, fn := range a.onChange {
		fn(userID)
	}
}

// ListUsers returns every quota record with GenerationsToday projected onto today.
func (a *Admin) ListUsers(ctx context.Context) ([]*Record, error) {
	recs, err := a.store.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	today := DayKey(a.now())
	for _, rec := range recs {
		rec.GenerationsToday = rec.UsedOn(today)
	}
	return recs, nil
}

// Stats aggregates all records into dashboard totals.
func (a *Admin) Stats(ctx context.Context) (*DashboardStats, error) {
	recs, err := a.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{TotalUsers: len(recs)}
	for _, rec := range recs {
		if rec.IsPro {
			stats.ProUsers++
		} else {
			stats.FreeUsers++
		}
		stats.TotalGenerationsToday += rec.GenerationsToday
		stats.TotalGenerationsAllTime += rec.GenerationsTotal
	}
	return stats, nil
}

// CreateUser writes a fresh record with zeroed counters.
func (a *Admin) CreateUser(ctx context.Context, u NewUser) (*Record, error) {
	if strings.TrimSpace(u.UserID) == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}

	now := a.now().UTC()
	rec := &Record{
		UserID:             u.UserID,
		Email:              strings.ToLower(strings.TrimSpace(u.Email)),
		IsPro:              u.IsPro,
		IsAdmin:            u.IsAdmin,
		LastGenerationDate: DayKey(now),
		CreatedAt:          now,
		LastActivity:       now,
	}
	if err := a.store.SetRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	a.changed(u.UserID)
	a.logger.Info("user created", Field{Key: "user_id", Value: u.UserID})
	return rec, nil
}

// SetPro sets the user's pro flag, creating the record when the user has none yet.
func (a *Admin) SetPro(ctx context.Context, userID string, isPro bool) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}

	now := a.now().UTC()
	err := a.store.UpdateRecord(ctx, userID, RecordUpdate{IsPro: &isPro, Now: now})
	if errors.Is(err, ErrRecordNotFound) {
		err = a.store.SetRecord(ctx, &Record{UserID: userID, IsPro: isPro, CreatedAt: now, LastActivity: now})
	}
	if err != nil {
		return fmt.Errorf("failed to set pro status: %w", err)
	}
	a.changed(userID)
	a.logger.Info("pro status changed",
		Field{Key: "user_id", Value: userID},
		Field{Key: "is_pro", Value: isPro},
	)
	return nil
}

// TogglePro flips the user's pro flag and returns the new value.
func (a *Admin) TogglePro(ctx context.Context, userID string) (bool, error) {
	rec, err := a.store.GetRecord(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get user: %w", err)
	}
	next := !rec.IsPro
	if err := a.SetPro(ctx, userID, next); err != nil {
		return false, err
	}
	return next, nil
}

// ResetGenerations zeroes the user's daily counter. GenerationsTotal is kept.
func (a *Admin) ResetGenerations(ctx context.Context, userID string) error {
	err := a.store.UpdateRecord(ctx, userID, RecordUpdate{ResetGenerations: true, Now: a.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to reset generations: %w", err)
	}
	a.logger.Info("generations reset", Field{Key: "user_id", Value: userID})
	return nil
}

// SetOffline marks the user as offline and bumps LastActivity.
func (a *Admin) SetOffline(ctx context.Context, userID string) error {
	offline := false
	return a.store.UpdateRecord(ctx, userID, RecordUpdate{IsOnline: &offline, Now: a.now().UTC()})
}

// DeleteUser removes the user's quota record.
func (a *Admin) DeleteUser(ctx context.Context, userID string) error {
	if err := a.store.DeleteRecord(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	a.changed(userID)
	a.logger.Info("user deleted", Field{Key: "user_id", Value: userID})
	return nil
}
