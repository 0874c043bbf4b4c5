// Package postgres provides a PostgreSQL implementation of the hookgen.Store interface.
// The daily increment is a single upsert, so concurrent commits never lose a count.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

// Storage implements hookgen.Store and hookgen.GenerationRecorder using PostgreSQL
type Storage struct {
	pool   *pgxpool.Pool
	config Config

	// stopCleanup cancels the background cleanup goroutine
	stopCleanup func()
}

var (
	_ hookgen.Store              = (*Storage)(nil)
	_ hookgen.GenerationRecorder = (*Storage)(nil)
)

// Config holds PostgreSQL storage configuration
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// Cleanup configuration
	CleanupEnabled  bool
	CleanupInterval time.Duration // How often to run cleanup
	GenerationTTL   time.Duration // How long generation history is kept
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		CleanupEnabled:  true,
		CleanupInterval: time.Hour,
		GenerationTTL:   30 * 24 * time.Hour,
	}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS user_quotas (
	user_id              TEXT PRIMARY KEY,
	email                TEXT NOT NULL DEFAULT '',
	generations_today    INTEGER NOT NULL DEFAULT 0,
	generations_total    INTEGER NOT NULL DEFAULT 0,
	last_generation_date TEXT NOT NULL DEFAULT '',
	is_pro               BOOLEAN NOT NULL DEFAULT FALSE,
	is_admin             BOOLEAN NOT NULL DEFAULT FALSE,
	is_online            BOOLEAN NOT NULL DEFAULT FALSE,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_activity        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_user_quotas_created_at ON user_quotas (created_at DESC);

CREATE TABLE IF NOT EXISTS generations (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	request_id  TEXT NOT NULL DEFAULT '',
	niche       TEXT NOT NULL DEFAULT '',
	video_style TEXT NOT NULL DEFAULT '',
	tone        TEXT NOT NULL DEFAULT '',
	duration    TEXT NOT NULL DEFAULT '',
	topic       TEXT NOT NULL DEFAULT '',
	language    TEXT NOT NULL DEFAULT '',
	result      JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_generations_user_id ON generations (user_id, created_at DESC);
`

const recordColumns = `user_id, email, generations_today, generations_total, last_generation_date,
	is_pro, is_admin, is_online, created_at, last_activity`

// New creates a new PostgreSQL storage adapter
func New(ctx context.Context, config Config) (*Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cleanupCtx, cancel := context.WithCancel(context.Background())
	s := &Storage{
		pool:        pool,
		config:      config,
		stopCleanup: cancel,
	}

	if config.CleanupEnabled && config.CleanupInterval > 0 && config.GenerationTTL > 0 {
		go s.startCleanup(cleanupCtx)
	}

	return s, nil
}

// Migrate creates the tables this adapter needs if they do not exist
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the PostgreSQL connection pool and stops background cleanup
func (s *Storage) Close() {
	if s.stopCleanup != nil {
		s.stopCleanup()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks the database connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetRecord implements hookgen.Store
func (s *Storage) GetRecord(ctx context.Context, userID string) (*hookgen.Record, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM user_quotas WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hookgen.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// SetRecord implements hookgen.Store
func (s *Storage) SetRecord(ctx context.Context, rec *hookgen.Record) error {
	if rec == nil || rec.UserID == "" {
		return fmt.Errorf("invalid record")
	}

	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	lastActivity := rec.LastActivity
	if lastActivity.IsZero() {
		lastActivity = created
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_quotas (`+recordColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (user_id) DO UPDATE SET
				email = EXCLUDED.email,
				generations_today = EXCLUDED.generations_today,
				generations_total = EXCLUDED.generations_total,
				last_generation_date = EXCLUDED.last_generation_date,
				is_pro = EXCLUDED.is_pro,
				is_admin = EXCLUDED.is_admin,
				is_online = EXCLUDED.is_online,
				created_at = EXCLUDED.created_at,
				last_activity = EXCLUDED.last_activity`,
		rec.UserID, rec.Email, rec.GenerationsToday, rec.GenerationsTotal, rec.LastGenerationDate,
		rec.IsPro, rec.IsAdmin, rec.IsOnline, created, lastActivity)
	if err != nil {
		return fmt.Errorf("failed to set record: %w", err)
	}
	return nil
}

// IncrementGenerations implements hookgen.Store
func (s *Storage) IncrementGenerations(ctx context.Context, userID, day string, now time.Time) (*hookgen.Record, error) {
	if userID == "" {
		return nil, fmt.Errorf("invalid user ID")
	}

	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`INSERT INTO user_quotas (user_id, generations_today, generations_total, last_generation_date, created_at, last_activity)
			VALUES ($1, 1, 1, $2, $3, $3)
			ON CONFLICT (user_id) DO UPDATE SET
				generations_today = CASE
					WHEN user_quotas.last_generation_date = EXCLUDED.last_generation_date
					THEN user_quotas.generations_today + 1
					ELSE 1
				END,
				generations_total = user_quotas.generations_total + 1,
				last_generation_date = EXCLUDED.last_generation_date,
				last_activity = EXCLUDED.last_activity
			RETURNING `+recordColumns,
		userID, day, now.UTC()))
	if err != nil {
		return nil, fmt.Errorf("failed to increment generations: %w", err)
	}
	return rec, nil
}

// UpdateRecord implements hookgen.Store
func (s *Storage) UpdateRecord(ctx context.Context, userID string, update hookgen.RecordUpdate) error {
	var lastActivity *time.Time
	if !update.Now.IsZero() {
		t := update.Now.UTC()
		lastActivity = &t
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE user_quotas SET
				is_pro = COALESCE($2::boolean, is_pro),
				is_admin = COALESCE($3::boolean, is_admin),
				is_online = COALESCE($4::boolean, is_online),
				generations_today = CASE WHEN $5::boolean THEN 0 ELSE generations_today END,
				last_activity = COALESCE($6::timestamptz, last_activity)
			WHERE user_id = $1`,
		userID, update.IsPro, update.IsAdmin, update.IsOnline, update.ResetGenerations, lastActivity)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return hookgen.ErrRecordNotFound
	}
	return nil
}

// DeleteRecord implements hookgen.Store
func (s *Storage) DeleteRecord(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM user_quotas WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// ListRecords implements hookgen.Store
func (s *Storage) ListRecords(ctx context.Context) ([]*hookgen.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM user_quotas ORDER BY created_at DESC, user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	recs := []*hookgen.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return recs, nil
}

// SaveGeneration implements hookgen.GenerationRecorder
func (s *Storage) SaveGeneration(ctx context.Context, gen *hookgen.Generation) (string, error) {
	if gen == nil {
		return "", fmt.Errorf("invalid generation")
	}

	id := gen.ID
	if id == "" {
		id = uuid.NewString()
	}
	created := gen.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	var result []byte
	if gen.Result != nil {
		var err error
		if result, err = json.Marshal(gen.Result); err != nil {
			return "", fmt.Errorf("failed to marshal result: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO generations (id, user_id, request_id, niche, video_style, tone, duration, topic, language, result, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, gen.UserID, gen.RequestID, gen.Niche, gen.VideoStyle, gen.Tone, gen.Duration,
		gen.Topic, gen.Language, result, created)
	if err != nil {
		return "", fmt.Errorf("failed to save generation: %w", err)
	}
	return id, nil
}

// startCleanup runs periodic removal of old generation history
func (s *Storage) startCleanup(ctx context.Context) {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.cleanupGenerations(ctx, time.Now().UTC())
		}
	}
}

func (s *Storage) cleanupGenerations(ctx context.Context, now time.Time) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM generations WHERE created_at < $1`, now.Add(-s.config.GenerationTTL))
	if err != nil {
		return fmt.Errorf("failed to clean up generations: %w", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (*hookgen.Record, error) {
	var rec hookgen.Record
	err := row.Scan(
		&rec.UserID,
		&rec.Email,
		&rec.GenerationsToday,
		&rec.GenerationsTotal,
		&rec.LastGenerationDate,
		&rec.IsPro,
		&rec.IsAdmin,
		&rec.IsOnline,
		&rec.CreatedAt,
		&rec.LastActivity,
	)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.LastActivity = rec.LastActivity.UTC()
	return &rec, nil
}
