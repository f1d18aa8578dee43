// Package repository provides configuration persistence.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SavePatternSnapshot stores a pattern configuration snapshot.
// Snapshots are append-only; the newest one is the active configuration.
func (r *SQLRepository) SavePatternSnapshot(ctx context.Context, snap *domain.PatternSnapshot) error {
	if snap == nil || snap.ID == "" {
		return fmt.Errorf("%w: snapshot with id is required", ErrInvalidInput)
	}

	config, err := json.Marshal(snap.Config)
	if err != nil {
		return fmt.Errorf("failed to encode pattern config: %w", err)
	}

	query := `
		INSERT INTO pattern_snapshots (id, config, created_at)
		VALUES (?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		snap.ID, string(config), snap.CreatedAt,
	)
	return err
}

// LatestPatternSnapshot retrieves the most recent pattern snapshot.
func (r *SQLRepository) LatestPatternSnapshot(ctx context.Context) (*domain.PatternSnapshot, error) {
	query := `
		SELECT id, config, created_at
		FROM pattern_snapshots
		ORDER BY created_at DESC
		LIMIT 1
	`

	var snap domain.PatternSnapshot
	var config string

	err := r.db.QueryRowContext(ctx, query).Scan(
		&snap.ID, &config, &snap.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(config), &snap.Config); err != nil {
		return nil, fmt.Errorf("failed to parse pattern config: %w", err)
	}

	return &snap, nil
}

// SaveScreeningRule stores or updates a screening rule.
func (r *SQLRepository) SaveScreeningRule(ctx context.Context, rule *domain.ScreeningRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule with id is required", ErrInvalidInput)
	}
	if rule.Expression == "" {
		return fmt.Errorf("%w: rule expression is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()
	createdAt := rule.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO screening_rules (
			id, name, description, expression, indicator, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			indicator = excluded.indicator,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description,
		rule.Expression, rule.Indicator, enabled,
		createdAt, now,
	)
	return err
}

// GetScreeningRule retrieves a screening rule by ID.
func (r *SQLRepository) GetScreeningRule(ctx context.Context, ruleID string) (*domain.ScreeningRule, error) {
	query := `
		SELECT id, name, description, expression, indicator, enabled, created_at, updated_at
		FROM screening_rules
		WHERE id = ?
	`

	rule, err := scanRule(r.db.QueryRowContext(ctx, r.rebind(query), ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return rule, nil
}

// ListScreeningRules retrieves all screening rules ordered by name.
func (r *SQLRepository) ListScreeningRules(ctx context.Context) ([]*domain.ScreeningRule, error) {
	query := `
		SELECT id, name, description, expression, indicator, enabled, created_at, updated_at
		FROM screening_rules
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.ScreeningRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// DeleteScreeningRule removes a screening rule.
func (r *SQLRepository) DeleteScreeningRule(ctx context.Context, ruleID string) error {
	query := `DELETE FROM screening_rules WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*domain.ScreeningRule, error) {
	var rule domain.ScreeningRule
	var description, indicator sql.NullString
	var enabled int

	if err := row.Scan(
		&rule.ID, &rule.Name, &description,
		&rule.Expression, &indicator, &enabled,
		&rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.Indicator = indicator.String
	rule.Enabled = enabled == 1
	return &rule, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
