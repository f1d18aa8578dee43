package domain

import (
	"context"
	"time"
)

// Repository defines the interface for configuration persistence.
// Kestrel persists configuration only: pattern snapshots and screening
// rules. Past decisions are deliberately not stored.
type Repository interface {
	// Pattern configuration snapshots (append-only, versioned by time)
	SavePatternSnapshot(ctx context.Context, snap *PatternSnapshot) error
	LatestPatternSnapshot(ctx context.Context) (*PatternSnapshot, error)

	// Screening rule operations
	SaveScreeningRule(ctx context.Context, rule *ScreeningRule) error
	GetScreeningRule(ctx context.Context, ruleID string) (*ScreeningRule, error)
	ListScreeningRules(ctx context.Context) ([]*ScreeningRule, error)
	DeleteScreeningRule(ctx context.Context, ruleID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
