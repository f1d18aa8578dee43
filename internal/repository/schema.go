package repository

// Schema definitions for Kestrel configuration storage.
// Compatible with both SQLite and PostgreSQL.

const schemaPatternSnapshots = `
CREATE TABLE IF NOT EXISTS pattern_snapshots (
    id TEXT PRIMARY KEY,
    config TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pattern_snapshots_created ON pattern_snapshots(created_at);
`

const schemaScreeningRules = `
CREATE TABLE IF NOT EXISTS screening_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    indicator TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_screening_rules_enabled ON screening_rules(enabled);
CREATE INDEX IF NOT EXISTS idx_screening_rules_name ON screening_rules(name);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaPatternSnapshots,
		schemaScreeningRules,
	}
}
