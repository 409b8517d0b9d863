package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS delivery_stats (
		taken_at         TEXT    NOT NULL PRIMARY KEY,
		sends            INTEGER NOT NULL DEFAULT 0,
		edits            INTEGER NOT NULL DEFAULT 0,
		chunks           INTEGER NOT NULL DEFAULT 0,
		not_modified     INTEGER NOT NULL DEFAULT 0,
		throttled        INTEGER NOT NULL DEFAULT 0,
		retries          INTEGER NOT NULL DEFAULT 0,
		resplits         INTEGER NOT NULL DEFAULT 0,
		markup_fallbacks INTEGER NOT NULL DEFAULT 0,
		truncations      INTEGER NOT NULL DEFAULT 0,
		failures         INTEGER NOT NULL DEFAULT 0,
		limiter_waits    INTEGER NOT NULL DEFAULT 0
	)`,
}

// migrate creates or updates the database schema to the latest version.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}
