package journal

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one schema step; versions are applied in ascending order
type migration struct {
	version int
	name    string
	content string
}

var migrations = []migration{
	{
		version: 1,
		name:    "001_init",
		content: `
CREATE TABLE IF NOT EXISTS schema_version (
	version    INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	topology    TEXT NOT NULL DEFAULT '',
	mode        TEXT NOT NULL DEFAULT '',
	dry_run     INTEGER NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME,
	status      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS targets (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	target        TEXT NOT NULL,
	kind          TEXT NOT NULL,
	session_id    TEXT NOT NULL DEFAULT '',
	stage         TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	error_code    TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	sent          INTEGER NOT NULL DEFAULT 0,
	total         INTEGER NOT NULL DEFAULT 0,
	plan_text     TEXT NOT NULL DEFAULT '',
	warnings      TEXT NOT NULL DEFAULT '',
	recorded_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_targets_run ON targets(run_id);
CREATE INDEX IF NOT EXISTS idx_targets_target ON targets(target, status);
`,
	},
}

// currentVersion returns the applied schema version, 0 for a fresh database
func currentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to check schema_version table: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	var version int
	err = db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current schema version: %w", err)
	}
	return version, nil
}

// applyMigrations applies every pending migration, each in its own transaction
func applyMigrations(ctx context.Context, db *sql.DB) error {
	version, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, mig := range migrations {
		if mig.version <= version {
			continue
		}
		if err := applyMigration(ctx, db, mig); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", mig.name, err)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, mig migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Rollback if not committed

	if _, err := tx.ExecContext(ctx, mig.content); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, name, applied_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
		mig.version, mig.name); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}
