package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Migration is one forward-only schema change.
type Migration struct {
	Version     int
	Description string
	Statements  []string
}

// migrations are applied in order; never edit an applied entry, append a new one.
var migrations = []Migration{
	{
		Version:     1,
		Description: "create activities",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS activities (
				id TEXT PRIMARY KEY,
				kind TEXT NOT NULL,
				payload TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
	},
	{
		Version:     2,
		Description: "index activities by kind",
		Statements: []string{
			`CREATE INDEX IF NOT EXISTS idx_activities_kind ON activities(kind)`,
		},
	},
}

// Migrate creates the version table and applies pending migrations, each in
// its own transaction.
func (cp *ConnectionPool) Migrate(ctx context.Context, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	const createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`
	if _, err := cp.db.ExecContext(ctx, createVersionTable); err != nil {
		return fmt.Errorf("sqlite: create schema_migrations: %w", err)
	}

	current, err := cp.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		start := time.Now()
		err := cp.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.Statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
				m.Version, m.Description, time.Now().UTC().Format(time.RFC3339Nano))
			return err
		})
		if err != nil {
			return fmt.Errorf("sqlite: migration %d (%s): %w", m.Version, m.Description, err)
		}
		logger.Info("applied migration", "version", m.Version, "description", m.Description, "duration", time.Since(start))
	}
	return nil
}

// SchemaVersion returns the highest applied migration, or zero.
func (cp *ConnectionPool) SchemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	if err := cp.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("sqlite: read schema version: %w", err)
	}
	return int(version.Int64), nil
}
