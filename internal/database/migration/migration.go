package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_local_storage",
		SQL: `CREATE TABLE IF NOT EXISTS local_storage (
  scope      TEXT        NOT NULL,
  key        TEXT        NOT NULL,
  value      TEXT        NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (scope, key)
);`,
	},
	{
		Name: "create_index_local_storage_updated_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_local_storage_updated_at ON local_storage (updated_at);`,
	},
}

// EnsureMigrated creates the local_storage schema unless the table
// already exists.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *slog.Logger, dbHost string) error {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "database"), slog.String("db_host", dbHost))
	start := time.Now()

	var exists bool
	query := "SELECT to_regclass('public.local_storage') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error("db_migration_failed",
			slog.String("error_message", err.Error()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip", slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		return nil
	}

	log.Info("db_migration_start")
	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				slog.String("migration_step", step.Name),
				slog.String("error_message", err.Error()),
				slog.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()))
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		log.Info("db_migration_step",
			slog.String("migration_step", step.Name),
			slog.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()))
	}

	log.Info("db_migration_success", slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return nil
}
