// Package migration creates the backend schema on first start.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"docvault/internal/logging"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id                  UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  title               TEXT        NOT NULL,
  file_name           TEXT        NOT NULL DEFAULT '',
  mime_type           TEXT        NOT NULL DEFAULT 'application/octet-stream',
  file_size           BIGINT      NOT NULL CHECK (file_size >= 0),
  storage_path        TEXT        NOT NULL UNIQUE,
  category            TEXT        NOT NULL,
  sub_category        TEXT        NOT NULL DEFAULT '',
  year                TEXT        NOT NULL,
  org                 TEXT        NOT NULL,
  recipients          JSONB       NOT NULL DEFAULT '[]'::jsonb,
  shared_with         JSONB       NOT NULL DEFAULT '[]'::jsonb,
  owner               TEXT        NOT NULL,
  warranty_start      TEXT        NOT NULL DEFAULT '',
  warranty_expires_at TEXT        NOT NULL DEFAULT '',
  auto_delete_after   TEXT        NOT NULL DEFAULT '',
  uploaded_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
  last_modified       TIMESTAMPTZ NOT NULL DEFAULT now(),
  last_modified_by    TEXT        NOT NULL DEFAULT '',
  trashed             BOOLEAN     NOT NULL DEFAULT false,
  deleted_at          TIMESTAMPTZ,
  deleted_by          TEXT        NOT NULL DEFAULT ''
);`,
	},
	{
		Name: "create_index_documents_owner",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents (owner);`,
	},
	{
		Name: "create_index_documents_shared_with",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_shared_with ON documents USING GIN (shared_with jsonb_path_ops);`,
	},
	{
		Name: "create_index_documents_uploaded_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_uploaded_at ON documents (uploaded_at DESC, id DESC);`,
	},
}

// EnsureMigrated checks if the 'documents' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, log logging.Logger, dbHost string) error {
	if log == nil {
		log = logging.Nop{}
	}
	log = log.With("component", "database", "db_host", dbHost)
	start := time.Now()

	log.Info(ctx, "db_migration_check", "status", "starting")

	var exists bool
	query := "SELECT to_regclass('public.documents') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error(ctx, "db_migration_failed",
			"status", "error",
			"error_message", fmt.Sprintf("failed to check sentinel table: %v", err),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info(ctx, "db_migration_skip",
			"status", "success",
			"detail", "schema already exists, skipping migration",
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	log.Info(ctx, "db_migration_start", "status", "in_progress")

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error(ctx, "db_migration_failed",
				"status", "error",
				"migration_step", step.Name,
				"error_message", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
				"step_duration_ms", time.Since(stepStart).Milliseconds(),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info(ctx, "db_migration_step",
			"status", "success",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	log.Info(ctx, "db_migration_success",
		"status", "success",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
