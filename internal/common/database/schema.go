// internal/common/database/schema.go
package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaTables are the tables readiness requires.
var schemaTables = []string{"registration_applications", "delegation_requests"}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS registration_applications (
		ticket_id               TEXT PRIMARY KEY,
		owner_client_id         TEXT NOT NULL DEFAULT '',
		application_type        TEXT NOT NULL,
		steps                   JSONB NOT NULL DEFAULT '{}'::jsonb,
		name_application_status TEXT NOT NULL DEFAULT 'pending',
		current_step            INTEGER NOT NULL DEFAULT 1,
		status                  TEXT NOT NULL DEFAULT 'draft',
		created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		submitted_at            TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS delegation_requests (
		id               BIGSERIAL PRIMARY KEY,
		application_type TEXT NOT NULL,
		ticket_id        TEXT,
		kind             TEXT NOT NULL,
		client_id        TEXT NOT NULL DEFAULT '',
		active           BOOLEAN NOT NULL DEFAULT TRUE,
		requested_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		cancelled_at     TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS delegation_requests_active_uq
		ON delegation_requests (application_type, ticket_id, kind)
		WHERE active AND ticket_id IS NOT NULL`,
}

// EnsureSchema applies the idempotent DDL for the draft and delegation stores.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i, err)
		}
	}
	return nil
}
