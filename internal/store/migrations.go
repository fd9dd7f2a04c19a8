package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string

	// Statements run in order inside one transaction. {{serial}} is
	// replaced by the driver's auto-increment primary key type.
	Statements []string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS severities (
				id BIGINT PRIMARY KEY,
				label TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS criticalities (
				id BIGINT PRIMARY KEY,
				label TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS applications (
				id BIGINT PRIMARY KEY,
				name TEXT NOT NULL,
				criticality_id BIGINT
			)`,
			`CREATE TABLE IF NOT EXISTS users (
				username TEXT PRIMARY KEY,
				resolver INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS incidents (
				id {{serial}},
				ref TEXT UNIQUE NOT NULL,
				severity_id BIGINT,
				application_id BIGINT,
				block_id BIGINT,
				resolver_group_id BIGINT,
				resolved_at BIGINT,
				activity_log TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_incidents_resolved_at ON incidents(resolved_at)`,
		},
	},
	{
		Version: 2,
		Name:    "sla_results",
		Statements: []string{
			`ALTER TABLE incidents ADD COLUMN management_seconds BIGINT`,
			`ALTER TABLE incidents ADD COLUMN sla_verdict TEXT`,
			`ALTER TABLE incidents ADD COLUMN last_responder TEXT`,
			`ALTER TABLE incidents ADD COLUMN evaluated_at BIGINT`,
		},
	},
}

func (s *Store) serialType() string {
	if s.driver == DriverPostgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// Migrate applies all pending migrations.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at BIGINT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var current int
	err = s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return err
		}
	}

	return nil
}

// SchemaVersion returns the latest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return v, nil
}

func (s *Store) apply(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
	}

	for _, stmt := range m.Statements {
		stmt = strings.ReplaceAll(stmt, "{{serial}}", s.serialType())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		s.q("INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)"),
		m.Version, m.Name, time.Now().Unix(),
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}
