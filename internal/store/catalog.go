package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ccollicutt/slalog/pkg/catalog"
)

// LoadCatalog reads severities, criticalities, applications and the users
// flagged as resolvers.
func (s *Store) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	b := catalog.NewBuilder()

	if err := s.eachLabel(ctx, "SELECT id, label FROM severities", func(id int64, label string) {
		b.AddSeverity(catalog.ID(id), label)
	}); err != nil {
		return nil, fmt.Errorf("load severities: %w", err)
	}

	if err := s.eachLabel(ctx, "SELECT id, label FROM criticalities", func(id int64, label string) {
		b.AddCriticality(catalog.ID(id), label)
	}); err != nil {
		return nil, fmt.Errorf("load criticalities: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, criticality_id FROM applications")
	if err != nil {
		return nil, fmt.Errorf("load applications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			name string
			crit sql.NullInt64
		)
		if err := rows.Scan(&id, &name, &crit); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		b.AddApplication(catalog.Application{
			ID:            catalog.ID(id),
			Name:          name,
			CriticalityID: catalog.ID(crit.Int64),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load applications: %w", err)
	}

	users, err := s.db.QueryContext(ctx, "SELECT username FROM users WHERE resolver = 1")
	if err != nil {
		return nil, fmt.Errorf("load resolvers: %w", err)
	}
	defer users.Close()

	for users.Next() {
		var name string
		if err := users.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan resolver: %w", err)
		}
		b.AddResolver(name)
	}
	if err := users.Err(); err != nil {
		return nil, fmt.Errorf("load resolvers: %w", err)
	}

	return b.Build(), nil
}

func (s *Store) eachLabel(ctx context.Context, query string, fn func(int64, string)) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			label string
		)
		if err := rows.Scan(&id, &label); err != nil {
			return err
		}
		fn(id, label)
	}
	return rows.Err()
}

// PutSeverity inserts or relabels a severity.
func (s *Store) PutSeverity(ctx context.Context, id catalog.ID, label string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO severities (id, label) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET label = excluded.label
	`), int64(id), label)
	if err != nil {
		return fmt.Errorf("put severity: %w", err)
	}
	return nil
}

// PutCriticality inserts or relabels a criticality.
func (s *Store) PutCriticality(ctx context.Context, id catalog.ID, label string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO criticalities (id, label) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET label = excluded.label
	`), int64(id), label)
	if err != nil {
		return fmt.Errorf("put criticality: %w", err)
	}
	return nil
}

// PutApplication inserts or updates an application.
func (s *Store) PutApplication(ctx context.Context, app catalog.Application) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO applications (id, name, criticality_id) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, criticality_id = excluded.criticality_id
	`), int64(app.ID), app.Name, nullID(int64(app.CriticalityID)))
	if err != nil {
		return fmt.Errorf("put application: %w", err)
	}
	return nil
}

// PutUser inserts a user or updates its resolver flag.
func (s *Store) PutUser(ctx context.Context, username string, resolver bool) error {
	flag := 0
	if resolver {
		flag = 1
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (username, resolver) VALUES (?, ?)
		ON CONFLICT (username) DO UPDATE SET resolver = excluded.resolver
	`), username, flag)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}
