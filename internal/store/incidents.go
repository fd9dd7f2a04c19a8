package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ccollicutt/slalog/pkg/catalog"
	"github.com/ccollicutt/slalog/pkg/sla"
)

// IncidentQuery narrows the incidents read from the database. Zero values
// select everything.
type IncidentQuery struct {
	// Refs limits the query to these incident refs.
	Refs []string

	// ResolvedFrom and ResolvedTo bound the resolution time, inclusive.
	ResolvedFrom time.Time
	ResolvedTo   time.Time
}

const incidentColumns = `
	SELECT i.id, i.ref, i.severity_id, s.label, i.application_id, a.name,
		a.criticality_id, c.label, i.block_id, i.resolver_group_id,
		i.resolved_at, i.activity_log
	FROM incidents i
	LEFT JOIN severities s ON s.id = i.severity_id
	LEFT JOIN applications a ON a.id = i.application_id
	LEFT JOIN criticalities c ON c.id = a.criticality_id`

func (q IncidentQuery) sql() (string, []any) {
	var (
		where []string
		args  []any
	)

	if len(q.Refs) > 0 {
		marks := make([]string, len(q.Refs))
		for i, ref := range q.Refs {
			marks[i] = "?"
			args = append(args, ref)
		}
		where = append(where, "i.ref IN ("+strings.Join(marks, ", ")+")")
	}
	if !q.ResolvedFrom.IsZero() {
		where = append(where, "i.resolved_at >= ?")
		args = append(args, q.ResolvedFrom.Unix())
	}
	if !q.ResolvedTo.IsZero() {
		where = append(where, "i.resolved_at <= ?")
		args = append(args, q.ResolvedTo.Unix())
	}

	query := incidentColumns
	if len(where) > 0 {
		query += "\n\tWHERE " + strings.Join(where, " AND ")
	}
	return query + "\n\tORDER BY i.ref", args
}

// IncidentRows iterates over incidents read from the database.
type IncidentRows struct {
	rows *sql.Rows
}

// Incidents starts a query. The returned rows must be closed.
func (s *Store) Incidents(ctx context.Context, q IncidentQuery) (*IncidentRows, error) {
	query, args := q.sql()
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}
	return &IncidentRows{rows: rows}, nil
}

// Next returns the next incident or io.EOF.
func (r *IncidentRows) Next(ctx context.Context) (*sla.Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, fmt.Errorf("read incidents: %w", err)
		}
		r.rows.Close()
		return nil, io.EOF
	}

	var (
		inc                            sla.Incident
		sevID, appID, critID           sql.NullInt64
		blockID, groupID, resolvedUnix sql.NullInt64
		sevLabel, appName, critLabel   sql.NullString
	)
	err := r.rows.Scan(&inc.ID, &inc.Ref, &sevID, &sevLabel, &appID, &appName,
		&critID, &critLabel, &blockID, &groupID, &resolvedUnix, &inc.Log)
	if err != nil {
		return nil, fmt.Errorf("scan incident: %w", err)
	}

	inc.SeverityID = catalog.ID(sevID.Int64)
	inc.SeverityLabel = sevLabel.String
	inc.ApplicationID = catalog.ID(appID.Int64)
	inc.ApplicationName = appName.String
	inc.CriticalityID = catalog.ID(critID.Int64)
	inc.CriticalityLabel = critLabel.String
	inc.BlockID = catalog.ID(blockID.Int64)
	inc.ResolverGroupID = catalog.ID(groupID.Int64)
	if resolvedUnix.Valid {
		inc.ResolvedAt = time.Unix(resolvedUnix.Int64, 0).UTC()
	}

	return &inc, nil
}

// Close releases the query.
func (r *IncidentRows) Close() error {
	return r.rows.Close()
}

// PutIncident inserts an incident or replaces its fields, keyed by ref.
// Stored results are left untouched.
func (s *Store) PutIncident(ctx context.Context, inc *sla.Incident) error {
	var resolved sql.NullInt64
	if !inc.ResolvedAt.IsZero() {
		resolved = sql.NullInt64{Int64: inc.ResolvedAt.Unix(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO incidents (ref, severity_id, application_id, block_id,
			resolver_group_id, resolved_at, activity_log)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ref) DO UPDATE SET
			severity_id = excluded.severity_id,
			application_id = excluded.application_id,
			block_id = excluded.block_id,
			resolver_group_id = excluded.resolver_group_id,
			resolved_at = excluded.resolved_at,
			activity_log = excluded.activity_log
	`),
		inc.Ref, nullID(int64(inc.SeverityID)), nullID(int64(inc.ApplicationID)),
		nullID(int64(inc.BlockID)), nullID(int64(inc.ResolverGroupID)),
		resolved, inc.Log,
	)
	if err != nil {
		return fmt.Errorf("put incident %s: %w", inc.Ref, err)
	}
	return nil
}

// SaveResult writes the management time and verdict back to the incident.
func (s *Store) SaveResult(ctx context.Context, res *sla.Result) error {
	out, err := s.db.ExecContext(ctx, s.q(`
		UPDATE incidents
		SET management_seconds = ?, sla_verdict = ?, last_responder = ?, evaluated_at = ?
		WHERE ref = ?
	`), res.TotalSeconds, string(res.Verdict), res.LastResponder, time.Now().Unix(), res.Ref)
	if err != nil {
		return fmt.Errorf("save result %s: %w", res.Ref, err)
	}

	n, err := out.RowsAffected()
	if err != nil {
		return fmt.Errorf("save result %s: %w", res.Ref, err)
	}
	if n == 0 {
		return fmt.Errorf("save result %s: %w", res.Ref, ErrIncidentNotFound)
	}
	return nil
}

// StoredResult is the write-back state of one incident.
type StoredResult struct {
	Ref               string
	ManagementSeconds int64
	Verdict           sla.Verdict
	LastResponder     string
	Evaluated         bool
}

// Result reads the stored result of an incident.
func (s *Store) Result(ctx context.Context, ref string) (*StoredResult, error) {
	var (
		secs            sql.NullInt64
		verdict, last   sql.NullString
		evaluatedAtUnix sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT management_seconds, sla_verdict, last_responder, evaluated_at
		FROM incidents WHERE ref = ?
	`), ref).Scan(&secs, &verdict, &last, &evaluatedAtUnix)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("result %s: %w", ref, ErrIncidentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("result %s: %w", ref, err)
	}

	return &StoredResult{
		Ref:               ref,
		ManagementSeconds: secs.Int64,
		Verdict:           sla.Verdict(verdict.String),
		LastResponder:     last.String,
		Evaluated:         evaluatedAtUnix.Valid,
	}, nil
}
