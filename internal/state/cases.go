package state

import (
	"context"
	"database/sql"
	"fmt"
)

// RecordCase stores the result of one case in run r.RunID. ID and
// RecordedAt are filled in when empty.
func (s *SQLiteStore) RecordCase(ctx context.Context, r *CaseResult) error {
	if s.db == nil {
		return ErrNotOpen
	}
	if r.ID == "" {
		r.ID = generateID()
	}
	if r.RecordedAt.IsZero() {
		r.RecordedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO case_results
(id, run_id, case_name, artifact_key, dialect, sql, status, mismatches, error, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RunID, r.Case, r.ArtifactKey, r.Dialect, r.SQL, string(r.Status), r.Mismatches,
		nullString(r.Error), r.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to record case %s: %w", r.Case, err)
	}
	return nil
}

// CaseResults returns the results of a run in recording order.
func (s *SQLiteStore) CaseResults(ctx context.Context, runID string) ([]*CaseResult, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
id, run_id, case_name, artifact_key, dialect, sql, status, mismatches, error, recorded_at
FROM case_results WHERE run_id = ? ORDER BY recorded_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list case results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*CaseResult
	for rows.Next() {
		var (
			r      CaseResult
			status string
			errMsg sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.Case, &r.ArtifactKey, &r.Dialect, &r.SQL,
			&status, &r.Mismatches, &errMsg, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan case result: %w", err)
		}
		r.Status = CaseStatus(status)
		r.Error = errMsg.String
		r.RecordedAt = r.RecordedAt.UTC()
		out = append(out, &r)
	}
	return out, rows.Err()
}
