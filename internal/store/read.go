package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/rrcproc/internal/proc"
)

// RunSummary aggregates the records of one launch.
type RunSummary struct {
	RunID    string    `json:"run_id"`
	Kind     proc.Kind `json:"kind"`
	FirstSeq int64     `json:"first_seq"`
	LastSeq  int64     `json:"last_seq"`
	Records  int       `json:"records"`

	// Outcome is the terminal outcome, empty while the run is active.
	Outcome string `json:"outcome,omitempty"`
}

const recordColumns = `seq, run_id, kind, type, cause, outcome, error`

// ReadSession returns every record of a session ordered by seq.
// Returns an empty slice (not nil) if none exist.
func (s *Store) ReadSession(ctx context.Context, sessionID string) ([]proc.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM proc_records
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session records: %w", err)
	}
	return collectRecords(rows)
}

// ReadRun returns the records of one launch ordered by seq. Run IDs are
// scoped to their session: sequential generators restart in every session.
// Returns an empty slice (not nil) if none exist.
func (s *Store) ReadRun(ctx context.Context, sessionID, runID string) ([]proc.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM proc_records
		WHERE session_id = ? AND run_id = ?
		ORDER BY seq ASC
	`, sessionID, runID)
	if err != nil {
		return nil, fmt.Errorf("query run records: %w", err)
	}
	return collectRecords(rows)
}

// ListRuns summarizes every launch in a session, ordered by first seq.
func (s *Store) ListRuns(ctx context.Context, sessionID string) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, MIN(kind), MIN(seq), MAX(seq), COUNT(*),
		       MAX(CASE WHEN type IN ('resolved', 'cancelled') THEN outcome ELSE '' END)
		FROM proc_records
		WHERE session_id = ? AND run_id != ''
		GROUP BY run_id
		ORDER BY MIN(seq) ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var (
			run  RunSummary
			kind string
		)
		if err := rows.Scan(&run.RunID, &kind, &run.FirstSeq, &run.LastSeq, &run.Records, &run.Outcome); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Kind = proc.Kind(kind)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ListSessions returns all sessions ordered by id. Session IDs are
// UUIDv7, so this is creation order.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, config_digest
		FROM sessions
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Name, &sess.ConfigDigest); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// LatestSession returns the most recently created session.
// Returns sql.ErrNoRows if the store is empty.
func (s *Store) LatestSession(ctx context.Context) (Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, config_digest
		FROM sessions
		ORDER BY id COLLATE BINARY DESC
		LIMIT 1
	`).Scan(&sess.ID, &sess.Name, &sess.ConfigDigest)
	if err != nil {
		return Session{}, fmt.Errorf("latest session: %w", err)
	}
	return sess, nil
}

// LastSeq returns the highest seq written to a session, or 0.
func (s *Store) LastSeq(ctx context.Context, sessionID string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(seq) FROM proc_records WHERE session_id = ?",
		sessionID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

func collectRecords(rows *sql.Rows) ([]proc.Record, error) {
	defer rows.Close()

	records := []proc.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (proc.Record, error) {
	var (
		rec       proc.Record
		kind, typ string
	)
	if err := rows.Scan(&rec.Seq, &rec.RunID, &kind, &typ, &rec.Cause, &rec.Outcome, &rec.Error); err != nil {
		return proc.Record{}, fmt.Errorf("scan record: %w", err)
	}
	rec.Kind = proc.Kind(kind)
	rec.Type = proc.RecordType(typ)
	return rec, nil
}
