package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/rrcproc/internal/proc"
)

// Session groups the records of one stack lifetime.
type Session struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ConfigDigest string `json:"config_digest,omitempty"`
}

// CreateSession inserts a session row.
// Uses ON CONFLICT(id) DO NOTHING so re-creating a session is a no-op.
func (s *Store) CreateSession(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return fmt.Errorf("create session: empty id")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, config_digest)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, sess.ID, sess.Name, sess.ConfigDigest)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// WriteRecord appends a lifecycle record to a session.
// Duplicate (session, seq) pairs are silently ignored.
// The session must exist (foreign key constraint).
func (s *Store) WriteRecord(ctx context.Context, sessionID string, rec proc.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO proc_records
		(session_id, seq, run_id, kind, type, cause, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		sessionID,
		rec.Seq,
		rec.RunID,
		string(rec.Kind),
		string(rec.Type),
		rec.Cause,
		rec.Outcome,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Recorder is a proc.Observer that persists every record to a session.
//
// Observe cannot return an error, so write failures are logged and the
// first one is kept for Err.
type Recorder struct {
	store   *Store
	session string
	ctx     context.Context
	logger  *slog.Logger

	mu      sync.Mutex
	err     error
	written int
}

// NewRecorder creates a recorder writing to sessionID with ctx.
// A nil logger falls back to slog.Default.
func NewRecorder(ctx context.Context, s *Store, sessionID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:   s,
		session: sessionID,
		ctx:     ctx,
		logger:  logger,
	}
}

// Observe implements proc.Observer.
func (r *Recorder) Observe(rec proc.Record) {
	err := r.store.WriteRecord(r.ctx, r.session, rec)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		if r.err == nil {
			r.err = err
		}
		r.logger.Error("failed to persist record",
			"session", r.session,
			"seq", rec.Seq,
			"type", rec.Type,
			"error", err,
		)
		return
	}
	r.written++
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Written returns the number of records persisted.
func (r *Recorder) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}
