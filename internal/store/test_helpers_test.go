package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/rrcproc/internal/proc"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession creates a session and returns its ID.
func createTestSession(t *testing.T, s *Store, id string) string {
	t.Helper()
	if err := s.CreateSession(context.Background(), Session{ID: id, Name: "test"}); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return id
}

// lifecycle returns the records of a launch that yields once and succeeds.
func lifecycle(runID string, kind proc.Kind, startSeq int64) []proc.Record {
	return []proc.Record{
		{Seq: startSeq, RunID: runID, Kind: kind, Type: proc.RecordLaunched, Cause: "init"},
		{Seq: startSeq + 1, RunID: runID, Kind: kind, Type: proc.RecordYielded, Cause: "init", Outcome: "yield"},
		{Seq: startSeq + 2, RunID: runID, Kind: kind, Type: proc.RecordResolved, Cause: "config_complete", Outcome: "success"},
		{Seq: startSeq + 3, RunID: runID, Kind: kind, Type: proc.RecordCompleted, Outcome: "success"},
	}
}
