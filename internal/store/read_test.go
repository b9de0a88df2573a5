package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rrcproc/internal/proc"
)

func writeAll(t *testing.T, s *Store, sid string, recs []proc.Record) {
	t.Helper()
	for _, r := range recs {
		require.NoError(t, s.WriteRecord(context.Background(), sid, r))
	}
}

func TestReadSession_Empty(t *testing.T) {
	s := createTestStore(t)
	got, err := s.ReadSession(context.Background(), "none")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReadSession_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	sid := createTestSession(t, s, "sess-1")

	recs := lifecycle("run-1", "cell_selection", 1)
	// Insert out of order.
	writeAll(t, s, sid, []proc.Record{recs[3], recs[1], recs[0], recs[2]})

	got, err := s.ReadSession(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, recs, got)
}

func TestReadRun_FiltersByRunID(t *testing.T) {
	s := createTestStore(t)
	sid := createTestSession(t, s, "sess-1")

	writeAll(t, s, sid, lifecycle("run-1", "cell_selection", 1))
	writeAll(t, s, sid, lifecycle("run-2", "setup_request", 5))
	writeAll(t, s, sid, []proc.Record{{Seq: 9, Type: proc.RecordIgnored, Cause: "config_complete"}})

	other := createTestSession(t, s, "sess-2")
	writeAll(t, s, other, lifecycle("run-2", "reconfiguration", 1))

	got, err := s.ReadRun(context.Background(), sid, "run-2")
	require.NoError(t, err)
	assert.Equal(t, lifecycle("run-2", "setup_request", 5), got)

	got, err = s.ReadRun(context.Background(), other, "run-2")
	require.NoError(t, err)
	assert.Equal(t, lifecycle("run-2", "reconfiguration", 1), got)

	got, err = s.ReadRun(context.Background(), sid, "run-9")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListRuns_Summaries(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	sid := createTestSession(t, s, "sess-1")

	writeAll(t, s, sid, lifecycle("run-1", "setup_request", 1))
	writeAll(t, s, sid, []proc.Record{
		{Seq: 5, RunID: "run-2", Kind: "reconfiguration", Type: proc.RecordLaunched, Cause: "init"},
		{Seq: 6, RunID: "run-2", Kind: "reconfiguration", Type: proc.RecordYielded, Cause: "init", Outcome: "yield"},
		{Seq: 7, Type: proc.RecordIgnored, Cause: "setup_received"},
	})

	runs, err := s.ListRuns(ctx, sid)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, RunSummary{
		RunID: "run-1", Kind: "setup_request",
		FirstSeq: 1, LastSeq: 4, Records: 4, Outcome: "success",
	}, runs[0])
	assert.Equal(t, RunSummary{
		RunID: "run-2", Kind: "reconfiguration",
		FirstSeq: 5, LastSeq: 6, Records: 2,
	}, runs[1], "active run has no outcome")
}

func TestListRuns_Cancelled(t *testing.T) {
	s := createTestStore(t)
	sid := createTestSession(t, s, "sess-1")

	writeAll(t, s, sid, []proc.Record{
		{Seq: 1, RunID: "run-1", Kind: "setup_request", Type: proc.RecordLaunched, Cause: "init"},
		{Seq: 2, RunID: "run-1", Kind: "setup_request", Type: proc.RecordCancelled, Outcome: "cancelled"},
		{Seq: 3, RunID: "run-1", Kind: "setup_request", Type: proc.RecordCompleted, Outcome: "cancelled"},
	})

	runs, err := s.ListRuns(context.Background(), sid)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "cancelled", runs[0].Outcome)
}

func TestListSessions_AndLatest(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.LatestSession(ctx)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	createTestSession(t, s, "0190a000-0000-7000-8000-000000000001")
	createTestSession(t, s, "0190a000-0000-7000-8000-000000000002")

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "0190a000-0000-7000-8000-000000000001", sessions[0].ID)

	latest, err := s.LatestSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0190a000-0000-7000-8000-000000000002", latest.ID)
}

func TestLastSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	sid := createTestSession(t, s, "sess-1")

	seq, err := s.LastSeq(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	writeAll(t, s, sid, lifecycle("run-1", "cell_selection", 10))
	seq, err = s.LastSeq(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, int64(13), seq)
}
