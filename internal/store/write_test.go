package store

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rrcproc/internal/proc"
)

func TestCreateSession_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sess := Session{ID: "sess-1", Name: "first", ConfigDigest: "abc"}
	require.NoError(t, s.CreateSession(ctx, sess))
	require.NoError(t, s.CreateSession(ctx, Session{ID: "sess-1", Name: "renamed"}))

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, sess, sessions[0], "first write wins")
}

func TestCreateSession_EmptyID(t *testing.T) {
	s := createTestStore(t)
	err := s.CreateSession(context.Background(), Session{Name: "x"})
	assert.Error(t, err)
}

func TestWriteRecord_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	sid := createTestSession(t, s, "sess-1")

	rec := proc.Record{
		Seq:     7,
		RunID:   "run-3",
		Kind:    "reconfiguration",
		Type:    proc.RecordResolved,
		Cause:   "init",
		Outcome: "error",
		Error:   "DECODE: cell group config (proc=reconfiguration)",
	}
	require.NoError(t, s.WriteRecord(ctx, sid, rec))

	got, err := s.ReadSession(ctx, sid)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec, got[0])
}

func TestWriteRecord_DuplicateSeqIgnored(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	sid := createTestSession(t, s, "sess-1")

	first := proc.Record{Seq: 1, RunID: "run-1", Kind: "cell_selection", Type: proc.RecordLaunched}
	second := proc.Record{Seq: 1, RunID: "run-2", Kind: "setup_request", Type: proc.RecordLaunched}
	require.NoError(t, s.WriteRecord(ctx, sid, first))
	require.NoError(t, s.WriteRecord(ctx, sid, second))

	got, err := s.ReadSession(ctx, sid)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "run-1", got[0].RunID)
}

func TestWriteRecord_UnknownSession(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteRecord(context.Background(), "missing", proc.Record{Seq: 1, Type: proc.RecordIgnored})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write record")
}

func TestRecorder_PersistsObservedRecords(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	sid := createTestSession(t, s, "sess-1")

	rec := NewRecorder(ctx, s, sid, nil)
	var obs proc.Observer = rec
	for _, r := range lifecycle("run-1", "connection_setup", 1) {
		obs.Observe(r)
	}

	require.NoError(t, rec.Err())
	assert.Equal(t, 4, rec.Written())

	got, err := s.ReadSession(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, lifecycle("run-1", "connection_setup", 1), got)
}

func TestRecorder_KeepsFirstError(t *testing.T) {
	s := createTestStore(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	rec := NewRecorder(context.Background(), s, "missing", logger)
	rec.Observe(proc.Record{Seq: 1, Type: proc.RecordIgnored})
	rec.Observe(proc.Record{Seq: 2, Type: proc.RecordIgnored})

	require.Error(t, rec.Err())
	assert.Equal(t, 0, rec.Written())
	assert.Contains(t, buf.String(), "failed to persist record")
	assert.Contains(t, buf.String(), "session=missing")
}
