package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rrcproc/internal/proc"
	"github.com/roach88/rrcproc/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string // defaults to the latest session
	Run      string // optional - print one run's records
	Sessions bool   // list sessions instead of runs
}

// TraceResult is the JSON payload of the trace command. Exactly one of
// Sessions, Runs and Records is set.
type TraceResult struct {
	SessionID string             `json:"session_id,omitempty"`
	RunID     string             `json:"run_id,omitempty"`
	Sessions  []store.Session    `json:"sessions,omitempty"`
	Runs      []store.RunSummary `json:"runs,omitempty"`
	Records   []proc.Record      `json:"records,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect persisted procedure traces",
		Long: `Inspect the lifecycle records persisted by "rrcproc run --db".

Without --run, lists the procedure runs of a session (the latest one unless
--session is given) with their outcome. With --run, prints every record of
that run of the session in seq order.

Examples:
  rrcproc trace --db ./trace.db
  rrcproc trace --db ./trace.db --sessions
  rrcproc trace --db ./trace.db --session 0190a... --format json
  rrcproc trace --db ./trace.db --run run-2`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to list (default: latest)")
	cmd.Flags().StringVar(&opts.Run, "run", "", "run ID to print")
	cmd.Flags().BoolVar(&opts.Sessions, "sessions", false, "list sessions")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.Sessions {
		return traceSessions(ctx, st, formatter)
	}

	sessionID := opts.Session
	if sessionID == "" {
		latest, err := st.LatestSession(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(formatter, "no sessions in database")
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find latest session", err)
		}
		sessionID = latest.ID
	}

	if opts.Run != "" {
		return traceRun(ctx, st, formatter, sessionID, opts.Run)
	}
	return traceRuns(ctx, st, formatter, sessionID)
}

func traceSessions(ctx context.Context, st *store.Store, f *OutputFormatter) error {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	if f.JSON() {
		return f.Success(TraceResult{Sessions: sessions})
	}
	if len(sessions) == 0 {
		f.Printf("No sessions found.\n")
		return nil
	}
	for _, s := range sessions {
		f.Printf("%s  %-32s  %s\n", s.ID, s.Name, shortDigest(s.ConfigDigest))
	}
	return nil
}

func traceRuns(ctx context.Context, st *store.Store, f *OutputFormatter, sessionID string) error {
	runs, err := st.ListRuns(ctx, sessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if f.JSON() {
		return f.Success(TraceResult{SessionID: sessionID, Runs: runs})
	}

	f.Printf("Session: %s\n", sessionID)
	if len(runs) == 0 {
		f.Printf("No runs found.\n")
		return nil
	}
	f.Printf("\n%-36s  %-18s  %-9s  %7s  %s\n", "RUN", "KIND", "OUTCOME", "RECORDS", "SEQ")
	for _, r := range runs {
		outcome := r.Outcome
		if outcome == "" {
			outcome = "running"
		}
		f.Printf("%-36s  %-18s  %-9s  %7d  %d..%d\n", r.RunID, r.Kind, outcome, r.Records, r.FirstSeq, r.LastSeq)
	}
	return nil
}

func traceRun(ctx context.Context, st *store.Store, f *OutputFormatter, sessionID, runID string) error {
	records, err := st.ReadRun(ctx, sessionID, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	if len(records) == 0 {
		return notFound(f, fmt.Sprintf("no records for run %s", runID))
	}

	if f.JSON() {
		return f.Success(TraceResult{SessionID: sessionID, RunID: runID, Records: records})
	}

	f.Printf("Run: %s (%s)\n\n", runID, records[0].Kind)
	for _, rec := range records {
		f.Printf("  %s\n", formatRecord(rec))
		if rec.Error != "" && f.Verbose {
			f.Printf("      error: %s\n", rec.Error)
		}
	}
	return nil
}

func notFound(f *OutputFormatter, message string) error {
	if err := f.Error(ErrCodeNotFound, message, nil); err != nil {
		return err
	}
	return NewExitError(ExitCommandError, message)
}

// formatRecord renders one lifecycle record on a line.
func formatRecord(rec proc.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s %s", rec.Seq, rec.Kind, rec.Type)
	if rec.Cause != "" {
		b.WriteString(" cause=" + rec.Cause)
	}
	if rec.Outcome != "" {
		b.WriteString(" outcome=" + rec.Outcome)
	}
	return b.String()
}
