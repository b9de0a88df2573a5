package cli

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/rrcproc/internal/config"
	"github.com/roach88/rrcproc/internal/harness"
	"github.com/roach88/rrcproc/internal/metric"
	"github.com/roach88/rrcproc/internal/proc"
	"github.com/roach88/rrcproc/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database   string
	Metrics    bool
	ConfigPath string

	// SessionIDs names persisted sessions. Default: UUIDv7.
	SessionIDs proc.RunIDGenerator
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name      string        `json:"name"`
	File      string        `json:"file"`
	Pass      bool          `json:"pass"`
	Errors    []string      `json:"errors,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
	Digest    string        `json:"digest,omitempty"`
	Trace     []proc.Record `json:"trace,omitempty"`
}

// RunResult holds the result of all scenarios of one invocation.
type RunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
	Metrics   string           `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml|dir>",
		Short: "Run harness scenarios",
		Long: `Run one scenario file, or every scenario in a directory, against an
RRC stack wired to recording lower layers.

Each scenario gets its own trace session. With --db the lifecycle records are
persisted to SQLite and can be inspected later with "rrcproc trace".

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  rrcproc run ./scenarios/establish_connection.yaml
  rrcproc run ./scenarios --db ./trace.db
  rrcproc run ./scenarios --metrics --format json
  rrcproc run ./scenarios --config ./stack.cue

With --config, the engine section sets the repeat budget and run ID scheme,
the log section configures diagnostics (unless --verbose) and trace.db is
used when --db is not given. Scenario stacks are not affected.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "persist traces to this SQLite database")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print procedure metrics after the run")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "engine, log and trace configuration (.yaml or .cue)")

	return cmd
}

func runScenarios(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	logger := slog.Default()
	database := opts.Database

	var engine *config.EngineConfig
	if opts.ConfigPath != "" {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		engine = &cfg.Engine
		if database == "" {
			database = cfg.Trace.DB
		}
		if !opts.Verbose {
			logger, err = configLogger(cmd.ErrOrStderr(), cfg.Log)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid log config", err)
			}
		}
	}

	files, err := scenarioFiles(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	var st *store.Store
	if database != "" {
		st, err = store.Open(database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	var (
		reg      *prometheus.Registry
		observer *metric.Observer
	)
	if opts.Metrics {
		reg = prometheus.NewRegistry()
		observer, err = metric.New(reg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
	}

	sessionIDs := opts.SessionIDs
	if sessionIDs == nil {
		sessionIDs = proc.UUIDv7Generator{}
	}

	result := RunResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}

	for _, file := range files {
		hopts := []harness.Option{harness.WithLogger(logger)}
		if st != nil {
			hopts = append(hopts, harness.WithStore(st, sessionIDs.Generate()))
		}
		if observer != nil {
			hopts = append(hopts, harness.WithObservers(observer))
		}
		if engine != nil {
			hopts = append(hopts, harness.WithRegistryOptions(
				proc.WithMaxRepeats(engine.MaxRepeats),
				proc.WithRunIDGenerator(engine.RunIDGenerator()),
			))
		}

		sr := runOne(file, hopts)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		printScenario(formatter, sr)
		result.Scenarios = append(result.Scenarios, sr)
	}

	if observer != nil {
		var buf bytes.Buffer
		if err := observer.WriteText(&buf); err != nil {
			return WrapExitError(ExitCommandError, "failed to encode metrics", err)
		}
		result.Metrics = buf.String()
	}

	return outputRun(formatter, result)
}

// scenarioFiles returns path itself for a file, or the scenarios in a
// directory.
func scenarioFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return harness.DiscoverScenarios(path)
	}
	return []string{path}, nil
}

func runOne(file string, opts []harness.Option) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, result, err := harness.RunFile(file, opts...)
	if scenario != nil {
		sr.Name = scenario.Name
	}
	if result != nil {
		sr.SessionID = result.SessionID
		sr.Digest = result.Digest
		sr.Trace = result.Trace
		sr.Errors = result.Errors
	}

	switch {
	case err == nil:
		sr.Pass = true
	case errors.Is(err, harness.ErrScenarioFailed):
		// errors already copied from the result
	default:
		sr.Errors = append(sr.Errors, err.Error())
	}
	return sr
}

func printScenario(f *OutputFormatter, sr ScenarioResult) {
	mark := "✓"
	if !sr.Pass {
		mark = "✗"
	}
	f.Printf("%s %s (%d records, digest %s)\n", mark, sr.Name, len(sr.Trace), shortDigest(sr.Digest))

	if f.Verbose {
		for _, rec := range sr.Trace {
			f.Printf("    %s\n", formatRecord(rec))
		}
	}
	for _, e := range sr.Errors {
		f.Printf("  %s\n", e)
	}
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	if d == "" {
		return "-"
	}
	return d
}

func outputRun(f *OutputFormatter, result RunResult) error {
	var failure error
	if result.Failed > 0 {
		failure = NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	if f.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if failure != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeScenarioFailed, Message: failure.Error()}
		}
		if err := f.Encode(resp); err != nil {
			return err
		}
		return failure
	}

	if result.Metrics != "" {
		f.Printf("\n%s", result.Metrics)
	}
	f.Printf("\nSummary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	return failure
}
