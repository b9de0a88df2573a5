// Package config loads stack configuration from YAML or CUE files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/rrcproc/internal/proc"
	"github.com/roach88/rrcproc/internal/rrc"
)

// Config is the full configuration of an rrcproc stack.
type Config struct {
	Stack  StackConfig  `yaml:"stack" json:"stack"`
	Engine EngineConfig `yaml:"engine" json:"engine"`
	Log    LogConfig    `yaml:"log" json:"log"`
	Trace  TraceConfig  `yaml:"trace" json:"trace"`
}

// StackConfig is the initial RRC stack state.
type StackConfig struct {
	Carrier      rrc.Carrier   `yaml:"carrier" json:"carrier"`
	SSB          rrc.SSBConfig `yaml:"ssb" json:"ssb"`
	ServingCell  rrc.PhyCell   `yaml:"serving_cell" json:"serving_cell"`
	Camped       bool          `yaml:"camped" json:"camped"`
	PLMNSelected bool          `yaml:"plmn_selected" json:"plmn_selected"`
}

// EngineConfig tunes the procedure registry.
type EngineConfig struct {
	// MaxRepeats bounds Repeat folding per turn.
	MaxRepeats int `yaml:"max_repeats" json:"max_repeats"`

	// RunIDs selects the run ID generator: "uuid" or "sequential".
	RunIDs string `yaml:"run_ids" json:"run_ids"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// TraceConfig controls lifecycle persistence.
type TraceConfig struct {
	// DB is the SQLite database path. Empty disables persistence.
	DB string `yaml:"db" json:"db"`
}

// Run ID generator names.
const (
	RunIDsUUID       = "uuid"
	RunIDsSequential = "sequential"
)

// Default returns the configuration used when a file omits a field.
func Default() Config {
	return Config{
		Stack: StackConfig{
			Carrier: rrc.Carrier{
				PCI:           500,
				ARFCN:         368500,
				SCSkHz:        15,
				NofPRB:        52,
				MaxMIMOLayers: 1,
			},
			SSB: rrc.SSBConfig{
				PeriodicityMs: 10,
				Pattern:       "A",
				SCSkHz:        15,
			},
			ServingCell:  rrc.PhyCell{PCI: 500, ARFCN: 368500},
			Camped:       true,
			PLMNSelected: true,
		},
		Engine: EngineConfig{
			MaxRepeats: proc.DefaultMaxRepeats,
			RunIDs:     RunIDsUUID,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// RRC converts the stack section into an rrc.Config.
func (s StackConfig) RRC() rrc.Config {
	return rrc.Config{
		Carrier:      s.Carrier,
		SSB:          s.SSB,
		ServingCell:  s.ServingCell,
		Camped:       s.Camped,
		PLMNSelected: s.PLMNSelected,
	}
}

// RunIDGenerator returns the generator named by RunIDs.
func (e EngineConfig) RunIDGenerator() proc.RunIDGenerator {
	if e.RunIDs == RunIDsSequential {
		return proc.NewSequentialGenerator("run")
	}
	return proc.UUIDv7Generator{}
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", l.Level, err)
	}
	return level, nil
}

// ValidationError lists every problem found by Validate.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

// IsValidationError returns true if err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var (
	validSCS         = []uint32{15, 30, 60, 120}
	validSSBSCS      = []uint32{15, 30, 120, 240}
	validPeriodicity = []uint32{5, 10, 20, 40, 80, 160}
)

// Validate checks value ranges. It reports all problems at once.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Stack.Carrier.PCI > 1007 {
		add("stack.carrier.pci %d out of range 0..1007", c.Stack.Carrier.PCI)
	}
	if c.Stack.ServingCell.PCI > 1007 {
		add("stack.serving_cell.pci %d out of range 0..1007", c.Stack.ServingCell.PCI)
	}
	if !contains(validSCS, c.Stack.Carrier.SCSkHz) {
		add("stack.carrier.scs_khz %d not one of %v", c.Stack.Carrier.SCSkHz, validSCS)
	}
	if c.Stack.Carrier.NofPRB == 0 {
		add("stack.carrier.nof_prb must be positive")
	}
	if c.Stack.Carrier.MaxMIMOLayers < 1 || c.Stack.Carrier.MaxMIMOLayers > 4 {
		add("stack.carrier.max_mimo_layers %d out of range 1..4", c.Stack.Carrier.MaxMIMOLayers)
	}
	if !contains(validSSBSCS, c.Stack.SSB.SCSkHz) {
		add("stack.ssb.scs_khz %d not one of %v", c.Stack.SSB.SCSkHz, validSSBSCS)
	}
	if !contains(validPeriodicity, c.Stack.SSB.PeriodicityMs) {
		add("stack.ssb.periodicity_ms %d not one of %v", c.Stack.SSB.PeriodicityMs, validPeriodicity)
	}
	switch c.Stack.SSB.Pattern {
	case "A", "B", "C":
	default:
		add("stack.ssb.pattern %q not one of A, B, C", c.Stack.SSB.Pattern)
	}

	if c.Engine.MaxRepeats <= 0 {
		add("engine.max_repeats must be positive")
	}
	switch c.Engine.RunIDs {
	case RunIDsUUID, RunIDsSequential:
	default:
		add("engine.run_ids %q not one of uuid, sequential", c.Engine.RunIDs)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		add("log.level %q not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		add("log.format %q not one of text, json", c.Log.Format)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func contains(set []uint32, v uint32) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
