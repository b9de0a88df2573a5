package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rrcproc/internal/codec"
	"github.com/roach88/rrcproc/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool           `json:"valid"`
	Problems []string       `json:"problems,omitempty"`
	Digest   string         `json:"digest,omitempty"`
	Config   *config.Config `json:"config,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.yaml|config.cue>",
		Short: "Validate a stack configuration",
		Long: `Load a YAML or CUE stack configuration, apply defaults and check every
value range. All problems are reported at once.

CUE files are unified with the built-in schema, so constraint violations
are reported with their CUE position.

Examples:
  rrcproc validate ./stack.yaml
  rrcproc validate ./stack.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "config file not found", err)
	}

	cfg, err := config.Load(path)
	switch {
	case errors.Is(err, config.ErrUnsupportedFormat):
		return WrapExitError(ExitCommandError, "cannot validate", err)
	case err != nil:
		return outputValidationErrors(formatter, err)
	}

	digest, err := codec.DigestValue(codec.DomainTrace, cfg.Stack)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to digest config", err)
	}

	result := ValidationResult{Valid: true, Digest: digest}
	if formatter.JSON() {
		result.Config = &cfg
		return formatter.Success(result)
	}

	formatter.Printf("✓ %s is valid (stack digest %s)\n", path, shortDigest(digest))
	if opts.Verbose {
		formatter.Printf("  carrier: pci=%d arfcn=%d scs=%dkHz prb=%d\n",
			cfg.Stack.Carrier.PCI, cfg.Stack.Carrier.ARFCN, cfg.Stack.Carrier.SCSkHz, cfg.Stack.Carrier.NofPRB)
		formatter.Printf("  serving cell: %s camped=%t plmn_selected=%t\n",
			cfg.Stack.ServingCell, cfg.Stack.Camped, cfg.Stack.PLMNSelected)
		formatter.Printf("  run ids: %s, max repeats: %d\n", cfg.Engine.RunIDs, cfg.Engine.MaxRepeats)
	}
	return nil
}

func outputValidationErrors(f *OutputFormatter, err error) error {
	problems := []string{err.Error()}
	var ve *config.ValidationError
	if errors.As(err, &ve) {
		problems = ve.Problems
	}

	if f.JSON() {
		if encErr := f.Encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Problems: problems},
			Error: &CLIError{
				Code:    ErrCodeInvalidConfig,
				Message: fmt.Sprintf("%d problem(s) found", len(problems)),
			},
		}); encErr != nil {
			return encErr
		}
	} else {
		f.Printf("✗ invalid config\n")
		for _, p := range problems {
			f.Printf("  %s\n", p)
		}
	}
	return WrapExitError(ExitFailure, "invalid config", err)
}
