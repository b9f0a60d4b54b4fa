package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dvgov/internal/config"
	"github.com/roach88/dvgov/internal/harness"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Scenarios []string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Config string            `json:"config"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError is one problem in a config or scenario file.
type ValidationError struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a config file and its genesis",
		Long: `Validate a config file without touching a database: unknown keys,
process settings and the genesis section, which is checked against the
embedded CUE schema. Without an argument the --config file (or the
built-in defaults) is validated.

--scenarios also parses and validates scenario files.

Examples:
  dvgov validate ./dao.yaml
  dvgov validate --scenarios ./scenarios
  dvgov validate ./dao.yaml --format json`,
		Args:          cobra.MaximumNArgs(1),
		Annotations:   map[string]string{annotationNoConfig: "true"},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(opts, path, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Scenarios, "scenarios", nil, "scenario files or directories to validate")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	result := ValidationResult{Config: path}
	if path == "" {
		result.Config = "(defaults)"
	}

	if _, err := config.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return WrapExitError(ExitCommandError, "config file not found", err)
		}
		for _, msg := range splitErrors(err) {
			result.Errors = append(result.Errors, ValidationError{File: result.Config, Message: msg})
		}
	}
	formatter.VerboseLog("Validated config %s", result.Config)

	for _, arg := range opts.Scenarios {
		files, err := harness.FindScenarios(arg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		for _, file := range files {
			if _, err := harness.LoadScenario(file); err != nil {
				result.Errors = append(result.Errors, ValidationError{File: file, Message: err.Error()})
			}
			formatter.VerboseLog("Validated scenario %s", file)
		}
	}
	result.Valid = len(result.Errors) == 0

	var failure *CLIError
	if !result.Valid {
		failure = &CLIError{Code: "E_VALIDATION", Message: fmt.Sprintf("%d validation error(s)", len(result.Errors))}
	}
	if err := formatter.Render(result, failure, func(w io.Writer) { outputValidateText(w, result) }); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

// splitErrors flattens joined errors and "; "-separated schema
// violations into one message each.
func splitErrors(err error) []string {
	var out []string
	for _, line := range strings.Split(err.Error(), "\n") {
		head, rest, found := strings.Cut(line, "invalid genesis: ")
		if !found {
			out = append(out, line)
			continue
		}
		for _, v := range strings.Split(rest, "; ") {
			out = append(out, head+"genesis: "+v)
		}
	}
	return out
}

func outputValidateText(w io.Writer, result ValidationResult) {
	if result.Valid {
		fmt.Fprintf(w, "✓ %s is valid\n", result.Config)
		return
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "✗ %s: %s\n", e.File, e.Message)
	}
	fmt.Fprintf(w, "\n%d validation error(s)\n", len(result.Errors))
}
