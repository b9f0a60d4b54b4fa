package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dvgov/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter    string // scenario filter (glob pattern)
	GoldenDir string
	Update    bool // regenerate golden files
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-file-or-dir>...",
		Short: "Run governance scenarios",
		Long: `Run YAML scenarios, each against its own in-memory ledger, checking
expect clauses, trace assertions and final state views.

With --golden, each passing scenario's trace is also compared with
<dir>/<name>.golden; --update rewrites those files.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  dvgov test ./scenarios
  dvgov test ./scenarios --filter "release*"
  dvgov test ./scenarios --golden ./golden
  dvgov test ./scenarios --golden ./golden --update
  dvgov test ./scenarios/release_funds.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "directory of golden trace files")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")

	return cmd
}

func runTests(opts *TestOptions, args []string, cmd *cobra.Command) error {
	if opts.Update && opts.GoldenDir == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}

	var paths []string
	for _, arg := range args {
		found, err := harness.FindScenarios(arg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		filtered, err := filterScenarios(found, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid filter", err)
		}
		paths = append(paths, filtered...)
	}

	f := newFormatter(opts.RootOptions, cmd)
	if len(paths) == 0 {
		return f.Render(&harness.SuiteResult{}, nil, func(w io.Writer) {
			fmt.Fprintln(w, "No scenarios found.")
		})
	}

	runOpts := []harness.Option{harness.WithLogger(opts.Logger(cmd.ErrOrStderr()))}
	if opts.GoldenDir != "" {
		runOpts = append(runOpts, harness.WithGoldenDir(opts.GoldenDir, opts.Update))
	}
	result := harness.RunSuite(context.Background(), paths, runOpts...)

	var failure *CLIError
	if !result.OK() {
		failure = &CLIError{Code: "E_SCENARIO", Message: fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.TotalScenarios)}
	}
	if err := f.Render(result, failure, func(w io.Writer) { outputTestText(w, paths, result) }); err != nil {
		return err
	}
	if !result.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// filterScenarios keeps the paths whose base name, without extension,
// matches the glob pattern.
func filterScenarios(paths []string, pattern string) ([]string, error) {
	if pattern == "" {
		return paths, nil
	}
	var out []string
	for _, p := range paths {
		base := filepath.Base(p)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, p)
		}
	}
	return out, nil
}

func outputTestText(w io.Writer, paths []string, result *harness.SuiteResult) {
	failed := make(map[string]harness.ScenarioFailure, len(result.Failures))
	for _, fl := range result.Failures {
		failed[fl.ScenarioPath] = fl
	}

	for _, p := range paths {
		fl, ok := failed[p]
		if !ok {
			fmt.Fprintf(w, "✓ %s\n", p)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", p)
		for _, msg := range fl.Errors {
			for _, line := range strings.Split(strings.TrimRight(msg, "\n"), "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Results: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.TotalScenarios)
}
