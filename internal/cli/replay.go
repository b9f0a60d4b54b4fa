package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/dvgov/internal/dao"
	"github.com/roach88/dvgov/internal/ledger"
	"github.com/roach88/dvgov/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Target   string
}

// ReplayOutput holds the replay result.
type ReplayOutput struct {
	Calls          int              `json:"calls"`
	Flows          []FlowSummary    `json:"flows"`
	Mismatches     []ReplayMismatch `json:"mismatches"`
	RecordedDigest string           `json:"recorded_digest"`
	ReplayedDigest string           `json:"replayed_digest"`
	Deterministic  bool             `json:"deterministic"`
}

// ReplayMismatch is one call whose replayed outcome differs.
type ReplayMismatch struct {
	Seq      int64  `json:"seq"`
	Action   string `json:"action"`
	Field    string `json:"field"`
	Recorded string `json:"recorded"`
	Replayed string `json:"replayed"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the call log and verify determinism",
		Long: `Re-execute every recorded call, in seq order, on a fresh ledger and
compare call ids, outcome cases and the final state digest with the record.

Rejected calls are replayed too and must be rejected again with the same
code. --target keeps the rebuilt database instead of discarding it.

Exit codes:
  0 - The replay reproduced the record
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  dvgov replay --db ./dvgov.db
  dvgov replay --db ./dvgov.db --target ./rebuilt.db
  dvgov replay --db ./dvgov.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Target, "target", ":memory:", "database to rebuild into; must be empty")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	path, err := opts.databasePath(opts.Database)
	if err != nil {
		return err
	}
	source, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer source.Close()

	target, err := store.Open(opts.Target)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open replay target", err)
	}
	defer target.Close()

	l, err := ledger.New(ctx, target, ledger.WithLogger(opts.Logger(cmd.ErrOrStderr())))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open replay ledger", err)
	}
	d, err := dao.Open(ctx, l)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open replay DAO", err)
	}

	res, err := ledger.Replay(ctx, source, l, d.Executor())
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	out := ReplayOutput{
		Calls:          res.Calls,
		Flows:          []FlowSummary{},
		Mismatches:     []ReplayMismatch{},
		RecordedDigest: res.RecordedDigest.Hex(),
		ReplayedDigest: res.ReplayedDigest.Hex(),
		Deterministic:  res.OK(),
	}
	for _, m := range res.Mismatches {
		out.Mismatches = append(out.Mismatches, ReplayMismatch(m))
	}
	tokens, err := source.ReadFlowTokens(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list flow tokens", err)
	}
	for _, token := range tokens {
		state, err := source.GetFlowState(ctx, token)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to get flow state for %s", token), err)
		}
		out.Flows = append(out.Flows, FlowSummary{FlowToken: token, Stats: statsOf(state)})
	}

	var failure *CLIError
	if !out.Deterministic {
		failure = &CLIError{Code: "E_DETERMINISM", Message: "determinism verification failed"}
	}
	f := newFormatter(opts.RootOptions, cmd)
	if err := f.Render(out, failure, func(w io.Writer) { outputReplayText(w, out, opts.Verbose) }); err != nil {
		return err
	}
	if !out.Deterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

func outputReplayText(w io.Writer, out ReplayOutput, verbose bool) {
	if out.Calls == 0 {
		fmt.Fprintln(w, "No calls found in database.")
		return
	}

	fmt.Fprintf(w, "Replay Summary: %d call(s) in %d flow(s)\n", out.Calls, len(out.Flows))
	fmt.Fprintln(w)
	if verbose {
		for _, fl := range out.Flows {
			fmt.Fprintf(w, "  Flow %s: %d calls, %d rejected\n", fl.FlowToken, fl.Stats.Calls, fl.Stats.Rejected)
		}
		fmt.Fprintf(w, "  Recorded digest: %s\n", out.RecordedDigest)
		fmt.Fprintf(w, "  Replayed digest: %s\n", out.ReplayedDigest)
		fmt.Fprintln(w)
	}
	for _, m := range out.Mismatches {
		fmt.Fprintf(w, "✗ seq %d %s: %s recorded %q, replayed %q\n", m.Seq, m.Action, m.Field, m.Recorded, m.Replayed)
	}

	switch {
	case out.Deterministic:
		fmt.Fprintln(w, "✓ Replay verified deterministic")
	case out.RecordedDigest != out.ReplayedDigest:
		fmt.Fprintln(w, "✗ State digest differs")
		fmt.Fprintln(w, "✗ Determinism verification failed")
	default:
		fmt.Fprintln(w, "✗ Determinism verification failed")
	}
}
