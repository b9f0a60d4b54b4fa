package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/dvgov/internal/dao"
	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	FlowToken string
	Action    string // optional - filter to specific action
}

// TraceCall is one call of the timeline.
type TraceCall struct {
	Seq     int64         `json:"seq"`
	Block   int64         `json:"block"`
	CallID  string        `json:"call_id"`
	Sender  string        `json:"sender"`
	Action  string        `json:"action"`
	Args    ir.Object     `json:"args"`
	Case    string        `json:"case"`
	Result  ir.Object     `json:"result,omitempty"`
	Message string        `json:"message,omitempty"`
	Events  []EventOutput `json:"events,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	FlowToken string      `json:"flow_token"`
	Timeline  []TraceCall `json:"timeline"`
	Stats     TraceStats  `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Calls          int    `json:"calls"`
	Rejected       int    `json:"rejected"`
	LastSeq        int64  `json:"last_seq"`
	LastBlock      int64  `json:"last_block"`
	TerminalStatus string `json:"terminal_status"`
}

// FlowSummary is one line of the flow listing.
type FlowSummary struct {
	FlowToken string     `json:"flow_token"`
	Stats     TraceStats `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded calls of a flow",
		Long: `Show the call log of one flow: each call with its sender, arguments,
outcome case and emitted events, in seq order.

Without --flow, lists every flow in the database with its statistics.

Examples:
  dvgov trace --db ./dvgov.db
  dvgov trace --db ./dvgov.db --flow scenario-release-funds
  dvgov trace --db ./dvgov.db --flow scenario-release-funds --action Governance.castVote
  dvgov trace --db ./dvgov.db --flow scenario-release-funds --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.FlowToken, "flow", "", "flow token to trace")
	cmd.Flags().StringVar(&opts.Action, "action", "", "filter to one action name")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	s, err := openSession(ctx, opts.RootOptions, opts.Database, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	f := newFormatter(opts.RootOptions, cmd)
	if opts.FlowToken == "" {
		return listFlows(ctx, s.store, f)
	}

	entries, err := s.store.ReadFlow(ctx, opts.FlowToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read flow", err)
	}
	state, err := s.store.GetFlowState(ctx, opts.FlowToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to get flow state", err)
	}

	result := TraceResult{
		FlowToken: opts.FlowToken,
		Timeline:  buildTimeline(s.dao, entries, opts.Action),
		Stats:     statsOf(state),
	}
	return f.Render(result, nil, func(w io.Writer) {
		outputTraceText(w, result, opts.Verbose)
	})
}

func statsOf(state store.FlowState) TraceStats {
	return TraceStats{
		Calls:          state.Calls,
		Rejected:       state.Rejected,
		LastSeq:        state.LastSeq,
		LastBlock:      state.LastBlock,
		TerminalStatus: string(state.TerminalStatus),
	}
}

// buildTimeline converts log entries to trace calls, keeping only
// actionFilter when it is set.
func buildTimeline(d *dao.DAO, entries []store.Entry, actionFilter string) []TraceCall {
	timeline := []TraceCall{}
	for _, e := range entries {
		if actionFilter != "" && e.Call.Action != actionFilter {
			continue
		}
		tc := TraceCall{
			Seq:     e.Call.Seq,
			Block:   e.Call.Block,
			CallID:  e.Call.ID,
			Sender:  d.NameOf(e.Call.Sender),
			Action:  e.Call.Action,
			Args:    e.Call.Args,
			Case:    string(e.Outcome.Case),
			Result:  e.Outcome.Result,
			Message: e.Outcome.Message,
		}
		for _, ev := range e.Events {
			tc.Events = append(tc.Events, EventOutput{Contract: d.NameOf(ev.Contract), Name: ev.Name, Fields: ev.Fields})
		}
		timeline = append(timeline, tc)
	}
	return timeline
}

func listFlows(ctx context.Context, st *store.Store, f *OutputFormatter) error {
	tokens, err := st.ReadFlowTokens(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list flow tokens", err)
	}
	flows := make([]FlowSummary, 0, len(tokens))
	for _, token := range tokens {
		state, err := st.GetFlowState(ctx, token)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to get flow state for %s", token), err)
		}
		flows = append(flows, FlowSummary{FlowToken: token, Stats: statsOf(state)})
	}

	return f.Render(flows, nil, func(w io.Writer) {
		if len(flows) == 0 {
			fmt.Fprintln(w, "No flows found in database.")
			return
		}
		for _, fl := range flows {
			fmt.Fprintf(w, "%s  %d calls, %d rejected, last seq %d, last block %d, %s\n",
				fl.FlowToken, fl.Stats.Calls, fl.Stats.Rejected, fl.Stats.LastSeq, fl.Stats.LastBlock, fl.Stats.TerminalStatus)
		}
	})
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Flow: %s\n", result.FlowToken)
	fmt.Fprintf(w, "Calls: %d (%d rejected), last block %d\n",
		result.Stats.Calls, result.Stats.Rejected, result.Stats.LastBlock)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no calls)")
		return
	}
	for _, c := range result.Timeline {
		fmt.Fprintf(w, "[%d] block %d %s %s -> %s\n", c.Seq, c.Block, c.Sender, c.Action, c.Case)
		if verbose {
			writeObject(w, "    args.", c.Args)
			writeObject(w, "    result.", c.Result)
		}
		if c.Message != "" {
			fmt.Fprintf(w, "    error: %s\n", c.Message)
		}
		for _, e := range c.Events {
			fmt.Fprintf(w, "    event %s.%s\n", e.Contract, e.Name)
		}
	}
}
