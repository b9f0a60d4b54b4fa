package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dvgov/internal/dao"
	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/ledger"
	"github.com/roach88/dvgov/internal/store"
)

// session is an open database with its ledger and DAO.
type session struct {
	store  *store.Store
	ledger *ledger.Ledger
	dao    *dao.DAO
}

func openSession(ctx context.Context, opts *RootOptions, dbFlag string, cmd *cobra.Command, extra ...ledger.Option) (*session, error) {
	path, err := opts.databasePath(dbFlag)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	ledgerOpts := append([]ledger.Option{ledger.WithLogger(opts.Logger(cmd.ErrOrStderr()))}, extra...)
	l, err := ledger.New(ctx, st, ledgerOpts...)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	d, err := dao.Open(ctx, l)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open DAO", err)
	}
	return &session{store: st, ledger: l, dao: d}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// callFlags are shared by the commands that submit calls.
type callFlags struct {
	Database string
	Flow     string
	As       string
}

func (f *callFlags) register(cmd *cobra.Command, defaultAs string) {
	cmd.Flags().StringVar(&f.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&f.Flow, "flow", "", "flow token grouping the call (default: a new UUIDv7)")
	cmd.Flags().StringVar(&f.As, "as", defaultAs, "signing account: a name, \"zero\" or a 0x address")
}

// parseArgs merges a JSON object with key=value pairs; pairs win. A pair
// value that is valid JSON is decoded, anything else is a string, so
// "amount=25 ether" and "support=1" both work.
func parseArgs(jsonArgs string, pairs []string) (ir.Object, error) {
	obj := ir.Object{}
	if strings.TrimSpace(jsonArgs) != "" {
		v, err := ir.ParseJSON([]byte(jsonArgs))
		if err != nil {
			return nil, fmt.Errorf("invalid --args JSON: %w", err)
		}
		parsed, ok := v.(ir.Object)
		if !ok {
			return nil, fmt.Errorf("invalid --args JSON: want an object, got %T", v)
		}
		obj = parsed
	}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q: want key=value", pair)
		}
		obj[key] = pairValue(raw)
	}
	return obj, nil
}

func pairValue(raw string) ir.Value {
	if json.Valid([]byte(raw)) {
		if v, err := ir.ParseJSON([]byte(raw)); err == nil {
			return v
		}
	}
	return ir.String(raw)
}

// CallOutput is the printed form of a recorded call.
type CallOutput struct {
	CallID string        `json:"call_id"`
	Flow   string        `json:"flow"`
	Action string        `json:"action"`
	Seq    int64         `json:"seq"`
	Block  int64         `json:"block"`
	Height int64         `json:"height"`
	Case   string        `json:"case"`
	Result ir.Object     `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
	Events []EventOutput `json:"events,omitempty"`
}

// EventOutput is a contract event, named by address book entry where one
// exists.
type EventOutput struct {
	Contract string    `json:"contract"`
	Name     string    `json:"name"`
	Fields   ir.Object `json:"fields"`
}

func callOutput(d *dao.DAO, action string, rcpt ledger.Receipt, callErr error) CallOutput {
	out := CallOutput{
		CallID: rcpt.CallID,
		Flow:   rcpt.Flow,
		Action: action,
		Seq:    rcpt.Seq,
		Block:  rcpt.Block,
		Height: rcpt.Height,
		Case:   string(rcpt.Case),
		Result: rcpt.Result,
	}
	if callErr != nil {
		out.Error = callErr.Error()
	}
	for _, e := range rcpt.Events {
		out.Events = append(out.Events, EventOutput{Contract: d.NameOf(e.Contract), Name: e.Name, Fields: e.Fields})
	}
	return out
}

// submit invokes one call and prints its receipt. Rejected calls exit
// with ExitFailure; calls that were never recorded with ExitCommandError.
func submit(ctx context.Context, s *session, f *OutputFormatter, call dao.Call) error {
	rcpt, err := s.dao.Invoke(ctx, call)
	return reportCall(s.dao, f, call.Action, rcpt, err)
}

func reportCall(d *dao.DAO, f *OutputFormatter, action string, rcpt ledger.Receipt, err error) error {
	if err != nil && rcpt.CallID == "" {
		if ir.IsCode(err, ir.CodeInvalidArgument) {
			return WrapExitError(ExitCommandError, "invalid call", err)
		}
		return WrapExitError(ExitCommandError, "failed to submit call", err)
	}

	out := callOutput(d, action, rcpt, err)
	var failure *CLIError
	if err != nil {
		failure = cliErrorFor(err)
	}
	if renderErr := f.Render(out, failure, func(w io.Writer) { writeCall(w, out, f.Verbose) }); renderErr != nil {
		return renderErr
	}
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("%s rejected", action), err)
	}
	return nil
}

func writeCall(w io.Writer, out CallOutput, verbose bool) {
	fmt.Fprintf(w, "#%d block %d %s -> %s\n", out.Seq, out.Block, out.Action, out.Case)
	if verbose {
		fmt.Fprintf(w, "  call: %s\n", out.CallID)
		fmt.Fprintf(w, "  flow: %s\n", out.Flow)
	}
	if out.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", out.Error)
		return
	}
	writeObject(w, "  ", out.Result)
	for _, e := range out.Events {
		fmt.Fprintf(w, "  event %s.%s\n", e.Contract, e.Name)
		if verbose {
			writeObject(w, "    ", e.Fields)
		}
	}
}
