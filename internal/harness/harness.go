package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/dvgov/internal/dao"
	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/ledger"
	"github.com/roach88/dvgov/internal/store"
	"github.com/roach88/dvgov/internal/testutil"
)

// Harness executes one scenario against its own ledger.
type Harness struct {
	dao      *dao.DAO
	logger   *slog.Logger
	deployer string
	result   *Result
}

// Option configures a run.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	path      string
	goldenDir string
	update    bool
}

func newOptions(opts []Option) options {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		path:   ":memory:",
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sends ledger and harness logs to logger. Runs are silent by
// default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDatabase runs the scenario against a database file instead of
// memory, leaving the call log behind for trace and replay.
func WithDatabase(path string) Option {
	return func(o *options) { o.path = path }
}

// Run executes a scenario and returns its result.
//
// Execution flow:
//  1. Open a fresh database and DAO with the scenario's flow token
//  2. Deploy the genesis unless skip_deploy is set
//  3. Execute setup steps, failing the run if one is rejected
//  4. Execute flow steps and check their expect clauses
//  5. Evaluate assertions
//
// The returned error covers infrastructure failures and failed setup;
// scenario failures are reported through Result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := newOptions(opts)

	st, err := store.Open(o.path)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	l, err := ledger.New(ctx, st,
		ledger.WithLogger(o.logger),
		ledger.WithFlowGenerator(testutil.NewFixedFlowGenerator(scenario.FlowToken)))
	if err != nil {
		return nil, err
	}
	d, err := dao.Open(ctx, l)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		dao:      d,
		logger:   o.logger,
		deployer: scenario.Genesis.Deployer,
		result:   NewResult(),
	}

	if !scenario.SkipDeploy {
		if _, err := d.Deploy(ctx, "", scenario.Genesis); err != nil {
			return nil, fmt.Errorf("failed to deploy genesis: %w", err)
		}
	}
	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	for _, msg := range EvaluateAssertions(ctx, h.result, scenario.Assertions, d) {
		h.result.AddError(msg)
	}
	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", h.result.Pass,
		"calls", len(h.result.Trace)/2,
		"errors", len(h.result.Errors))
	return h.result, nil
}

func (h *Harness) executeSetup(ctx context.Context, setup []Step) error {
	for i, step := range setup {
		rcpt, err := h.execute(ctx, step)
		if err != nil {
			return fmt.Errorf("setup step %d: %w", i, err)
		}
		if rcpt.Case != ir.CodeOK {
			return fmt.Errorf("setup step %d: %s was rejected with %s", i, stepAction(step), rcpt.Case)
		}
	}
	return nil
}

func (h *Harness) executeFlow(ctx context.Context, flow []Step) error {
	for i, step := range flow {
		rcpt, err := h.execute(ctx, step)
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}
		if step.Expect == nil {
			continue
		}
		if msg := h.checkExpect(step, rcpt); msg != "" {
			h.result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, stepAction(step), msg))
		}
		h.logger.Debug("flow step validated",
			"step", i,
			"action", stepAction(step),
			"expected_case", step.Expect.Case,
			"actual_case", string(rcpt.Case))
	}
	return nil
}

func (h *Harness) checkExpect(step Step, rcpt ledger.Receipt) string {
	if string(rcpt.Case) != step.Expect.Case {
		return fmt.Sprintf("expected case %s, got %s", step.Expect.Case, rcpt.Case)
	}
	if rcpt.Case != ir.CodeOK || len(step.Expect.Result) == 0 {
		return ""
	}
	want, err := ir.ObjectFromMap(step.Expect.Result)
	if err != nil {
		return fmt.Sprintf("expect.result: %v", err)
	}
	if !newMatcher(h.dao).match(want, rcpt.Result) {
		return fmt.Sprintf("expected result %v, got %v", ir.ToAny(want), ir.ToAny(rcpt.Result))
	}
	return ""
}

func stepAction(step Step) string {
	if step.Mine > 0 {
		return "Ledger.mine"
	}
	return step.Invoke
}

// execute submits one step and appends it to the trace. Rejected calls
// are recorded like any other; only calls the ledger could not record
// return an error.
func (h *Harness) execute(ctx context.Context, step Step) (ledger.Receipt, error) {
	from := step.As
	if from == "" {
		from = h.deployer
	}
	action := step.Invoke
	args, err := ir.ObjectFromMap(step.Args)
	if err != nil {
		return ledger.Receipt{}, fmt.Errorf("args: %w", err)
	}
	if step.Mine > 0 {
		action = "Ledger.mine"
		args = ir.Object{"blocks": ir.Int(step.Mine)}
		if step.As == "" {
			from = "zero"
		}
	}
	sender, err := dao.AccountAddress(from)
	if err != nil {
		return ledger.Receipt{}, fmt.Errorf("as: %w", err)
	}

	rcpt, callErr := h.dao.Invoke(ctx, dao.Call{From: sender, Action: action, Args: args})
	if callErr != nil && rcpt.CallID == "" {
		return ledger.Receipt{}, callErr
	}

	message := ""
	if callErr != nil {
		message = callErr.Error()
	}
	h.result.AddInvocationTrace(action, from, args, rcpt.Seq, rcpt.Block)
	h.result.AddCompletionTrace(string(rcpt.Case), rcpt.Result, message, h.emitted(rcpt.Events), rcpt.Seq)

	h.logger.Info("step completed",
		"action", action,
		"from", from,
		"seq", rcpt.Seq,
		"block", rcpt.Block,
		"case", string(rcpt.Case))
	return rcpt, nil
}

func (h *Harness) emitted(events []store.Event) []EmittedEvent {
	out := make([]EmittedEvent, 0, len(events))
	for _, e := range events {
		out = append(out, EmittedEvent{
			Contract: h.dao.NameOf(e.Contract),
			Name:     e.Name,
			Fields:   e.Fields,
		})
	}
	return out
}
