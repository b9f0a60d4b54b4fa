package ledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/store"
)

// Contract is a program hosted at an address. Dispatch receives calldata
// routed to the contract; empty calldata is a plain value transfer and
// reaches the contract's receive hook. Native value has already moved to
// the contract when Dispatch runs.
type Contract interface {
	Address() ir.Address
	Kind() string
	Dispatch(env *Env, data []byte) error
}

// Tx is one submitted transaction.
type Tx struct {
	// Flow groups related calls. Empty means the ledger's generator is used.
	Flow string

	// From is the account that signs the call.
	From ir.Address

	// Action and Args are recorded in the call log. Replay re-executes the
	// call from these two fields alone.
	Action string
	Args   ir.Object

	// Run executes the call against the frame of From. Returning an error
	// rejects the call and rolls back everything Run wrote.
	Run func(env *Env) (ir.Object, error)
}

// Receipt describes a recorded call.
type Receipt struct {
	CallID    string
	OutcomeID string
	Flow      string
	Seq       int64
	Block     int64
	Height    int64 // Latest mined block after the call
	Case      ir.Code
	Result    ir.Object
	Events    []store.Event
}

// Ledger is the single-writer host for the governance contracts.
//
// Every Submit runs inside one store transaction in block height+1. A call
// that succeeds mines that block; a rejected call mines nothing and leaves
// no state behind, but is still recorded in the call log.
type Ledger struct {
	mu        sync.Mutex
	store     *store.Store
	clock     *Clock
	flowGen   FlowTokenGenerator
	contracts map[ir.Address]Contract
	logger    *slog.Logger
	metrics   *ledgerMetrics
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the structured logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithFlowGenerator sets the flow token generator. The default is UUIDv7.
func WithFlowGenerator(gen FlowTokenGenerator) Option {
	return func(l *Ledger) { l.flowGen = gen }
}

// WithPromRegistry enables metrics on the given registry.
func WithPromRegistry(reg prometheus.Registerer) Option {
	return func(l *Ledger) {
		if reg == nil {
			return
		}
		l.metrics = &ledgerMetrics{}
		l.metrics.init(reg)
	}
}

// New opens a ledger over st, resuming the logical clock after the last
// recorded call.
func New(ctx context.Context, st *store.Store, opts ...Option) (*Ledger, error) {
	last, err := st.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	l := &Ledger{
		store:     st,
		clock:     NewClockAt(last),
		flowGen:   UUIDv7Generator{},
		contracts: make(map[ir.Address]Contract),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Store returns the backing store.
func (l *Ledger) Store() *store.Store { return l.store }

// Logger returns the ledger's logger.
func (l *Ledger) Logger() *slog.Logger { return l.logger }

// Register makes a contract reachable by call routing. Used when reopening
// a database; contracts deployed by a call are registered through
// Env.Deploy so that a rejected deploy leaves nothing behind.
func (l *Ledger) Register(c Contract) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.contracts[c.Address()] = c
}

// Contract returns the contract registered at addr.
func (l *Ledger) Contract(addr ir.Address) (Contract, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.contracts[addr]
	return c, ok
}

// Height returns the latest mined block.
func (l *Ledger) Height(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	return tx.Height()
}

// Submit executes and records one transaction.
//
// The returned error is the call's rejection (an *ir.Error, also recorded
// as the outcome case) or an infrastructure failure, in which case nothing
// is recorded. The receipt is valid whenever the call was recorded.
func (l *Ledger) Submit(ctx context.Context, t Tx) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	flow := t.Flow
	if flow == "" {
		flow = l.flowGen.Generate()
	}
	args := t.Args
	if args == nil {
		args = ir.Object{}
	}

	seq := l.clock.Next()
	callID, err := ir.CallID(flow, t.Action, t.From, args, seq)
	if err != nil {
		return Receipt{}, err
	}

	stx, err := l.store.Begin(ctx)
	if err != nil {
		return Receipt{}, err
	}
	defer stx.Rollback()

	height, err := stx.Height()
	if err != nil {
		return Receipt{}, err
	}
	block := height + 1

	env := newRootEnv(ctx, stx, l, t.From, block)
	result, runErr := t.Run(env)
	if result == nil {
		result = ir.Object{}
	}

	call := store.Call{
		ID:            callID,
		FlowToken:     flow,
		Seq:           seq,
		Block:         block,
		Sender:        t.From,
		Action:        t.Action,
		Args:          args,
		LedgerVersion: ir.LedgerVersion,
		IRVersion:     ir.IRVersion,
	}
	rcpt := Receipt{CallID: callID, Flow: flow, Seq: seq, Block: block, Height: height}

	if runErr == nil {
		rcpt.Case = ir.CodeOK
		rcpt.Result = result
		rcpt.Events = env.shared.events
		for i := range rcpt.Events {
			rcpt.Events[i].CallID = callID
		}
		rcpt.Height = block + env.shared.extraBlocks
		if err := l.commit(stx, call, &rcpt); err != nil {
			return Receipt{}, err
		}
		for _, c := range env.shared.deployed {
			l.contracts[c.Address()] = c
		}
		l.observe(t.Action, rcpt, start)
		l.logger.Debug("call committed",
			"action", t.Action,
			"seq", seq,
			"block", block,
			"height", rcpt.Height,
			"events", len(rcpt.Events))
		return rcpt, nil
	}

	if err := stx.Rollback(); err != nil {
		return Receipt{}, err
	}

	rcpt.Case = ir.CodeOf(runErr)
	rcpt.Result = ir.Object{}
	if err := l.recordRejected(ctx, call, &rcpt, runErr); err != nil {
		return Receipt{}, err
	}
	l.observe(t.Action, rcpt, start)
	l.logger.Info("call rejected",
		"action", t.Action,
		"seq", seq,
		"block", block,
		"case", string(rcpt.Case),
		"error", runErr)
	return rcpt, runErr
}

func (l *Ledger) commit(stx *store.Tx, call store.Call, rcpt *Receipt) error {
	if err := stx.SetHeight(rcpt.Height); err != nil {
		return err
	}
	if err := l.writeOutcome(stx, call, rcpt, ""); err != nil {
		return err
	}
	if err := stx.WriteEvents(rcpt.Events); err != nil {
		return err
	}
	return stx.Commit()
}

// recordRejected logs a rejected call in a fresh transaction, after the
// call's own transaction has been rolled back.
func (l *Ledger) recordRejected(ctx context.Context, call store.Call, rcpt *Receipt, runErr error) error {
	stx, err := l.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer stx.Rollback()

	if err := l.writeOutcome(stx, call, rcpt, runErr.Error()); err != nil {
		return err
	}
	return stx.Commit()
}

func (l *Ledger) writeOutcome(stx *store.Tx, call store.Call, rcpt *Receipt, message string) error {
	outcomeID, err := ir.OutcomeID(call.ID, rcpt.Case, rcpt.Result, call.Seq)
	if err != nil {
		return err
	}
	rcpt.OutcomeID = outcomeID

	if err := stx.WriteCall(call); err != nil {
		return err
	}
	return stx.WriteOutcome(store.Outcome{
		ID:      outcomeID,
		CallID:  call.ID,
		Case:    rcpt.Case,
		Result:  rcpt.Result,
		Message: message,
		Seq:     call.Seq,
	})
}

func (l *Ledger) observe(action string, rcpt Receipt, start time.Time) {
	if l.metrics == nil {
		return
	}
	l.metrics.callsTotal.WithLabelValues(action, string(rcpt.Case)).Inc()
	l.metrics.callLatency.WithLabelValues(action).Observe(time.Since(start).Seconds())
	l.metrics.eventsTotal.Add(float64(len(rcpt.Events)))
	l.metrics.blockHeight.Set(float64(rcpt.Height))
}

// View evaluates a read-only query at the current height. Anything fn
// writes is discarded.
func (l *Ledger) View(ctx context.Context, fn func(env *Env) (ir.Object, error)) (ir.Object, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stx, err := l.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer stx.Rollback()

	height, err := stx.Height()
	if err != nil {
		return nil, err
	}
	env := newRootEnv(ctx, stx, l, ir.ZeroAddress, height)
	env.shared.readOnly = true

	result, err := fn(env)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = ir.Object{}
	}
	return result, nil
}
