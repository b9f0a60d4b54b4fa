package ledger

import (
	"context"
	"log/slog"

	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/store"
)

// maxCallDepth bounds nested routed calls (timelock -> treasury -> ...).
const maxCallDepth = 32

// Env is one call frame: Self is the executing account or contract and
// Caller is whoever invoked it (msg.sender). All frames of a transaction
// share one store transaction, one block and one event list.
type Env struct {
	ctx    context.Context
	tx     *store.Tx
	ledger *Ledger
	caller ir.Address
	self   ir.Address
	value  ir.Amount
	block  int64
	depth  int
	shared *txShared
}

type txShared struct {
	events      []store.Event
	deployed    []Contract
	extraBlocks int64
	readOnly    bool
}

func newRootEnv(ctx context.Context, tx *store.Tx, l *Ledger, from ir.Address, block int64) *Env {
	return &Env{
		ctx:    ctx,
		tx:     tx,
		ledger: l,
		caller: from,
		self:   from,
		block:  block,
		shared: &txShared{},
	}
}

// Context returns the context of the submitting caller.
func (e *Env) Context() context.Context { return e.ctx }

// Store returns the transaction every state access goes through.
func (e *Env) Store() *store.Tx { return e.tx }

// Block is the number of the block the transaction executes in. For views
// it is the current height.
func (e *Env) Block() int64 { return e.block }

// Caller is the account or contract that invoked this frame.
func (e *Env) Caller() ir.Address { return e.caller }

// Self is the account or contract executing this frame.
func (e *Env) Self() ir.Address { return e.self }

// Value is the native amount attached to this frame's call.
func (e *Env) Value() ir.Amount { return e.value }

// ReadOnly reports whether the frame belongs to a view.
func (e *Env) ReadOnly() bool { return e.shared.readOnly }

// Logger returns the ledger logger annotated with the executing address.
func (e *Env) Logger() *slog.Logger {
	return e.ledger.logger.With("contract", e.self.Hex(), "block", e.block)
}

// Enter returns the frame of target as called by Self with no value.
// Components use it for message-style calls between each other, such as
// governance scheduling on the timelock.
func (e *Env) Enter(target ir.Address) *Env {
	return e.child(target, ir.Amount{})
}

func (e *Env) child(target ir.Address, value ir.Amount) *Env {
	return &Env{
		ctx:    e.ctx,
		tx:     e.tx,
		ledger: e.ledger,
		caller: e.self,
		self:   target,
		value:  value,
		block:  e.block,
		depth:  e.depth + 1,
		shared: e.shared,
	}
}

// Lookup returns the contract at addr, including contracts deployed earlier
// in the same transaction.
func (e *Env) Lookup(addr ir.Address) (Contract, bool) {
	for _, c := range e.shared.deployed {
		if c.Address() == addr {
			return c, true
		}
	}
	c, ok := e.ledger.contracts[addr]
	return c, ok
}

// Deploy registers a contract created by this transaction. Registration
// takes effect on commit; a rejected transaction deploys nothing.
func (e *Env) Deploy(c Contract) error {
	if _, exists := e.Lookup(c.Address()); exists {
		return ir.Errorf(ir.CodeInvalidState, "contract already deployed at %s", c.Address())
	}
	e.shared.deployed = append(e.shared.deployed, c)
	return nil
}

// Call routes (target, value, data) from Self: value moves first, then the
// calldata is dispatched to the target contract. Empty calldata to an
// address without a contract is a plain transfer.
func (e *Env) Call(target ir.Address, value ir.Amount, data []byte) error {
	if e.depth >= maxCallDepth {
		return ir.Errorf(ir.CodeInvalidState, "call depth %d exceeded", maxCallDepth)
	}
	if err := e.Transfer(target, value); err != nil {
		return err
	}

	c, ok := e.Lookup(target)
	if !ok {
		if len(data) == 0 {
			return nil
		}
		return ir.Errorf(ir.CodeInvalidArgument, "no contract at %s", target)
	}
	return c.Dispatch(e.child(target, value), data)
}

// Balance returns the native balance of addr.
func (e *Env) Balance(addr ir.Address) (ir.Amount, error) {
	return e.tx.NativeBalance(addr)
}

// Transfer moves native value from Self to addr.
func (e *Env) Transfer(to ir.Address, amount ir.Amount) error {
	if amount.IsZero() || to == e.self {
		return nil
	}
	from, err := e.tx.NativeBalance(e.self)
	if err != nil {
		return err
	}
	rest, ok := from.Sub(amount)
	if !ok {
		return ir.Errorf(ir.CodeInsufficientBalance,
			"%s holds %s wei, transfer needs %s", e.self, from, amount)
	}
	recv, err := e.tx.NativeBalance(to)
	if err != nil {
		return err
	}
	if err := e.tx.SetNativeBalance(e.self, rest); err != nil {
		return err
	}
	return e.tx.SetNativeBalance(to, recv.Add(amount))
}

// Mint credits native value to addr out of thin air. Only genesis funding
// uses it.
func (e *Env) Mint(to ir.Address, amount ir.Amount) error {
	bal, err := e.tx.NativeBalance(to)
	if err != nil {
		return err
	}
	next := bal.Add(amount)
	if next.Overflows() {
		return ir.Errorf(ir.CodeInvalidArgument, "balance of %s would exceed %d bits", to, ir.AmountBits)
	}
	return e.tx.SetNativeBalance(to, next)
}

// Emit records an event from Self. Events of rejected calls are discarded.
func (e *Env) Emit(name string, fields ir.Object) {
	if fields == nil {
		fields = ir.Object{}
	}
	e.shared.events = append(e.shared.events, store.Event{
		Index:    len(e.shared.events),
		Contract: e.self,
		Name:     name,
		Fields:   fields,
	})
}

// Mine makes the transaction mine n blocks in total instead of one.
// Only the top-level frame of a transaction may mine.
func (e *Env) Mine(n int64) error {
	if e.shared.readOnly || e.depth != 0 {
		return ir.Errorf(ir.CodeInvalidState, "mining is only possible from a transaction")
	}
	if n < 1 {
		return ir.Errorf(ir.CodeInvalidArgument, "mine needs at least one block, got %d", n)
	}
	if _, err := ir.AddBlocks(e.block, n-1); err != nil {
		return err
	}
	e.shared.extraBlocks = n - 1
	return nil
}
