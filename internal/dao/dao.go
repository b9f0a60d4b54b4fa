// Package dao wires the voting token, timelock, governor and treasury into
// one deployment and exposes them as named actions and views.
//
// Every state change goes through Invoke with an action name and an args
// object, which is exactly what the call log records. Replaying the log
// through Executor therefore rebuilds the same state.
package dao

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/dvgov/internal/governance"
	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/ledger"
	"github.com/roach88/dvgov/internal/store"
	"github.com/roach88/dvgov/internal/timelock"
	"github.com/roach88/dvgov/internal/token"
	"github.com/roach88/dvgov/internal/treasury"
)

// DAO is the deployment facade over a ledger.
type DAO struct {
	ledger *ledger.Ledger
	logger *slog.Logger

	mu       sync.RWMutex
	book     map[string]ir.Address
	token    *token.Token
	timelock *timelock.Timelock
	governor *governance.Governor
	treasury *treasury.Treasury
}

// Open binds a DAO to l. If the address book already lists a deployment,
// its contracts are rebuilt and registered with the ledger.
func Open(ctx context.Context, l *ledger.Ledger) (*DAO, error) {
	d := &DAO{
		ledger: l,
		logger: l.Logger(),
		book:   map[string]ir.Address{},
	}

	tx, err := l.Store().Begin(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := tx.ReadContracts()
	tx.Rollback()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return d, nil
	}

	book, err := bookFromEntries(entries)
	if err != nil {
		return nil, err
	}
	d.bind(book)
	for _, c := range d.contracts() {
		l.Register(c)
	}
	d.logger.Debug("dao opened", "contracts", len(entries))
	return d, nil
}

var kindOf = map[string]string{
	NameToken:      token.Kind,
	NameTimelock:   timelock.Kind,
	NameGovernance: governance.Kind,
	NameTreasury:   treasury.Kind,
}

func bookFromEntries(entries []store.ContractEntry) (map[string]ir.Address, error) {
	book := make(map[string]ir.Address, len(entries))
	for _, e := range entries {
		want, ok := kindOf[e.Name]
		if !ok {
			return nil, fmt.Errorf("address book: unknown contract %q", e.Name)
		}
		if e.Kind != want {
			return nil, fmt.Errorf("address book: %s has kind %s, want %s", e.Name, e.Kind, want)
		}
		book[e.Name] = e.Address
	}
	for _, name := range contractNames {
		if _, ok := book[name]; !ok {
			return nil, fmt.Errorf("address book: missing %s", name)
		}
	}
	return book, nil
}

func (d *DAO) bind(book map[string]ir.Address) {
	tok := token.At(book[NameToken])
	tl := timelock.At(book[NameTimelock])

	d.mu.Lock()
	defer d.mu.Unlock()
	d.book = book
	d.token = tok
	d.timelock = tl
	d.governor = governance.At(book[NameGovernance], tok, tl)
	d.treasury = treasury.At(book[NameTreasury])
}

func (d *DAO) contracts() []ledger.Contract {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.token == nil {
		return nil
	}
	return []ledger.Contract{d.token, d.timelock, d.governor, d.treasury}
}

// Ledger returns the underlying ledger.
func (d *DAO) Ledger() *ledger.Ledger { return d.ledger }

// Deployed reports whether the DAO contracts exist.
func (d *DAO) Deployed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.token != nil
}

// Addresses returns the address book sorted by name.
func (d *DAO) Addresses() []store.ContractEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]store.ContractEntry, 0, len(d.book))
	for name, addr := range d.book {
		out = append(out, store.ContractEntry{Name: name, Address: addr, Kind: kindOf[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Token returns the voting token, nil before deployment.
func (d *DAO) Token() *token.Token {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.token
}

// Timelock returns the timelock, nil before deployment.
func (d *DAO) Timelock() *timelock.Timelock {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.timelock
}

// Governor returns the governor, nil before deployment.
func (d *DAO) Governor() *governance.Governor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.governor
}

// Treasury returns the treasury, nil before deployment.
func (d *DAO) Treasury() *treasury.Treasury {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.treasury
}

// Call is one action invocation.
type Call struct {
	// Flow groups the call; empty lets the ledger pick one.
	Flow   string
	From   ir.Address
	Action string
	Args   ir.Object
}

// invocation is the context an action or view runs in.
type invocation struct {
	d    *DAO
	env  *ledger.Env
	args args

	// deployed is set by DAO.deploy and bound once the call commits.
	deployed map[string]ir.Address
}

type handler func(inv *invocation) (ir.Object, error)

// Invoke submits an action. Unknown actions fail with InvalidArgument and
// are not recorded.
func (d *DAO) Invoke(ctx context.Context, c Call) (ledger.Receipt, error) {
	h, ok := actions[c.Action]
	if !ok {
		return ledger.Receipt{}, ir.Errorf(ir.CodeInvalidArgument, "unknown action %q", c.Action).
			With("action", c.Action)
	}
	callArgs := c.Args
	if callArgs == nil {
		callArgs = ir.Object{}
	}

	var deployed map[string]ir.Address
	rcpt, err := d.ledger.Submit(ctx, ledger.Tx{
		Flow:   c.Flow,
		From:   c.From,
		Action: c.Action,
		Args:   callArgs,
		Run: func(env *ledger.Env) (ir.Object, error) {
			inv := &invocation{d: d, env: env, args: args{obj: callArgs, d: d}}
			res, err := h(inv)
			deployed = inv.deployed
			return res, err
		},
	})
	if err == nil && deployed != nil {
		d.bind(deployed)
	}
	return rcpt, err
}

// Query evaluates a view at the current height.
func (d *DAO) Query(ctx context.Context, view string, viewArgs ir.Object) (ir.Object, error) {
	h, ok := views[view]
	if !ok {
		return nil, ir.Errorf(ir.CodeInvalidArgument, "unknown view %q", view).With("view", view)
	}
	if viewArgs == nil {
		viewArgs = ir.Object{}
	}
	return d.ledger.View(ctx, func(env *ledger.Env) (ir.Object, error) {
		return h(&invocation{d: d, env: env, args: args{obj: viewArgs, d: d}})
	})
}

// Executor replays recorded calls through Invoke. The ledger passed in
// must be the one the DAO was opened on.
func (d *DAO) Executor() ledger.Executor {
	return func(ctx context.Context, l *ledger.Ledger, c store.Call) (ledger.Receipt, error) {
		if l != d.ledger {
			return ledger.Receipt{}, ir.Errorf(ir.CodeInternal, "executor is bound to another ledger")
		}
		return d.Invoke(ctx, Call{Flow: c.FlowToken, From: c.Sender, Action: c.Action, Args: c.Args})
	}
}

// Actions lists the action names Invoke accepts.
func Actions() []string { return sortedKeys(actions) }

// Views lists the view names Query accepts.
func Views() []string { return sortedKeys(views) }

func sortedKeys(m map[string]handler) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// deployment is the bound contract set.
type deployment struct {
	tok *token.Token
	tl  *timelock.Timelock
	gov *governance.Governor
	tr  *treasury.Treasury
}

// deployment returns the contracts or InvalidState before deployment.
func (inv *invocation) deployment() (deployment, error) {
	d := inv.d
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.token == nil {
		return deployment{}, ir.Errorf(ir.CodeInvalidState, "DAO is not deployed")
	}
	return deployment{tok: d.token, tl: d.timelock, gov: d.governor, tr: d.treasury}, nil
}
