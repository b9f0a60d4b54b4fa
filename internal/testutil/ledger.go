package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/ledger"
	"github.com/roach88/dvgov/internal/store"
)

// NewLedger opens a ledger over a fresh database in t.TempDir(). Calls
// without an explicit flow share the "test-flow-default" flow.
func NewLedger(t testing.TB, opts ...ledger.Option) *ledger.Ledger {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "dvgov.db"))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	opts = append([]ledger.Option{ledger.WithFlowGenerator(NewFixedFlowGenerator(""))}, opts...)
	l, err := ledger.New(context.Background(), st, opts...)
	if err != nil {
		t.Fatalf("ledger.New() failed: %v", err)
	}
	return l
}

// Submit runs fn as a transaction signed by from. The action name only
// labels the call log.
func Submit(t testing.TB, l *ledger.Ledger, from ir.Address, action string, fn func(env *ledger.Env) error) error {
	t.Helper()
	_, err := l.Submit(context.Background(), ledger.Tx{
		From:   from,
		Action: action,
		Run: func(env *ledger.Env) (ir.Object, error) {
			return nil, fn(env)
		},
	})
	if err != nil && ir.CodeOf(err) == ir.CodeInternal {
		t.Fatalf("%s: infrastructure failure: %v", action, err)
	}
	return err
}

// MustSubmit is Submit for calls the test expects to succeed.
func MustSubmit(t testing.TB, l *ledger.Ledger, from ir.Address, action string, fn func(env *ledger.Env) error) {
	t.Helper()
	if err := Submit(t, l, from, action, fn); err != nil {
		t.Fatalf("%s: unexpected rejection: %v", action, err)
	}
}

// View runs fn read-only at the current height.
func View(t testing.TB, l *ledger.Ledger, fn func(env *ledger.Env) error) {
	t.Helper()
	_, err := l.View(context.Background(), func(env *ledger.Env) (ir.Object, error) {
		return nil, fn(env)
	})
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
}

// Mine advances the ledger by n blocks.
func Mine(t testing.TB, l *ledger.Ledger, n int64) {
	t.Helper()
	MustSubmit(t, l, ir.ZeroAddress, "Ledger.mine", func(env *ledger.Env) error {
		return env.Mine(n)
	})
}

// Height returns the latest mined block.
func Height(t testing.TB, l *ledger.Ledger) int64 {
	t.Helper()
	h, err := l.Height(context.Background())
	if err != nil {
		t.Fatalf("Height() failed: %v", err)
	}
	return h
}

// Account returns the address of a named test account.
func Account(name string) ir.Address {
	return ir.AccountAddress(name)
}

// Fund credits native value to addr.
func Fund(t testing.TB, l *ledger.Ledger, addr ir.Address, amount ir.Amount) {
	t.Helper()
	MustSubmit(t, l, ir.ZeroAddress, "Ledger.fund", func(env *ledger.Env) error {
		return env.Mint(addr, amount)
	})
}

// Balance returns the native balance of addr.
func Balance(t testing.TB, l *ledger.Ledger, addr ir.Address) ir.Amount {
	t.Helper()
	var amt ir.Amount
	View(t, l, func(env *ledger.Env) error {
		var err error
		amt, err = env.Balance(addr)
		return err
	})
	return amt
}
