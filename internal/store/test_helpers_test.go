package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/dvgov/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// beginTestTx starts a transaction that is rolled back at cleanup unless
// the test commits it.
func beginTestTx(t *testing.T, s *Store) *Tx {
	t.Helper()
	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	t.Cleanup(func() { tx.Rollback() })
	return tx
}

// commitTx runs fn inside its own committed transaction.
func commitTx(t *testing.T, s *Store, fn func(tx *Tx)) {
	t.Helper()
	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	fn(tx)
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
}

// addr derives a stable test address from a name.
func addr(name string) ir.Address {
	return ir.AccountAddress(name)
}

// testCall builds a call with minimal required fields.
func testCall(id, flowToken, action string, seq int64) Call {
	return Call{
		ID:            id,
		FlowToken:     flowToken,
		Seq:           seq,
		Block:         seq,
		Sender:        addr("alice"),
		Action:        action,
		Args:          ir.Object{},
		LedgerVersion: ir.LedgerVersion,
		IRVersion:     ir.IRVersion,
	}
}

// testOutcome builds an outcome for callID.
func testOutcome(id, callID string, outcome ir.Code, seq int64) Outcome {
	return Outcome{
		ID:     id,
		CallID: callID,
		Case:   outcome,
		Result: ir.Object{},
		Seq:    seq,
	}
}

func testBatch() ir.Batch {
	return ir.Batch{
		Targets:   []ir.Address{addr("treasury")},
		Values:    []ir.Amount{ir.NewAmount(0)},
		Calldatas: [][]byte{ir.EncodeCall("release(address)", ir.AddressWord(addr("bob")))},
	}
}
