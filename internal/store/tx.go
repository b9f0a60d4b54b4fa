package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/dvgov/internal/ir"
)

// Tx is one ledger transaction. All state accessors live on Tx so that a
// rejected call can be undone with a single Rollback, nested contract calls
// included.
type Tx struct {
	ctx context.Context
	tx  *sql.Tx
}

// Context returns the context the transaction was started with.
func (t *Tx) Context() context.Context { return t.ctx }

// Commit makes the transaction's writes durable.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Rollback discards the transaction's writes. Safe to call after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback tx: %w", err)
	}
	return nil
}

func (t *Tx) exec(query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(t.ctx, query, args...)
}

func (t *Tx) queryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(t.ctx, query, args...)
}

func (t *Tx) query(query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(t.ctx, query, args...)
}

const metaHeight = "height"

// Height returns the latest mined block. A fresh ledger is at genesis (0).
func (t *Tx) Height() (int64, error) {
	var raw string
	err := t.queryRow(`SELECT value FROM meta WHERE key = ?`, metaHeight).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read height: %w", err)
	}
	h, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("read height: %w", err)
	}
	return h, nil
}

// SetHeight records the latest mined block.
func (t *Tx) SetHeight(h int64) error {
	_, err := t.exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, metaHeight, strconv.FormatInt(h, 10))
	if err != nil {
		return fmt.Errorf("write height: %w", err)
	}
	return nil
}

// ContractEntry is one row of the persisted address book.
type ContractEntry struct {
	Name    string
	Address ir.Address
	Kind    string
}

// WriteContract adds a contract to the address book.
// Names are unique; a second entry with the same name is an error.
func (t *Tx) WriteContract(e ContractEntry) error {
	_, err := t.exec(`
		INSERT INTO contracts (name, address, kind) VALUES (?, ?, ?)
	`, e.Name, e.Address, e.Kind)
	if err != nil {
		return fmt.Errorf("write contract %s: %w", e.Name, err)
	}
	return nil
}

// ReadContracts returns the address book ordered by name.
func (t *Tx) ReadContracts() ([]ContractEntry, error) {
	rows, err := t.query(`SELECT name, address, kind FROM contracts ORDER BY name COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query contracts: %w", err)
	}
	defer rows.Close()

	entries := []ContractEntry{}
	for rows.Next() {
		var e ContractEntry
		if err := rows.Scan(&e.Name, &e.Address, &e.Kind); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contracts: %w", err)
	}
	return entries, nil
}

// NativeBalance returns the native currency balance of an address.
func (t *Tx) NativeBalance(addr ir.Address) (ir.Amount, error) {
	var amt ir.Amount
	err := t.queryRow(`SELECT amount FROM native_balances WHERE address = ?`, addr).Scan(&amt)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Amount{}, nil
	}
	if err != nil {
		return ir.Amount{}, fmt.Errorf("read native balance: %w", err)
	}
	return amt, nil
}

// SetNativeBalance overwrites the native balance of an address.
func (t *Tx) SetNativeBalance(addr ir.Address, amt ir.Amount) error {
	_, err := t.exec(`
		INSERT INTO native_balances (address, amount) VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET amount = excluded.amount
	`, addr, amt)
	if err != nil {
		return fmt.Errorf("write native balance: %w", err)
	}
	return nil
}

// bool columns are stored as 0/1 INTEGER.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
