package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/dvgov/internal/ir"
)

// WriteMinDelay sets the minimum scheduling delay of a timelock, in blocks.
func (t *Tx) WriteMinDelay(timelock ir.Address, delay int64) error {
	_, err := t.exec(`
		INSERT INTO timelocks (address, min_delay) VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET min_delay = excluded.min_delay
	`, timelock, delay)
	if err != nil {
		return fmt.Errorf("write min delay: %w", err)
	}
	return nil
}

// ReadMinDelay returns the minimum delay. found is false for an unknown timelock.
func (t *Tx) ReadMinDelay(timelock ir.Address) (delay int64, found bool, err error) {
	err = t.queryRow(`SELECT min_delay FROM timelocks WHERE address = ?`, timelock).Scan(&delay)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read min delay: %w", err)
	}
	return delay, true, nil
}

// HasRole reports role membership.
func (t *Tx) HasRole(timelock ir.Address, role ir.Hash, account ir.Address) (bool, error) {
	var n int
	err := t.queryRow(`
		SELECT COUNT(*) FROM timelock_roles WHERE timelock = ? AND role = ? AND account = ?
	`, timelock, role, account).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("read role: %w", err)
	}
	return n > 0, nil
}

// GrantRole adds account to role. Returns false if it already held the role.
func (t *Tx) GrantRole(timelock ir.Address, role ir.Hash, account ir.Address) (bool, error) {
	res, err := t.exec(`
		INSERT INTO timelock_roles (timelock, role, account) VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, timelock, role, account)
	if err != nil {
		return false, fmt.Errorf("grant role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("grant role: rows affected: %w", err)
	}
	return n > 0, nil
}

// RevokeRole removes account from role. Returns false if it did not hold the role.
func (t *Tx) RevokeRole(timelock ir.Address, role ir.Hash, account ir.Address) (bool, error) {
	res, err := t.exec(`
		DELETE FROM timelock_roles WHERE timelock = ? AND role = ? AND account = ?
	`, timelock, role, account)
	if err != nil {
		return false, fmt.Errorf("revoke role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke role: rows affected: %w", err)
	}
	return n > 0, nil
}

// RoleMembers returns the holders of role ordered by address.
func (t *Tx) RoleMembers(timelock ir.Address, role ir.Hash) ([]ir.Address, error) {
	rows, err := t.query(`
		SELECT account FROM timelock_roles WHERE timelock = ? AND role = ?
		ORDER BY account COLLATE BINARY ASC
	`, timelock, role)
	if err != nil {
		return nil, fmt.Errorf("query role members: %w", err)
	}
	defer rows.Close()

	members := []ir.Address{}
	for rows.Next() {
		var a ir.Address
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan role member: %w", err)
		}
		members = append(members, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role members: %w", err)
	}
	return members, nil
}

// Operation is a scheduled timelock batch.
type Operation struct {
	Timelock    ir.Address
	ID          ir.Hash
	Batch       ir.Batch
	Predecessor ir.Hash
	Salt        ir.Hash
	ReadyBlock  int64
	Done        bool
}

// WriteOperation inserts or replaces an operation record.
func (t *Tx) WriteOperation(op Operation) error {
	batchJSON, err := marshalBatch(op.Batch)
	if err != nil {
		return fmt.Errorf("write operation: %w", err)
	}
	_, err = t.exec(`
		INSERT INTO timelock_operations (timelock, id, batch, predecessor, salt, ready_block, done)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(timelock, id) DO UPDATE SET
			ready_block = excluded.ready_block,
			done = excluded.done
	`, op.Timelock, op.ID, batchJSON, op.Predecessor, op.Salt, op.ReadyBlock, boolInt(op.Done))
	if err != nil {
		return fmt.Errorf("write operation: %w", err)
	}
	return nil
}

// ReadOperation returns an operation. found is false if it was never
// scheduled or was canceled.
func (t *Tx) ReadOperation(timelock ir.Address, id ir.Hash) (op Operation, found bool, err error) {
	var (
		batchJSON string
		done      int
	)
	err = t.queryRow(`
		SELECT timelock, id, batch, predecessor, salt, ready_block, done
		FROM timelock_operations WHERE timelock = ? AND id = ?
	`, timelock, id).Scan(&op.Timelock, &op.ID, &batchJSON, &op.Predecessor, &op.Salt, &op.ReadyBlock, &done)
	if errors.Is(err, sql.ErrNoRows) {
		return Operation{}, false, nil
	}
	if err != nil {
		return Operation{}, false, fmt.Errorf("read operation: %w", err)
	}
	if op.Batch, err = unmarshalBatch(batchJSON); err != nil {
		return Operation{}, false, fmt.Errorf("read operation %s: %w", id, err)
	}
	op.Done = done != 0
	return op, true, nil
}

// DeleteOperation removes a canceled operation.
func (t *Tx) DeleteOperation(timelock ir.Address, id ir.Hash) error {
	_, err := t.exec(`DELETE FROM timelock_operations WHERE timelock = ? AND id = ?`, timelock, id)
	if err != nil {
		return fmt.Errorf("delete operation: %w", err)
	}
	return nil
}
