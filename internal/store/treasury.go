package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/dvgov/internal/ir"
)

// Treasury is the custody record. The held balance is the treasury
// address's native balance.
type Treasury struct {
	Address  ir.Address
	Owner    ir.Address
	Released bool
}

// WriteTreasury inserts or updates the custody record.
func (t *Tx) WriteTreasury(tr Treasury) error {
	_, err := t.exec(`
		INSERT INTO treasuries (address, owner, released) VALUES (?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET owner = excluded.owner, released = excluded.released
	`, tr.Address, tr.Owner, boolInt(tr.Released))
	if err != nil {
		return fmt.Errorf("write treasury: %w", err)
	}
	return nil
}

// ReadTreasury returns the custody record. found is false for an unknown address.
func (t *Tx) ReadTreasury(addr ir.Address) (tr Treasury, found bool, err error) {
	var released int
	err = t.queryRow(`
		SELECT address, owner, released FROM treasuries WHERE address = ?
	`, addr).Scan(&tr.Address, &tr.Owner, &released)
	if errors.Is(err, sql.ErrNoRows) {
		return Treasury{}, false, nil
	}
	if err != nil {
		return Treasury{}, false, fmt.Errorf("read treasury: %w", err)
	}
	tr.Released = released != 0
	return tr, true, nil
}
