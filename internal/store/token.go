package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/dvgov/internal/ir"
)

// TokenInfo is the static record of a voting token.
type TokenInfo struct {
	Address     ir.Address
	Name        string
	Symbol      string
	TotalSupply ir.Amount
}

// WriteToken inserts or updates a token record.
func (t *Tx) WriteToken(info TokenInfo) error {
	_, err := t.exec(`
		INSERT INTO tokens (address, name, symbol, total_supply) VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET total_supply = excluded.total_supply
	`, info.Address, info.Name, info.Symbol, info.TotalSupply)
	if err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// ReadToken returns the token record. found is false for an unknown address.
func (t *Tx) ReadToken(addr ir.Address) (info TokenInfo, found bool, err error) {
	err = t.queryRow(`
		SELECT address, name, symbol, total_supply FROM tokens WHERE address = ?
	`, addr).Scan(&info.Address, &info.Name, &info.Symbol, &info.TotalSupply)
	if errors.Is(err, sql.ErrNoRows) {
		return TokenInfo{}, false, nil
	}
	if err != nil {
		return TokenInfo{}, false, fmt.Errorf("read token: %w", err)
	}
	return info, true, nil
}

// TokenBalance returns a holder's token balance (zero if never credited).
func (t *Tx) TokenBalance(token, holder ir.Address) (ir.Amount, error) {
	var amt ir.Amount
	err := t.queryRow(`
		SELECT amount FROM token_balances WHERE token = ? AND holder = ?
	`, token, holder).Scan(&amt)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Amount{}, nil
	}
	if err != nil {
		return ir.Amount{}, fmt.Errorf("read token balance: %w", err)
	}
	return amt, nil
}

// SetTokenBalance overwrites a holder's token balance.
func (t *Tx) SetTokenBalance(token, holder ir.Address, amt ir.Amount) error {
	_, err := t.exec(`
		INSERT INTO token_balances (token, holder, amount) VALUES (?, ?, ?)
		ON CONFLICT(token, holder) DO UPDATE SET amount = excluded.amount
	`, token, holder, amt)
	if err != nil {
		return fmt.Errorf("write token balance: %w", err)
	}
	return nil
}

// Delegate returns the delegatee of holder, or the zero address if the
// holder never delegated.
func (t *Tx) Delegate(token, holder ir.Address) (ir.Address, error) {
	var d ir.Address
	err := t.queryRow(`
		SELECT delegatee FROM token_delegates WHERE token = ? AND holder = ?
	`, token, holder).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.ZeroAddress, nil
	}
	if err != nil {
		return ir.ZeroAddress, fmt.Errorf("read delegate: %w", err)
	}
	return d, nil
}

// SetDelegate records holder's delegatee.
func (t *Tx) SetDelegate(token, holder, delegatee ir.Address) error {
	_, err := t.exec(`
		INSERT INTO token_delegates (token, holder, delegatee) VALUES (?, ?, ?)
		ON CONFLICT(token, holder) DO UPDATE SET delegatee = excluded.delegatee
	`, token, holder, delegatee)
	if err != nil {
		return fmt.Errorf("write delegate: %w", err)
	}
	return nil
}

// Checkpoint is a value recorded from a block onwards.
type Checkpoint struct {
	Block int64
	Value ir.Amount
}

// VotesAt returns the latest checkpoint of account at or before block, or
// zero if there is none.
func (t *Tx) VotesAt(token, account ir.Address, block int64) (ir.Amount, error) {
	var amt ir.Amount
	err := t.queryRow(`
		SELECT votes FROM vote_checkpoints
		WHERE token = ? AND account = ? AND block <= ?
		ORDER BY block DESC LIMIT 1
	`, token, account, block).Scan(&amt)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Amount{}, nil
	}
	if err != nil {
		return ir.Amount{}, fmt.Errorf("read votes: %w", err)
	}
	return amt, nil
}

// WriteVotes writes the checkpoint of account at block. A second write in
// the same block overwrites the first.
func (t *Tx) WriteVotes(token, account ir.Address, block int64, votes ir.Amount) error {
	_, err := t.exec(`
		INSERT INTO vote_checkpoints (token, account, block, votes) VALUES (?, ?, ?, ?)
		ON CONFLICT(token, account, block) DO UPDATE SET votes = excluded.votes
	`, token, account, block, votes)
	if err != nil {
		return fmt.Errorf("write votes: %w", err)
	}
	return nil
}

// VoteCheckpoints returns every checkpoint of account ordered by block.
func (t *Tx) VoteCheckpoints(token, account ir.Address) ([]Checkpoint, error) {
	rows, err := t.query(`
		SELECT block, votes FROM vote_checkpoints
		WHERE token = ? AND account = ?
		ORDER BY block ASC
	`, token, account)
	if err != nil {
		return nil, fmt.Errorf("query vote checkpoints: %w", err)
	}
	defer rows.Close()
	return scanCheckpoints(rows)
}

// WriteSupply writes the total supply checkpoint at block.
func (t *Tx) WriteSupply(token ir.Address, block int64, supply ir.Amount) error {
	_, err := t.exec(`
		INSERT INTO supply_checkpoints (token, block, supply) VALUES (?, ?, ?)
		ON CONFLICT(token, block) DO UPDATE SET supply = excluded.supply
	`, token, block, supply)
	if err != nil {
		return fmt.Errorf("write supply: %w", err)
	}
	return nil
}

// SupplyCheckpoints returns every total supply checkpoint ordered by block.
func (t *Tx) SupplyCheckpoints(token ir.Address) ([]Checkpoint, error) {
	rows, err := t.query(`
		SELECT block, supply FROM supply_checkpoints
		WHERE token = ?
		ORDER BY block ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query supply checkpoints: %w", err)
	}
	defer rows.Close()
	return scanCheckpoints(rows)
}

func scanCheckpoints(rows *sql.Rows) ([]Checkpoint, error) {
	cps := []Checkpoint{}
	for rows.Next() {
		var cp Checkpoint
		if err := rows.Scan(&cp.Block, &cp.Value); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cps = append(cps, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return cps, nil
}
