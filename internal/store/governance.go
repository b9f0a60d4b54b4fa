package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/dvgov/internal/ir"
)

// Governor is the settings record of a governance contract.
type Governor struct {
	Address           ir.Address
	Name              string
	Token             ir.Address
	Timelock          ir.Address
	Admin             ir.Address
	VotingDelay       int64
	VotingPeriod      int64
	ProposalThreshold ir.Amount
	GracePeriod       int64
}

// WriteGovernor inserts or replaces the governor settings.
func (t *Tx) WriteGovernor(g Governor) error {
	_, err := t.exec(`
		INSERT INTO governors
		(address, name, token, timelock, admin, voting_delay, voting_period, proposal_threshold, grace_period)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			voting_delay = excluded.voting_delay,
			voting_period = excluded.voting_period,
			proposal_threshold = excluded.proposal_threshold,
			grace_period = excluded.grace_period
	`,
		g.Address,
		g.Name,
		g.Token,
		g.Timelock,
		g.Admin,
		g.VotingDelay,
		g.VotingPeriod,
		g.ProposalThreshold,
		g.GracePeriod,
	)
	if err != nil {
		return fmt.Errorf("write governor: %w", err)
	}
	return nil
}

// ReadGovernor returns the governor settings. found is false for an unknown address.
func (t *Tx) ReadGovernor(addr ir.Address) (g Governor, found bool, err error) {
	err = t.queryRow(`
		SELECT address, name, token, timelock, admin, voting_delay, voting_period, proposal_threshold, grace_period
		FROM governors WHERE address = ?
	`, addr).Scan(
		&g.Address, &g.Name, &g.Token, &g.Timelock, &g.Admin,
		&g.VotingDelay, &g.VotingPeriod, &g.ProposalThreshold, &g.GracePeriod,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Governor{}, false, nil
	}
	if err != nil {
		return Governor{}, false, fmt.Errorf("read governor: %w", err)
	}
	return g, true, nil
}

// QuorumNumeratorAt returns the quorum percentage in effect at block.
func (t *Tx) QuorumNumeratorAt(governor ir.Address, block int64) (int64, error) {
	var n int64
	err := t.queryRow(`
		SELECT numerator FROM quorum_checkpoints
		WHERE governor = ? AND block <= ?
		ORDER BY block DESC LIMIT 1
	`, governor, block).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read quorum numerator: %w", err)
	}
	return n, nil
}

// WriteQuorumNumerator checkpoints a new quorum percentage from block onwards.
func (t *Tx) WriteQuorumNumerator(governor ir.Address, block, numerator int64) error {
	_, err := t.exec(`
		INSERT INTO quorum_checkpoints (governor, block, numerator) VALUES (?, ?, ?)
		ON CONFLICT(governor, block) DO UPDATE SET numerator = excluded.numerator
	`, governor, block, numerator)
	if err != nil {
		return fmt.Errorf("write quorum numerator: %w", err)
	}
	return nil
}

// Proposal is the stored record of a governance proposal. Its state is not
// stored; it is derived from these fields and the current block.
type Proposal struct {
	Governor        ir.Address
	ID              ir.Hash
	Proposer        ir.Address
	Batch           ir.Batch
	Description     string
	DescriptionHash ir.Hash
	CreatedBlock    int64
	Snapshot        int64
	Deadline        int64
	AgainstVotes    ir.Amount
	ForVotes        ir.Amount
	AbstainVotes    ir.Amount
	ETA             int64
	Queued          bool
	Canceled        bool
	Executed        bool
}

// InsertProposal stores a new proposal. Unlike the other writers this is not
// idempotent: a duplicate id is a constraint error the caller checks for first.
func (t *Tx) InsertProposal(p Proposal) error {
	batchJSON, err := marshalBatch(p.Batch)
	if err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}
	_, err = t.exec(`
		INSERT INTO proposals
		(governor, id, proposer, batch, description, description_hash, created_block,
		 snapshot, deadline, against_votes, for_votes, abstain_votes, eta, queued, canceled, executed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.Governor,
		p.ID,
		p.Proposer,
		batchJSON,
		p.Description,
		p.DescriptionHash,
		p.CreatedBlock,
		p.Snapshot,
		p.Deadline,
		p.AgainstVotes,
		p.ForVotes,
		p.AbstainVotes,
		p.ETA,
		boolInt(p.Queued),
		boolInt(p.Canceled),
		boolInt(p.Executed),
	)
	if err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}
	return nil
}

// UpdateProposal rewrites the mutable fields of a proposal: tallies, eta and flags.
func (t *Tx) UpdateProposal(p Proposal) error {
	res, err := t.exec(`
		UPDATE proposals SET
			against_votes = ?, for_votes = ?, abstain_votes = ?,
			eta = ?, queued = ?, canceled = ?, executed = ?
		WHERE governor = ? AND id = ?
	`,
		p.AgainstVotes,
		p.ForVotes,
		p.AbstainVotes,
		p.ETA,
		boolInt(p.Queued),
		boolInt(p.Canceled),
		boolInt(p.Executed),
		p.Governor,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update proposal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update proposal: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update proposal %s: no such row", p.ID)
	}
	return nil
}

// ReadProposal returns a proposal. found is false for an unknown id.
func (t *Tx) ReadProposal(governor ir.Address, id ir.Hash) (p Proposal, found bool, err error) {
	var (
		batchJSON                  string
		queued, canceled, executed int
	)
	err = t.queryRow(`
		SELECT governor, id, proposer, batch, description, description_hash, created_block,
		       snapshot, deadline, against_votes, for_votes, abstain_votes, eta, queued, canceled, executed
		FROM proposals WHERE governor = ? AND id = ?
	`, governor, id).Scan(
		&p.Governor, &p.ID, &p.Proposer, &batchJSON, &p.Description, &p.DescriptionHash,
		&p.CreatedBlock, &p.Snapshot, &p.Deadline, &p.AgainstVotes, &p.ForVotes, &p.AbstainVotes,
		&p.ETA, &queued, &canceled, &executed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Proposal{}, false, nil
	}
	if err != nil {
		return Proposal{}, false, fmt.Errorf("read proposal: %w", err)
	}
	if p.Batch, err = unmarshalBatch(batchJSON); err != nil {
		return Proposal{}, false, fmt.Errorf("read proposal %s: %w", id, err)
	}
	p.Queued = queued != 0
	p.Canceled = canceled != 0
	p.Executed = executed != 0
	return p, true, nil
}

// ProposalIDs returns the ids of every proposal of a governor in creation order.
func (t *Tx) ProposalIDs(governor ir.Address) ([]ir.Hash, error) {
	rows, err := t.query(`
		SELECT id FROM proposals WHERE governor = ?
		ORDER BY created_block ASC, id COLLATE BINARY ASC
	`, governor)
	if err != nil {
		return nil, fmt.Errorf("query proposals: %w", err)
	}
	defer rows.Close()

	ids := []ir.Hash{}
	for rows.Next() {
		var id ir.Hash
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan proposal id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposals: %w", err)
	}
	return ids, nil
}

// Receipt is the per (proposal, voter) vote record.
type Receipt struct {
	Governor   ir.Address
	ProposalID ir.Hash
	Voter      ir.Address
	Support    int64
	Weight     ir.Amount
	Reason     string
	Block      int64
}

// InsertReceipt stores a vote receipt. The primary key enforces at most one
// receipt per (proposal, voter).
func (t *Tx) InsertReceipt(r Receipt) error {
	_, err := t.exec(`
		INSERT INTO receipts (governor, proposal_id, voter, support, weight, reason, block)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.Governor, r.ProposalID, r.Voter, r.Support, r.Weight, r.Reason, r.Block)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

// ReadReceipt returns a vote receipt. found is false if voter has not voted.
func (t *Tx) ReadReceipt(governor ir.Address, proposalID ir.Hash, voter ir.Address) (r Receipt, found bool, err error) {
	err = t.queryRow(`
		SELECT governor, proposal_id, voter, support, weight, reason, block
		FROM receipts WHERE governor = ? AND proposal_id = ? AND voter = ?
	`, governor, proposalID, voter).Scan(
		&r.Governor, &r.ProposalID, &r.Voter, &r.Support, &r.Weight, &r.Reason, &r.Block,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Receipt{}, false, nil
	}
	if err != nil {
		return Receipt{}, false, fmt.Errorf("read receipt: %w", err)
	}
	return r, true, nil
}
