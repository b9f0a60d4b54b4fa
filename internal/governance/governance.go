// Package governance implements the proposal lifecycle state machine.
//
// A proposal is a call batch plus a description. Voting power comes from
// the voting token at the proposal's snapshot block; a proposal that
// reaches quorum with more For than Against votes is queued on the
// timelock and executed through it.
//
// Block conventions, for a transaction executing in block b (views use
// the current height as b):
//
//	b <= snapshot                    Pending
//	snapshot < b <= deadline         Active, castVote accepted
//	b > deadline                     Defeated or Succeeded
//	b > deadline + gracePeriod       Expired if still Succeeded
//	b > eta + gracePeriod            Expired if still Queued
//
// State is never stored. It is recomputed from the proposal record, the
// timelock operation and b on every read.
package governance

import (
	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/ledger"
	"github.com/roach88/dvgov/internal/store"
)

// Kind is the address book kind of a governor.
const Kind = "Governance"

// DefaultGracePeriod is the number of blocks a Succeeded or Queued
// proposal stays actionable before it reads Expired.
const DefaultGracePeriod int64 = 50400

// VotingToken is the voting power source.
type VotingToken interface {
	Address() ir.Address
	GetPastVotes(env *ledger.Env, account ir.Address, block int64) (ir.Amount, error)
	GetPastTotalSupply(env *ledger.Env, block int64) (ir.Amount, error)
}

// Scheduler is the timelock a governor queues and executes through.
type Scheduler interface {
	Address() ir.Address
	GetMinDelay(env *ledger.Env) (int64, error)
	Operation(env *ledger.Env, id ir.Hash) (store.Operation, bool, error)
	ScheduleBatch(env *ledger.Env, b ir.Batch, predecessor, salt ir.Hash, delay int64) (ir.Hash, error)
	ExecuteBatch(env *ledger.Env, b ir.Batch, predecessor, salt ir.Hash) error
}

// Settings configures a governor at deployment.
type Settings struct {
	Name              string
	VotingDelay       int64
	VotingPeriod      int64
	ProposalThreshold ir.Amount

	// QuorumNumerator is the quorum as a percentage of the total supply.
	QuorumNumerator int64

	// GracePeriod defaults to DefaultGracePeriod when zero.
	GracePeriod int64
}

// Governor is a deployed governance contract.
type Governor struct {
	addr     ir.Address
	token    VotingToken
	timelock Scheduler
}

// At returns the governor deployed at addr, wired to its token and timelock.
func At(addr ir.Address, token VotingToken, timelock Scheduler) *Governor {
	return &Governor{addr: addr, token: token, timelock: timelock}
}

// Deploy creates a governor. The deployer becomes the governance admin,
// which may cancel proposals before voting ends.
func Deploy(env *ledger.Env, s Settings, token VotingToken, timelock Scheduler) (*Governor, error) {
	if s.GracePeriod == 0 {
		s.GracePeriod = DefaultGracePeriod
	}
	if s.Name == "" {
		s.Name = Kind
	}
	if s.VotingPeriod == 0 {
		return nil, ir.Errorf(ir.CodeInvalidArgument, "voting period must be positive, got 0")
	}
	for _, span := range []struct {
		name string
		n    int64
	}{
		{"voting delay", s.VotingDelay},
		{"voting period", s.VotingPeriod},
		{"grace period", s.GracePeriod},
	} {
		if err := ir.CheckBlocks(span.name, span.n); err != nil {
			return nil, err
		}
	}
	if s.QuorumNumerator < 0 || s.QuorumNumerator > 100 {
		return nil, ir.Errorf(ir.CodeInvalidArgument, "quorum %d%% is outside 0..100", s.QuorumNumerator)
	}

	g := At(ir.ContractAddress(env.Self(), Kind), token, timelock)
	if err := env.Deploy(g); err != nil {
		return nil, err
	}
	tx := env.Store()
	if err := tx.WriteGovernor(store.Governor{
		Address:           g.addr,
		Name:              s.Name,
		Token:             token.Address(),
		Timelock:          timelock.Address(),
		Admin:             env.Self(),
		VotingDelay:       s.VotingDelay,
		VotingPeriod:      s.VotingPeriod,
		ProposalThreshold: s.ProposalThreshold,
		GracePeriod:       s.GracePeriod,
	}); err != nil {
		return nil, err
	}
	if err := tx.WriteQuorumNumerator(g.addr, env.Block(), s.QuorumNumerator); err != nil {
		return nil, err
	}

	env.Enter(g.addr).Logger().Info("governor deployed",
		"name", s.Name,
		"voting_delay", s.VotingDelay,
		"voting_period", s.VotingPeriod,
		"quorum_percent", s.QuorumNumerator,
		"grace_period", s.GracePeriod)
	return g, nil
}

// Address implements ledger.Contract.
func (g *Governor) Address() ir.Address { return g.addr }

// Kind implements ledger.Contract.
func (g *Governor) Kind() string { return Kind }

// Token returns the voting token.
func (g *Governor) Token() VotingToken { return g.token }

// Timelock returns the timelock the governor executes through.
func (g *Governor) Timelock() Scheduler { return g.timelock }

// Settings returns the stored settings record.
func (g *Governor) Settings(env *ledger.Env) (store.Governor, error) {
	rec, found, err := env.Store().ReadGovernor(g.addr)
	if err != nil {
		return store.Governor{}, err
	}
	if !found {
		return store.Governor{}, ir.Errorf(ir.CodeNotFound, "no governor at %s", g.addr)
	}
	return rec, nil
}

// HashProposal returns the proposal id of (batch, descriptionHash).
func HashProposal(b ir.Batch, descriptionHash ir.Hash) (ir.Hash, error) {
	if err := b.Validate(); err != nil {
		return ir.Hash{}, err
	}
	return ir.ProposalID(b, descriptionHash)
}

// operationID is the timelock operation a proposal queues as.
func operationID(b ir.Batch, descriptionHash ir.Hash) (ir.Hash, error) {
	return ir.OperationID(b, ir.ZeroHash, descriptionHash)
}

// Proposal returns the stored proposal record.
func (g *Governor) Proposal(env *ledger.Env, id ir.Hash) (store.Proposal, error) {
	p, found, err := env.Store().ReadProposal(g.addr, id)
	if err != nil {
		return store.Proposal{}, err
	}
	if !found {
		return store.Proposal{}, ir.Errorf(ir.CodeNotFound, "unknown proposal %s", id).With("proposal", id.Hex())
	}
	return p, nil
}

// ProposalIDs lists every proposal in creation order.
func (g *Governor) ProposalIDs(env *ledger.Env) ([]ir.Hash, error) {
	return env.Store().ProposalIDs(g.addr)
}

// State computes the current state of a proposal.
func (g *Governor) State(env *ledger.Env, id ir.Hash) (State, error) {
	p, err := g.Proposal(env, id)
	if err != nil {
		return 0, err
	}
	return g.state(env, p)
}

func (g *Governor) state(env *ledger.Env, p store.Proposal) (State, error) {
	switch {
	case p.Executed:
		return Executed, nil
	case p.Canceled:
		return Canceled, nil
	}

	b := env.Block()
	if b <= p.Snapshot {
		return Pending, nil
	}
	if b <= p.Deadline {
		return Active, nil
	}

	settings, err := g.Settings(env)
	if err != nil {
		return 0, err
	}

	if p.Queued {
		opID, err := operationID(p.Batch, p.DescriptionHash)
		if err != nil {
			return 0, err
		}
		op, found, err := g.timelock.Operation(env.Enter(g.timelock.Address()), opID)
		if err != nil {
			return 0, err
		}
		switch {
		case !found:
			// Cancelled on the timelock directly.
			return Canceled, nil
		case op.Done:
			return Executed, nil
		case ir.PastWindow(b, p.ETA, settings.GracePeriod):
			return Expired, nil
		}
		return Queued, nil
	}

	ok, err := g.succeeded(env, p)
	if err != nil {
		return 0, err
	}
	if !ok {
		return Defeated, nil
	}
	if ir.PastWindow(b, p.Deadline, settings.GracePeriod) {
		return Expired, nil
	}
	return Succeeded, nil
}

// succeeded applies the resolution rule: quorum reached over For and
// Abstain votes, and strictly more For than Against.
func (g *Governor) succeeded(env *ledger.Env, p store.Proposal) (bool, error) {
	quorum, err := g.Quorum(env, p.Snapshot)
	if err != nil {
		return false, err
	}
	participation := p.ForVotes.Add(p.AbstainVotes)
	return participation.Cmp(quorum) >= 0 && p.ForVotes.Cmp(p.AgainstVotes) > 0, nil
}

// Quorum returns the votes needed at block: the quorum percentage of the
// total supply at that block, truncated. block must be finalized.
func (g *Governor) Quorum(env *ledger.Env, block int64) (ir.Amount, error) {
	supply, err := g.token.GetPastTotalSupply(env.Enter(g.token.Address()), block)
	if err != nil {
		return ir.Amount{}, err
	}
	numerator, err := env.Store().QuorumNumeratorAt(g.addr, block)
	if err != nil {
		return ir.Amount{}, err
	}
	return supply.MulDiv(uint64(numerator), 100), nil
}

// QuorumNumerator returns the quorum percentage in effect at the current block.
func (g *Governor) QuorumNumerator(env *ledger.Env) (int64, error) {
	return env.Store().QuorumNumeratorAt(g.addr, env.Block())
}

// Votes are the tallies of a proposal.
type Votes struct {
	Against ir.Amount
	For     ir.Amount
	Abstain ir.Amount
}

// ProposalVotes returns the tallies of a proposal.
func (g *Governor) ProposalVotes(env *ledger.Env, id ir.Hash) (Votes, error) {
	p, err := g.Proposal(env, id)
	if err != nil {
		return Votes{}, err
	}
	return Votes{Against: p.AgainstVotes, For: p.ForVotes, Abstain: p.AbstainVotes}, nil
}

// ProposalSnapshot returns the block voting power is read at.
func (g *Governor) ProposalSnapshot(env *ledger.Env, id ir.Hash) (int64, error) {
	p, err := g.Proposal(env, id)
	return p.Snapshot, err
}

// ProposalDeadline returns the last block votes are accepted in.
func (g *Governor) ProposalDeadline(env *ledger.Env, id ir.Hash) (int64, error) {
	p, err := g.Proposal(env, id)
	return p.Deadline, err
}

// ProposalEta returns the timelock ready block, 0 until queued.
func (g *Governor) ProposalEta(env *ledger.Env, id ir.Hash) (int64, error) {
	p, err := g.Proposal(env, id)
	return p.ETA, err
}

// ProposalProposer returns the account that created the proposal.
func (g *Governor) ProposalProposer(env *ledger.Env, id ir.Hash) (ir.Address, error) {
	p, err := g.Proposal(env, id)
	return p.Proposer, err
}

// HasVoted reports whether voter has a receipt on the proposal.
func (g *Governor) HasVoted(env *ledger.Env, id ir.Hash, voter ir.Address) (bool, error) {
	if _, err := g.Proposal(env, id); err != nil {
		return false, err
	}
	_, found, err := env.Store().ReadReceipt(g.addr, id, voter)
	return found, err
}

// GetReceipt returns voter's receipt. found is false if voter has not voted.
func (g *Governor) GetReceipt(env *ledger.Env, id ir.Hash, voter ir.Address) (store.Receipt, bool, error) {
	if _, err := g.Proposal(env, id); err != nil {
		return store.Receipt{}, false, err
	}
	return env.Store().ReadReceipt(g.addr, id, voter)
}

// VotingDelay returns the blocks between proposal creation and snapshot.
func (g *Governor) VotingDelay(env *ledger.Env) (int64, error) {
	s, err := g.Settings(env)
	return s.VotingDelay, err
}

// VotingPeriod returns the blocks between snapshot and deadline.
func (g *Governor) VotingPeriod(env *ledger.Env) (int64, error) {
	s, err := g.Settings(env)
	return s.VotingPeriod, err
}

// ProposalThreshold returns the voting power needed to propose.
func (g *Governor) ProposalThreshold(env *ledger.Env) (ir.Amount, error) {
	s, err := g.Settings(env)
	return s.ProposalThreshold, err
}
