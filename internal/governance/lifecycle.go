package governance

import (
	"fmt"

	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/ledger"
	"github.com/roach88/dvgov/internal/store"
)

// Propose creates a proposal for batch b. The caller needs at least the
// proposal threshold of voting power at the block before this one.
func (g *Governor) Propose(env *ledger.Env, b ir.Batch, description string) (ir.Hash, error) {
	proposer := env.Caller()
	descHash := ir.DescriptionHash(description)
	id, err := HashProposal(b, descHash)
	if err != nil {
		return ir.Hash{}, err
	}

	settings, err := g.Settings(env)
	if err != nil {
		return ir.Hash{}, err
	}
	tx := env.Store()
	if _, found, err := tx.ReadProposal(g.addr, id); err != nil {
		return ir.Hash{}, err
	} else if found {
		return ir.Hash{}, ir.Errorf(ir.CodeInvalidState, "proposal %s already exists", id).With("proposal", id.Hex())
	}

	block := env.Block()
	votes, err := g.token.GetPastVotes(env.Enter(g.token.Address()), proposer, block-1)
	if err != nil {
		return ir.Hash{}, err
	}
	if votes.Cmp(settings.ProposalThreshold) < 0 {
		return ir.Hash{}, ir.Errorf(ir.CodeThresholdNotMet,
			"%s has %s votes, proposal threshold is %s", proposer, votes, settings.ProposalThreshold)
	}

	snapshot, err := ir.AddBlocks(block, settings.VotingDelay)
	if err != nil {
		return ir.Hash{}, err
	}
	deadline, err := ir.AddBlocks(snapshot, settings.VotingPeriod)
	if err != nil {
		return ir.Hash{}, err
	}
	p := store.Proposal{
		Governor:        g.addr,
		ID:              id,
		Proposer:        proposer,
		Batch:           b,
		Description:     description,
		DescriptionHash: descHash,
		CreatedBlock:    block,
		Snapshot:        snapshot,
		Deadline:        deadline,
	}
	if err := tx.InsertProposal(p); err != nil {
		return ir.Hash{}, err
	}

	fields := b.Object()
	fields["proposalId"] = ir.String(id.Hex())
	fields["proposer"] = ir.String(proposer.Hex())
	fields["description"] = ir.String(description)
	fields["voteStart"] = ir.Int(p.Snapshot)
	fields["voteEnd"] = ir.Int(p.Deadline)
	env.Emit("ProposalCreated", fields)
	env.Logger().Info("proposal created",
		"proposal", id.Hex(),
		"proposer", proposer.Hex(),
		"snapshot", p.Snapshot,
		"deadline", p.Deadline)
	return id, nil
}

// CastVote records the caller's vote with no reason.
func (g *Governor) CastVote(env *ledger.Env, id ir.Hash, support Support) (ir.Amount, error) {
	return g.CastVoteWithReason(env, id, support, "")
}

// CastVoteWithReason records the caller's vote while the proposal is
// Active. The weight is the caller's voting power at the snapshot block.
func (g *Governor) CastVoteWithReason(env *ledger.Env, id ir.Hash, support Support, reason string) (ir.Amount, error) {
	voter := env.Caller()
	if !support.Valid() {
		return ir.Amount{}, ir.Errorf(ir.CodeInvalidArgument, "invalid vote support %d", int64(support))
	}
	p, err := g.Proposal(env, id)
	if err != nil {
		return ir.Amount{}, err
	}
	st, err := g.state(env, p)
	if err != nil {
		return ir.Amount{}, err
	}
	if st != Active {
		return ir.Amount{}, ir.Errorf(ir.CodeInvalidState, "proposal %s is %s, votes need Active", id, st).
			With("proposal", id.Hex()).
			With("state", st.String())
	}

	tx := env.Store()
	if _, found, err := tx.ReadReceipt(g.addr, id, voter); err != nil {
		return ir.Amount{}, err
	} else if found {
		return ir.Amount{}, ir.Errorf(ir.CodeAlreadyVoted, "%s already voted on %s", voter, id).
			With("proposal", id.Hex())
	}

	weight, err := g.token.GetPastVotes(env.Enter(g.token.Address()), voter, p.Snapshot)
	if err != nil {
		return ir.Amount{}, err
	}
	switch support {
	case Against:
		p.AgainstVotes = p.AgainstVotes.Add(weight)
	case For:
		p.ForVotes = p.ForVotes.Add(weight)
	case Abstain:
		p.AbstainVotes = p.AbstainVotes.Add(weight)
	}
	if err := tx.UpdateProposal(p); err != nil {
		return ir.Amount{}, err
	}
	if err := tx.InsertReceipt(store.Receipt{
		Governor:   g.addr,
		ProposalID: id,
		Voter:      voter,
		Support:    int64(support),
		Weight:     weight,
		Reason:     reason,
		Block:      env.Block(),
	}); err != nil {
		return ir.Amount{}, err
	}

	env.Emit("VoteCast", ir.Object{
		"voter":      ir.String(voter.Hex()),
		"proposalId": ir.String(id.Hex()),
		"support":    ir.Int(support),
		"weight":     ir.String(weight.String()),
		"reason":     ir.String(reason),
	})
	env.Logger().Debug("vote cast", "proposal", id.Hex(), "voter", voter.Hex(), "support", support.String(), "weight", weight.String())
	return weight, nil
}

// Queue schedules a Succeeded proposal on the timelock with the timelock's
// minimum delay, salted with the description hash.
func (g *Governor) Queue(env *ledger.Env, b ir.Batch, descriptionHash ir.Hash) (ir.Hash, error) {
	id, p, err := g.proposalFor(env, b, descriptionHash)
	if err != nil {
		return ir.Hash{}, err
	}
	if err := g.requireState(env, p, Succeeded); err != nil {
		return ir.Hash{}, err
	}

	tlEnv := env.Enter(g.timelock.Address())
	delay, err := g.timelock.GetMinDelay(tlEnv)
	if err != nil {
		return ir.Hash{}, err
	}
	opID, err := g.timelock.ScheduleBatch(tlEnv, b, ir.ZeroHash, descriptionHash, delay)
	if err != nil {
		return ir.Hash{}, fmt.Errorf("queue %s: %w", id.Hex(), err)
	}
	op, found, err := g.timelock.Operation(tlEnv, opID)
	if err != nil {
		return ir.Hash{}, err
	}
	if !found {
		return ir.Hash{}, fmt.Errorf("queue %s: scheduled operation %s not found", id.Hex(), opID.Hex())
	}

	p.Queued = true
	p.ETA = op.ReadyBlock
	if err := env.Store().UpdateProposal(p); err != nil {
		return ir.Hash{}, err
	}
	env.Emit("ProposalQueued", ir.Object{"proposalId": ir.String(id.Hex()), "eta": ir.Int(p.ETA)})
	env.Logger().Info("proposal queued", "proposal", id.Hex(), "operation", opID.Hex(), "eta", p.ETA)
	return id, nil
}

// Execute runs a Queued proposal through the timelock once its operation
// is ready.
func (g *Governor) Execute(env *ledger.Env, b ir.Batch, descriptionHash ir.Hash) (ir.Hash, error) {
	id, p, err := g.proposalFor(env, b, descriptionHash)
	if err != nil {
		return ir.Hash{}, err
	}
	if err := g.requireState(env, p, Queued); err != nil {
		return ir.Hash{}, err
	}
	if p.ETA > env.Block() {
		return ir.Hash{}, ir.Errorf(ir.CodeNotReady, "proposal %s is ready at block %d, current block %d", id, p.ETA, env.Block()).
			With("proposal", id.Hex())
	}

	p.Executed = true
	if err := env.Store().UpdateProposal(p); err != nil {
		return ir.Hash{}, err
	}
	env.Emit("ProposalExecuted", ir.Object{"proposalId": ir.String(id.Hex())})
	if err := g.timelock.ExecuteBatch(env.Enter(g.timelock.Address()), b, ir.ZeroHash, descriptionHash); err != nil {
		return ir.Hash{}, fmt.Errorf("execute %s: %w", id.Hex(), err)
	}
	env.Logger().Info("proposal executed", "proposal", id.Hex(), "calls", b.Len())
	return id, nil
}

// Cancel cancels a Pending or Active proposal. The proposer, the
// governance admin and the timelock may cancel.
func (g *Governor) Cancel(env *ledger.Env, b ir.Batch, descriptionHash ir.Hash) (ir.Hash, error) {
	id, p, err := g.proposalFor(env, b, descriptionHash)
	if err != nil {
		return ir.Hash{}, err
	}
	settings, err := g.Settings(env)
	if err != nil {
		return ir.Hash{}, err
	}
	caller := env.Caller()
	if caller != p.Proposer && caller != settings.Admin && caller != settings.Timelock {
		return ir.Hash{}, ir.Errorf(ir.CodeUnauthorized, "%s may not cancel proposal %s", caller, id).
			With("proposal", id.Hex())
	}
	if err := g.requireState(env, p, Pending, Active); err != nil {
		return ir.Hash{}, err
	}

	p.Canceled = true
	if err := env.Store().UpdateProposal(p); err != nil {
		return ir.Hash{}, err
	}
	env.Emit("ProposalCanceled", ir.Object{"proposalId": ir.String(id.Hex())})
	env.Logger().Info("proposal canceled", "proposal", id.Hex(), "by", caller.Hex())
	return id, nil
}

func (g *Governor) proposalFor(env *ledger.Env, b ir.Batch, descriptionHash ir.Hash) (ir.Hash, store.Proposal, error) {
	id, err := HashProposal(b, descriptionHash)
	if err != nil {
		return ir.Hash{}, store.Proposal{}, err
	}
	p, err := g.Proposal(env, id)
	if err != nil {
		return ir.Hash{}, store.Proposal{}, err
	}
	return id, p, nil
}

func (g *Governor) requireState(env *ledger.Env, p store.Proposal, allowed ...State) error {
	st, err := g.state(env, p)
	if err != nil {
		return err
	}
	for _, a := range allowed {
		if st == a {
			return nil
		}
	}
	return ir.Errorf(ir.CodeInvalidState, "proposal %s is %s", p.ID, st).
		With("proposal", p.ID.Hex()).
		With("state", st.String())
}
