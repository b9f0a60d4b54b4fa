package governance

import (
	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/ledger"
)

var (
	selSetVotingDelay        = ir.SelectorOf("setVotingDelay(uint256)")
	selSetVotingPeriod       = ir.SelectorOf("setVotingPeriod(uint256)")
	selSetProposalThreshold  = ir.SelectorOf("setProposalThreshold(uint256)")
	selUpdateQuorumNumerator = ir.SelectorOf("updateQuorumNumerator(uint256)")
)

// Dispatch implements ledger.Contract. The governor only answers the
// settings selectors, which the timelock calls when executing a proposal.
func (g *Governor) Dispatch(env *ledger.Env, data []byte) error {
	if len(data) == 0 {
		return ir.Errorf(ir.CodeInvalidArgument, "governor does not accept native value")
	}
	call, err := ir.DecodeCall(data)
	if err != nil {
		return err
	}
	if err := call.Arity(1); err != nil {
		return err
	}
	switch call.Selector {
	case selSetProposalThreshold:
		return g.SetProposalThreshold(env, call.Args[0].Amount())
	case selSetVotingDelay, selSetVotingPeriod, selUpdateQuorumNumerator:
		n, err := call.Args[0].Uint64()
		if err != nil {
			return err
		}
		switch call.Selector {
		case selSetVotingDelay:
			return g.SetVotingDelay(env, int64(n))
		case selSetVotingPeriod:
			return g.SetVotingPeriod(env, int64(n))
		default:
			return g.UpdateQuorumNumerator(env, int64(n))
		}
	}
	return ir.Errorf(ir.CodeInvalidArgument, "governor: unknown selector %s", call.Selector)
}

// onlyGovernance admits the timelock, i.e. an executed proposal.
func (g *Governor) onlyGovernance(env *ledger.Env) error {
	if env.Caller() != g.timelock.Address() {
		return ir.Errorf(ir.CodeUnauthorized, "governance settings change only through an executed proposal")
	}
	return nil
}

// SetVotingDelay changes the delay applied to new proposals.
func (g *Governor) SetVotingDelay(env *ledger.Env, delay int64) error {
	if err := g.onlyGovernance(env); err != nil {
		return err
	}
	if err := ir.CheckBlocks("voting delay", delay); err != nil {
		return err
	}
	s, err := g.Settings(env)
	if err != nil {
		return err
	}
	old := s.VotingDelay
	s.VotingDelay = delay
	if err := env.Store().WriteGovernor(s); err != nil {
		return err
	}
	env.Emit("VotingDelaySet", ir.Object{"oldVotingDelay": ir.Int(old), "newVotingDelay": ir.Int(delay)})
	return nil
}

// SetVotingPeriod changes the period applied to new proposals.
func (g *Governor) SetVotingPeriod(env *ledger.Env, period int64) error {
	if err := g.onlyGovernance(env); err != nil {
		return err
	}
	if period == 0 {
		return ir.Errorf(ir.CodeInvalidArgument, "voting period must be positive, got 0")
	}
	if err := ir.CheckBlocks("voting period", period); err != nil {
		return err
	}
	s, err := g.Settings(env)
	if err != nil {
		return err
	}
	old := s.VotingPeriod
	s.VotingPeriod = period
	if err := env.Store().WriteGovernor(s); err != nil {
		return err
	}
	env.Emit("VotingPeriodSet", ir.Object{"oldVotingPeriod": ir.Int(old), "newVotingPeriod": ir.Int(period)})
	return nil
}

// SetProposalThreshold changes the voting power needed to propose.
func (g *Governor) SetProposalThreshold(env *ledger.Env, threshold ir.Amount) error {
	if err := g.onlyGovernance(env); err != nil {
		return err
	}
	s, err := g.Settings(env)
	if err != nil {
		return err
	}
	old := s.ProposalThreshold
	s.ProposalThreshold = threshold
	if err := env.Store().WriteGovernor(s); err != nil {
		return err
	}
	env.Emit("ProposalThresholdSet", ir.Object{
		"oldProposalThreshold": ir.String(old.String()),
		"newProposalThreshold": ir.String(threshold.String()),
	})
	return nil
}

// UpdateQuorumNumerator checkpoints a new quorum percentage from the
// current block on. Proposals with an earlier snapshot keep their quorum.
func (g *Governor) UpdateQuorumNumerator(env *ledger.Env, numerator int64) error {
	if err := g.onlyGovernance(env); err != nil {
		return err
	}
	if numerator < 0 || numerator > 100 {
		return ir.Errorf(ir.CodeInvalidArgument, "quorum %d%% is outside 0..100", numerator)
	}
	old, err := g.QuorumNumerator(env)
	if err != nil {
		return err
	}
	if err := env.Store().WriteQuorumNumerator(g.addr, env.Block(), numerator); err != nil {
		return err
	}
	env.Emit("QuorumNumeratorUpdated", ir.Object{"oldQuorumNumerator": ir.Int(old), "newQuorumNumerator": ir.Int(numerator)})
	return nil
}

// SetVotingDelayCalldata encodes setVotingDelay(delay) for proposal batches.
func SetVotingDelayCalldata(delay int64) []byte {
	return ir.EncodeCall("setVotingDelay(uint256)", ir.UintWord(uint64(delay)))
}

// SetVotingPeriodCalldata encodes setVotingPeriod(period).
func SetVotingPeriodCalldata(period int64) []byte {
	return ir.EncodeCall("setVotingPeriod(uint256)", ir.UintWord(uint64(period)))
}

// SetProposalThresholdCalldata encodes setProposalThreshold(threshold).
func SetProposalThresholdCalldata(threshold ir.Amount) []byte {
	return ir.EncodeCall("setProposalThreshold(uint256)", ir.AmountWord(threshold))
}

// UpdateQuorumNumeratorCalldata encodes updateQuorumNumerator(numerator).
func UpdateQuorumNumeratorCalldata(numerator int64) []byte {
	return ir.EncodeCall("updateQuorumNumerator(uint256)", ir.UintWord(uint64(numerator)))
}
