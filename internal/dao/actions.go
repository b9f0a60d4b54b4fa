package dao

import (
	"github.com/roach88/dvgov/internal/governance"
	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/ledger"
	"github.com/roach88/dvgov/internal/timelock"
)

// actions maps action names to handlers. Each runs in the frame of the
// signing account; contract methods are entered from that frame so the
// signer is the caller.
var actions = map[string]handler{
	ActionDeploy: deployAction,

	"Ledger.mine":     mineAction,
	"Ledger.fund":     fundAction,
	"Ledger.transfer": nativeTransferAction,

	"Token.transfer": tokenTransferAction,
	"Token.delegate": delegateAction,

	"Governance.propose":            proposeAction,
	"Governance.castVote":           castVoteAction,
	"Governance.castVoteWithReason": castVoteAction,
	"Governance.queue":              queueAction,
	"Governance.execute":            executeAction,
	"Governance.cancel":             cancelAction,

	"Timelock.schedule":     scheduleAction,
	"Timelock.execute":      timelockExecuteAction,
	"Timelock.cancel":       timelockCancelAction,
	"Timelock.grantRole":    roleAction(roleGrant),
	"Timelock.revokeRole":   roleAction(roleRevoke),
	"Timelock.renounceRole": roleAction(roleRenounce),
	"Timelock.updateDelay":  updateDelayAction,

	"Treasury.release":           releaseAction,
	"Treasury.transferOwnership": transferOwnershipAction,
}

// mine: {blocks}
func mineAction(inv *invocation) (ir.Object, error) {
	n, err := inv.args.optInt("blocks", 1)
	if err != nil {
		return nil, err
	}
	if err := inv.env.Mine(n); err != nil {
		return nil, err
	}
	return ir.Object{"blocks": ir.Int(n), "height": ir.Int(inv.env.Block() + n - 1)}, nil
}

// fund: {account, amount}. Signed by the zero address only.
func fundAction(inv *invocation) (ir.Object, error) {
	if inv.env.Self() != ir.ZeroAddress {
		return nil, ir.Errorf(ir.CodeUnauthorized, "only the zero address mints native value")
	}
	to, err := inv.args.address("account")
	if err != nil {
		return nil, err
	}
	amt, err := inv.args.amount("amount")
	if err != nil {
		return nil, err
	}
	if err := inv.env.Mint(to, amt); err != nil {
		return nil, err
	}
	return ir.Object{"account": ir.String(to.Hex()), "amount": ir.String(amt.String())}, nil
}

// transfer: {to, amount, calldata?} routes native value like any call.
func nativeTransferAction(inv *invocation) (ir.Object, error) {
	to, err := inv.args.address("to")
	if err != nil {
		return nil, err
	}
	amt, err := inv.args.optAmount("amount")
	if err != nil {
		return nil, err
	}
	var data []byte
	if inv.args.has("calldata") {
		s, err := inv.args.str("calldata")
		if err != nil {
			return nil, err
		}
		if data, err = ir.DecodeHex(s); err != nil {
			return nil, badArg("calldata", "%v", err)
		}
	}
	if err := inv.env.Call(to, amt, data); err != nil {
		return nil, err
	}
	return ir.Object{}, nil
}

func tokenTransferAction(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	to, err := inv.args.address("to")
	if err != nil {
		return nil, err
	}
	amt, err := inv.args.amount("amount")
	if err != nil {
		return nil, err
	}
	return ir.Object{}, dep.tok.Transfer(inv.env.Enter(dep.tok.Address()), to, amt)
}

// delegate: {delegatee}, defaulting to the signer.
func delegateAction(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	delegatee := inv.env.Self()
	if inv.args.has("delegatee") {
		if delegatee, err = inv.args.address("delegatee"); err != nil {
			return nil, err
		}
	}
	if err := dep.tok.Delegate(inv.env.Enter(dep.tok.Address()), delegatee); err != nil {
		return nil, err
	}
	return ir.Object{"delegatee": ir.String(delegatee.Hex())}, nil
}

// propose: batch args plus {description}.
func proposeAction(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	b, err := inv.args.batch()
	if err != nil {
		return nil, err
	}
	desc, err := inv.args.str("description")
	if err != nil {
		return nil, err
	}
	g := inv.env.Enter(dep.gov.Address())
	id, err := dep.gov.Propose(g, b, desc)
	if err != nil {
		return nil, err
	}
	p, err := dep.gov.Proposal(g, id)
	if err != nil {
		return nil, err
	}
	return ir.Object{
		"proposalId": ir.String(id.Hex()),
		"snapshot":   ir.Int(p.Snapshot),
		"deadline":   ir.Int(p.Deadline),
	}, nil
}

// castVote: {proposalId, support, reason?}. Support is For, Against,
// Abstain or 0..2.
func castVoteAction(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	id, err := inv.proposalID()
	if err != nil {
		return nil, err
	}
	support, err := inv.args.support("support")
	if err != nil {
		return nil, err
	}
	reason, err := inv.args.optStr("reason", "")
	if err != nil {
		return nil, err
	}
	weight, err := dep.gov.CastVoteWithReason(inv.env.Enter(dep.gov.Address()), id, support, reason)
	if err != nil {
		return nil, err
	}
	return ir.Object{
		"proposalId": ir.String(id.Hex()),
		"support":    ir.String(support.String()),
		"weight":     ir.String(weight.String()),
	}, nil
}

// proposalID reads {proposalId}, or derives it from batch args plus
// {description}.
func (inv *invocation) proposalID() (ir.Hash, error) {
	if inv.args.has("proposalId") {
		return inv.args.hash("proposalId")
	}
	b, descHash, err := inv.proposalBatch()
	if err != nil {
		return ir.Hash{}, err
	}
	return governance.HashProposal(b, descHash)
}

// proposalBatch returns the batch and description hash named by the args:
// either {proposalId} of a stored proposal or the batch args themselves.
func (inv *invocation) proposalBatch() (ir.Batch, ir.Hash, error) {
	dep, err := inv.deployment()
	if err != nil {
		return ir.Batch{}, ir.Hash{}, err
	}
	if inv.args.has("proposalId") {
		id, err := inv.args.hash("proposalId")
		if err != nil {
			return ir.Batch{}, ir.Hash{}, err
		}
		p, err := dep.gov.Proposal(inv.env.Enter(dep.gov.Address()), id)
		if err != nil {
			return ir.Batch{}, ir.Hash{}, err
		}
		return p.Batch, p.DescriptionHash, nil
	}
	b, err := inv.args.batch()
	if err != nil {
		return ir.Batch{}, ir.Hash{}, err
	}
	if inv.args.has("descriptionHash") {
		h, err := inv.args.hash("descriptionHash")
		return b, h, err
	}
	desc, err := inv.args.str("description")
	if err != nil {
		return ir.Batch{}, ir.Hash{}, err
	}
	return b, ir.DescriptionHash(desc), nil
}

type lifecycleFunc func(dep deployment, env *ledger.Env, b ir.Batch, descHash ir.Hash) (ir.Hash, error)

func lifecycle(fn lifecycleFunc) handler {
	return func(inv *invocation) (ir.Object, error) {
		dep, err := inv.deployment()
		if err != nil {
			return nil, err
		}
		b, descHash, err := inv.proposalBatch()
		if err != nil {
			return nil, err
		}
		g := inv.env.Enter(dep.gov.Address())
		id, err := fn(dep, g, b, descHash)
		if err != nil {
			return nil, err
		}
		st, err := dep.gov.State(g, id)
		if err != nil {
			return nil, err
		}
		return ir.Object{"proposalId": ir.String(id.Hex()), "state": ir.String(st.String())}, nil
	}
}

var (
	queueAction = lifecycle(func(dep deployment, env *ledger.Env, b ir.Batch, dh ir.Hash) (ir.Hash, error) {
		return dep.gov.Queue(env, b, dh)
	})
	executeAction = lifecycle(func(dep deployment, env *ledger.Env, b ir.Batch, dh ir.Hash) (ir.Hash, error) {
		return dep.gov.Execute(env, b, dh)
	})
	cancelAction = lifecycle(func(dep deployment, env *ledger.Env, b ir.Batch, dh ir.Hash) (ir.Hash, error) {
		return dep.gov.Cancel(env, b, dh)
	})
)

// operation reads batch args plus {predecessor?, salt?}.
func (inv *invocation) operation() (ir.Batch, ir.Hash, ir.Hash, error) {
	b, err := inv.args.batch()
	if err != nil {
		return ir.Batch{}, ir.Hash{}, ir.Hash{}, err
	}
	pred, err := inv.args.optHash("predecessor")
	if err != nil {
		return ir.Batch{}, ir.Hash{}, ir.Hash{}, err
	}
	salt, err := inv.args.optHash("salt")
	if err != nil {
		return ir.Batch{}, ir.Hash{}, ir.Hash{}, err
	}
	return b, pred, salt, nil
}

// schedule: batch args plus {predecessor?, salt?, delay}.
func scheduleAction(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	b, pred, salt, err := inv.operation()
	if err != nil {
		return nil, err
	}
	delay, err := inv.args.optInt("delay", 0)
	if err != nil {
		return nil, err
	}
	tl := inv.env.Enter(dep.tl.Address())
	id, err := dep.tl.ScheduleBatch(tl, b, pred, salt, delay)
	if err != nil {
		return nil, err
	}
	ready, err := dep.tl.GetReadyBlock(tl, id)
	if err != nil {
		return nil, err
	}
	return ir.Object{"operationId": ir.String(id.Hex()), "readyBlock": ir.Int(ready)}, nil
}

func timelockExecuteAction(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	b, pred, salt, err := inv.operation()
	if err != nil {
		return nil, err
	}
	id, err := timelock.HashOperationBatch(b, pred, salt)
	if err != nil {
		return nil, err
	}
	if err := dep.tl.ExecuteBatch(inv.env.Enter(dep.tl.Address()), b, pred, salt); err != nil {
		return nil, err
	}
	return ir.Object{"operationId": ir.String(id.Hex())}, nil
}

// cancel: {operationId}
func timelockCancelAction(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	id, err := inv.args.hash("operationId")
	if err != nil {
		return nil, err
	}
	return ir.Object{}, dep.tl.Cancel(inv.env.Enter(dep.tl.Address()), id)
}

type roleOp int

const (
	roleGrant roleOp = iota
	roleRevoke
	roleRenounce
)

// roleAction handles {role, account}; role is a name such as PROPOSER_ROLE
// or a hash.
func roleAction(op roleOp) handler {
	return func(inv *invocation) (ir.Object, error) {
		dep, err := inv.deployment()
		if err != nil {
			return nil, err
		}
		role, err := inv.role("role")
		if err != nil {
			return nil, err
		}
		acct, err := inv.args.address("account")
		if err != nil {
			return nil, err
		}
		tl := inv.env.Enter(dep.tl.Address())
		switch op {
		case roleGrant:
			err = dep.tl.GrantRole(tl, role, acct)
		case roleRevoke:
			err = dep.tl.RevokeRole(tl, role, acct)
		default:
			err = dep.tl.RenounceRole(tl, role, acct)
		}
		if err != nil {
			return nil, err
		}
		return ir.Object{"role": ir.String(timelock.RoleName(role)), "account": ir.String(acct.Hex())}, nil
	}
}

func (inv *invocation) role(key string) (ir.Hash, error) {
	s, err := inv.args.str(key)
	if err != nil {
		return ir.Hash{}, err
	}
	if role, ok := timelock.RoleByName(s); ok {
		return role, nil
	}
	return inv.args.hash(key)
}

// updateDelay: {delay}. Only succeeds when the timelock calls itself, so a
// direct call is recorded as Unauthorized.
func updateDelayAction(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	delay, err := inv.args.int("delay")
	if err != nil {
		return nil, err
	}
	return ir.Object{}, dep.tl.UpdateDelay(inv.env.Enter(dep.tl.Address()), delay)
}

// release: {beneficiary}
func releaseAction(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	to, err := inv.args.address("beneficiary")
	if err != nil {
		return nil, err
	}
	return ir.Object{}, dep.tr.Release(inv.env.Enter(dep.tr.Address()), to)
}

// transferOwnership: {newOwner}
func transferOwnershipAction(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	owner, err := inv.args.address("newOwner")
	if err != nil {
		return nil, err
	}
	return ir.Object{}, dep.tr.TransferOwnership(inv.env.Enter(dep.tr.Address()), owner)
}
