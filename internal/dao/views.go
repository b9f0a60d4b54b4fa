package dao

import (
	"github.com/roach88/dvgov/internal/governance"
	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/timelock"
)

var views = map[string]handler{
	"Ledger.height":  heightView,
	"Ledger.balance": balanceView,
	"DAO.addresses":  addressesView,

	"Token.balanceOf":          tokenView("balance", tokenBalanceOf),
	"Token.getVotes":           tokenView("votes", tokenGetVotes),
	"Token.getPastVotes":       pastVotesView,
	"Token.totalSupply":        totalSupplyView,
	"Token.getPastTotalSupply": pastTotalSupplyView,
	"Token.delegates":          delegatesView,

	"Governance.state":             proposalView(stateField),
	"Governance.proposalSnapshot":  proposalView(snapshotField),
	"Governance.proposalDeadline":  proposalView(deadlineField),
	"Governance.proposalEta":       proposalView(etaField),
	"Governance.proposalProposer":  proposalView(proposerField),
	"Governance.proposalVotes":     proposalView(votesField),
	"Governance.proposal":          proposalView(fullProposal),
	"Governance.proposals":         proposalsView,
	"Governance.hasVoted":          hasVotedView,
	"Governance.getReceipt":        receiptView,
	"Governance.hashProposal":      hashProposalView,
	"Governance.quorum":            quorumView,
	"Governance.quorumNumerator":   settingsView,
	"Governance.votingDelay":       settingsView,
	"Governance.votingPeriod":      settingsView,
	"Governance.proposalThreshold": settingsView,
	"Governance.settings":          settingsView,

	"Timelock.hasRole":            hasRoleView,
	"Timelock.getMinDelay":        minDelayView,
	"Timelock.hashOperationBatch": hashOperationView,
	"Timelock.operation":          operationView,
	"Timelock.isOperation":        operationView,
	"Timelock.isOperationPending": operationView,
	"Timelock.isOperationReady":   operationView,
	"Timelock.isOperationDone":    operationView,
	"Timelock.getReadyBlock":      operationView,

	"Treasury.owner":      treasuryView,
	"Treasury.isReleased": treasuryView,
	"Treasury.balance":    treasuryView,
	"Treasury.info":       treasuryView,
}

func heightView(inv *invocation) (ir.Object, error) {
	return ir.Object{"height": ir.Int(inv.env.Block())}, nil
}

// balance: {account}, the native balance.
func balanceView(inv *invocation) (ir.Object, error) {
	addr, err := inv.args.address("account")
	if err != nil {
		return nil, err
	}
	bal, err := inv.env.Balance(addr)
	if err != nil {
		return nil, err
	}
	return ir.Object{"account": ir.String(addr.Hex()), "balance": ir.String(bal.String())}, nil
}

func addressesView(inv *invocation) (ir.Object, error) {
	out := ir.Object{}
	for _, e := range inv.d.Addresses() {
		out[e.Name] = ir.String(e.Address.Hex())
	}
	return out, nil
}

type accountRead func(dep deployment, inv *invocation, acct ir.Address) (ir.Amount, error)

func tokenBalanceOf(dep deployment, inv *invocation, acct ir.Address) (ir.Amount, error) {
	return dep.tok.BalanceOf(inv.env.Enter(dep.tok.Address()), acct)
}

func tokenGetVotes(dep deployment, inv *invocation, acct ir.Address) (ir.Amount, error) {
	return dep.tok.GetVotes(inv.env.Enter(dep.tok.Address()), acct)
}

// tokenView handles {account} reads returning one amount under field.
func tokenView(field string, read accountRead) handler {
	return func(inv *invocation) (ir.Object, error) {
		dep, err := inv.deployment()
		if err != nil {
			return nil, err
		}
		acct, err := inv.args.address("account")
		if err != nil {
			return nil, err
		}
		amt, err := read(dep, inv, acct)
		if err != nil {
			return nil, err
		}
		return ir.Object{"account": ir.String(acct.Hex()), field: ir.String(amt.String())}, nil
	}
}

// getPastVotes: {account, block}
func pastVotesView(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	acct, err := inv.args.address("account")
	if err != nil {
		return nil, err
	}
	block, err := inv.args.int("block")
	if err != nil {
		return nil, err
	}
	votes, err := dep.tok.GetPastVotes(inv.env.Enter(dep.tok.Address()), acct, block)
	if err != nil {
		return nil, err
	}
	return ir.Object{"account": ir.String(acct.Hex()), "block": ir.Int(block), "votes": ir.String(votes.String())}, nil
}

func totalSupplyView(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	tokEnv := inv.env.Enter(dep.tok.Address())
	info, err := dep.tok.Info(tokEnv)
	if err != nil {
		return nil, err
	}
	supply, err := dep.tok.TotalSupply(tokEnv)
	if err != nil {
		return nil, err
	}
	return ir.Object{
		"name":        ir.String(info.Name),
		"symbol":      ir.String(info.Symbol),
		"totalSupply": ir.String(supply.String()),
	}, nil
}

// getPastTotalSupply: {block}
func pastTotalSupplyView(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	block, err := inv.args.int("block")
	if err != nil {
		return nil, err
	}
	supply, err := dep.tok.GetPastTotalSupply(inv.env.Enter(dep.tok.Address()), block)
	if err != nil {
		return nil, err
	}
	return ir.Object{"block": ir.Int(block), "totalSupply": ir.String(supply.String())}, nil
}

func delegatesView(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	acct, err := inv.args.address("account")
	if err != nil {
		return nil, err
	}
	to, err := dep.tok.Delegates(inv.env.Enter(dep.tok.Address()), acct)
	if err != nil {
		return nil, err
	}
	return ir.Object{"account": ir.String(acct.Hex()), "delegatee": ir.String(to.Hex())}, nil
}

type proposalField func(dep deployment, inv *invocation, id ir.Hash) (ir.Object, error)

// proposalView handles reads keyed by {proposalId} or by batch args plus
// {description}.
func proposalView(read proposalField) handler {
	return func(inv *invocation) (ir.Object, error) {
		dep, err := inv.deployment()
		if err != nil {
			return nil, err
		}
		id, err := inv.proposalID()
		if err != nil {
			return nil, err
		}
		out, err := read(dep, inv, id)
		if err != nil {
			return nil, err
		}
		out["proposalId"] = ir.String(id.Hex())
		return out, nil
	}
}

func stateField(dep deployment, inv *invocation, id ir.Hash) (ir.Object, error) {
	st, err := dep.gov.State(inv.env.Enter(dep.gov.Address()), id)
	if err != nil {
		return nil, err
	}
	return ir.Object{"state": ir.String(st.String())}, nil
}

func snapshotField(dep deployment, inv *invocation, id ir.Hash) (ir.Object, error) {
	n, err := dep.gov.ProposalSnapshot(inv.env.Enter(dep.gov.Address()), id)
	return ir.Object{"snapshot": ir.Int(n)}, err
}

func deadlineField(dep deployment, inv *invocation, id ir.Hash) (ir.Object, error) {
	n, err := dep.gov.ProposalDeadline(inv.env.Enter(dep.gov.Address()), id)
	return ir.Object{"deadline": ir.Int(n)}, err
}

func etaField(dep deployment, inv *invocation, id ir.Hash) (ir.Object, error) {
	n, err := dep.gov.ProposalEta(inv.env.Enter(dep.gov.Address()), id)
	return ir.Object{"eta": ir.Int(n)}, err
}

func proposerField(dep deployment, inv *invocation, id ir.Hash) (ir.Object, error) {
	a, err := dep.gov.ProposalProposer(inv.env.Enter(dep.gov.Address()), id)
	return ir.Object{"proposer": ir.String(a.Hex())}, err
}

func votesField(dep deployment, inv *invocation, id ir.Hash) (ir.Object, error) {
	v, err := dep.gov.ProposalVotes(inv.env.Enter(dep.gov.Address()), id)
	if err != nil {
		return nil, err
	}
	return votesObject(v), nil
}

func votesObject(v governance.Votes) ir.Object {
	return ir.Object{
		"againstVotes": ir.String(v.Against.String()),
		"forVotes":     ir.String(v.For.String()),
		"abstainVotes": ir.String(v.Abstain.String()),
	}
}

func fullProposal(dep deployment, inv *invocation, id ir.Hash) (ir.Object, error) {
	g := inv.env.Enter(dep.gov.Address())
	p, err := dep.gov.Proposal(g, id)
	if err != nil {
		return nil, err
	}
	st, err := dep.gov.State(g, id)
	if err != nil {
		return nil, err
	}
	out := p.Batch.Object()
	out["state"] = ir.String(st.String())
	out["proposer"] = ir.String(p.Proposer.Hex())
	out["description"] = ir.String(p.Description)
	out["descriptionHash"] = ir.String(p.DescriptionHash.Hex())
	out["snapshot"] = ir.Int(p.Snapshot)
	out["deadline"] = ir.Int(p.Deadline)
	out["eta"] = ir.Int(p.ETA)
	for k, v := range votesObject(governance.Votes{Against: p.AgainstVotes, For: p.ForVotes, Abstain: p.AbstainVotes}) {
		out[k] = v
	}
	return out, nil
}

func proposalsView(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	g := inv.env.Enter(dep.gov.Address())
	ids, err := dep.gov.ProposalIDs(g)
	if err != nil {
		return nil, err
	}
	list := make(ir.List, 0, len(ids))
	for _, id := range ids {
		st, err := dep.gov.State(g, id)
		if err != nil {
			return nil, err
		}
		list = append(list, ir.Object{"proposalId": ir.String(id.Hex()), "state": ir.String(st.String())})
	}
	return ir.Object{"proposals": list}, nil
}

// hasVoted: {proposalId, account}
func hasVotedView(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	id, err := inv.proposalID()
	if err != nil {
		return nil, err
	}
	acct, err := inv.args.address("account")
	if err != nil {
		return nil, err
	}
	voted, err := dep.gov.HasVoted(inv.env.Enter(dep.gov.Address()), id, acct)
	if err != nil {
		return nil, err
	}
	return ir.Object{"proposalId": ir.String(id.Hex()), "account": ir.String(acct.Hex()), "hasVoted": ir.Bool(voted)}, nil
}

func receiptView(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	id, err := inv.proposalID()
	if err != nil {
		return nil, err
	}
	acct, err := inv.args.address("account")
	if err != nil {
		return nil, err
	}
	r, found, err := dep.gov.GetReceipt(inv.env.Enter(dep.gov.Address()), id, acct)
	if err != nil {
		return nil, err
	}
	out := ir.Object{"proposalId": ir.String(id.Hex()), "account": ir.String(acct.Hex()), "hasVoted": ir.Bool(found)}
	if found {
		out["support"] = ir.String(governance.Support(r.Support).String())
		out["weight"] = ir.String(r.Weight.String())
		out["reason"] = ir.String(r.Reason)
		out["block"] = ir.Int(r.Block)
	}
	return out, nil
}

// hashProposal: batch args plus {description}. Needs no deployment.
func hashProposalView(inv *invocation) (ir.Object, error) {
	b, err := inv.args.batch()
	if err != nil {
		return nil, err
	}
	desc, err := inv.args.str("description")
	if err != nil {
		return nil, err
	}
	id, err := governance.HashProposal(b, ir.DescriptionHash(desc))
	if err != nil {
		return nil, err
	}
	return ir.Object{
		"proposalId":      ir.String(id.Hex()),
		"descriptionHash": ir.String(ir.DescriptionHash(desc).Hex()),
	}, nil
}

// quorum: {block}
func quorumView(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	block, err := inv.args.int("block")
	if err != nil {
		return nil, err
	}
	q, err := dep.gov.Quorum(inv.env.Enter(dep.gov.Address()), block)
	if err != nil {
		return nil, err
	}
	return ir.Object{"block": ir.Int(block), "quorum": ir.String(q.String())}, nil
}

// settingsView answers every governor settings read with the full record.
func settingsView(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	g := inv.env.Enter(dep.gov.Address())
	s, err := dep.gov.Settings(g)
	if err != nil {
		return nil, err
	}
	numerator, err := dep.gov.QuorumNumerator(g)
	if err != nil {
		return nil, err
	}
	return ir.Object{
		"name":              ir.String(s.Name),
		"votingDelay":       ir.Int(s.VotingDelay),
		"votingPeriod":      ir.Int(s.VotingPeriod),
		"proposalThreshold": ir.String(s.ProposalThreshold.String()),
		"quorumNumerator":   ir.Int(numerator),
		"gracePeriod":       ir.Int(s.GracePeriod),
		"timelock":          ir.String(s.Timelock.Hex()),
		"token":             ir.String(s.Token.Hex()),
		"admin":             ir.String(s.Admin.Hex()),
	}, nil
}

// hasRole: {role, account}
func hasRoleView(inv *invocation) (ir.Object, error) {
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
	ok, err := dep.tl.HasRole(inv.env.Enter(dep.tl.Address()), role, acct)
	if err != nil {
		return nil, err
	}
	return ir.Object{"role": ir.String(timelock.RoleName(role)), "account": ir.String(acct.Hex()), "hasRole": ir.Bool(ok)}, nil
}

func minDelayView(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	d, err := dep.tl.GetMinDelay(inv.env.Enter(dep.tl.Address()))
	if err != nil {
		return nil, err
	}
	return ir.Object{"minDelay": ir.Int(d)}, nil
}

// hashOperationBatch: batch args plus {predecessor?, salt?}.
func hashOperationView(inv *invocation) (ir.Object, error) {
	b, pred, salt, err := inv.operation()
	if err != nil {
		return nil, err
	}
	id, err := timelock.HashOperationBatch(b, pred, salt)
	if err != nil {
		return nil, err
	}
	return ir.Object{"operationId": ir.String(id.Hex())}, nil
}

// operationView answers the operation predicates for {operationId} with
// one object: isOperation, pending, ready, done and readyBlock.
func operationView(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	id, err := inv.args.hash("operationId")
	if err != nil {
		return nil, err
	}
	tl := inv.env.Enter(dep.tl.Address())
	op, found, err := dep.tl.Operation(tl, id)
	if err != nil {
		return nil, err
	}
	ready, err := dep.tl.IsOperationReady(tl, id)
	if err != nil {
		return nil, err
	}
	return ir.Object{
		"operationId":        ir.String(id.Hex()),
		"isOperation":        ir.Bool(found),
		"isOperationPending": ir.Bool(found && !op.Done),
		"isOperationReady":   ir.Bool(ready),
		"isOperationDone":    ir.Bool(found && op.Done),
		"readyBlock":         ir.Int(op.ReadyBlock),
	}, nil
}

func treasuryView(inv *invocation) (ir.Object, error) {
	dep, err := inv.deployment()
	if err != nil {
		return nil, err
	}
	tr := inv.env.Enter(dep.tr.Address())
	owner, err := dep.tr.Owner(tr)
	if err != nil {
		return nil, err
	}
	released, err := dep.tr.IsReleased(tr)
	if err != nil {
		return nil, err
	}
	bal, err := dep.tr.Balance(tr)
	if err != nil {
		return nil, err
	}
	return ir.Object{
		"owner":      ir.String(owner.Hex()),
		"isReleased": ir.Bool(released),
		"balance":    ir.String(bal.String()),
	}, nil
}
