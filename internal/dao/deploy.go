package dao

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/dvgov/internal/config"
	"github.com/roach88/dvgov/internal/governance"
	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/ledger"
	"github.com/roach88/dvgov/internal/store"
	"github.com/roach88/dvgov/internal/timelock"
	"github.com/roach88/dvgov/internal/token"
	"github.com/roach88/dvgov/internal/treasury"
)

// ActionDeploy is the action name of the genesis deployment.
const ActionDeploy = "DAO.deploy"

// Deploy validates g and submits it as one DAO.deploy call signed by the
// genesis deployer.
func (d *DAO) Deploy(ctx context.Context, flow string, g config.Genesis) (ledger.Receipt, error) {
	if err := config.ValidateGenesis(g); err != nil {
		return ledger.Receipt{}, ir.Errorf(ir.CodeInvalidArgument, "%v", err)
	}
	deployer, err := AccountAddress(g.Deployer)
	if err != nil {
		return ledger.Receipt{}, err
	}
	obj, err := GenesisObject(g)
	if err != nil {
		return ledger.Receipt{}, err
	}
	return d.Invoke(ctx, Call{Flow: flow, From: deployer, Action: ActionDeploy, Args: obj})
}

// GenesisObject converts a genesis section to the args object recorded in
// the call log.
func GenesisObject(g config.Genesis) (ir.Object, error) {
	buf, err := json.Marshal(g.Normalized())
	if err != nil {
		return nil, fmt.Errorf("encode genesis: %w", err)
	}
	v, err := ir.ParseJSON(buf)
	if err != nil {
		return nil, fmt.Errorf("encode genesis: %w", err)
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("encode genesis: got %T", v)
	}
	return obj, nil
}

func genesisFromObject(obj ir.Object) (config.Genesis, error) {
	var g config.Genesis
	buf, err := json.Marshal(ir.ToAny(obj))
	if err != nil {
		return g, ir.Errorf(ir.CodeInvalidArgument, "genesis: %v", err)
	}
	if err := json.Unmarshal(buf, &g); err != nil {
		return g, ir.Errorf(ir.CodeInvalidArgument, "genesis: %v", err)
	}
	return g, nil
}

// plan is a genesis with every account and amount resolved.
type plan struct {
	deployer    ir.Address
	funding     []credit
	tokenName   string
	tokenSymbol string
	supply      ir.Amount
	allocations []credit
	timelock    timelock.Config
	settings    governance.Settings
	funds       ir.Amount
}

type credit struct {
	to     ir.Address
	amount ir.Amount
}

func planGenesis(g config.Genesis) (plan, error) {
	deployer, err := AccountAddress(g.Deployer)
	if err != nil {
		return plan{}, err
	}
	book := ContractAddresses(deployer)
	resolve := func(s string) (ir.Address, error) {
		if addr, ok := book[s]; ok {
			return addr, nil
		}
		return AccountAddress(s)
	}
	amount := func(field, s string) (ir.Amount, error) {
		a, err := ir.ParseAmount(s)
		if err != nil {
			return ir.Amount{}, ir.Errorf(ir.CodeInvalidArgument, "genesis %s: %v", field, err)
		}
		return a, nil
	}
	credits := func(field string, allocs []config.Allocation) ([]credit, error) {
		out := make([]credit, 0, len(allocs))
		for _, a := range allocs {
			to, err := resolve(a.Account)
			if err != nil {
				return nil, err
			}
			amt, err := amount(field, a.Amount)
			if err != nil {
				return nil, err
			}
			out = append(out, credit{to: to, amount: amt})
		}
		return out, nil
	}
	accounts := func(names []string) ([]ir.Address, error) {
		out := make([]ir.Address, 0, len(names))
		for _, n := range names {
			a, err := resolve(n)
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		}
		return out, nil
	}

	p := plan{
		deployer:    deployer,
		tokenName:   g.Token.Name,
		tokenSymbol: g.Token.Symbol,
	}
	if p.funding, err = credits("funding", g.Funding); err != nil {
		return plan{}, err
	}
	if p.supply, err = amount("token.initialSupply", g.Token.InitialSupply); err != nil {
		return plan{}, err
	}
	if p.allocations, err = credits("allocations", g.Allocations); err != nil {
		return plan{}, err
	}
	p.timelock.MinDelay = g.Timelock.MinDelay
	if p.timelock.Proposers, err = accounts(g.Timelock.Proposers); err != nil {
		return plan{}, err
	}
	if p.timelock.Executors, err = accounts(g.Timelock.Executors); err != nil {
		return plan{}, err
	}
	threshold, err := amount("governance.proposalThreshold", g.Governance.ProposalThreshold)
	if err != nil {
		return plan{}, err
	}
	p.settings = governance.Settings{
		Name:              g.Governance.Name,
		VotingDelay:       g.Governance.VotingDelay,
		VotingPeriod:      g.Governance.VotingPeriod,
		ProposalThreshold: threshold,
		QuorumNumerator:   g.Governance.QuorumPercent,
		GracePeriod:       g.Governance.GracePeriod,
	}
	if p.funds, err = amount("treasury.funds", g.Treasury.Funds); err != nil {
		return plan{}, err
	}
	return p, nil
}

// deployAction runs the genesis deployment in the deployer's frame: fund
// accounts, deploy the token and hand out allocations, deploy the timelock
// and governor, deploy and fund the treasury, then give the timelock the
// treasury and the governor its proposer and executor roles.
func deployAction(inv *invocation) (ir.Object, error) {
	env := inv.env
	if inv.d.Deployed() {
		return nil, ir.Errorf(ir.CodeInvalidState, "DAO is already deployed")
	}
	g, err := genesisFromObject(inv.args.obj)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateGenesis(g); err != nil {
		return nil, ir.Errorf(ir.CodeInvalidArgument, "%v", err)
	}
	p, err := planGenesis(g)
	if err != nil {
		return nil, err
	}
	if env.Self() != p.deployer {
		return nil, ir.Errorf(ir.CodeUnauthorized, "%s must be signed by the genesis deployer %s", ActionDeploy, p.deployer)
	}

	for _, c := range p.funding {
		if err := env.Mint(c.to, c.amount); err != nil {
			return nil, err
		}
	}

	tok, err := token.Deploy(env, p.tokenName, p.tokenSymbol, p.supply)
	if err != nil {
		return nil, err
	}
	for _, c := range p.allocations {
		if err := tok.Transfer(env.Enter(tok.Address()), c.to, c.amount); err != nil {
			return nil, fmt.Errorf("allocate to %s: %w", c.to, err)
		}
	}

	tl, err := timelock.Deploy(env, p.timelock)
	if err != nil {
		return nil, err
	}
	gov, err := governance.Deploy(env, p.settings, tok, tl)
	if err != nil {
		return nil, err
	}
	tr, err := treasury.Deploy(env, p.deployer, p.funds)
	if err != nil {
		return nil, err
	}
	if err := tr.TransferOwnership(env.Enter(tr.Address()), tl.Address()); err != nil {
		return nil, err
	}
	tlEnv := env.Enter(tl.Address())
	if err := tl.GrantRole(tlEnv, timelock.ProposerRole, gov.Address()); err != nil {
		return nil, err
	}
	if err := tl.GrantRole(tlEnv, timelock.ExecutorRole, gov.Address()); err != nil {
		return nil, err
	}

	book := map[string]ir.Address{
		NameToken:      tok.Address(),
		NameTimelock:   tl.Address(),
		NameGovernance: gov.Address(),
		NameTreasury:   tr.Address(),
	}
	result := ir.Object{}
	for _, name := range contractNames {
		if err := env.Store().WriteContract(store.ContractEntry{
			Name:    name,
			Address: book[name],
			Kind:    kindOf[name],
		}); err != nil {
			return nil, err
		}
		result[name] = ir.String(book[name].Hex())
	}
	inv.deployed = book

	env.Logger().Info("dao deployed",
		"token", tok.Address().Hex(),
		"timelock", tl.Address().Hex(),
		"governance", gov.Address().Hex(),
		"treasury", tr.Address().Hex(),
		"allocations", len(p.allocations))
	return result, nil
}
