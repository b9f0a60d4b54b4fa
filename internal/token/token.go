// Package token implements the ERC20Votes-style voting token: balances,
// delegation and per-block checkpoints of voting power and total supply.
//
// Balances carry no voting power until the holder delegates, to itself or
// to someone else. Checkpoints are written at the executing block; past
// lookups only accept finalized blocks (strictly before the current one).
package token

import (
	"fmt"
	"math"
	"sort"

	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/ledger"
	"github.com/roach88/dvgov/internal/store"
)

// Kind is the address book kind of a voting token.
const Kind = "VotingToken"

var (
	selTransfer = ir.SelectorOf("transfer(address,uint256)")
	selDelegate = ir.SelectorOf("delegate(address)")
)

// Token is a deployed voting token. All state lives in the store; methods
// take the token's own frame, whose Caller is the acting holder.
type Token struct {
	addr ir.Address
}

// At returns the token deployed at addr.
func At(addr ir.Address) *Token {
	return &Token{addr: addr}
}

// Deploy creates a token and mints initialSupply to the deployer, which is
// the Self of env.
func Deploy(env *ledger.Env, name, symbol string, initialSupply ir.Amount) (*Token, error) {
	if name == "" || symbol == "" {
		return nil, ir.Errorf(ir.CodeInvalidArgument, "token name and symbol are required")
	}
	t := At(ir.ContractAddress(env.Self(), Kind))
	if err := env.Deploy(t); err != nil {
		return nil, err
	}

	tx := env.Store()
	if err := tx.WriteToken(store.TokenInfo{
		Address:     t.addr,
		Name:        name,
		Symbol:      symbol,
		TotalSupply: initialSupply,
	}); err != nil {
		return nil, err
	}
	if err := tx.SetTokenBalance(t.addr, env.Self(), initialSupply); err != nil {
		return nil, err
	}
	if err := tx.WriteSupply(t.addr, env.Block(), initialSupply); err != nil {
		return nil, err
	}

	frame := env.Enter(t.addr)
	frame.Emit("Transfer", transferFields(ir.ZeroAddress, env.Self(), initialSupply))
	frame.Logger().Info("token deployed", "name", name, "symbol", symbol, "supply", initialSupply.String())
	return t, nil
}

// Address implements ledger.Contract.
func (t *Token) Address() ir.Address { return t.addr }

// Kind implements ledger.Contract.
func (t *Token) Kind() string { return Kind }

// Dispatch implements ledger.Contract for routed calls, e.g. a timelock
// moving tokens it holds.
func (t *Token) Dispatch(env *ledger.Env, data []byte) error {
	if len(data) == 0 {
		return ir.Errorf(ir.CodeInvalidArgument, "token does not accept native value")
	}
	call, err := ir.DecodeCall(data)
	if err != nil {
		return err
	}
	switch call.Selector {
	case selTransfer:
		if err := call.Arity(2); err != nil {
			return err
		}
		to, err := call.Args[0].Address()
		if err != nil {
			return err
		}
		return t.Transfer(env, to, call.Args[1].Amount())
	case selDelegate:
		if err := call.Arity(1); err != nil {
			return err
		}
		to, err := call.Args[0].Address()
		if err != nil {
			return err
		}
		return t.Delegate(env, to)
	}
	return ir.Errorf(ir.CodeInvalidArgument, "token: unknown selector %s", call.Selector)
}

// Info returns the static token record.
func (t *Token) Info(env *ledger.Env) (store.TokenInfo, error) {
	info, found, err := env.Store().ReadToken(t.addr)
	if err != nil {
		return store.TokenInfo{}, err
	}
	if !found {
		return store.TokenInfo{}, ir.Errorf(ir.CodeNotFound, "no token at %s", t.addr)
	}
	return info, nil
}

// BalanceOf returns holder's balance.
func (t *Token) BalanceOf(env *ledger.Env, holder ir.Address) (ir.Amount, error) {
	return env.Store().TokenBalance(t.addr, holder)
}

// TotalSupply returns the current total supply.
func (t *Token) TotalSupply(env *ledger.Env) (ir.Amount, error) {
	info, err := t.Info(env)
	if err != nil {
		return ir.Amount{}, err
	}
	return info.TotalSupply, nil
}

// Delegates returns holder's delegatee, zero if it never delegated.
func (t *Token) Delegates(env *ledger.Env, holder ir.Address) (ir.Address, error) {
	return env.Store().Delegate(t.addr, holder)
}

// Transfer moves amount from the caller to to, moving the matching voting
// power between their delegatees.
func (t *Token) Transfer(env *ledger.Env, to ir.Address, amount ir.Amount) error {
	from := env.Caller()
	if to.IsZero() {
		return ir.Errorf(ir.CodeInvalidArgument, "transfer to the zero address")
	}
	tx := env.Store()

	fromBal, err := tx.TokenBalance(t.addr, from)
	if err != nil {
		return err
	}
	rest, ok := fromBal.Sub(amount)
	if !ok {
		return ir.Errorf(ir.CodeInsufficientBalance, "%s holds %s, transfer needs %s", from, fromBal, amount)
	}
	if from != to {
		toBal, err := tx.TokenBalance(t.addr, to)
		if err != nil {
			return err
		}
		if err := tx.SetTokenBalance(t.addr, from, rest); err != nil {
			return err
		}
		if err := tx.SetTokenBalance(t.addr, to, toBal.Add(amount)); err != nil {
			return err
		}
	}
	env.Emit("Transfer", transferFields(from, to, amount))

	src, err := tx.Delegate(t.addr, from)
	if err != nil {
		return err
	}
	dst, err := tx.Delegate(t.addr, to)
	if err != nil {
		return err
	}
	return t.moveVotingPower(env, src, dst, amount)
}

// Delegate moves the caller's whole balance of voting power to delegatee.
// Delegating to the zero address withdraws it.
func (t *Token) Delegate(env *ledger.Env, delegatee ir.Address) error {
	holder := env.Caller()
	tx := env.Store()

	prev, err := tx.Delegate(t.addr, holder)
	if err != nil {
		return err
	}
	if err := tx.SetDelegate(t.addr, holder, delegatee); err != nil {
		return err
	}
	env.Emit("DelegateChanged", ir.Object{
		"delegator":    ir.String(holder.Hex()),
		"fromDelegate": ir.String(prev.Hex()),
		"toDelegate":   ir.String(delegatee.Hex()),
	})

	bal, err := tx.TokenBalance(t.addr, holder)
	if err != nil {
		return err
	}
	return t.moveVotingPower(env, prev, delegatee, bal)
}

func (t *Token) moveVotingPower(env *ledger.Env, src, dst ir.Address, amount ir.Amount) error {
	if src == dst || amount.IsZero() {
		return nil
	}
	tx := env.Store()
	if !src.IsZero() {
		old, err := tx.VotesAt(t.addr, src, math.MaxInt64)
		if err != nil {
			return err
		}
		next, ok := old.Sub(amount)
		if !ok {
			return fmt.Errorf("token %s: votes of %s below moved amount", t.addr, src)
		}
		if err := t.writeVotes(env, src, old, next); err != nil {
			return err
		}
	}
	if !dst.IsZero() {
		old, err := tx.VotesAt(t.addr, dst, math.MaxInt64)
		if err != nil {
			return err
		}
		if err := t.writeVotes(env, dst, old, old.Add(amount)); err != nil {
			return err
		}
	}
	return nil
}

func (t *Token) writeVotes(env *ledger.Env, account ir.Address, prev, next ir.Amount) error {
	if err := env.Store().WriteVotes(t.addr, account, env.Block(), next); err != nil {
		return err
	}
	env.Emit("DelegateVotesChanged", ir.Object{
		"delegate":      ir.String(account.Hex()),
		"previousVotes": ir.String(prev.String()),
		"newVotes":      ir.String(next.String()),
	})
	return nil
}

// GetVotes returns account's current voting power.
func (t *Token) GetVotes(env *ledger.Env, account ir.Address) (ir.Amount, error) {
	return env.Store().VotesAt(t.addr, account, math.MaxInt64)
}

// GetPastVotes returns account's voting power at the end of block, which
// must be before the current block.
func (t *Token) GetPastVotes(env *ledger.Env, account ir.Address, block int64) (ir.Amount, error) {
	if err := checkPast(env, block); err != nil {
		return ir.Amount{}, err
	}
	cps, err := env.Store().VoteCheckpoints(t.addr, account)
	if err != nil {
		return ir.Amount{}, err
	}
	return lookup(cps, block), nil
}

// GetPastTotalSupply returns the total supply at the end of block, which
// must be before the current block.
func (t *Token) GetPastTotalSupply(env *ledger.Env, block int64) (ir.Amount, error) {
	if err := checkPast(env, block); err != nil {
		return ir.Amount{}, err
	}
	cps, err := env.Store().SupplyCheckpoints(t.addr)
	if err != nil {
		return ir.Amount{}, err
	}
	return lookup(cps, block), nil
}

func checkPast(env *ledger.Env, block int64) error {
	if block < 0 || block >= env.Block() {
		return ir.Errorf(ir.CodeInvalidArgument, "block %d is not yet finalized (current %d)", block, env.Block())
	}
	return nil
}

// lookup binary searches checkpoints ordered by block for the last one at
// or before block.
func lookup(cps []store.Checkpoint, block int64) ir.Amount {
	i := sort.Search(len(cps), func(i int) bool { return cps[i].Block > block })
	if i == 0 {
		return ir.Amount{}
	}
	return cps[i-1].Value
}

func transferFields(from, to ir.Address, amount ir.Amount) ir.Object {
	return ir.Object{
		"from":  ir.String(from.Hex()),
		"to":    ir.String(to.Hex()),
		"value": ir.String(amount.String()),
	}
}

// TransferCalldata encodes transfer(to, amount) for proposal batches.
func TransferCalldata(to ir.Address, amount ir.Amount) []byte {
	return ir.EncodeCall("transfer(address,uint256)", ir.AddressWord(to), ir.AmountWord(amount))
}
