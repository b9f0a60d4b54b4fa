// Package treasury implements single-owner custody of native funds behind
// an irreversible release flag.
//
// Release moves the whole balance to a beneficiary exactly once. Deposits
// after release are refused so that a released treasury always holds zero.
package treasury

import (
	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/ledger"
	"github.com/roach88/dvgov/internal/store"
)

// Kind is the address book kind of a treasury.
const Kind = "Treasury"

var (
	selRelease           = ir.SelectorOf("release(address)")
	selTransferOwnership = ir.SelectorOf("transferOwnership(address)")
)

// Treasury is a deployed treasury.
type Treasury struct {
	addr ir.Address
}

// At returns the treasury deployed at addr.
func At(addr ir.Address) *Treasury {
	return &Treasury{addr: addr}
}

// Deploy creates a treasury owned by owner and funds it with funds from
// the deployer.
func Deploy(env *ledger.Env, owner ir.Address, funds ir.Amount) (*Treasury, error) {
	if owner.IsZero() {
		return nil, ir.Errorf(ir.CodeInvalidArgument, "treasury owner is the zero address")
	}
	tr := At(ir.ContractAddress(env.Self(), Kind))
	if err := env.Deploy(tr); err != nil {
		return nil, err
	}
	if err := env.Store().WriteTreasury(store.Treasury{Address: tr.addr, Owner: owner}); err != nil {
		return nil, err
	}
	if err := env.Transfer(tr.addr, funds); err != nil {
		return nil, err
	}

	frame := env.Enter(tr.addr)
	frame.Emit("OwnershipTransferred", ownershipFields(ir.ZeroAddress, owner))
	frame.Logger().Info("treasury deployed", "owner", owner.Hex(), "funds", funds.String())
	return tr, nil
}

// Address implements ledger.Contract.
func (tr *Treasury) Address() ir.Address { return tr.addr }

// Kind implements ledger.Contract.
func (tr *Treasury) Kind() string { return Kind }

// Dispatch implements ledger.Contract. Empty calldata is a deposit.
func (tr *Treasury) Dispatch(env *ledger.Env, data []byte) error {
	if len(data) == 0 {
		return tr.receive(env)
	}
	call, err := ir.DecodeCall(data)
	if err != nil {
		return err
	}
	switch call.Selector {
	case selRelease, selTransferOwnership:
		if err := call.Arity(1); err != nil {
			return err
		}
		arg, err := call.Args[0].Address()
		if err != nil {
			return err
		}
		if call.Selector == selRelease {
			return tr.Release(env, arg)
		}
		return tr.TransferOwnership(env, arg)
	}
	return ir.Errorf(ir.CodeInvalidArgument, "treasury: unknown selector %s", call.Selector)
}

func (tr *Treasury) receive(env *ledger.Env) error {
	rec, err := tr.record(env)
	if err != nil {
		return err
	}
	if rec.Released {
		return ir.Errorf(ir.CodeAlreadyReleased, "treasury %s was released and takes no deposits", tr.addr)
	}
	env.Emit("Deposit", ir.Object{
		"from":  ir.String(env.Caller().Hex()),
		"value": ir.String(env.Value().String()),
	})
	return nil
}

func (tr *Treasury) record(env *ledger.Env) (store.Treasury, error) {
	rec, found, err := env.Store().ReadTreasury(tr.addr)
	if err != nil {
		return store.Treasury{}, err
	}
	if !found {
		return store.Treasury{}, ir.Errorf(ir.CodeNotFound, "no treasury at %s", tr.addr)
	}
	return rec, nil
}

func (tr *Treasury) onlyOwner(env *ledger.Env) (store.Treasury, error) {
	rec, err := tr.record(env)
	if err != nil {
		return store.Treasury{}, err
	}
	if env.Caller() != rec.Owner {
		return store.Treasury{}, ir.Errorf(ir.CodeUnauthorized, "%s is not the treasury owner", env.Caller()).
			With("owner", rec.Owner.Hex())
	}
	return rec, nil
}

// Owner returns the current owner.
func (tr *Treasury) Owner(env *ledger.Env) (ir.Address, error) {
	rec, err := tr.record(env)
	return rec.Owner, err
}

// IsReleased reports whether the funds were released.
func (tr *Treasury) IsReleased(env *ledger.Env) (bool, error) {
	rec, err := tr.record(env)
	return rec.Released, err
}

// Balance returns the held funds.
func (tr *Treasury) Balance(env *ledger.Env) (ir.Amount, error) {
	return env.Balance(tr.addr)
}

// Release sends the whole balance to beneficiary and sets the release
// flag. Only the owner may release, and only once.
func (tr *Treasury) Release(env *ledger.Env, beneficiary ir.Address) error {
	rec, err := tr.onlyOwner(env)
	if err != nil {
		return err
	}
	if rec.Released {
		return ir.Errorf(ir.CodeAlreadyReleased, "treasury %s was already released", tr.addr)
	}
	if beneficiary.IsZero() || beneficiary == tr.addr {
		return ir.Errorf(ir.CodeInvalidArgument, "invalid beneficiary %s", beneficiary)
	}
	funds, err := env.Balance(tr.addr)
	if err != nil {
		return err
	}

	rec.Released = true
	if err := env.Store().WriteTreasury(rec); err != nil {
		return err
	}
	if err := env.Call(beneficiary, funds, nil); err != nil {
		return err
	}
	env.Emit("Released", ir.Object{
		"beneficiary": ir.String(beneficiary.Hex()),
		"amount":      ir.String(funds.String()),
	})
	env.Logger().Info("treasury released", "beneficiary", beneficiary.Hex(), "amount", funds.String())
	return nil
}

// TransferOwnership hands custody to newOwner. Only the owner may call it.
func (tr *Treasury) TransferOwnership(env *ledger.Env, newOwner ir.Address) error {
	rec, err := tr.onlyOwner(env)
	if err != nil {
		return err
	}
	if newOwner.IsZero() {
		return ir.Errorf(ir.CodeInvalidArgument, "new owner is the zero address")
	}
	prev := rec.Owner
	rec.Owner = newOwner
	if err := env.Store().WriteTreasury(rec); err != nil {
		return err
	}
	env.Emit("OwnershipTransferred", ownershipFields(prev, newOwner))
	return nil
}

func ownershipFields(prev, next ir.Address) ir.Object {
	return ir.Object{
		"previousOwner": ir.String(prev.Hex()),
		"newOwner":      ir.String(next.Hex()),
	}
}

// ReleaseCalldata encodes release(beneficiary) for proposal batches.
func ReleaseCalldata(beneficiary ir.Address) []byte {
	return ir.EncodeCall("release(address)", ir.AddressWord(beneficiary))
}

// TransferOwnershipCalldata encodes transferOwnership(newOwner).
func TransferOwnershipCalldata(newOwner ir.Address) []byte {
	return ir.EncodeCall("transferOwnership(address)", ir.AddressWord(newOwner))
}
