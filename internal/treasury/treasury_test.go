package treasury

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/ledger"
	"github.com/roach88/dvgov/internal/testutil"
)

var (
	deployer    = testutil.Account("executor")
	newOwner    = testutil.Account("timelock")
	beneficiary = testutil.Account("startup")
	outsider    = testutil.Account("outsider")
)

func deploy(t *testing.T, l *ledger.Ledger) *Treasury {
	t.Helper()
	testutil.Fund(t, l, deployer, ir.Ether(30))
	var tr *Treasury
	testutil.MustSubmit(t, l, deployer, "Treasury.deploy", func(env *ledger.Env) error {
		var err error
		tr, err = Deploy(env, deployer, ir.Ether(25))
		return err
	})
	return tr
}

func as(t *testing.T, l *ledger.Ledger, tr *Treasury, from ir.Address, fn func(env *ledger.Env) error) error {
	t.Helper()
	return testutil.Submit(t, l, from, "Treasury.call", func(env *ledger.Env) error {
		return fn(env.Enter(tr.Address()))
	})
}

func released(t *testing.T, l *ledger.Ledger, tr *Treasury) bool {
	t.Helper()
	var r bool
	testutil.View(t, l, func(env *ledger.Env) error {
		var err error
		r, err = tr.IsReleased(env.Enter(tr.Address()))
		return err
	})
	return r
}

func TestDeploy_Funds(t *testing.T) {
	l := testutil.NewLedger(t)
	tr := deploy(t, l)

	assert.False(t, released(t, l, tr))
	assert.Equal(t, 0, testutil.Balance(t, l, tr.Address()).Cmp(ir.Ether(25)))
	assert.Equal(t, 0, testutil.Balance(t, l, deployer).Cmp(ir.Ether(5)))

	var owner ir.Address
	testutil.View(t, l, func(env *ledger.Env) error {
		var err error
		owner, err = tr.Owner(env.Enter(tr.Address()))
		return err
	})
	assert.Equal(t, deployer, owner)
}

func TestDeploy_InsufficientFunds(t *testing.T) {
	l := testutil.NewLedger(t)
	err := testutil.Submit(t, l, deployer, "Treasury.deploy", func(env *ledger.Env) error {
		_, err := Deploy(env, deployer, ir.Ether(1))
		return err
	})
	assert.True(t, ir.IsCode(err, ir.CodeInsufficientBalance), "got %v", err)
	_, ok := l.Contract(ir.ContractAddress(deployer, Kind))
	assert.False(t, ok)
}

func TestRelease_OnlyOwnerExactlyOnce(t *testing.T) {
	l := testutil.NewLedger(t)
	tr := deploy(t, l)

	err := as(t, l, tr, outsider, func(env *ledger.Env) error { return tr.Release(env, outsider) })
	assert.True(t, ir.IsCode(err, ir.CodeUnauthorized), "got %v", err)
	assert.False(t, released(t, l, tr))

	require.NoError(t, as(t, l, tr, deployer, func(env *ledger.Env) error { return tr.Release(env, beneficiary) }))
	assert.True(t, released(t, l, tr))
	assert.True(t, testutil.Balance(t, l, tr.Address()).IsZero())
	assert.Equal(t, 0, testutil.Balance(t, l, beneficiary).Cmp(ir.Ether(25)))

	err = as(t, l, tr, deployer, func(env *ledger.Env) error { return tr.Release(env, beneficiary) })
	assert.True(t, ir.IsCode(err, ir.CodeAlreadyReleased), "got %v", err)
	assert.True(t, testutil.Balance(t, l, tr.Address()).IsZero())
}

func TestRelease_InvalidBeneficiary(t *testing.T) {
	l := testutil.NewLedger(t)
	tr := deploy(t, l)

	for _, b := range []ir.Address{ir.ZeroAddress, tr.Address()} {
		err := as(t, l, tr, deployer, func(env *ledger.Env) error { return tr.Release(env, b) })
		assert.True(t, ir.IsCode(err, ir.CodeInvalidArgument), "beneficiary %s: %v", b, err)
	}
	assert.False(t, released(t, l, tr))
}

func TestDeposits_RefusedAfterRelease(t *testing.T) {
	l := testutil.NewLedger(t)
	tr := deploy(t, l)

	deposit := func() error {
		return testutil.Submit(t, l, deployer, "Treasury.deposit", func(env *ledger.Env) error {
			return env.Call(tr.Address(), ir.Ether(1), nil)
		})
	}
	require.NoError(t, deposit())
	assert.Equal(t, 0, testutil.Balance(t, l, tr.Address()).Cmp(ir.Ether(26)))

	require.NoError(t, as(t, l, tr, deployer, func(env *ledger.Env) error { return tr.Release(env, beneficiary) }))
	err := deposit()
	assert.True(t, ir.IsCode(err, ir.CodeAlreadyReleased), "got %v", err)
	assert.True(t, testutil.Balance(t, l, tr.Address()).IsZero())
}

func TestTransferOwnership(t *testing.T) {
	l := testutil.NewLedger(t)
	tr := deploy(t, l)

	err := as(t, l, tr, deployer, func(env *ledger.Env) error { return tr.TransferOwnership(env, ir.ZeroAddress) })
	assert.True(t, ir.IsCode(err, ir.CodeInvalidArgument), "got %v", err)

	require.NoError(t, as(t, l, tr, deployer, func(env *ledger.Env) error { return tr.TransferOwnership(env, newOwner) }))

	err = as(t, l, tr, deployer, func(env *ledger.Env) error { return tr.Release(env, deployer) })
	assert.True(t, ir.IsCode(err, ir.CodeUnauthorized), "previous owner lost custody: %v", err)
	err = as(t, l, tr, deployer, func(env *ledger.Env) error { return tr.TransferOwnership(env, deployer) })
	assert.True(t, ir.IsCode(err, ir.CodeUnauthorized), "got %v", err)
}

func TestDispatch_Selectors(t *testing.T) {
	l := testutil.NewLedger(t)
	tr := deploy(t, l)

	call := func(from ir.Address, data []byte) error {
		return testutil.Submit(t, l, from, "call", func(env *ledger.Env) error {
			return env.Call(tr.Address(), ir.Amount{}, data)
		})
	}
	require.NoError(t, call(deployer, TransferOwnershipCalldata(newOwner)))
	assert.True(t, ir.IsCode(call(deployer, ReleaseCalldata(beneficiary)), ir.CodeUnauthorized))
	require.NoError(t, call(newOwner, ReleaseCalldata(beneficiary)))
	assert.True(t, released(t, l, tr))

	assert.True(t, ir.IsCode(call(newOwner, ir.EncodeCall("release()")), ir.CodeInvalidArgument))
	assert.True(t, ir.IsCode(call(newOwner, ir.EncodeCall("drain(address)", ir.AddressWord(outsider))), ir.CodeInvalidArgument))
}
