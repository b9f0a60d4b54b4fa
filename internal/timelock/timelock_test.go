package timelock

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/ledger"
	"github.com/roach88/dvgov/internal/testutil"
)

var (
	deployer = testutil.Account("executor")
	proposer = testutil.Account("proposer")
	outsider = testutil.Account("outsider")
	payee    = testutil.Account("payee")
)

func deploy(t *testing.T, l *ledger.Ledger, minDelay int64, executors ...ir.Address) *Timelock {
	t.Helper()
	if len(executors) == 0 {
		executors = []ir.Address{deployer}
	}
	var tl *Timelock
	testutil.MustSubmit(t, l, deployer, "Timelock.deploy", func(env *ledger.Env) error {
		var err error
		tl, err = Deploy(env, Config{MinDelay: minDelay, Proposers: []ir.Address{proposer}, Executors: executors})
		return err
	})
	return tl
}

func as(t *testing.T, l *ledger.Ledger, tl *Timelock, from ir.Address, fn func(env *ledger.Env) error) error {
	t.Helper()
	return testutil.Submit(t, l, from, "Timelock.call", func(env *ledger.Env) error {
		return fn(env.Enter(tl.Address()))
	})
}

// payBatch pays 1 ether from the timelock to payee.
func payBatch() ir.Batch {
	return ir.Batch{
		Targets:   []ir.Address{payee},
		Values:    []ir.Amount{ir.Ether(1)},
		Calldatas: [][]byte{{}},
	}
}

func schedule(t *testing.T, l *ledger.Ledger, tl *Timelock, b ir.Batch, pred, salt ir.Hash, delay int64) ir.Hash {
	t.Helper()
	var id ir.Hash
	require.NoError(t, as(t, l, tl, proposer, func(env *ledger.Env) error {
		var err error
		id, err = tl.ScheduleBatch(env, b, pred, salt, delay)
		return err
	}))
	return id
}

func execute(t *testing.T, l *ledger.Ledger, tl *Timelock, from ir.Address, b ir.Batch, pred, salt ir.Hash) error {
	t.Helper()
	return as(t, l, tl, from, func(env *ledger.Env) error {
		return tl.ExecuteBatch(env, b, pred, salt)
	})
}

func hasRole(t *testing.T, l *ledger.Ledger, tl *Timelock, role ir.Hash, acct ir.Address) bool {
	t.Helper()
	var ok bool
	testutil.View(t, l, func(env *ledger.Env) error {
		var err error
		ok, err = tl.HasRole(env.Enter(tl.Address()), role, acct)
		return err
	})
	return ok
}

func TestDeploy_Roles(t *testing.T) {
	l := testutil.NewLedger(t)
	tl := deploy(t, l, 2)

	assert.True(t, hasRole(t, l, tl, DefaultAdminRole, tl.Address()))
	assert.True(t, hasRole(t, l, tl, DefaultAdminRole, deployer))
	assert.True(t, hasRole(t, l, tl, ProposerRole, proposer))
	assert.True(t, hasRole(t, l, tl, CancellerRole, proposer))
	assert.True(t, hasRole(t, l, tl, ExecutorRole, deployer))
	assert.False(t, hasRole(t, l, tl, ProposerRole, deployer), "proposer and executor sets are disjoint")

	var d int64
	testutil.View(t, l, func(env *ledger.Env) error {
		var err error
		d, err = tl.GetMinDelay(env.Enter(tl.Address()))
		return err
	})
	assert.Equal(t, int64(2), d)
}

func TestRoleNames(t *testing.T) {
	h, ok := RoleByName("EXECUTOR_ROLE")
	require.True(t, ok)
	assert.Equal(t, ExecutorRole, h)
	assert.Equal(t, "CANCELLER_ROLE", RoleName(CancellerRole))
	_, ok = RoleByName("ROOT")
	assert.False(t, ok)
}

func TestGrantRevokeRenounce(t *testing.T) {
	l := testutil.NewLedger(t)
	tl := deploy(t, l, 0)

	err := as(t, l, tl, outsider, func(env *ledger.Env) error { return tl.GrantRole(env, ProposerRole, outsider) })
	assert.True(t, ir.IsCode(err, ir.CodeUnauthorized), "got %v", err)

	require.NoError(t, as(t, l, tl, deployer, func(env *ledger.Env) error { return tl.GrantRole(env, ProposerRole, outsider) }))
	assert.True(t, hasRole(t, l, tl, ProposerRole, outsider))

	err = as(t, l, tl, outsider, func(env *ledger.Env) error { return tl.RenounceRole(env, ProposerRole, proposer) })
	assert.True(t, ir.IsCode(err, ir.CodeUnauthorized), "renounce for someone else: %v", err)
	require.NoError(t, as(t, l, tl, outsider, func(env *ledger.Env) error { return tl.RenounceRole(env, ProposerRole, outsider) }))
	assert.False(t, hasRole(t, l, tl, ProposerRole, outsider))

	require.NoError(t, as(t, l, tl, deployer, func(env *ledger.Env) error { return tl.RevokeRole(env, ProposerRole, proposer) }))
	assert.False(t, hasRole(t, l, tl, ProposerRole, proposer))
}

func TestSchedule_Validation(t *testing.T) {
	l := testutil.NewLedger(t)
	tl := deploy(t, l, 3)

	err := as(t, l, tl, outsider, func(env *ledger.Env) error {
		_, err := tl.ScheduleBatch(env, payBatch(), ir.ZeroHash, ir.ZeroHash, 3)
		return err
	})
	assert.True(t, ir.IsCode(err, ir.CodeUnauthorized), "got %v", err)

	err = as(t, l, tl, proposer, func(env *ledger.Env) error {
		_, err := tl.ScheduleBatch(env, payBatch(), ir.ZeroHash, ir.ZeroHash, 2)
		return err
	})
	assert.True(t, ir.IsCode(err, ir.CodeInvalidArgument), "delay below minimum: %v", err)

	err = as(t, l, tl, proposer, func(env *ledger.Env) error {
		_, err := tl.ScheduleBatch(env, ir.Batch{}, ir.ZeroHash, ir.ZeroHash, 3)
		return err
	})
	assert.True(t, ir.IsCode(err, ir.CodeInvalidArgument), "empty batch: %v", err)

	id := schedule(t, l, tl, payBatch(), ir.ZeroHash, ir.ZeroHash, 3)
	err = as(t, l, tl, proposer, func(env *ledger.Env) error {
		_, err := tl.ScheduleBatch(env, payBatch(), ir.ZeroHash, ir.ZeroHash, 5)
		return err
	})
	assert.True(t, ir.IsCode(err, ir.CodeAlreadyScheduled), "got %v", err)

	want, err := HashOperationBatch(payBatch(), ir.ZeroHash, ir.ZeroHash)
	require.NoError(t, err)
	assert.Equal(t, want, id)
}

func TestSchedule_DelayOverflow(t *testing.T) {
	l := testutil.NewLedger(t)
	tl := deploy(t, l, 100)
	testutil.Fund(t, l, tl.Address(), ir.Ether(3))

	err := as(t, l, tl, proposer, func(env *ledger.Env) error {
		_, err := tl.ScheduleBatch(env, payBatch(), ir.ZeroHash, ir.ZeroHash, math.MaxInt64)
		return err
	})
	assert.True(t, ir.IsCode(err, ir.CodeInvalidArgument), "got %v", err)

	err = execute(t, l, tl, deployer, payBatch(), ir.ZeroHash, ir.ZeroHash)
	assert.True(t, ir.IsCode(err, ir.CodeNotFound), "nothing was scheduled: %v", err)
	assert.True(t, testutil.Balance(t, l, payee).IsZero())

	// The widest delay that fits still waits.
	schedule(t, l, tl, payBatch(), ir.ZeroHash, ir.ZeroHash, math.MaxInt64-testutil.Height(t, l)-1)
	err = execute(t, l, tl, deployer, payBatch(), ir.ZeroHash, ir.ZeroHash)
	assert.True(t, ir.IsCode(err, ir.CodeNotReady), "got %v", err)
	assert.True(t, testutil.Balance(t, l, payee).IsZero())
}

func TestMinDelay_Bounds(t *testing.T) {
	l := testutil.NewLedger(t)
	err := testutil.Submit(t, l, deployer, "Timelock.deploy", func(env *ledger.Env) error {
		_, err := Deploy(env, Config{MinDelay: ir.MaxBlocks + 1, Proposers: []ir.Address{proposer}})
		return err
	})
	assert.True(t, ir.IsCode(err, ir.CodeInvalidArgument), "got %v", err)

	tl := deploy(t, l, 0)
	b := ir.Batch{
		Targets:   []ir.Address{tl.Address()},
		Values:    []ir.Amount{{}},
		Calldatas: [][]byte{UpdateDelayCalldata(math.MaxInt64)},
	}
	schedule(t, l, tl, b, ir.ZeroHash, ir.ZeroHash, 0)
	err = execute(t, l, tl, deployer, b, ir.ZeroHash, ir.ZeroHash)
	assert.True(t, ir.IsCode(err, ir.CodeInvalidArgument), "got %v", err)
}

func TestExecute_WaitsForReadyBlock(t *testing.T) {
	l := testutil.NewLedger(t)
	tl := deploy(t, l, 2) // block 1
	testutil.Fund(t, l, tl.Address(), ir.Ether(3))

	id := schedule(t, l, tl, payBatch(), ir.ZeroHash, ir.ZeroHash, 2) // block 3, ready at 5

	var ready int64
	testutil.View(t, l, func(env *ledger.Env) error {
		var err error
		ready, err = tl.GetReadyBlock(env.Enter(tl.Address()), id)
		return err
	})
	assert.Equal(t, int64(5), ready)

	err := execute(t, l, tl, deployer, payBatch(), ir.ZeroHash, ir.ZeroHash) // block 4
	assert.True(t, ir.IsCode(err, ir.CodeNotReady), "got %v", err)

	err = execute(t, l, tl, outsider, payBatch(), ir.ZeroHash, ir.ZeroHash)
	assert.True(t, ir.IsCode(err, ir.CodeUnauthorized), "got %v", err)

	// Rejected calls mine nothing; block 4 still has to be mined.
	testutil.Mine(t, l, 1)
	require.NoError(t, execute(t, l, tl, deployer, payBatch(), ir.ZeroHash, ir.ZeroHash)) // block 5
	assert.Equal(t, 0, testutil.Balance(t, l, payee).Cmp(ir.Ether(1)))

	var done bool
	testutil.View(t, l, func(env *ledger.Env) error {
		var err error
		done, err = tl.IsOperationDone(env.Enter(tl.Address()), id)
		return err
	})
	assert.True(t, done)

	err = execute(t, l, tl, deployer, payBatch(), ir.ZeroHash, ir.ZeroHash)
	assert.True(t, ir.IsCode(err, ir.CodeInvalidState), "executes at most once: %v", err)
	assert.Equal(t, 0, testutil.Balance(t, l, payee).Cmp(ir.Ether(1)))
}

func TestExecute_FailedCallLeavesOperationScheduled(t *testing.T) {
	l := testutil.NewLedger(t)
	tl := deploy(t, l, 0)

	id := schedule(t, l, tl, payBatch(), ir.ZeroHash, ir.ZeroHash, 0)

	// The timelock holds nothing yet, so the payment fails.
	err := execute(t, l, tl, deployer, payBatch(), ir.ZeroHash, ir.ZeroHash)
	assert.True(t, ir.IsCode(err, ir.CodeInsufficientBalance), "got %v", err)

	var pending bool
	testutil.View(t, l, func(env *ledger.Env) error {
		var err error
		pending, err = tl.IsOperationPending(env.Enter(tl.Address()), id)
		return err
	})
	assert.True(t, pending)

	testutil.Fund(t, l, tl.Address(), ir.Ether(1))
	require.NoError(t, execute(t, l, tl, deployer, payBatch(), ir.ZeroHash, ir.ZeroHash))
}

func TestExecute_Predecessor(t *testing.T) {
	l := testutil.NewLedger(t)
	tl := deploy(t, l, 0)
	testutil.Fund(t, l, tl.Address(), ir.Ether(2))

	first := schedule(t, l, tl, payBatch(), ir.ZeroHash, ir.ZeroHash, 0)
	salt := ir.Keccak256([]byte("second"))
	schedule(t, l, tl, payBatch(), first, salt, 0)

	err := execute(t, l, tl, deployer, payBatch(), first, salt)
	assert.True(t, ir.IsCode(err, ir.CodePredecessorNotExecuted), "got %v", err)

	require.NoError(t, execute(t, l, tl, deployer, payBatch(), ir.ZeroHash, ir.ZeroHash))
	require.NoError(t, execute(t, l, tl, deployer, payBatch(), first, salt))
	assert.Equal(t, 0, testutil.Balance(t, l, payee).Cmp(ir.Ether(2)))
}

func TestExecute_UnknownOperation(t *testing.T) {
	l := testutil.NewLedger(t)
	tl := deploy(t, l, 0)
	err := execute(t, l, tl, deployer, payBatch(), ir.ZeroHash, ir.ZeroHash)
	assert.True(t, ir.IsCode(err, ir.CodeNotFound), "got %v", err)
}

func TestExecute_OpenExecutorRole(t *testing.T) {
	l := testutil.NewLedger(t)
	tl := deploy(t, l, 0, ir.ZeroAddress)
	testutil.Fund(t, l, tl.Address(), ir.Ether(1))
	schedule(t, l, tl, payBatch(), ir.ZeroHash, ir.ZeroHash, 0)

	require.NoError(t, execute(t, l, tl, outsider, payBatch(), ir.ZeroHash, ir.ZeroHash))
}

func TestCancel(t *testing.T) {
	l := testutil.NewLedger(t)
	tl := deploy(t, l, 5)
	id := schedule(t, l, tl, payBatch(), ir.ZeroHash, ir.ZeroHash, 5)

	err := as(t, l, tl, outsider, func(env *ledger.Env) error { return tl.Cancel(env, id) })
	assert.True(t, ir.IsCode(err, ir.CodeUnauthorized), "got %v", err)

	require.NoError(t, as(t, l, tl, proposer, func(env *ledger.Env) error { return tl.Cancel(env, id) }))
	err = as(t, l, tl, proposer, func(env *ledger.Env) error { return tl.Cancel(env, id) })
	assert.True(t, ir.IsCode(err, ir.CodeInvalidState), "got %v", err)

	// A cancelled operation can be scheduled again.
	schedule(t, l, tl, payBatch(), ir.ZeroHash, ir.ZeroHash, 5)
}

func TestSelfAdministration(t *testing.T) {
	l := testutil.NewLedger(t)
	tl := deploy(t, l, 0)

	err := as(t, l, tl, deployer, func(env *ledger.Env) error { return tl.UpdateDelay(env, 10) })
	assert.True(t, ir.IsCode(err, ir.CodeUnauthorized), "only the timelock may update the delay: %v", err)

	b := ir.Batch{
		Targets:   []ir.Address{tl.Address(), tl.Address()},
		Values:    []ir.Amount{{}, {}},
		Calldatas: [][]byte{UpdateDelayCalldata(10), GrantRoleCalldata(ProposerRole, outsider)},
	}
	schedule(t, l, tl, b, ir.ZeroHash, ir.ZeroHash, 0)
	require.NoError(t, execute(t, l, tl, deployer, b, ir.ZeroHash, ir.ZeroHash))

	assert.True(t, hasRole(t, l, tl, ProposerRole, outsider))
	var d int64
	testutil.View(t, l, func(env *ledger.Env) error {
		var err error
		d, err = tl.GetMinDelay(env.Enter(tl.Address()))
		return err
	})
	assert.Equal(t, int64(10), d)

	revoke := ir.Batch{
		Targets:   []ir.Address{tl.Address()},
		Values:    []ir.Amount{{}},
		Calldatas: [][]byte{RevokeRoleCalldata(ProposerRole, outsider)},
	}
	schedule(t, l, tl, revoke, ir.ZeroHash, ir.ZeroHash, 10)
	testutil.Mine(t, l, 10)
	require.NoError(t, execute(t, l, tl, deployer, revoke, ir.ZeroHash, ir.ZeroHash))
	assert.False(t, hasRole(t, l, tl, ProposerRole, outsider))
}

func TestReceive_AcceptsValue(t *testing.T) {
	l := testutil.NewLedger(t)
	tl := deploy(t, l, 0)
	testutil.Fund(t, l, outsider, ir.Ether(1))

	require.NoError(t, testutil.Submit(t, l, outsider, "send", func(env *ledger.Env) error {
		return env.Call(tl.Address(), ir.Ether(1), nil)
	}))
	assert.Equal(t, 0, testutil.Balance(t, l, tl.Address()).Cmp(ir.Ether(1)))
}
