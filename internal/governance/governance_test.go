package governance

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/ledger"
	"github.com/roach88/dvgov/internal/testutil"
	"github.com/roach88/dvgov/internal/timelock"
	"github.com/roach88/dvgov/internal/token"
	"github.com/roach88/dvgov/internal/treasury"
)

var (
	deployer    = testutil.Account("executor")
	proposer    = testutil.Account("proposer")
	beneficiary = testutil.Account("startup")
	voters      = []ir.Address{
		testutil.Account("voter1"),
		testutil.Account("voter2"),
		testutil.Account("voter3"),
		testutil.Account("voter4"),
		testutil.Account("voter5"),
	}
)

const description = "Proposal #1: Release Funds from Treasury to Invest in Startups in the web3 Ecosystem"

type dao struct {
	l   *ledger.Ledger
	tok *token.Token
	tl  *timelock.Timelock
	gov *Governor
	tr  *treasury.Treasury
}

type fixture struct {
	settings    Settings
	allocations []ir.Amount // per voter
	delegate    bool
}

func defaultFixture() fixture {
	allocs := make([]ir.Amount, len(voters))
	for i := range allocs {
		allocs[i] = ir.Ether(1000)
	}
	return fixture{
		settings:    Settings{VotingDelay: 0, VotingPeriod: 5, QuorumNumerator: 5},
		allocations: allocs,
		delegate:    true,
	}
}

// deployDAO mirrors the deployment: token and allocations, timelock with a
// zero minimum delay, governor, funded treasury owned by the timelock and
// the governor holding the proposer and executor roles.
func deployDAO(t testing.TB, f fixture) *dao {
	t.Helper()
	d := &dao{l: testutil.NewLedger(t)}
	testutil.Fund(t, d.l, deployer, ir.Ether(25))

	testutil.MustSubmit(t, d.l, deployer, "DAO.deploy", func(env *ledger.Env) error {
		var err error
		if d.tok, err = token.Deploy(env, "DVenture DAO", "DV", ir.Ether(10000)); err != nil {
			return err
		}
		for i, v := range voters {
			if err := d.tok.Transfer(env.Enter(d.tok.Address()), v, f.allocations[i]); err != nil {
				return err
			}
		}
		if d.tl, err = timelock.Deploy(env, timelock.Config{
			Proposers: []ir.Address{proposer},
			Executors: []ir.Address{deployer},
		}); err != nil {
			return err
		}
		if d.gov, err = Deploy(env, f.settings, d.tok, d.tl); err != nil {
			return err
		}
		if d.tr, err = treasury.Deploy(env, deployer, ir.Ether(25)); err != nil {
			return err
		}
		if err := d.tr.TransferOwnership(env.Enter(d.tr.Address()), d.tl.Address()); err != nil {
			return err
		}
		tlEnv := env.Enter(d.tl.Address())
		if err := d.tl.GrantRole(tlEnv, timelock.ProposerRole, d.gov.Address()); err != nil {
			return err
		}
		return d.tl.GrantRole(tlEnv, timelock.ExecutorRole, d.gov.Address())
	})

	if f.delegate {
		for _, v := range voters {
			testutil.MustSubmit(t, d.l, v, "Token.delegate", func(env *ledger.Env) error {
				return d.tok.Delegate(env.Enter(d.tok.Address()), v)
			})
		}
	}
	return d
}

func (d *dao) as(t testing.TB, from ir.Address, fn func(env *ledger.Env) error) error {
	t.Helper()
	return testutil.Submit(t, d.l, from, "Governance.call", func(env *ledger.Env) error {
		return fn(env.Enter(d.gov.Address()))
	})
}

func (d *dao) releaseBatch() ir.Batch {
	return ir.Batch{
		Targets:   []ir.Address{d.tr.Address()},
		Values:    []ir.Amount{{}},
		Calldatas: [][]byte{treasury.ReleaseCalldata(beneficiary)},
	}
}

func (d *dao) propose(t testing.TB, b ir.Batch, desc string) ir.Hash {
	t.Helper()
	var id ir.Hash
	require.NoError(t, d.as(t, proposer, func(env *ledger.Env) error {
		var err error
		id, err = d.gov.Propose(env, b, desc)
		return err
	}))
	return id
}

func (d *dao) vote(t testing.TB, voter ir.Address, id ir.Hash, s Support) error {
	t.Helper()
	return d.as(t, voter, func(env *ledger.Env) error {
		_, err := d.gov.CastVote(env, id, s)
		return err
	})
}

func (d *dao) queue(t testing.TB, b ir.Batch, desc string) error {
	t.Helper()
	return d.as(t, deployer, func(env *ledger.Env) error {
		_, err := d.gov.Queue(env, b, ir.DescriptionHash(desc))
		return err
	})
}

func (d *dao) execute(t testing.TB, b ir.Batch, desc string) error {
	t.Helper()
	return d.as(t, deployer, func(env *ledger.Env) error {
		_, err := d.gov.Execute(env, b, ir.DescriptionHash(desc))
		return err
	})
}

func (d *dao) state(t testing.TB, id ir.Hash) State {
	t.Helper()
	var st State
	testutil.View(t, d.l, func(env *ledger.Env) error {
		var err error
		st, err = d.gov.State(env.Enter(d.gov.Address()), id)
		return err
	})
	return st
}

func (d *dao) votes(t testing.TB, id ir.Hash) Votes {
	t.Helper()
	var v Votes
	testutil.View(t, d.l, func(env *ledger.Env) error {
		var err error
		v, err = d.gov.ProposalVotes(env.Enter(d.gov.Address()), id)
		return err
	})
	return v
}

func (d *dao) released(t testing.TB) bool {
	t.Helper()
	var r bool
	testutil.View(t, d.l, func(env *ledger.Env) error {
		var err error
		r, err = d.tr.IsReleased(env.Enter(d.tr.Address()))
		return err
	})
	return r
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "Succeeded", Succeeded.String())
	assert.Equal(t, "State(9)", State(9).String())
	st, err := ParseState("Queued")
	require.NoError(t, err)
	assert.Equal(t, Queued, st)
	_, err = ParseState("Done")
	assert.Error(t, err)
	assert.True(t, Executed.Terminal())
	assert.False(t, Queued.Terminal())

	s, err := ParseSupport("abstain")
	require.NoError(t, err)
	assert.Equal(t, Abstain, s)
	assert.False(t, Support(3).Valid())
}

func TestEndToEnd_ReleaseFunds(t *testing.T) {
	d := deployDAO(t, defaultFixture())
	b := d.releaseBatch()

	id := d.propose(t, b, description)
	want, err := HashProposal(b, ir.DescriptionHash(description))
	require.NoError(t, err)
	assert.Equal(t, want, id, "proposal id is reproducible from batch and description hash")
	assert.Equal(t, Pending, d.state(t, id))

	for i, s := range []Support{For, For, For, Against, Abstain} {
		require.NoError(t, d.vote(t, voters[i], id, s), "voter%d", i+1)
	}
	assert.Equal(t, Active, d.state(t, id), "voting closes after the deadline block")

	testutil.Mine(t, d.l, 1)
	v := d.votes(t, id)
	assert.Equal(t, 0, v.For.Cmp(ir.Ether(3000)))
	assert.Equal(t, 0, v.Against.Cmp(ir.Ether(1000)))
	assert.Equal(t, 0, v.Abstain.Cmp(ir.Ether(1000)))
	assert.Equal(t, Succeeded, d.state(t, id))

	require.NoError(t, d.queue(t, b, description))
	assert.Equal(t, Queued, d.state(t, id))

	require.NoError(t, d.execute(t, b, description))
	assert.Equal(t, Executed, d.state(t, id))
	assert.True(t, d.released(t))
	assert.True(t, testutil.Balance(t, d.l, d.tr.Address()).IsZero())
	assert.Equal(t, 0, testutil.Balance(t, d.l, beneficiary).Cmp(ir.Ether(25)))

	err = d.execute(t, b, description)
	assert.True(t, ir.IsCode(err, ir.CodeInvalidState), "got %v", err)
}

func TestEndToEnd_AllAgainstIsDefeated(t *testing.T) {
	d := deployDAO(t, defaultFixture())
	b := d.releaseBatch()
	id := d.propose(t, b, description)

	for _, v := range voters {
		require.NoError(t, d.vote(t, v, id, Against))
	}
	testutil.Mine(t, d.l, 1)
	assert.Equal(t, Defeated, d.state(t, id))

	err := d.queue(t, b, description)
	assert.True(t, ir.IsCode(err, ir.CodeInvalidState), "got %v", err)
	assert.False(t, d.released(t))
	assert.Equal(t, 0, testutil.Balance(t, d.l, d.tr.Address()).Cmp(ir.Ether(25)))
}

func TestState_WindowBoundaries(t *testing.T) {
	f := defaultFixture()
	f.settings.VotingDelay = 2
	d := deployDAO(t, f)
	id := d.propose(t, d.releaseBatch(), description)

	var snapshot, deadline int64
	testutil.View(t, d.l, func(env *ledger.Env) error {
		g := env.Enter(d.gov.Address())
		var err error
		if snapshot, err = d.gov.ProposalSnapshot(g, id); err != nil {
			return err
		}
		deadline, err = d.gov.ProposalDeadline(g, id)
		return err
	})
	created := testutil.Height(t, d.l)
	assert.Equal(t, created+2, snapshot)
	assert.Equal(t, snapshot+5, deadline)

	// Block created+1 votes are rejected; nothing is mined by a rejection.
	err := d.vote(t, voters[0], id, For)
	assert.True(t, ir.IsCode(err, ir.CodeInvalidState), "vote before the snapshot: %v", err)

	testutil.Mine(t, d.l, 1) // height = snapshot - 1
	err = d.vote(t, voters[0], id, For)
	assert.True(t, ir.IsCode(err, ir.CodeInvalidState), "vote in the snapshot block: %v", err)
	testutil.Mine(t, d.l, 1) // height = snapshot
	assert.Equal(t, Pending, d.state(t, id))

	require.NoError(t, d.vote(t, voters[0], id, For)) // snapshot + 1
	assert.Equal(t, Active, d.state(t, id))

	testutil.Mine(t, d.l, 3) // height = deadline - 1
	require.NoError(t, d.vote(t, voters[1], id, For), "the deadline block accepts votes")
	assert.Equal(t, deadline, testutil.Height(t, d.l))

	err = d.vote(t, voters[2], id, For)
	assert.True(t, ir.IsCode(err, ir.CodeInvalidState), "vote after the deadline: %v", err)
	assert.Equal(t, Active, d.state(t, id), "views at the deadline height still read Active")
	testutil.Mine(t, d.l, 1)
	assert.Equal(t, Succeeded, d.state(t, id))
}

func TestCastVote_Rules(t *testing.T) {
	d := deployDAO(t, defaultFixture())
	id := d.propose(t, d.releaseBatch(), description)

	require.NoError(t, d.vote(t, voters[0], id, For))
	err := d.vote(t, voters[0], id, Against)
	assert.True(t, ir.IsCode(err, ir.CodeAlreadyVoted), "got %v", err)
	v := d.votes(t, id)
	assert.Equal(t, 0, v.For.Cmp(ir.Ether(1000)))
	assert.True(t, v.Against.IsZero(), "a rejected second vote leaves tallies unchanged")

	err = d.vote(t, voters[1], id, Support(3))
	assert.True(t, ir.IsCode(err, ir.CodeInvalidArgument), "got %v", err)

	err = d.vote(t, voters[1], ir.Keccak256([]byte("nope")), For)
	assert.True(t, ir.IsCode(err, ir.CodeNotFound), "got %v", err)

	require.NoError(t, d.as(t, voters[1], func(env *ledger.Env) error {
		_, err := d.gov.CastVoteWithReason(env, id, Abstain, "need more detail")
		return err
	}))
	testutil.View(t, d.l, func(env *ledger.Env) error {
		g := env.Enter(d.gov.Address())
		r, found, err := d.gov.GetReceipt(g, id, voters[1])
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, int64(Abstain), r.Support)
		assert.Equal(t, "need more detail", r.Reason)
		voted, err := d.gov.HasVoted(g, id, voters[2])
		assert.False(t, voted)
		return err
	})
}

func TestCastVote_WeightFixedAtSnapshot(t *testing.T) {
	d := deployDAO(t, defaultFixture())
	id := d.propose(t, d.releaseBatch(), description)

	// Tokens acquired after the snapshot do not vote.
	testutil.MustSubmit(t, d.l, voters[1], "Token.transfer", func(env *ledger.Env) error {
		return d.tok.Transfer(env.Enter(d.tok.Address()), voters[0], ir.Ether(1000))
	})
	require.NoError(t, d.vote(t, voters[0], id, For))

	// Moving tokens away after voting does not change the recorded weight.
	testutil.MustSubmit(t, d.l, voters[0], "Token.transfer", func(env *ledger.Env) error {
		return d.tok.Transfer(env.Enter(d.tok.Address()), proposer, ir.Ether(2000))
	})
	v := d.votes(t, id)
	assert.Equal(t, 0, v.For.Cmp(ir.Ether(1000)))

	testutil.View(t, d.l, func(env *ledger.Env) error {
		r, _, err := d.gov.GetReceipt(env.Enter(d.gov.Address()), id, voters[0])
		assert.Equal(t, 0, r.Weight.Cmp(ir.Ether(1000)))
		return err
	})

	// voter2 still votes with its snapshot power.
	require.NoError(t, d.vote(t, voters[1], id, Against))
	v = d.votes(t, id)
	assert.Equal(t, 0, v.Against.Cmp(ir.Ether(1000)))
}

func TestResolution_QuorumAndMajority(t *testing.T) {
	cases := []struct {
		name     string
		supports []Support // per voter, -1 = no vote
		want     State
	}{
		{"quorum met, for wins", []Support{For, -1, -1, -1, -1}, Succeeded},
		{"tie is defeated", []Support{For, Against, -1, -1, -1}, Defeated},
		{"abstain counts to quorum only", []Support{Abstain, -1, -1, -1, -1}, Defeated},
		{"no votes", []Support{-1, -1, -1, -1, -1}, Defeated},
		{"majority for", []Support{For, For, Against, Abstain, -1}, Succeeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := deployDAO(t, defaultFixture())
			id := d.propose(t, d.releaseBatch(), description)
			for i, s := range tc.supports {
				if s < 0 {
					continue
				}
				require.NoError(t, d.vote(t, voters[i], id, s))
			}
			testutil.Mine(t, d.l, 6)
			assert.Equal(t, tc.want, d.state(t, id))
		})
	}
}

func TestResolution_QuorumNotMet(t *testing.T) {
	f := defaultFixture()
	f.allocations[0] = ir.Ether(400) // 400 < 5% of 10000
	d := deployDAO(t, f)
	id := d.propose(t, d.releaseBatch(), description)
	require.NoError(t, d.vote(t, voters[0], id, For))
	testutil.Mine(t, d.l, 6)
	assert.Equal(t, Defeated, d.state(t, id))

	var q ir.Amount
	testutil.View(t, d.l, func(env *ledger.Env) error {
		snap, err := d.gov.ProposalSnapshot(env.Enter(d.gov.Address()), id)
		if err != nil {
			return err
		}
		q, err = d.gov.Quorum(env.Enter(d.gov.Address()), snap)
		return err
	})
	assert.Equal(t, 0, q.Cmp(ir.Ether(500)))
}

func TestPropose_Validation(t *testing.T) {
	f := defaultFixture()
	f.settings.ProposalThreshold = ir.Ether(1)
	d := deployDAO(t, f)

	err := d.as(t, proposer, func(env *ledger.Env) error {
		_, err := d.gov.Propose(env, d.releaseBatch(), description)
		return err
	})
	assert.True(t, ir.IsCode(err, ir.CodeThresholdNotMet), "got %v", err)

	// voter1 holds 1000 delegated votes.
	propose := func(b ir.Batch, desc string) error {
		return d.as(t, voters[0], func(env *ledger.Env) error {
			_, err := d.gov.Propose(env, b, desc)
			return err
		})
	}
	require.NoError(t, propose(d.releaseBatch(), description))
	assert.True(t, ir.IsCode(propose(d.releaseBatch(), description), ir.CodeInvalidState), "duplicate id")
	assert.True(t, ir.IsCode(propose(ir.Batch{}, "empty"), ir.CodeInvalidArgument))
	mismatched := d.releaseBatch()
	mismatched.Values = nil
	assert.True(t, ir.IsCode(propose(mismatched, "mismatch"), ir.CodeInvalidArgument))
}

func TestQueueExecute_WrongStates(t *testing.T) {
	d := deployDAO(t, defaultFixture())
	b := d.releaseBatch()
	id := d.propose(t, b, description)

	err := d.queue(t, b, description)
	assert.True(t, ir.IsCode(err, ir.CodeInvalidState), "queue while Active: %v", err)
	err = d.execute(t, b, description)
	assert.True(t, ir.IsCode(err, ir.CodeInvalidState), "execute before queue: %v", err)
	err = d.queue(t, b, "another description")
	assert.True(t, ir.IsCode(err, ir.CodeNotFound), "unknown proposal: %v", err)

	require.NoError(t, d.vote(t, voters[0], id, For))
	testutil.Mine(t, d.l, 6)
	err = d.execute(t, b, description)
	assert.True(t, ir.IsCode(err, ir.CodeInvalidState), "execute while Succeeded: %v", err)
	require.NoError(t, d.queue(t, b, description))
	err = d.queue(t, b, description)
	assert.True(t, ir.IsCode(err, ir.CodeInvalidState), "queue twice: %v", err)
}

func TestExecute_WaitsForTimelockDelay(t *testing.T) {
	d := deployDAO(t, defaultFixture())
	b := d.releaseBatch()
	id := d.propose(t, b, description)

	// The deployer raises the timelock delay to 3 blocks with its own
	// operation.
	testutil.MustSubmit(t, d.l, deployer, "Timelock.grantRole", func(env *ledger.Env) error {
		return d.tl.GrantRole(env.Enter(d.tl.Address()), timelock.ProposerRole, deployer)
	})
	raise := ir.Batch{
		Targets:   []ir.Address{d.tl.Address()},
		Values:    []ir.Amount{{}},
		Calldatas: [][]byte{timelock.UpdateDelayCalldata(3)},
	}
	testutil.MustSubmit(t, d.l, deployer, "Timelock.schedule", func(env *ledger.Env) error {
		_, err := d.tl.ScheduleBatch(env.Enter(d.tl.Address()), raise, ir.ZeroHash, ir.ZeroHash, 0)
		return err
	})
	testutil.MustSubmit(t, d.l, deployer, "Timelock.execute", func(env *ledger.Env) error {
		return d.tl.ExecuteBatch(env.Enter(d.tl.Address()), raise, ir.ZeroHash, ir.ZeroHash)
	})

	require.NoError(t, d.vote(t, voters[0], id, For))
	testutil.Mine(t, d.l, 6)
	require.NoError(t, d.queue(t, b, description))

	var eta int64
	testutil.View(t, d.l, func(env *ledger.Env) error {
		var err error
		eta, err = d.gov.ProposalEta(env.Enter(d.gov.Address()), id)
		return err
	})
	assert.Equal(t, testutil.Height(t, d.l)+3, eta)

	err := d.execute(t, b, description)
	assert.True(t, ir.IsCode(err, ir.CodeNotReady), "got %v", err)
	assert.Equal(t, Queued, d.state(t, id))

	testutil.Mine(t, d.l, 2)
	require.NoError(t, d.execute(t, b, description))
	assert.True(t, d.released(t))
}

func TestExpired(t *testing.T) {
	f := defaultFixture()
	f.settings.GracePeriod = 10
	d := deployDAO(t, f)
	b := d.releaseBatch()
	id := d.propose(t, b, description)
	require.NoError(t, d.vote(t, voters[0], id, For))

	var deadline int64
	testutil.View(t, d.l, func(env *ledger.Env) error {
		var err error
		deadline, err = d.gov.ProposalDeadline(env.Enter(d.gov.Address()), id)
		return err
	})
	testutil.Mine(t, d.l, deadline+10-testutil.Height(t, d.l))
	assert.Equal(t, Succeeded, d.state(t, id), "last block of the grace window")
	testutil.Mine(t, d.l, 1)
	assert.Equal(t, Expired, d.state(t, id))

	err := d.queue(t, b, description)
	assert.True(t, ir.IsCode(err, ir.CodeInvalidState), "got %v", err)
}

func TestExpired_QueuedNotExecuted(t *testing.T) {
	f := defaultFixture()
	f.settings.GracePeriod = 4
	d := deployDAO(t, f)
	b := d.releaseBatch()
	id := d.propose(t, b, description)
	require.NoError(t, d.vote(t, voters[0], id, For))
	testutil.Mine(t, d.l, 5)
	require.NoError(t, d.queue(t, b, description))

	testutil.Mine(t, d.l, 5)
	assert.Equal(t, Expired, d.state(t, id))
	err := d.execute(t, b, description)
	assert.True(t, ir.IsCode(err, ir.CodeInvalidState), "got %v", err)
	assert.False(t, d.released(t))
}

func TestExpired_WidestGraceWindow(t *testing.T) {
	f := defaultFixture()
	f.settings.GracePeriod = ir.MaxBlocks
	d := deployDAO(t, f)
	b := d.releaseBatch()
	id := d.propose(t, b, description)
	require.NoError(t, d.vote(t, voters[0], id, For))

	var deadline int64
	testutil.View(t, d.l, func(env *ledger.Env) error {
		var err error
		deadline, err = d.gov.ProposalDeadline(env.Enter(d.gov.Address()), id)
		return err
	})
	testutil.Mine(t, d.l, deadline+1-testutil.Height(t, d.l))
	assert.Equal(t, Succeeded, d.state(t, id))

	testutil.Mine(t, d.l, deadline+ir.MaxBlocks-testutil.Height(t, d.l))
	assert.Equal(t, Succeeded, d.state(t, id), "last block of the grace window")
	testutil.Mine(t, d.l, 1)
	assert.Equal(t, Expired, d.state(t, id))
}

func TestPropose_DeadlineOverflow(t *testing.T) {
	d := deployDAO(t, defaultFixture())
	testutil.Mine(t, d.l, math.MaxInt64-2-testutil.Height(t, d.l))

	err := d.as(t, proposer, func(env *ledger.Env) error {
		_, err := d.gov.Propose(env, d.releaseBatch(), description)
		return err
	})
	assert.True(t, ir.IsCode(err, ir.CodeInvalidArgument), "got %v", err)
}

func TestCancel(t *testing.T) {
	d := deployDAO(t, defaultFixture())
	b := d.releaseBatch()
	id := d.propose(t, b, description)
	cancel := func(from ir.Address) error {
		return d.as(t, from, func(env *ledger.Env) error {
			_, err := d.gov.Cancel(env, b, ir.DescriptionHash(description))
			return err
		})
	}

	assert.True(t, ir.IsCode(cancel(voters[0]), ir.CodeUnauthorized))
	require.NoError(t, cancel(proposer))
	assert.Equal(t, Canceled, d.state(t, id))
	assert.True(t, ir.IsCode(cancel(deployer), ir.CodeInvalidState), "already canceled")

	err := d.vote(t, voters[0], id, For)
	assert.True(t, ir.IsCode(err, ir.CodeInvalidState), "got %v", err)
}

func TestCancel_ByAdminWhileActive(t *testing.T) {
	d := deployDAO(t, defaultFixture())
	b := d.releaseBatch()
	id := d.propose(t, b, description)
	require.NoError(t, d.vote(t, voters[0], id, For))
	assert.Equal(t, Active, d.state(t, id))

	require.NoError(t, d.as(t, deployer, func(env *ledger.Env) error {
		_, err := d.gov.Cancel(env, b, ir.DescriptionHash(description))
		return err
	}))
	testutil.Mine(t, d.l, 6)
	assert.Equal(t, Canceled, d.state(t, id))
}

func TestState_QueuedOperationCancelledOnTimelock(t *testing.T) {
	d := deployDAO(t, defaultFixture())
	b := d.releaseBatch()
	id := d.propose(t, b, description)
	require.NoError(t, d.vote(t, voters[0], id, For))
	testutil.Mine(t, d.l, 5)
	require.NoError(t, d.queue(t, b, description))

	opID, err := ir.OperationID(b, ir.ZeroHash, ir.DescriptionHash(description))
	require.NoError(t, err)
	testutil.MustSubmit(t, d.l, proposer, "Timelock.cancel", func(env *ledger.Env) error {
		return d.tl.Cancel(env.Enter(d.tl.Address()), opID)
	})
	assert.Equal(t, Canceled, d.state(t, id))
}

func TestSettings_OnlyThroughProposal(t *testing.T) {
	d := deployDAO(t, defaultFixture())

	err := d.as(t, deployer, func(env *ledger.Env) error { return d.gov.SetVotingPeriod(env, 10) })
	assert.True(t, ir.IsCode(err, ir.CodeUnauthorized), "got %v", err)

	g := d.gov.Address()
	b := ir.Batch{
		Targets:   []ir.Address{g, g, g, g},
		Values:    []ir.Amount{{}, {}, {}, {}},
		Calldatas: [][]byte{
			SetVotingDelayCalldata(1),
			SetVotingPeriodCalldata(10),
			SetProposalThresholdCalldata(ir.Ether(1)),
			UpdateQuorumNumeratorCalldata(20),
		},
	}
	desc := "Tune governance"
	id := d.propose(t, b, desc)
	for _, v := range voters[:3] {
		require.NoError(t, d.vote(t, v, id, For))
	}
	testutil.Mine(t, d.l, 5)
	require.NoError(t, d.queue(t, b, desc))
	require.NoError(t, d.execute(t, b, desc))

	testutil.View(t, d.l, func(env *ledger.Env) error {
		ge := env.Enter(g)
		s, err := d.gov.Settings(ge)
		require.NoError(t, err)
		assert.Equal(t, int64(1), s.VotingDelay)
		assert.Equal(t, int64(10), s.VotingPeriod)
		assert.Equal(t, 0, s.ProposalThreshold.Cmp(ir.Ether(1)))
		n, err := d.gov.QuorumNumerator(ge)
		assert.Equal(t, int64(20), n)
		return err
	})

	huge := ir.Batch{
		Targets:   []ir.Address{g},
		Values:    []ir.Amount{{}},
		Calldatas: [][]byte{SetVotingPeriodCalldata(math.MaxInt64)},
	}
	desc2 := "Vote forever"
	// The threshold is now 1 ether and the proposer holds no tokens.
	var id2 ir.Hash
	require.NoError(t, d.as(t, voters[0], func(env *ledger.Env) error {
		var err error
		id2, err = d.gov.Propose(env, huge, desc2)
		return err
	}))
	testutil.Mine(t, d.l, 1)
	for _, v := range voters[:3] {
		require.NoError(t, d.vote(t, v, id2, For))
	}
	testutil.Mine(t, d.l, 10)
	require.NoError(t, d.queue(t, huge, desc2))
	err = d.execute(t, huge, desc2)
	assert.True(t, ir.IsCode(err, ir.CodeInvalidArgument), "got %v", err)

	// The old proposal keeps the quorum in effect at its snapshot.
	testutil.View(t, d.l, func(env *ledger.Env) error {
		ge := env.Enter(g)
		snap, err := d.gov.ProposalSnapshot(ge, id)
		require.NoError(t, err)
		q, err := d.gov.Quorum(ge, snap)
		assert.Equal(t, 0, q.Cmp(ir.Ether(500)))
		return err
	})
}

func TestDeploy_Validation(t *testing.T) {
	l := testutil.NewLedger(t)
	tok := token.At(ir.ContractAddress(deployer, token.Kind))
	tl := timelock.At(ir.ContractAddress(deployer, timelock.Kind))
	for _, s := range []Settings{
		{VotingPeriod: 0, QuorumNumerator: 5},
		{VotingPeriod: 5, QuorumNumerator: 101},
		{VotingPeriod: 5, VotingDelay: -1},
		{VotingPeriod: -5, QuorumNumerator: 5},
		{VotingPeriod: math.MaxInt64, QuorumNumerator: 5},
		{VotingPeriod: 5, VotingDelay: ir.MaxBlocks + 1},
		{VotingPeriod: 5, GracePeriod: math.MaxInt64},
	} {
		err := testutil.Submit(t, l, deployer, "Governance.deploy", func(env *ledger.Env) error {
			_, err := Deploy(env, s, tok, tl)
			return err
		})
		assert.True(t, ir.IsCode(err, ir.CodeInvalidArgument), fmt.Sprintf("%+v: %v", s, err))
	}
}
