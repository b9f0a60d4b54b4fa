package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dvgov/internal/config"
	"github.com/roach88/dvgov/internal/dao"
	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/ledger"
	"github.com/roach88/dvgov/internal/store"
	"github.com/roach88/dvgov/internal/testutil"
)

func delegateSetup() []Step {
	var steps []Step
	for _, v := range []string{"voter1", "voter2", "voter3", "voter4", "voter5"} {
		steps = append(steps, Step{As: v, Invoke: "Token.delegate"})
	}
	return steps
}

func baseScenario(name string, flow ...Step) *Scenario {
	return &Scenario{
		Name:        name,
		Description: name,
		Genesis:     config.Default().Genesis,
		FlowToken:   "test-flow-" + name,
		Setup:       delegateSetup(),
		Flow:        flow,
		Assertions:  []Assertion{{Type: AssertTraceCount, Action: "Token.delegate", Count: 5}},
	}
}

func TestRun_TracesEveryCall(t *testing.T) {
	s := baseScenario("transfer", Step{
		As:     "voter1",
		Invoke: "Token.transfer",
		Args:   map[string]any{"to": "voter2", "amount": "10 ether"},
		Expect: &ExpectClause{Case: "Ok"},
	})

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 12, "5 setup calls and 1 flow call, each with a completion")
	inv, comp := result.Trace[10], result.Trace[11]
	assert.Equal(t, TraceInvocation, inv.Type)
	assert.Equal(t, "Token.transfer", inv.ActionURI)
	assert.Equal(t, "voter1", inv.From)
	assert.Equal(t, ir.String("voter2"), inv.Args["to"])
	assert.Equal(t, int64(7), inv.Seq)
	assert.Equal(t, int64(7), inv.Block)

	assert.Equal(t, TraceCompletion, comp.Type)
	assert.Equal(t, "Ok", comp.OutputCase)
	require.Len(t, comp.Events, 3)
	assert.Equal(t, "Transfer", comp.Events[0].Name)
	assert.Equal(t, "token", comp.Events[0].Contract)
	assert.Equal(t, "DelegateVotesChanged", comp.Events[1].Name)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	s := baseScenario("mismatch",
		Step{
			As:     "voter1",
			Invoke: "Token.transfer",
			Args:   map[string]any{"to": "voter2", "amount": "5000 ether"},
			Expect: &ExpectClause{Case: "Ok"},
		},
		Step{Mine: 2, Expect: &ExpectClause{Case: "Ok", Result: map[string]any{"blocks": 3}}},
	)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected case Ok, got InsufficientBalance")
	assert.Contains(t, result.Errors[1], "expected result")

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, "Ok", last.OutputCase)
	rejected := result.Trace[len(result.Trace)-3]
	assert.Equal(t, "InsufficientBalance", rejected.OutputCase)
	assert.NotEmpty(t, rejected.Message)
	assert.Empty(t, rejected.Events)
}

func TestRun_SetupMustSucceed(t *testing.T) {
	s := baseScenario("bad_setup", Step{Mine: 1})
	s.Setup = append(s.Setup, Step{As: "voter1", Invoke: "Treasury.release", Args: map[string]any{"beneficiary": "voter1"}})

	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Treasury.release was rejected with Unauthorized")
}

func TestRun_MineDefaultsToZeroSigner(t *testing.T) {
	s := baseScenario("mine", Step{Mine: 3})
	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	inv := result.Trace[len(result.Trace)-2]
	assert.Equal(t, "Ledger.mine", inv.ActionURI)
	assert.Equal(t, "zero", inv.From)
	assert.Equal(t, ir.Object{"blocks": ir.Int(3)}, inv.Args)
}

func TestRun_SkipDeploy(t *testing.T) {
	g := config.Default().Genesis
	obj, err := dao.GenesisObject(g)
	require.NoError(t, err)

	s := &Scenario{
		Name:        "self_deploy",
		Description: "flow deploys the DAO itself",
		SkipDeploy:  true,
		Flow: []Step{
			{As: "voter1", Invoke: dao.ActionDeploy, Args: ir.ToAny(obj).(map[string]any), Expect: &ExpectClause{Case: "Unauthorized"}},
			{As: "executor", Invoke: dao.ActionDeploy, Args: ir.ToAny(obj).(map[string]any), Expect: &ExpectClause{Case: "Ok"}},
		},
		Assertions: []Assertion{
			{Type: AssertFinalState, View: "Treasury.info", Expect: map[string]any{"owner": "timelock"}},
		},
	}
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, int64(1), result.Trace[0].Seq, "no implicit deploy before the flow")
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/release_funds.yaml")
	require.NoError(t, err)

	r1, err := Run(context.Background(), s)
	require.NoError(t, err)
	r2, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, FormatTrace(s.Name, s.FlowToken, r1.Trace), FormatTrace(s.Name, s.FlowToken, r2.Trace))
	assert.Equal(t, r1.Trace, r2.Trace)
}

func TestRun_DatabaseIsReplayable(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/release_funds.yaml")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "scenario.db")
	result, err := Run(context.Background(), s, WithDatabase(path))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	src, err := store.Open(path)
	require.NoError(t, err)
	defer src.Close()

	flows, err := src.ReadFlowTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"scenario-release-funds"}, flows)

	target, err := dao.Open(context.Background(), testutil.NewLedger(t))
	require.NoError(t, err)
	res, err := ledger.Replay(context.Background(), src, target.Ledger(), target.Executor())
	require.NoError(t, err)
	assert.True(t, res.OK(), "mismatches: %v", res.Mismatches)
	assert.Equal(t, 16, res.Calls)
}

func TestScenarios_Golden(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		s, err := LoadScenario(path)
		require.NoError(t, err, path)
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass)
		})
	}
}
