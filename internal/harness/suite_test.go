package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarios(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata/scenarios", "all_against_defeated.yaml"),
		filepath.Join("testdata/scenarios", "release_funds.yaml"),
	}, paths)

	single, err := FindScenarios("testdata/scenarios/release_funds.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"testdata/scenarios/release_funds.yaml"}, single)

	_, err = FindScenarios(t.TempDir())
	assert.ErrorContains(t, err, "no scenario files")

	_, err = FindScenarios(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestRunSuite(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("name: broken\n"), 0o644))

	failing := filepath.Join(dir, "failing.yaml")
	require.NoError(t, os.WriteFile(failing, []byte(`
name: failing
description: expects the treasury to be released without a vote
flow:
  - mine: 1
assertions:
  - type: final_state
    view: Treasury.isReleased
    expect: { isReleased: true }
`), 0o644))

	paths := []string{"testdata/scenarios/release_funds.yaml", broken, failing}
	result := RunSuite(context.Background(), paths)

	assert.Equal(t, 3, result.TotalScenarios)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 2, result.Failed)
	assert.False(t, result.OK())
	require.Len(t, result.Failures, 2)

	assert.Equal(t, broken, result.Failures[0].ScenarioPath)
	assert.Contains(t, result.Failures[0].Errors[0], "failed to load scenario")

	assert.Equal(t, "failing", result.Failures[1].Scenario)
	assert.Contains(t, result.Failures[1].Errors[0], "isReleased")
}

func TestRunSuite_GoldenDir(t *testing.T) {
	ctx := context.Background()
	paths := []string{"testdata/scenarios/release_funds.yaml"}

	result := RunSuite(ctx, paths, WithGoldenDir("testdata/golden", false))
	assert.True(t, result.OK(), "%+v", result.Failures)

	result = RunSuite(ctx, paths, WithGoldenDir(t.TempDir(), false))
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].Errors[0], "failed to read golden file")

	dir := t.TempDir()
	result = RunSuite(ctx, paths, WithGoldenDir(dir, true))
	assert.True(t, result.OK())
	assert.FileExists(t, filepath.Join(dir, "release_funds.golden"))
}
