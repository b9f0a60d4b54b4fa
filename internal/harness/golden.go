package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// FormatTrace renders a trace one call per line:
//
//	#7 block 7 proposer Governance.propose -> Ok [ProposalCreated]
//
// Hashes and addresses are left out so the rendering only changes when
// the sequence of calls, their outcomes or their events change.
func FormatTrace(scenarioName, flowToken string, trace []TraceEvent) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", scenarioName)
	if flowToken != "" {
		fmt.Fprintf(&buf, "flow: %s\n", flowToken)
	}
	for _, c := range calls(trace) {
		names := make([]string, 0, len(c.comp.Events))
		for _, e := range c.comp.Events {
			names = append(names, e.Name)
		}
		fmt.Fprintf(&buf, "#%d block %d %s %s -> %s [%s]\n",
			c.inv.Seq, c.inv.Block, c.inv.From, c.inv.ActionURI, c.comp.OutputCase, strings.Join(names, " "))
	}
	return buf.Bytes()
}

// RunWithGolden executes a scenario, fails t if it did not pass and
// compares its trace with testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}
	AssertGolden(t, scenario.Name, scenario.FlowToken, result)
	return result, nil
}

// AssertGolden compares an existing result's trace with its golden file.
func AssertGolden(t *testing.T, scenarioName, flowToken string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, FormatTrace(scenarioName, flowToken, result.Trace))
}

// WithGoldenDir makes RunSuite compare the trace of each passing scenario
// with dir/<name>.golden. With update set the file is rewritten instead.
func WithGoldenDir(dir string, update bool) Option {
	return func(o *options) {
		o.goldenDir = dir
		o.update = update
	}
}

// CheckGolden compares a result's trace with dir/<name>.golden, or writes
// it when update is set. It is the non-test counterpart of AssertGolden
// and reads the same files.
func CheckGolden(dir string, update bool, scenario *Scenario, result *Result) error {
	path := filepath.Join(dir, scenario.Name+".golden")
	got := FormatTrace(scenario.Name, scenario.FlowToken, result.Trace)
	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, got, 0o644); err != nil {
			return fmt.Errorf("failed to write golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(want, got) {
		return fmt.Errorf("golden trace %s differs at line %d", path, firstDiffLine(want, got))
	}
	return nil
}

func firstDiffLine(a, b []byte) int {
	al := strings.Split(string(a), "\n")
	bl := strings.Split(string(b), "\n")
	for i := 0; i < len(al) && i < len(bl); i++ {
		if al[i] != bl[i] {
			return i + 1
		}
	}
	return min(len(al), len(bl)) + 1
}
