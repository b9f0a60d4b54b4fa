package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/dvgov/internal/dao"
	"github.com/roach88/dvgov/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent // Included for trace assertions
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, c := range calls(e.Trace) {
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", c.inv.Seq, c.inv.From, c.inv.ActionURI, c.comp.OutputCase)
		}
	}
	return buf.String()
}

// matcher compares expected scenario values with recorded ones.
type matcher struct {
	resolve func(string) (ir.Address, error)
}

func newMatcher(d *dao.DAO) matcher {
	if d == nil {
		return matcher{resolve: dao.AccountAddress}
	}
	return matcher{resolve: d.Resolve}
}

// match reports whether actual contains expected. Objects match by
// subset, lists element by element. A string names the hex address it
// resolves to, and amounts compare by value.
func (m matcher) match(expected, actual ir.Value) bool {
	switch exp := expected.(type) {
	case ir.Object:
		act, ok := actual.(ir.Object)
		if !ok {
			return false
		}
		for k, v := range exp {
			av, ok := act[k]
			if !ok || !m.match(v, av) {
				return false
			}
		}
		return true
	case ir.List:
		act, ok := actual.(ir.List)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !m.match(exp[i], act[i]) {
				return false
			}
		}
		return true
	case ir.String:
		act, ok := actual.(ir.String)
		if !ok {
			return false
		}
		return exp == act || m.sameAddress(string(exp), string(act)) || sameAmount(string(exp), string(act))
	case ir.Int:
		switch act := actual.(type) {
		case ir.Int:
			return exp == act
		case ir.String:
			return sameAmount(fmt.Sprintf("%d", exp), string(act))
		}
		return false
	case ir.Bool:
		act, ok := actual.(ir.Bool)
		return ok && exp == act
	}
	return false
}

func (m matcher) sameAddress(expected, actual string) bool {
	got, err := ir.ParseAddress(actual)
	if err != nil {
		return false
	}
	want, err := m.resolve(expected)
	return err == nil && want == got
}

func sameAmount(expected, actual string) bool {
	want, err := ir.ParseAmount(expected)
	if err != nil {
		return false
	}
	got, err := ir.ParseAmount(actual)
	return err == nil && want.Cmp(got) == 0
}

func (m matcher) matchArgs(expected map[string]any, actual ir.Object) (bool, error) {
	if len(expected) == 0 {
		return true, nil
	}
	want, err := ir.ObjectFromMap(expected)
	if err != nil {
		return false, err
	}
	return m.match(want, actual), nil
}

func assertTraceContains(m matcher, trace []TraceEvent, a Assertion) error {
	for _, c := range calls(trace) {
		if c.inv.ActionURI != a.Action || (a.Case != "" && c.comp.OutputCase != a.Case) {
			continue
		}
		ok, err := m.matchArgs(a.Args, c.inv.Args)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	expected := fmt.Sprintf("action %s with args %v", a.Action, a.Args)
	if a.Case != "" {
		expected += " completing with " + a.Case
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks the first occurrence of each action. Other
// actions may appear in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, c := range calls(trace) {
		if _, seen := positions[c.inv.ActionURI]; !seen {
			positions[c.inv.ActionURI] = i + 1
		}
	}

	for _, action := range a.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", a.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Actions); i++ {
		prev, curr := a.Actions[i-1], a.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", a.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, c := range calls(trace) {
		if c.inv.ActionURI == a.Action && (a.Case == "" || c.comp.OutputCase == a.Case) {
			count++
		}
	}
	if count != a.Count {
		what := a.Action
		if a.Case != "" {
			what += " with " + a.Case
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertEventEmitted(m matcher, trace []TraceEvent, a Assertion) error {
	count := 0
	for _, c := range calls(trace) {
		for _, e := range c.comp.Events {
			if e.Name != a.Event {
				continue
			}
			ok, err := m.matchArgs(a.Fields, e.Fields)
			if err != nil {
				return err
			}
			if ok {
				count++
			}
		}
	}
	switch {
	case a.Count > 0 && count != a.Count:
		return &AssertionError{
			Type:     AssertEventEmitted,
			Expected: fmt.Sprintf("%d %s events with fields %v", a.Count, a.Event, a.Fields),
			Actual:   fmt.Sprintf("%d matching events", count),
			Trace:    trace,
		}
	case count == 0:
		return &AssertionError{
			Type:     AssertEventEmitted,
			Expected: fmt.Sprintf("%s event with fields %v", a.Event, a.Fields),
			Actual:   "no matching event",
			Trace:    trace,
		}
	}
	return nil
}

func assertFinalState(ctx context.Context, d *dao.DAO, m matcher, result *Result, a Assertion) error {
	args, err := ir.ObjectFromMap(a.Args)
	if err != nil {
		return fmt.Errorf("final_state %s args: %w", a.View, err)
	}
	got, err := d.Query(ctx, a.View, args)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("view %s", a.View),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	result.State[a.View] = ir.ToAny(got)

	for key, val := range a.Expect {
		want, err := ir.FromAny(val)
		if err != nil {
			return fmt.Errorf("final_state %s expect %q: %w", a.View, key, err)
		}
		actual, ok := got[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("fields of %s: %v", a.View, got.SortedKeys()),
			}
		}
		if !m.match(want, actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s field %q = %v", a.View, key, val),
				Actual:   fmt.Sprintf("%s field %q = %v", a.View, key, ir.ToAny(actual)),
			}
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions and returns the failure
// messages. d answers final_state views and resolves names.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, d *dao.DAO) []string {
	var errs []string
	m := newMatcher(d)

	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(m, result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertEventEmitted:
			err = assertEventEmitted(m, result.Trace, a)
		case AssertFinalState:
			if d == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires a DAO", i)
			} else {
				err = assertFinalState(ctx, d, m, result, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
