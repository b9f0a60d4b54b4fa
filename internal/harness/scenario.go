package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dvgov/internal/config"
	"github.com/roach88/dvgov/internal/dao"
)

// Scenario is a scripted governance flow with expectations.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Genesis is deployed before setup. Fields given in the file overlay
	// the default genesis.
	Genesis config.Genesis `yaml:"genesis,omitempty"`

	// SkipDeploy starts from an empty ledger; the flow must deploy itself.
	SkipDeploy bool `yaml:"skip_deploy,omitempty"`

	// Setup steps establish state and must all succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the scenario under test.
	Flow []Step `yaml:"flow"`

	Assertions []Assertion `yaml:"assertions"`

	// FlowToken groups every call of the run. Defaults to
	// "test-flow-default" so golden traces are stable.
	FlowToken string `yaml:"flow_token,omitempty"`
}

// Step is one signed call, or a number of blocks to mine.
type Step struct {
	// As is the signing account, a name like "voter1", "zero" or a hex
	// address. Defaults to the genesis deployer.
	As string `yaml:"as,omitempty"`

	// Invoke is the action name, e.g. "Governance.propose".
	Invoke string `yaml:"invoke,omitempty"`

	// Mine is shorthand for Ledger.mine with this many blocks.
	Mine int64 `yaml:"mine,omitempty"`

	Args map[string]any `yaml:"args,omitempty"`

	// Expect is checked against the outcome. Without it any outcome is
	// accepted.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause is the expected outcome of a step.
type ExpectClause struct {
	// Case is the outcome case: "Ok" or an error code such as "NotReady".
	Case string `yaml:"case"`

	// Result fields are matched by subset. Ignored for rejected calls.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion checks the trace or the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Action is used by trace_contains and trace_count.
	Action string `yaml:"action,omitempty"`

	// Args are matched by subset for trace_contains and passed to the view
	// for final_state.
	Args map[string]any `yaml:"args,omitempty"`

	// Case restricts trace_contains and trace_count to one outcome case.
	Case string `yaml:"case,omitempty"`

	// View is the view evaluated by final_state.
	View string `yaml:"view,omitempty"`

	// Expect holds the fields final_state compares.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the exact number of matches for trace_count and, when
	// positive, for event_emitted.
	Count int `yaml:"count,omitempty"`

	// Actions is the expected order for trace_order.
	Actions []string `yaml:"actions,omitempty"`

	// Event and Fields select events for event_emitted.
	Event  string         `yaml:"event,omitempty"`
	Fields map[string]any `yaml:"fields,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertEventEmitted  = "event_emitted"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so that typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	scenario := Scenario{Genesis: config.Default().Genesis}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if !s.SkipDeploy {
		if err := config.ValidateGenesis(s.Genesis); err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
	}

	actions := dao.Actions()
	for i, step := range s.Setup {
		if err := validateStep(step, actions); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step, actions); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	views := dao.Views()
	for i, a := range s.Assertions {
		if err := validateAssertion(a, views); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step, actions []string) error {
	switch {
	case step.Invoke != "" && step.Mine != 0:
		return fmt.Errorf("invoke and mine are exclusive")
	case step.Mine < 0:
		return fmt.Errorf("mine must be positive, got %d", step.Mine)
	case step.Mine > 0:
		if len(step.Args) > 0 {
			return fmt.Errorf("mine takes no args")
		}
	case step.Invoke == "":
		return fmt.Errorf("invoke or mine is required")
	case !slices.Contains(actions, step.Invoke):
		return fmt.Errorf("unknown action %q", step.Invoke)
	}
	if step.Expect != nil && step.Expect.Case == "" {
		return fmt.Errorf("expect: case is required")
	}
	return nil
}

func validateAssertion(a Assertion, views []string) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("action is required for trace_contains")
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("actions list is required for trace_order")
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("action is required for trace_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for trace_count")
		}
	case AssertEventEmitted:
		if a.Event == "" {
			return fmt.Errorf("event is required for event_emitted")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for event_emitted")
		}
	case AssertFinalState:
		if a.View == "" {
			return fmt.Errorf("view is required for final_state")
		}
		if !slices.Contains(views, a.View) {
			return fmt.Errorf("unknown view %q", a.View)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("expect is required for final_state")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
