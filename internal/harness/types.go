package harness

import "github.com/roach88/dvgov/internal/ir"

// Trace event types.
const (
	TraceInvocation = "invocation"
	TraceCompletion = "completion"
)

// TraceEvent is either the invocation or the completion of one call.
type TraceEvent struct {
	Type      string    `json:"type"` // "invocation" or "completion"
	ActionURI string    `json:"action_uri,omitempty"`
	From      string    `json:"from,omitempty"`
	Args      ir.Object `json:"args,omitempty"`
	Block     int64     `json:"block,omitempty"`

	OutputCase string         `json:"output_case,omitempty"`
	Result     ir.Object      `json:"result,omitempty"`
	Message    string         `json:"message,omitempty"`
	Events     []EmittedEvent `json:"events,omitempty"`

	Seq int64 `json:"seq"`
}

// EmittedEvent is a contract event of a successful call. Contract is the
// address book name where one exists.
type EmittedEvent struct {
	Contract string    `json:"contract"`
	Name     string    `json:"name"`
	Fields   ir.Object `json:"fields"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds an invocation and a completion per call, setup included.
	Trace []TraceEvent `json:"trace"`

	Errors []string `json:"errors,omitempty"`

	// State holds the views evaluated by final_state assertions.
	State map[string]any `json:"state,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddInvocationTrace appends an invocation.
func (r *Result) AddInvocationTrace(actionURI, from string, args ir.Object, seq, block int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:      TraceInvocation,
		ActionURI: actionURI,
		From:      from,
		Args:      args,
		Block:     block,
		Seq:       seq,
	})
}

// AddCompletionTrace appends the completion of the preceding invocation.
func (r *Result) AddCompletionTrace(outputCase string, result ir.Object, message string, events []EmittedEvent, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:       TraceCompletion,
		OutputCase: outputCase,
		Result:     result,
		Message:    message,
		Events:     events,
		Seq:        seq,
	})
}

// tracedCall pairs an invocation with its completion.
type tracedCall struct {
	inv  TraceEvent
	comp TraceEvent
}

func calls(trace []TraceEvent) []tracedCall {
	var out []tracedCall
	for i := 0; i+1 < len(trace); i++ {
		if trace[i].Type == TraceInvocation && trace[i+1].Type == TraceCompletion {
			out = append(out, tracedCall{inv: trace[i], comp: trace[i+1]})
			i++
		}
	}
	return out
}
