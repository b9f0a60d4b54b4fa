package testutil

// FixedFlowGenerator generates the same flow token every time.
//
// Scenario runs group every call under one flow so that two runs of the
// same scenario produce byte-identical call logs and golden traces.
//
// Unlike ledger.FixedGenerator, which hands out a list of tokens once, this
// generator never runs out.
//
// Thread-safety: FixedFlowGenerator is stateless and safe for concurrent use.
type FixedFlowGenerator struct {
	token string
}

// NewFixedFlowGenerator creates a new fixed flow token generator.
//
// The token is typically set in the scenario YAML:
//
//	flow_token: "scenario-release-funds"
//
// If token is empty, Generate() returns "test-flow-default".
func NewFixedFlowGenerator(token string) *FixedFlowGenerator {
	if token == "" {
		token = "test-flow-default"
	}
	return &FixedFlowGenerator{token: token}
}

// Generate returns the fixed flow token.
//
// Implements ledger.FlowTokenGenerator.
func (g *FixedFlowGenerator) Generate() string {
	return g.token
}
