// Package harness runs governance scenarios against a fresh ledger and
// checks the recorded trace and final state.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: release_funds
//	description: "Approved proposal releases the treasury"
//	flow_token: scenario-release-funds
//	genesis:                      # optional, overlays the default genesis
//	  governance: { votingPeriod: 5 }
//	setup:
//	  - as: voter1
//	    invoke: Token.delegate
//	flow:
//	  - as: proposer
//	    invoke: Governance.propose
//	    args: &release
//	      targets: [treasury]
//	      signatures: ["release(address)"]
//	      params: [[startup]]
//	      description: "Proposal #1"
//	    expect:
//	      case: Ok
//	      result: { snapshot: 7 }
//	  - mine: 1
//	assertions:
//	  - type: trace_order
//	    actions: [Governance.propose, Governance.queue, Governance.execute]
//	  - type: final_state
//	    view: Treasury.info
//	    expect: { isReleased: true, balance: "0" }
//
// Every step is signed by "as" (default: the genesis deployer) and goes
// through the same action dispatcher the CLI uses, so the call log of a
// scenario can be replayed. "mine: n" is shorthand for Ledger.mine.
// Setup steps must succeed; flow steps are checked against their expect
// clause when one is given.
//
// # Assertion Types
//
//   - trace_contains: an action was invoked with matching args (and case)
//   - trace_order: actions were invoked in this order
//   - trace_count: an action was invoked exactly N times
//   - event_emitted: an event with matching fields was emitted
//   - final_state: a view evaluated after the flow matches expected fields
//
// Expected values match by subset: only listed fields are compared.
// Strings that name an account or contract match its hex address, and
// amounts such as "25 ether" match their wei form.
//
// # Deterministic Testing
//
// Each run uses an in-memory database and one fixed flow token, so two
// runs of a scenario produce identical traces. RunWithGolden compares the
// rendered trace against testdata/golden/<name>.golden.
package harness
