// Package ledger hosts the governance contracts on a small deterministic
// block ledger.
//
// ARCHITECTURE:
//
// Single writer:
// Submit holds the ledger mutex for the whole call and the store runs on a
// single SQLite connection, so calls execute strictly one at a time. Each
// call runs inside one store transaction:
// 1. Seq assigned from the logical Clock, call id derived from (flow, action, sender, args, seq)
// 2. Block = height+1; Tx.Run executes against the sender's Env
// 3. Success: height advanced, call + outcome + events written, commit
// 4. Rejection: everything rolled back, then call + outcome written alone
//
// Frames:
// An Env is one call frame. Contracts call each other through Env.Call
// (calldata routing, value transfer) or Env.Enter (direct message from the
// current contract). All frames of a call share one store transaction, so
// a failure anywhere in a nested call rejects the whole call.
//
// Contracts deployed by a call become routable only when the call commits.
//
// Determinism:
// Nothing reads wall time or randomness except the flow token generator,
// whose output is recorded. Replay feeds the log back through Submit and
// compares outcome cases and the state digest.
package ledger
