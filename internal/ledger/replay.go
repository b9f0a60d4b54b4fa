package ledger

// # Replay
//
// The call log is sufficient to rebuild every contract state table. Replay
// feeds the recorded calls, in seq order, to Submit on a fresh ledger with
// the same flow tokens. Because the ledger is deterministic and seqs come
// from the logical clock, the replayed calls get the same seq, block,
// call id and outcome case as the originals. Rejected calls are replayed
// too: they consume a seq and must be rejected again with the same code.
//
// After the last call the state digests of both stores must match.

import (
	"context"
	"fmt"

	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/store"
)

// Executor rebuilds a Tx from a recorded call. The DAO dispatcher is the
// production executor: it maps an action name and args back to Run.
type Executor func(ctx context.Context, l *Ledger, call store.Call) (Receipt, error)

// Mismatch is one call whose replayed outcome differs from the record.
type Mismatch struct {
	Seq      int64
	Action   string
	Field    string
	Recorded string
	Replayed string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("seq %d %s: %s recorded %q, replayed %q", m.Seq, m.Action, m.Field, m.Recorded, m.Replayed)
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Calls          int
	Mismatches     []Mismatch
	RecordedDigest ir.Hash
	ReplayedDigest ir.Hash
}

// OK reports whether every call and the final state matched.
func (r ReplayResult) OK() bool {
	return len(r.Mismatches) == 0 && r.RecordedDigest == r.ReplayedDigest
}

// Replay re-executes source's call log into target, which must be empty.
func Replay(ctx context.Context, source *store.Store, target *Ledger, exec Executor) (ReplayResult, error) {
	var res ReplayResult

	last, err := target.store.LastSeq(ctx)
	if err != nil {
		return res, err
	}
	if last != 0 {
		return res, fmt.Errorf("replay target already has %d calls", last)
	}

	entries, err := source.ReadAll(ctx)
	if err != nil {
		return res, fmt.Errorf("replay: %w", err)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rcpt, err := exec(ctx, target, e.Call)
		if err != nil && ir.CodeOf(err) == ir.CodeInternal && rcpt.CallID == "" {
			return res, fmt.Errorf("replay seq %d: %w", e.Call.Seq, err)
		}
		res.Calls++
		if target.metrics != nil {
			target.metrics.replayedCall.Inc()
		}

		if rcpt.CallID != e.Call.ID {
			res.Mismatches = append(res.Mismatches, Mismatch{
				Seq: e.Call.Seq, Action: e.Call.Action, Field: "call_id",
				Recorded: e.Call.ID, Replayed: rcpt.CallID,
			})
		}
		if rcpt.Case != e.Outcome.Case {
			res.Mismatches = append(res.Mismatches, Mismatch{
				Seq: e.Call.Seq, Action: e.Call.Action, Field: "case",
				Recorded: string(e.Outcome.Case), Replayed: string(rcpt.Case),
			})
		}
	}

	if res.RecordedDigest, err = source.StateDigest(ctx); err != nil {
		return res, err
	}
	if res.ReplayedDigest, err = target.store.StateDigest(ctx); err != nil {
		return res, err
	}

	target.logger.Info("replay finished",
		"calls", res.Calls,
		"mismatches", len(res.Mismatches),
		"digest_match", res.RecordedDigest == res.ReplayedDigest)
	return res, nil
}
