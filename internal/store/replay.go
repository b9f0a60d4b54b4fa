package store

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/roach88/dvgov/internal/ir"
)

// FlowState summarizes one flow of the call log.
type FlowState struct {
	FlowToken      string
	Calls          int
	Rejected       int // Calls whose outcome case is not Ok
	LastSeq        int64
	LastBlock      int64
	TerminalStatus ir.Code // Outcome case of the last call, empty for an unknown flow
}

// GetFlowState summarizes a flow.
func (s *Store) GetFlowState(ctx context.Context, flowToken string) (FlowState, error) {
	state := FlowState{FlowToken: flowToken}

	entries, err := s.ReadFlow(ctx, flowToken)
	if err != nil {
		return state, fmt.Errorf("get flow state: %w", err)
	}

	for _, e := range entries {
		state.Calls++
		if e.Outcome.Case != ir.CodeOK {
			state.Rejected++
		}
		if e.Call.Seq > state.LastSeq {
			state.LastSeq = e.Call.Seq
		}
		if e.Call.Block > state.LastBlock {
			state.LastBlock = e.Call.Block
		}
	}
	if len(entries) > 0 {
		state.TerminalStatus = entries[len(entries)-1].Outcome.Case
	}
	return state, nil
}

// stateTables are hashed, in this order, by StateDigest. The call log is
// excluded: it records how the state was reached, not the state.
var stateTables = []struct {
	name    string
	orderBy string
}{
	{"meta", "key"},
	{"contracts", "name"},
	{"native_balances", "address"},
	{"tokens", "address"},
	{"token_balances", "token, holder"},
	{"token_delegates", "token, holder"},
	{"vote_checkpoints", "token, account, block"},
	{"supply_checkpoints", "token, block"},
	{"governors", "address"},
	{"quorum_checkpoints", "governor, block"},
	{"proposals", "governor, id"},
	{"receipts", "governor, proposal_id, voter"},
	{"timelocks", "address"},
	{"timelock_roles", "timelock, role, account"},
	{"timelock_operations", "timelock, id"},
	{"treasuries", "address"},
}

// StateDigest returns a keccak256 digest over every contract state table.
// Two ledgers that executed the same call log have equal digests.
func (s *Store) StateDigest(ctx context.Context) (ir.Hash, error) {
	var buf []byte
	for _, tbl := range stateTables {
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
			"SELECT * FROM %s ORDER BY %s", tbl.name, tbl.orderBy))
		if err != nil {
			return ir.Hash{}, fmt.Errorf("digest %s: %w", tbl.name, err)
		}

		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			return ir.Hash{}, fmt.Errorf("digest %s: %w", tbl.name, err)
		}

		buf = append(buf, tbl.name...)
		buf = append(buf, 0x00)
		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				rows.Close()
				return ir.Hash{}, fmt.Errorf("digest %s: %w", tbl.name, err)
			}
			for _, v := range vals {
				buf = appendDigestValue(buf, v)
				buf = append(buf, 0x1f)
			}
			buf = append(buf, 0x1e)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return ir.Hash{}, fmt.Errorf("digest %s: %w", tbl.name, err)
		}
	}
	return ir.HashWithDomain(ir.DomainState, buf), nil
}

func appendDigestValue(buf []byte, v any) []byte {
	switch val := v.(type) {
	case nil:
		return append(buf, "null"...)
	case []byte:
		return append(buf, hex.EncodeToString(val)...)
	default:
		return fmt.Appendf(buf, "%v", val)
	}
}
