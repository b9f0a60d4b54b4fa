package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/dvgov/internal/ir"
)

// Call is one submitted transaction in the call log.
type Call struct {
	ID            string
	FlowToken     string
	Seq           int64
	Block         int64
	Sender        ir.Address
	Action        string
	Args          ir.Object
	LedgerVersion string
	IRVersion     string
}

// Outcome is the single recorded result of a call.
type Outcome struct {
	ID      string
	CallID  string
	Case    ir.Code
	Result  ir.Object
	Message string
	Seq     int64
}

// Event is a contract event emitted while a call executed.
// Events of rejected calls are discarded along with their state changes.
type Event struct {
	CallID   string
	Index    int
	Contract ir.Address
	Name     string
	Fields   ir.Object
}

// Entry pairs a call with its outcome and events for trace output and replay.
type Entry struct {
	Call    Call
	Outcome Outcome
	Events  []Event
}

// WriteCall inserts a call record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (t *Tx) WriteCall(c Call) error {
	argsJSON, err := marshalObject(c.Args)
	if err != nil {
		return fmt.Errorf("write call: %w", err)
	}

	_, err = t.exec(`
		INSERT INTO calls
		(id, flow_token, seq, block, sender, action, args, ledger_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		c.ID,
		c.FlowToken,
		c.Seq,
		c.Block,
		c.Sender,
		c.Action,
		argsJSON,
		c.LedgerVersion,
		c.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write call: %w", err)
	}
	return nil
}

// WriteOutcome inserts the outcome of a call. Each call has exactly one
// outcome (UNIQUE call_id); a second write is silently ignored.
//
// Note: The call referenced by CallID must exist (foreign key constraint).
func (t *Tx) WriteOutcome(o Outcome) error {
	resultJSON, err := marshalObject(o.Result)
	if err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}

	_, err = t.exec(`
		INSERT INTO outcomes
		(id, call_id, output_case, result, message, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		o.ID,
		o.CallID,
		string(o.Case),
		resultJSON,
		o.Message,
		o.Seq,
	)
	if err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}
	return nil
}

// WriteEvents inserts the events of one call in emission order.
func (t *Tx) WriteEvents(events []Event) error {
	for _, e := range events {
		fieldsJSON, err := marshalObject(e.Fields)
		if err != nil {
			return fmt.Errorf("write event %s: %w", e.Name, err)
		}
		_, err = t.exec(`
			INSERT INTO events (call_id, idx, contract, name, fields)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(call_id, idx) DO NOTHING
		`, e.CallID, e.Index, e.Contract, e.Name, fieldsJSON)
		if err != nil {
			return fmt.Errorf("write event %s: %w", e.Name, err)
		}
	}
	return nil
}

// LastSeq returns the highest recorded call seq, or 0 for an empty log.
// The ledger resumes its logical clock from here.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM calls`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq.Int64, nil
}

// ReadFlow returns every call of a flow with its outcome and events.
// Ordered by seq ASC. Returns an empty slice (not nil) for an unknown flow.
func (s *Store) ReadFlow(ctx context.Context, flowToken string) ([]Entry, error) {
	return s.readEntries(ctx, `WHERE c.flow_token = ?`, flowToken)
}

// ReadAll returns the whole call log ordered by seq ASC. Used for replay.
func (s *Store) ReadAll(ctx context.Context) ([]Entry, error) {
	return s.readEntries(ctx, "")
}

// ReadFlowTokens returns the distinct flow tokens in order of first use.
func (s *Store) ReadFlowTokens(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flow_token FROM calls
		GROUP BY flow_token
		ORDER BY MIN(seq) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query flow tokens: %w", err)
	}
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, fmt.Errorf("scan flow token: %w", err)
		}
		tokens = append(tokens, tok)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flow tokens: %w", err)
	}
	return tokens, nil
}

func (s *Store) readEntries(ctx context.Context, where string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.flow_token, c.seq, c.block, c.sender, c.action, c.args,
		       c.ledger_version, c.ir_version,
		       o.id, o.output_case, o.result, o.message, o.seq
		FROM calls c
		JOIN outcomes o ON o.call_id = c.id
		`+where+`
		ORDER BY c.seq ASC, c.id COLLATE BINARY ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e          Entry
			argsJSON   string
			resultJSON string
			outCase    string
		)
		err := rows.Scan(
			&e.Call.ID, &e.Call.FlowToken, &e.Call.Seq, &e.Call.Block, &e.Call.Sender,
			&e.Call.Action, &argsJSON, &e.Call.LedgerVersion, &e.Call.IRVersion,
			&e.Outcome.ID, &outCase, &resultJSON, &e.Outcome.Message, &e.Outcome.Seq,
		)
		if err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		if e.Call.Args, err = unmarshalObject(argsJSON); err != nil {
			return nil, fmt.Errorf("call %s: %w", e.Call.ID, err)
		}
		if e.Outcome.Result, err = unmarshalObject(resultJSON); err != nil {
			return nil, fmt.Errorf("call %s: %w", e.Call.ID, err)
		}
		e.Outcome.CallID = e.Call.ID
		e.Outcome.Case = ir.Code(outCase)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	rows.Close()

	for i := range entries {
		events, err := s.readEvents(ctx, entries[i].Call.ID)
		if err != nil {
			return nil, err
		}
		entries[i].Events = events
	}
	return entries, nil
}

func (s *Store) readEvents(ctx context.Context, callID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, contract, name, fields FROM events
		WHERE call_id = ?
		ORDER BY idx ASC
	`, callID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			e          Event
			fieldsJSON string
		)
		if err := rows.Scan(&e.Index, &e.Contract, &e.Name, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if e.Fields, err = unmarshalObject(fieldsJSON); err != nil {
			return nil, fmt.Errorf("event %s: %w", e.Name, err)
		}
		e.CallID = callID
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
