package ledger

import "sync/atomic"

// Clock is the monotonic logical clock that stamps every submitted call.
//
// Seq numbers order the call log. They are never derived from wall time,
// so replaying the log into a fresh ledger reproduces the same seqs and
// therefore the same content-addressed call ids.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// The ledger's single-writer design means only one goroutine calls Next()
// at a time anyway.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used when reopening a ledger to resume after the last recorded call.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
