package ir

import "math"

// MaxBlocks bounds every configured block span: timelock delays, voting
// delays and periods, grace windows.
const MaxBlocks int64 = 1 << 48

// CheckBlocks fails with InvalidArgument unless 0 <= n <= MaxBlocks.
func CheckBlocks(name string, n int64) error {
	switch {
	case n < 0:
		return Errorf(CodeInvalidArgument, "%s %d is negative", name, n)
	case n > MaxBlocks:
		return Errorf(CodeInvalidArgument, "%s %d exceeds %d blocks", name, n, MaxBlocks)
	}
	return nil
}

// AddBlocks returns block + n. A negative n or a sum past math.MaxInt64
// fails with InvalidArgument.
func AddBlocks(block, n int64) (int64, error) {
	if n < 0 {
		return 0, Errorf(CodeInvalidArgument, "block span %d is negative", n)
	}
	if block > math.MaxInt64-n {
		return 0, Errorf(CodeInvalidArgument, "block %d plus %d overflows", block, n)
	}
	return block + n, nil
}

// PastWindow reports whether block lies more than n blocks after start.
// Both blocks are non-negative, so the difference cannot wrap.
func PastWindow(block, start, n int64) bool {
	return block > start && block-start > n
}
