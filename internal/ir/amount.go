package ir

import (
	"database/sql/driver"
	"fmt"
	"math/big"
	"strings"
)

// Decimals is the number of decimal places of the token and native currency.
const Decimals = 18

// AmountBits is the width of a uint256 word. Wider amounts are rejected.
const AmountBits = 256

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// Amount is a non-negative arbitrary precision integer quantity (wei units).
// The zero value is 0. Amounts are immutable: every operation returns a new one.
type Amount struct {
	v *big.Int
}

// NewAmount returns n wei.
func NewAmount(n uint64) Amount {
	return Amount{v: new(big.Int).SetUint64(n)}
}

// Ether returns n whole units (n * 10^18 wei).
func Ether(n uint64) Amount {
	return Amount{v: new(big.Int).Mul(new(big.Int).SetUint64(n), weiPerEther)}
}

// ParseAmount parses a decimal integer, optionally suffixed with "ether" to
// scale by 10^18: "25", "1000ether", "1000 ether".
func ParseAmount(s string) (Amount, error) {
	raw := strings.TrimSpace(s)
	scale := false
	if trimmed, ok := strings.CutSuffix(raw, "ether"); ok {
		raw = strings.TrimSpace(trimmed)
		scale = true
	}
	if raw == "" {
		return Amount{}, fmt.Errorf("parse amount %q: empty", s)
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return Amount{}, fmt.Errorf("parse amount %q: not a non-negative integer", s)
		}
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return Amount{}, fmt.Errorf("parse amount %q", s)
	}
	if scale {
		v.Mul(v, weiPerEther)
	}
	if v.BitLen() > AmountBits {
		return Amount{}, fmt.Errorf("parse amount %q: exceeds %d bits", s, AmountBits)
	}
	return Amount{v: v}, nil
}

// MustParseAmount is like ParseAmount but panics on error.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// Big returns a copy of the underlying integer.
func (a Amount) Big() *big.Int { return new(big.Int).Set(a.big()) }

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{v: new(big.Int).Add(a.big(), b.big())}
}

// Overflows reports whether a does not fit in a uint256 word.
func (a Amount) Overflows() bool {
	return a.big().BitLen() > AmountBits
}

// Sub returns a - b, or false if the result would be negative.
func (a Amount) Sub(b Amount) (Amount, bool) {
	if a.Cmp(b) < 0 {
		return Amount{}, false
	}
	return Amount{v: new(big.Int).Sub(a.big(), b.big())}, true
}

// MulDiv returns a * num / den with truncation toward zero.
func (a Amount) MulDiv(num, den uint64) Amount {
	if den == 0 {
		panic("ir: MulDiv by zero")
	}
	v := new(big.Int).Mul(a.big(), new(big.Int).SetUint64(num))
	v.Quo(v, new(big.Int).SetUint64(den))
	return Amount{v: v}
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.big().Cmp(b.big()) }

// IsZero reports whether a == 0.
func (a Amount) IsZero() bool { return a.big().Sign() == 0 }

// String returns the decimal wei representation.
func (a Amount) String() string { return a.big().String() }

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value stores amounts as decimal TEXT; SQLite integers are too narrow.
func (a Amount) Value() (driver.Value, error) { return a.String(), nil }

// Scan reads an amount stored as decimal TEXT.
func (a *Amount) Scan(src any) error {
	s, err := scanText(src)
	if err != nil {
		return err
	}
	return a.UnmarshalText([]byte(s))
}
