package ir

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strings"
)

// Address identifies an account or contract on the ledger.
type Address [20]byte

// ZeroAddress is the all-zero address. Granting a role to it opens the role.
var ZeroAddress Address

// ParseAddress parses a 0x-prefixed 40 digit hex address.
func ParseAddress(s string) (Address, error) {
	var a Address
	if err := decodeFixedHex(s, a[:]); err != nil {
		return Address{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	return a, nil
}

// Hex returns the lowercase 0x-prefixed form.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) String() string { return a.Hex() }

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool { return a == ZeroAddress }

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value stores addresses as hex TEXT.
func (a Address) Value() (driver.Value, error) { return a.Hex(), nil }

// Scan reads an address stored as hex TEXT.
func (a *Address) Scan(src any) error {
	s, err := scanText(src)
	if err != nil {
		return err
	}
	return a.UnmarshalText([]byte(s))
}

// Hash is a 32 byte keccak256 digest.
type Hash [32]byte

// ZeroHash is the all-zero hash, used as "no predecessor".
var ZeroHash Hash

// ParseHash parses a 0x-prefixed 64 digit hex hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if err := decodeFixedHex(s, h[:]); err != nil {
		return Hash{}, fmt.Errorf("parse hash %q: %w", s, err)
	}
	return h, nil
}

// Hex returns the lowercase 0x-prefixed form.
func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) String() string { return h.Hex() }

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool { return h == ZeroHash }

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Value stores hashes as hex TEXT.
func (h Hash) Value() (driver.Value, error) { return h.Hex(), nil }

// Scan reads a hash stored as hex TEXT.
func (h *Hash) Scan(src any) error {
	s, err := scanText(src)
	if err != nil {
		return err
	}
	return h.UnmarshalText([]byte(s))
}

// Batch is an ordered set of calls: parallel target, value and calldata arrays.
// Proposals and timelock operations are both identified by a batch.
type Batch struct {
	Targets   []Address `json:"targets"`
	Values    []Amount  `json:"values"`
	Calldatas [][]byte  `json:"calldatas"`
}

// Len returns the number of calls in the batch.
func (b Batch) Len() int { return len(b.Targets) }

// Validate checks that the batch is non-empty and the arrays line up.
func (b Batch) Validate() error {
	if len(b.Targets) == 0 {
		return Errorf(CodeInvalidArgument, "empty batch")
	}
	if len(b.Values) != len(b.Targets) || len(b.Calldatas) != len(b.Targets) {
		return Errorf(CodeInvalidArgument,
			"batch length mismatch: targets=%d values=%d calldatas=%d",
			len(b.Targets), len(b.Values), len(b.Calldatas))
	}
	return nil
}

// Object returns the canonical object form used for hashing and storage.
func (b Batch) Object() Object {
	targets := make(List, len(b.Targets))
	for i, t := range b.Targets {
		targets[i] = String(t.Hex())
	}
	values := make(List, len(b.Values))
	for i, v := range b.Values {
		values[i] = String(v.String())
	}
	calldatas := make(List, len(b.Calldatas))
	for i, c := range b.Calldatas {
		calldatas[i] = String("0x" + hex.EncodeToString(c))
	}
	return Object{
		"targets":   targets,
		"values":    values,
		"calldatas": calldatas,
	}
}

// BatchFromObject is the inverse of Batch.Object.
func BatchFromObject(obj Object) (Batch, error) {
	targets, err := stringList(obj, "targets")
	if err != nil {
		return Batch{}, err
	}
	values, err := stringList(obj, "values")
	if err != nil {
		return Batch{}, err
	}
	calldatas, err := stringList(obj, "calldatas")
	if err != nil {
		return Batch{}, err
	}

	b := Batch{
		Targets:   make([]Address, len(targets)),
		Values:    make([]Amount, len(values)),
		Calldatas: make([][]byte, len(calldatas)),
	}
	for i, s := range targets {
		if b.Targets[i], err = ParseAddress(s); err != nil {
			return Batch{}, err
		}
	}
	for i, s := range values {
		if b.Values[i], err = ParseAmount(s); err != nil {
			return Batch{}, err
		}
	}
	for i, s := range calldatas {
		if b.Calldatas[i], err = DecodeHex(s); err != nil {
			return Batch{}, err
		}
	}
	return b, nil
}

func stringList(obj Object, key string) ([]string, error) {
	raw, ok := obj[key]
	if !ok {
		return nil, fmt.Errorf("missing %q", key)
	}
	list, ok := raw.(List)
	if !ok {
		return nil, fmt.Errorf("%q: expected list, got %T", key, raw)
	}
	out := make([]string, len(list))
	for i, elem := range list {
		s, ok := elem.(String)
		if !ok {
			return nil, fmt.Errorf("%q[%d]: expected string, got %T", key, i, elem)
		}
		out[i] = string(s)
	}
	return out, nil
}

// DecodeHex decodes 0x-prefixed hex of any even length. "" and "0x" are empty.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return []byte{}, nil
	}
	out, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return out, nil
}

func decodeFixedHex(s string, dst []byte) error {
	if !strings.HasPrefix(s, "0x") {
		return fmt.Errorf("missing 0x prefix")
	}
	raw := s[2:]
	if len(raw) != len(dst)*2 {
		return fmt.Errorf("expected %d hex digits, got %d", len(dst)*2, len(raw))
	}
	if _, err := hex.Decode(dst, []byte(raw)); err != nil {
		return err
	}
	return nil
}

func scanText(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("value was not expected type, wanted string, got %T", src)
	}
}
