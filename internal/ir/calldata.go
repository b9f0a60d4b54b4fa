package ir

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// Word is one 32 byte calldata argument slot.
type Word [32]byte

// Selector is the 4 byte function identifier at the head of calldata.
type Selector [4]byte

func (s Selector) String() string { return fmt.Sprintf("0x%x", s[:]) }

// SelectorOf returns the first four bytes of keccak256(signature),
// e.g. SelectorOf("release(address)").
func SelectorOf(signature string) Selector {
	var s Selector
	h := Keccak256([]byte(signature))
	copy(s[:], h[:4])
	return s
}

// AddressWord left-pads an address into a word.
func AddressWord(a Address) Word {
	var w Word
	copy(w[12:], a[:])
	return w
}

// UintWord encodes n as a big-endian word.
func UintWord(n uint64) Word {
	var w Word
	binary.BigEndian.PutUint64(w[24:], n)
	return w
}

// AmountWord encodes an amount as a big-endian word. Amounts wider than
// 256 bits are not representable and panic; use CheckedAmountWord for
// amounts that did not come from ParseAmount.
func AmountWord(a Amount) Word {
	w, err := CheckedAmountWord(a)
	if err != nil {
		panic(err)
	}
	return w
}

// CheckedAmountWord is AmountWord for untrusted amounts: values wider than
// 256 bits fail with InvalidArgument.
func CheckedAmountWord(a Amount) (Word, error) {
	if a.Overflows() {
		return Word{}, Errorf(CodeInvalidArgument, "amount %s does not fit in %d bits", a, AmountBits)
	}
	var w Word
	a.big().FillBytes(w[:])
	return w, nil
}

// HashWord wraps a hash as a word.
func HashWord(h Hash) Word { return Word(h) }

// Address decodes an address word. The 12 padding bytes must be zero.
func (w Word) Address() (Address, error) {
	for _, b := range w[:12] {
		if b != 0 {
			return Address{}, Errorf(CodeInvalidArgument, "address word has dirty high bytes")
		}
	}
	var a Address
	copy(a[:], w[12:])
	return a, nil
}

// Uint64 decodes a word that must fit in 63 bits (block counts, delays).
func (w Word) Uint64() (uint64, error) {
	for _, b := range w[:24] {
		if b != 0 {
			return 0, Errorf(CodeInvalidArgument, "word does not fit in 64 bits")
		}
	}
	n := binary.BigEndian.Uint64(w[24:])
	if n > 1<<63-1 {
		return 0, Errorf(CodeInvalidArgument, "word does not fit in int64")
	}
	return n, nil
}

// Amount decodes a word as an unsigned amount.
func (w Word) Amount() Amount {
	return Amount{v: new(big.Int).SetBytes(w[:])}
}

// Hash reinterprets the word as a hash.
func (w Word) Hash() Hash { return Hash(w) }

// EncodeCall builds calldata: selector(signature) followed by the words.
func EncodeCall(signature string, args ...Word) []byte {
	sel := SelectorOf(signature)
	out := make([]byte, 0, 4+32*len(args))
	out = append(out, sel[:]...)
	for _, w := range args {
		out = append(out, w[:]...)
	}
	return out
}

// Call is decoded calldata.
type Call struct {
	Selector Selector
	Args     []Word
}

// DecodeCall splits calldata into selector and words.
func DecodeCall(data []byte) (Call, error) {
	if len(data) < 4 {
		return Call{}, Errorf(CodeInvalidArgument, "calldata shorter than a selector (%d bytes)", len(data))
	}
	body := data[4:]
	if len(body)%32 != 0 {
		return Call{}, Errorf(CodeInvalidArgument, "calldata body is not word aligned (%d bytes)", len(body))
	}
	c := Call{Args: make([]Word, len(body)/32)}
	copy(c.Selector[:], data[:4])
	for i := range c.Args {
		copy(c.Args[i][:], body[i*32:(i+1)*32])
	}
	return c, nil
}

// Arity fails with InvalidArgument unless the call carries exactly n words.
func (c Call) Arity(n int) error {
	if len(c.Args) != n {
		return Errorf(CodeInvalidArgument, "selector %s expects %d arguments, got %d", c.Selector, n, len(c.Args))
	}
	return nil
}
