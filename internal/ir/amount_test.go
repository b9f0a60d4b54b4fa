package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"25", "25"},
		{"1ether", "1000000000000000000"},
		{"1000 ether", "1000000000000000000000"},
		{"  7  ", "7"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseAmount_Rejects(t *testing.T) {
	for _, in := range []string{"", "ether", "-1", "1.5", "0x10", "ten"} {
		_, err := ParseAmount(in)
		assert.Error(t, err, in)
	}
}

func TestAmount_ZeroValue(t *testing.T) {
	var a Amount
	assert.True(t, a.IsZero())
	assert.Equal(t, "0", a.String())
	assert.Equal(t, 0, a.Cmp(NewAmount(0)))
}

func TestAmount_Arithmetic(t *testing.T) {
	a := Ether(3)
	b := Ether(1)

	assert.Equal(t, Ether(4).String(), a.Add(b).String())

	diff, ok := a.Sub(b)
	require.True(t, ok)
	assert.Equal(t, Ether(2).String(), diff.String())

	_, ok = b.Sub(a)
	assert.False(t, ok, "underflow must be reported")

	// Inputs are not mutated.
	assert.Equal(t, Ether(3).String(), a.String())
}

func TestAmount_MulDivTruncates(t *testing.T) {
	// 5% of 10,999 wei = 549.95 -> 549
	assert.Equal(t, "549", NewAmount(10999).MulDiv(5, 100).String())
	assert.Equal(t, Ether(500).String(), Ether(10000).MulDiv(5, 100).String())
}

func TestAmount_SQLRoundTrip(t *testing.T) {
	a := MustParseAmount("123456789012345678901234567890")
	v, err := a.Value()
	require.NoError(t, err)

	var back Amount
	require.NoError(t, back.Scan(v))
	assert.Equal(t, 0, a.Cmp(back))

	require.NoError(t, back.Scan([]byte("42")))
	assert.Equal(t, "42", back.String())

	assert.Error(t, back.Scan(int64(42)))
}

func TestParseAmount_Uint256Bound(t *testing.T) {
	maxWord := "115792089237316195423570985008687907853269984665640564039457584007913129639935" // 2^256-1
	a, err := ParseAmount(maxWord)
	require.NoError(t, err)
	assert.False(t, a.Overflows())

	_, err = ParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639936")
	assert.ErrorContains(t, err, "exceeds 256 bits")
	_, err = ParseAmount("1" + strings.Repeat("0", 80))
	assert.Error(t, err)
	_, err = ParseAmount(maxWord + " ether")
	assert.Error(t, err)

	assert.True(t, a.Add(NewAmount(1)).Overflows())
}
