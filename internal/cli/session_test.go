package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dvgov/internal/ir"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name  string
		json  string
		pairs []string
		want  ir.Object
	}{
		{"empty", "", nil, ir.Object{}},
		{"strings", "", []string{"account=voter1", "amount=25 ether"},
			ir.Object{"account": ir.String("voter1"), "amount": ir.String("25 ether")}},
		{"json values", "", []string{"support=1", "ok=true", "targets=[\"treasury\"]"},
			ir.Object{"support": ir.Int(1), "ok": ir.Bool(true), "targets": ir.List{ir.String("treasury")}}},
		{"hex stays a string", "", []string{"proposalId=0xab"}, ir.Object{"proposalId": ir.String("0xab")}},
		{"empty value", "", []string{"reason="}, ir.Object{"reason": ir.String("")}},
		{"value with equals", "", []string{"reason=a=b"}, ir.Object{"reason": ir.String("a=b")}},
		{"json object", `{"blocks": 3, "to": "voter2"}`, nil,
			ir.Object{"blocks": ir.Int(3), "to": ir.String("voter2")}},
		{"pairs override json", `{"blocks": 3}`, []string{"blocks=4"}, ir.Object{"blocks": ir.Int(4)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.json, tt.pairs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArgs_Errors(t *testing.T) {
	_, err := parseArgs("", []string{"novalue"})
	assert.ErrorContains(t, err, "want key=value")

	_, err = parseArgs("", []string{"=x"})
	assert.ErrorContains(t, err, "want key=value")

	_, err = parseArgs("{", nil)
	assert.ErrorContains(t, err, "invalid --args JSON")

	_, err = parseArgs(`"str"`, nil)
	assert.ErrorContains(t, err, "want an object")

	_, err = parseArgs(`{"x": 1.5}`, nil)
	assert.ErrorContains(t, err, "floats")
}
