package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dvgov/internal/ir"
)

func TestToken_RecordAndBalances(t *testing.T) {
	s := createTestStore(t)
	tx := beginTestTx(t, s)
	tok := addr("token")

	_, found, err := tx.ReadToken(tok)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, tx.WriteToken(TokenInfo{Address: tok, Name: "DAO Vote", Symbol: "DV", TotalSupply: ir.Ether(10)}))
	require.NoError(t, tx.WriteToken(TokenInfo{Address: tok, Name: "DAO Vote", Symbol: "DV", TotalSupply: ir.Ether(12)}))

	info, found, err := tx.ReadToken(tok)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "DV", info.Symbol)
	assert.Equal(t, ir.Ether(12).String(), info.TotalSupply.String())

	bal, err := tx.TokenBalance(tok, addr("alice"))
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	require.NoError(t, tx.SetTokenBalance(tok, addr("alice"), ir.Ether(4)))
	bal, err = tx.TokenBalance(tok, addr("alice"))
	require.NoError(t, err)
	assert.Equal(t, ir.Ether(4).String(), bal.String())
}

func TestToken_Delegates(t *testing.T) {
	s := createTestStore(t)
	tx := beginTestTx(t, s)
	tok := addr("token")

	d, err := tx.Delegate(tok, addr("alice"))
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	require.NoError(t, tx.SetDelegate(tok, addr("alice"), addr("bob")))
	require.NoError(t, tx.SetDelegate(tok, addr("alice"), addr("carol")))

	d, err = tx.Delegate(tok, addr("alice"))
	require.NoError(t, err)
	assert.Equal(t, addr("carol"), d)
}

func TestVoteCheckpoints_SameBlockOverwrites(t *testing.T) {
	s := createTestStore(t)
	tx := beginTestTx(t, s)
	tok, acct := addr("token"), addr("alice")

	require.NoError(t, tx.WriteVotes(tok, acct, 3, ir.Ether(1)))
	require.NoError(t, tx.WriteVotes(tok, acct, 3, ir.Ether(2)))
	require.NoError(t, tx.WriteVotes(tok, acct, 8, ir.Ether(5)))

	cps, err := tx.VoteCheckpoints(tok, acct)
	require.NoError(t, err)
	require.Len(t, cps, 2)
	assert.Equal(t, int64(3), cps[0].Block)
	assert.Equal(t, ir.Ether(2).String(), cps[0].Value.String())
	assert.Equal(t, int64(8), cps[1].Block)

	tests := []struct {
		block int64
		want  ir.Amount
	}{
		{2, ir.Amount{}},
		{3, ir.Ether(2)},
		{7, ir.Ether(2)},
		{8, ir.Ether(5)},
		{100, ir.Ether(5)},
	}
	for _, tt := range tests {
		got, err := tx.VotesAt(tok, acct, tt.block)
		require.NoError(t, err)
		assert.Equal(t, tt.want.String(), got.String(), "block %d", tt.block)
	}
}

func TestSupplyCheckpoints(t *testing.T) {
	s := createTestStore(t)
	tx := beginTestTx(t, s)
	tok := addr("token")

	require.NoError(t, tx.WriteSupply(tok, 1, ir.Ether(100)))
	require.NoError(t, tx.WriteSupply(tok, 4, ir.Ether(150)))

	cps, err := tx.SupplyCheckpoints(tok)
	require.NoError(t, err)
	require.Len(t, cps, 2)
	assert.Equal(t, ir.Ether(150).String(), cps[1].Value.String())

	other, err := tx.SupplyCheckpoints(addr("other"))
	require.NoError(t, err)
	assert.Empty(t, other)
}
