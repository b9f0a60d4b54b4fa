package ir

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeccak256_KnownVectors(t *testing.T) {
	// Legacy Keccak, not FIPS SHA3: the empty input digest starts c5d2.
	assert.Equal(t,
		"0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		Keccak256().Hex())
	assert.Equal(t,
		"0x1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8",
		Keccak256([]byte("hello")).Hex())
}

func TestSelectorOf_KnownSelectors(t *testing.T) {
	assert.Equal(t, "0xa9059cbb", SelectorOf("transfer(address,uint256)").String())
	assert.Equal(t, "0xf2fde38b", SelectorOf("transferOwnership(address)").String())
}

func TestHashWithDomain_Separates(t *testing.T) {
	data := []byte("same")
	assert.NotEqual(t, HashWithDomain(DomainCall, data), HashWithDomain(DomainOutcome, data))

	// The separator keeps ("ab", "c") and ("a", "bc") apart.
	assert.NotEqual(t, HashWithDomain("ab", []byte("c")), HashWithDomain("a", []byte("bc")))
}

func sampleBatch() Batch {
	return Batch{
		Targets:   []Address{AccountAddress("treasury")},
		Values:    []Amount{NewAmount(0)},
		Calldatas: [][]byte{EncodeCall("release(address)", AddressWord(AccountAddress("bob")))},
	}
}

func TestProposalID_DeterministicAndSensitive(t *testing.T) {
	dh := DescriptionHash("Proposal #1: release treasury")

	id1, err := ProposalID(sampleBatch(), dh)
	require.NoError(t, err)
	id2, err := ProposalID(sampleBatch(), dh)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	other, err := ProposalID(sampleBatch(), DescriptionHash("Proposal #2"))
	require.NoError(t, err)
	assert.NotEqual(t, id1, other)

	b := sampleBatch()
	b.Values[0] = NewAmount(1)
	changed, err := ProposalID(b, dh)
	require.NoError(t, err)
	assert.NotEqual(t, id1, changed)
}

func TestOperationID_DependsOnSaltAndPredecessor(t *testing.T) {
	b := sampleBatch()
	salt := DescriptionHash("x")

	base, err := OperationID(b, ZeroHash, salt)
	require.NoError(t, err)

	otherSalt, err := OperationID(b, ZeroHash, DescriptionHash("y"))
	require.NoError(t, err)
	assert.NotEqual(t, base, otherSalt)

	withPred, err := OperationID(b, base, salt)
	require.NoError(t, err)
	assert.NotEqual(t, base, withPred)

	// Proposal and operation ids never collide for the same inputs.
	pid, err := ProposalID(b, salt)
	require.NoError(t, err)
	assert.NotEqual(t, pid, base)
}

func TestDescriptionHash_NFC(t *testing.T) {
	assert.Equal(t, DescriptionHash("caf\u00e9"), DescriptionHash("cafe\u0301"))
	assert.Equal(t, Keccak256([]byte("plain")), DescriptionHash("plain"))
}

func TestCallID_StableAndSeqSensitive(t *testing.T) {
	sender := AccountAddress("alice")
	args := Object{"amount": String("5")}

	a, err := CallID("flow", "Token.transfer", sender, args, 1)
	require.NoError(t, err)
	b, err := CallID("flow", "Token.transfer", sender, args, 1)
	require.NoError(t, err)
	c, err := CallID("flow", "Token.transfer", sender, args, 2)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 66)
}

func TestOutcomeID_DependsOnCase(t *testing.T) {
	ok, err := OutcomeID("call", CodeOK, Object{}, 1)
	require.NoError(t, err)
	bad, err := OutcomeID("call", CodeInvalidState, Object{}, 1)
	require.NoError(t, err)
	assert.NotEqual(t, ok, bad)
}

func TestAccountAndContractAddresses(t *testing.T) {
	alice := AccountAddress("alice")
	assert.Equal(t, alice, AccountAddress("alice"))
	assert.NotEqual(t, alice, AccountAddress("bob"))
	assert.False(t, alice.IsZero())

	h := HashWithDomain(DomainAccount, []byte("alice"))
	assert.Equal(t, hex.EncodeToString(h[12:]), alice.Hex()[2:])

	tok := ContractAddress(alice, "token")
	assert.NotEqual(t, tok, ContractAddress(alice, "timelock"))
	assert.NotEqual(t, tok, ContractAddress(AccountAddress("bob"), "token"))
}
