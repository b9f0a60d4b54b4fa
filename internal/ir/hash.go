package ir

import (
	"fmt"

	"golang.org/x/crypto/sha3"
	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainCall      = "dvgov/call/v1"
	DomainOutcome   = "dvgov/outcome/v1"
	DomainProposal  = "dvgov/proposal/v1"
	DomainOperation = "dvgov/operation/v1"
	DomainAccount   = "dvgov/account/v1"
	DomainContract  = "dvgov/contract/v1"
	DomainState     = "dvgov/state/v1"
)

// Keccak256 hashes the concatenation of data with legacy (Ethereum) Keccak.
func Keccak256(data ...[]byte) Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	h.Sum(out[:0])
	return out
}

// HashWithDomain computes keccak256(domain || 0x00 || data).
// The null separator prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) Hash {
	return Keccak256([]byte(domain), []byte{0x00}, data)
}

// DescriptionHash hashes an NFC-normalized proposal description.
func DescriptionHash(description string) Hash {
	return Keccak256([]byte(norm.NFC.String(description)))
}

// ProposalID derives a proposal identity from its batch and description hash.
// No sequence counter is involved: the same inputs always give the same id.
func ProposalID(b Batch, descriptionHash Hash) (Hash, error) {
	obj := b.Object()
	obj["description_hash"] = String(descriptionHash.Hex())

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return Hash{}, fmt.Errorf("ProposalID: failed to marshal: %w", err)
	}
	return HashWithDomain(DomainProposal, canonical), nil
}

// OperationID derives a timelock operation identity.
func OperationID(b Batch, predecessor, salt Hash) (Hash, error) {
	obj := b.Object()
	obj["predecessor"] = String(predecessor.Hex())
	obj["salt"] = String(salt.Hex())

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return Hash{}, fmt.Errorf("OperationID: failed to marshal: %w", err)
	}
	return HashWithDomain(DomainOperation, canonical), nil
}

// CallID computes the content-addressed id of a submitted transaction.
// The id is stable across replays given the same inputs.
func CallID(flowToken, action string, sender Address, args Object, seq int64) (string, error) {
	obj := Object{
		"flow_token": String(flowToken),
		"action":     String(action),
		"sender":     String(sender.Hex()),
		"args":       args,
		"seq":        Int(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("CallID: failed to marshal: %w", err)
	}
	return HashWithDomain(DomainCall, canonical).Hex(), nil
}

// OutcomeID computes the content-addressed id of a call outcome.
func OutcomeID(callID string, outcome Code, result Object, seq int64) (string, error) {
	obj := Object{
		"call_id": String(callID),
		"case":    String(outcome),
		"result":  result,
		"seq":     Int(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("OutcomeID: failed to marshal: %w", err)
	}
	return HashWithDomain(DomainOutcome, canonical).Hex(), nil
}

// AccountAddress derives the address of a named account ("executor", "voter1").
func AccountAddress(name string) Address {
	h := HashWithDomain(DomainAccount, []byte(name))
	var a Address
	copy(a[:], h[12:])
	return a
}

// ContractAddress derives the address of a contract deployed by deployer.
func ContractAddress(deployer Address, name string) Address {
	h := HashWithDomain(DomainContract, append(deployer[:], name...))
	var a Address
	copy(a[:], h[12:])
	return a
}
