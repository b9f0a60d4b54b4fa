package dao

import (
	"strings"

	"github.com/roach88/dvgov/internal/governance"
	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/timelock"
	"github.com/roach88/dvgov/internal/token"
	"github.com/roach88/dvgov/internal/treasury"
)

// Address book names of the deployed contracts.
const (
	NameToken      = "token"
	NameTimelock   = "timelock"
	NameGovernance = "governance"
	NameTreasury   = "treasury"
)

var contractNames = []string{NameGovernance, NameTimelock, NameToken, NameTreasury}

// AccountAddress resolves a name or hex address without an address book:
// "0x…" parses as an address, "zero" is the zero address and anything else
// is a named account.
func AccountAddress(s string) (ir.Address, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ir.Address{}, ir.Errorf(ir.CodeInvalidArgument, "empty account")
	case strings.HasPrefix(s, "0x"):
		a, err := ir.ParseAddress(s)
		if err != nil {
			return ir.Address{}, ir.Errorf(ir.CodeInvalidArgument, "%v", err)
		}
		return a, nil
	case s == "zero":
		return ir.ZeroAddress, nil
	}
	return ir.AccountAddress(s), nil
}

// ContractAddresses maps address book names to where the genesis deployer
// places each contract. Deployment is deterministic, so this holds before
// and after the deploy call.
func ContractAddresses(deployer ir.Address) map[string]ir.Address {
	return map[string]ir.Address{
		NameToken:      ir.ContractAddress(deployer, token.Kind),
		NameTimelock:   ir.ContractAddress(deployer, timelock.Kind),
		NameGovernance: ir.ContractAddress(deployer, governance.Kind),
		NameTreasury:   ir.ContractAddress(deployer, treasury.Kind),
	}
}

// Resolve resolves s against the address book first ("treasury",
// "governor"), then as an account.
func (d *DAO) Resolve(s string) (ir.Address, error) {
	name := strings.TrimSpace(s)
	if name == "governor" {
		name = NameGovernance
	}
	d.mu.RLock()
	addr, ok := d.book[name]
	d.mu.RUnlock()
	if ok {
		return addr, nil
	}
	return AccountAddress(s)
}

// NameOf returns the address book name or the hex form of addr.
func (d *DAO) NameOf(addr ir.Address) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for name, a := range d.book {
		if a == addr {
			return name
		}
	}
	return addr.Hex()
}
