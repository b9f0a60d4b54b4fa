package dao

import (
	"fmt"
	"strings"

	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/timelock"
)

// EncodeCalldata encodes a call to signature with textual params. Supported
// parameter types are address, uint256 (decimal or "<n> ether"), bytes32
// (hex or a timelock role name) and bool. Addresses go through resolve.
func EncodeCalldata(signature string, params []string, resolve func(string) (ir.Address, error)) ([]byte, error) {
	types, err := paramTypes(signature)
	if err != nil {
		return nil, err
	}
	if len(types) != len(params) {
		return nil, fmt.Errorf("%s takes %d params, got %d", signature, len(types), len(params))
	}
	words := make([]ir.Word, len(types))
	for i, typ := range types {
		p := strings.TrimSpace(params[i])
		switch {
		case typ == "address":
			addr, err := resolve(p)
			if err != nil {
				return nil, err
			}
			words[i] = ir.AddressWord(addr)
		case strings.HasPrefix(typ, "uint"):
			amt, err := ir.ParseAmount(p)
			if err != nil {
				return nil, ir.Errorf(ir.CodeInvalidArgument, "param %d: %v", i, err)
			}
			if words[i], err = ir.CheckedAmountWord(amt); err != nil {
				return nil, err
			}
		case typ == "bytes32":
			if role, ok := timelock.RoleByName(p); ok {
				words[i] = ir.HashWord(role)
				continue
			}
			h, err := ir.ParseHash(p)
			if err != nil {
				return nil, err
			}
			words[i] = ir.HashWord(h)
		case typ == "bool":
			switch p {
			case "true":
				words[i] = ir.UintWord(1)
			case "false":
				words[i] = ir.UintWord(0)
			default:
				return nil, fmt.Errorf("param %d: %q is not a bool", i, p)
			}
		default:
			return nil, fmt.Errorf("param type %q is not supported", typ)
		}
	}
	return ir.EncodeCall(signature, words...), nil
}

// paramTypes splits "release(address)" into its parameter types.
func paramTypes(signature string) ([]string, error) {
	open := strings.IndexByte(signature, '(')
	if open <= 0 || !strings.HasSuffix(signature, ")") {
		return nil, fmt.Errorf("malformed signature %q", signature)
	}
	inner := signature[open+1 : len(signature)-1]
	if inner == "" {
		return nil, nil
	}
	types := strings.Split(inner, ",")
	for i, t := range types {
		if t != strings.TrimSpace(t) || t == "" {
			return nil, fmt.Errorf("malformed signature %q: no spaces in canonical signatures", signature)
		}
		types[i] = t
	}
	return types, nil
}
