package dao

import (
	"fmt"
	"strconv"

	"github.com/roach88/dvgov/internal/governance"
	"github.com/roach88/dvgov/internal/ir"
)

// args reads typed action arguments. Every failure is InvalidArgument so
// that malformed input is recorded like any other rejected call.
type args struct {
	obj ir.Object
	d   *DAO
}

func badArg(key string, format string, a ...any) error {
	return ir.Errorf(ir.CodeInvalidArgument, "argument %q: %s", key, fmt.Sprintf(format, a...))
}

func (a args) has(key string) bool {
	_, ok := a.obj[key]
	return ok
}

func (a args) value(key string) (ir.Value, error) {
	v, ok := a.obj[key]
	if !ok {
		return nil, badArg(key, "missing")
	}
	return v, nil
}

func (a args) str(key string) (string, error) {
	v, err := a.value(key)
	if err != nil {
		return "", err
	}
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return strconv.FormatInt(int64(val), 10), nil
	}
	return "", badArg(key, "expected string, got %T", v)
}

func (a args) optStr(key, def string) (string, error) {
	if !a.has(key) {
		return def, nil
	}
	return a.str(key)
}

func (a args) int(key string) (int64, error) {
	v, err := a.value(key)
	if err != nil {
		return 0, err
	}
	switch val := v.(type) {
	case ir.Int:
		return int64(val), nil
	case ir.String:
		n, err := strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return 0, badArg(key, "not an integer: %q", string(val))
		}
		return n, nil
	}
	return 0, badArg(key, "expected integer, got %T", v)
}

func (a args) optInt(key string, def int64) (int64, error) {
	if !a.has(key) {
		return def, nil
	}
	return a.int(key)
}

func (a args) amount(key string) (ir.Amount, error) {
	s, err := a.str(key)
	if err != nil {
		return ir.Amount{}, err
	}
	amt, err := ir.ParseAmount(s)
	if err != nil {
		return ir.Amount{}, badArg(key, "%v", err)
	}
	return amt, nil
}

func (a args) optAmount(key string) (ir.Amount, error) {
	if !a.has(key) {
		return ir.Amount{}, nil
	}
	return a.amount(key)
}

func (a args) address(key string) (ir.Address, error) {
	s, err := a.str(key)
	if err != nil {
		return ir.Address{}, err
	}
	addr, err := a.d.Resolve(s)
	if err != nil {
		return ir.Address{}, badArg(key, "%v", err)
	}
	return addr, nil
}

func (a args) hash(key string) (ir.Hash, error) {
	s, err := a.str(key)
	if err != nil {
		return ir.Hash{}, err
	}
	h, err := ir.ParseHash(s)
	if err != nil {
		return ir.Hash{}, badArg(key, "%v", err)
	}
	return h, nil
}

func (a args) optHash(key string) (ir.Hash, error) {
	if !a.has(key) {
		return ir.ZeroHash, nil
	}
	return a.hash(key)
}

func (a args) support(key string) (governance.Support, error) {
	s, err := a.str(key)
	if err != nil {
		return 0, err
	}
	sup, err := governance.ParseSupport(s)
	if err != nil {
		return 0, badArg(key, "%v", err)
	}
	return sup, nil
}

func (a args) stringList(key string) ([]string, error) {
	v, err := a.value(key)
	if err != nil {
		return nil, err
	}
	list, ok := v.(ir.List)
	if !ok {
		return nil, badArg(key, "expected list, got %T", v)
	}
	out := make([]string, len(list))
	for i, elem := range list {
		switch e := elem.(type) {
		case ir.String:
			out[i] = string(e)
		case ir.Int:
			out[i] = strconv.FormatInt(int64(e), 10)
		default:
			return nil, badArg(key, "[%d]: expected string, got %T", i, elem)
		}
	}
	return out, nil
}

// batch reads a call batch. Targets resolve through the address book and
// values default to zero. Calldata is either raw hex under "calldatas" or
// encoded from "signatures" and "params":
//
//	targets:    [treasury]
//	signatures: ["release(address)"]
//	params:     [[startup]]
func (a args) batch() (ir.Batch, error) {
	targets, err := a.stringList("targets")
	if err != nil {
		return ir.Batch{}, err
	}
	var b ir.Batch
	for _, t := range targets {
		addr, err := a.d.Resolve(t)
		if err != nil {
			return ir.Batch{}, badArg("targets", "%v", err)
		}
		b.Targets = append(b.Targets, addr)
	}

	if a.has("values") {
		values, err := a.stringList("values")
		if err != nil {
			return ir.Batch{}, err
		}
		for _, v := range values {
			amt, err := ir.ParseAmount(v)
			if err != nil {
				return ir.Batch{}, badArg("values", "%v", err)
			}
			b.Values = append(b.Values, amt)
		}
	} else {
		b.Values = make([]ir.Amount, len(b.Targets))
	}

	switch {
	case a.has("calldatas"):
		datas, err := a.stringList("calldatas")
		if err != nil {
			return ir.Batch{}, err
		}
		for _, s := range datas {
			data, err := ir.DecodeHex(s)
			if err != nil {
				return ir.Batch{}, badArg("calldatas", "%v", err)
			}
			b.Calldatas = append(b.Calldatas, data)
		}
	case a.has("signatures"):
		sigs, err := a.stringList("signatures")
		if err != nil {
			return ir.Batch{}, err
		}
		params, err := a.paramLists(len(sigs))
		if err != nil {
			return ir.Batch{}, err
		}
		for i, sig := range sigs {
			data, err := EncodeCalldata(sig, params[i], a.d.Resolve)
			if err != nil {
				return ir.Batch{}, badArg("signatures", "[%d]: %v", i, err)
			}
			b.Calldatas = append(b.Calldatas, data)
		}
	default:
		return ir.Batch{}, badArg("calldatas", "missing; give calldatas or signatures")
	}
	return b, b.Validate()
}

func (a args) paramLists(n int) ([][]string, error) {
	out := make([][]string, n)
	if !a.has("params") {
		return out, nil
	}
	v, _ := a.value("params")
	list, ok := v.(ir.List)
	if !ok || len(list) != n {
		return nil, badArg("params", "expected %d lists, one per signature", n)
	}
	for i, elem := range list {
		inner, ok := elem.(ir.List)
		if !ok {
			return nil, badArg("params", "[%d]: expected list, got %T", i, elem)
		}
		for j, p := range inner {
			switch pv := p.(type) {
			case ir.String:
				out[i] = append(out[i], string(pv))
			case ir.Int:
				out[i] = append(out[i], strconv.FormatInt(int64(pv), 10))
			default:
				return nil, badArg("params", "[%d][%d]: expected scalar, got %T", i, j, p)
			}
		}
	}
	return out, nil
}
