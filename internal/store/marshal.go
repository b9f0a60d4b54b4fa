package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/dvgov/internal/ir"
)

// marshalObject converts an Object to canonical JSON TEXT for storage.
// Canonical form keeps stored rows byte-identical across replays.
func marshalObject(obj ir.Object) (string, error) {
	if obj == nil {
		obj = ir.Object{}
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal object: %w", err)
	}
	return string(data), nil
}

// unmarshalObject parses canonical JSON TEXT to an Object.
// Uses ir.Object.UnmarshalJSON which keeps large integers exact via json.Number.
func unmarshalObject(data string) (ir.Object, error) {
	if data == "" || data == "{}" {
		return ir.Object{}, nil
	}
	var obj ir.Object
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}
	return obj, nil
}

func marshalBatch(b ir.Batch) (string, error) {
	return marshalObject(b.Object())
}

func unmarshalBatch(data string) (ir.Batch, error) {
	obj, err := unmarshalObject(data)
	if err != nil {
		return ir.Batch{}, err
	}
	b, err := ir.BatchFromObject(obj)
	if err != nil {
		return ir.Batch{}, fmt.Errorf("unmarshal batch: %w", err)
	}
	return b, nil
}
