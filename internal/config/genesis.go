package config

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed genesis.cue
var genesisSchema string

// loadSchema compiles the embedded schema in a fresh context. Contexts
// are not shared between goroutines.
func loadSchema() (*cue.Context, cue.Value, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(genesisSchema, cue.Filename("genesis.cue"))
	if err := v.Err(); err != nil {
		return nil, cue.Value{}, fmt.Errorf("compile genesis schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath("#Genesis"))
	return ctx, def, def.Err()
}

// ValidateGenesis checks g against the #Genesis schema and reports every
// violation with its field path.
func ValidateGenesis(g Genesis) error {
	ctx, def, err := loadSchema()
	if err != nil {
		return err
	}
	v := def.Unify(ctx.Encode(g.Normalized()))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid genesis: %s", formatCUEError(err))
	}
	return nil
}

// Normalized replaces nil lists, which encode as null, with empty ones.
func (g Genesis) Normalized() Genesis {
	if g.Funding == nil {
		g.Funding = []Allocation{}
	}
	if g.Allocations == nil {
		g.Allocations = []Allocation{}
	}
	if g.Timelock.Proposers == nil {
		g.Timelock.Proposers = []string{}
	}
	if g.Timelock.Executors == nil {
		g.Timelock.Executors = []string{}
	}
	return g
}

func formatCUEError(err error) string {
	errs := cueerrors.Errors(err)
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		path := strings.Join(e.Path(), ".")
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if path != "" {
			msg = path + ": " + msg
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return err.Error()
	}
	return strings.Join(msgs, "; ")
}
