package compiler

import (
	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/types"
)

// isAssignableType reports whether a value of type from may be passed where
// to is expected without an explicit conversion, per spec.md §4.3.2's
// "same-primitive-family" rule: any two numeric types in the same family
// (both integral or both floating) are mutually assignable; everything else
// requires an exact match.
func isAssignableType(from, to *types.DataType) bool {
	if from == to {
		return true
	}
	if from == nil || to == nil {
		return false
	}
	if to.IsPointer() && from.IsPointer() {
		return to.PointeeType == from.PointeeType
	}
	if from.Meta.Integral && to.Meta.Integral {
		return true
	}
	if from.Meta.Floating && to.Meta.Floating {
		return true
	}
	return false
}

// resolveOverload scores every candidate in candidates against argTypes and
// returns the unique best match, per spec.md §4.3.2: an exact type match
// scores 2 per argument, a same-family assignable match scores 1, and any
// unmatched argument disqualifies the candidate outright. Ties at the best
// score are ambiguous; zero surviving candidates is unresolved. Both cases
// are reported through c.Log and nil is returned.
func (c *Compiler) resolveOverload(name string, candidates []*types.Function, argTypes []*types.DataType, loc source.Location) *types.Function {
	var best *types.Function
	bestScore := -1
	tied := 0

	for _, fn := range candidates {
		params := fn.Signature.Arguments[fn.ImplicitArgCount:]
		if len(params) != len(argTypes) {
			continue
		}
		score := 0
		ok := true
		for i, p := range params {
			switch {
			case p.Type == argTypes[i]:
				score += 2
			case isAssignableType(argTypes[i], p.Type):
				score++
			default:
				ok = false
			}
			if !ok {
				break
			}
		}
		if !ok {
			continue
		}
		switch {
		case score > bestScore:
			bestScore = score
			best = fn
			tied = 1
		case score == bestScore:
			tied++
		}
	}

	if best == nil {
		c.Log.Err(diag.CodeNoMatchingOverload, &loc, "no overload of %q matches the given arguments", name)
		return nil
	}
	if tied > 1 {
		c.Log.Err(diag.CodeAmbiguousOverload, &loc, "call to %q is ambiguous among %d equally good overloads", name, tied)
		return nil
	}
	return best
}
