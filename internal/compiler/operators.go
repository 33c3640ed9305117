package compiler

import (
	"strings"

	"github.com/tsnlang/tsn/internal/ir"
	"github.com/tsnlang/tsn/internal/types"
)

// numericFamily selects which of the four arithmetic instruction families
// (signed/unsigned integral, f32, f64) an operand's type belongs to, per
// spec.md §4.4's per-family opcode split.
type numericFamily int

const (
	famSigned numericFamily = iota
	famUnsigned
	famF32
	famF64
	famNone
)

func family(t *types.DataType) numericFamily {
	if t == nil {
		return famNone
	}
	switch {
	case t.Meta.Floating && t.Meta.Size == 4:
		return famF32
	case t.Meta.Floating:
		return famF64
	case t.Meta.Integral && t.Meta.Unsigned:
		return famUnsigned
	case t.Meta.Integral:
		return famSigned
	}
	return famNone
}

// arithTable maps an arithmetic operator symbol to its per-family opcode,
// indexed by numericFamily.
var arithTable = map[string][4]ir.Op{
	"+": {ir.OpIAdd, ir.OpUAdd, ir.OpFAdd, ir.OpDAdd},
	"-": {ir.OpISub, ir.OpUSub, ir.OpFSub, ir.OpDSub},
	"*": {ir.OpIMul, ir.OpUMul, ir.OpFMul, ir.OpDMul},
	"/": {ir.OpIDiv, ir.OpUDiv, ir.OpFDiv, ir.OpDDiv},
	"%": {ir.OpIMod, ir.OpUMod, ir.OpFMod, ir.OpDMod},
}

// arithOpFor resolves sym against t's numeric family. ok is false when sym
// isn't an arithmetic operator or t isn't a numeric type, signalling the
// caller to fall back to `operator <symbol>` method resolution.
func (c *Compiler) arithOpFor(sym string, t *types.DataType) (ir.Op, bool) {
	row, known := arithTable[sym]
	fam := family(t)
	if !known || fam == famNone {
		return 0, false
	}
	return row[fam], true
}

var bitwiseOps = map[string]ir.Op{
	"&": ir.OpBAnd, "|": ir.OpBOr, "^": ir.OpBXor, "<<": ir.OpSL, ">>": ir.OpSR,
}

var comparisonOps = map[string]ir.Op{
	"<": ir.OpLT, ">": ir.OpGT, "<=": ir.OpLTE, ">=": ir.OpGTE, "==": ir.OpCmp, "!=": ir.OpNCmp,
}

// compoundBase strips the trailing '=' from a compound-assignment operator
// symbol (e.g. "+=" -> "+"), per spec.md §4.3.4: "Compound assignment
// decomposes to op + store." Returns ok=false for plain "=".
func compoundBase(sym string) (string, bool) {
	if sym == "=" || !strings.HasSuffix(sym, "=") {
		return "", false
	}
	return strings.TrimSuffix(sym, "="), true
}
