package optimize

import (
	"fmt"

	"github.com/tsnlang/tsn/internal/ir"
)

// valueKey renders a Value into a string uniquely identifying what it reads,
// for use as a map key by CSE and memory-access reduction. Two Values with
// the same key are guaranteed to read the same data at the point they're
// compared (same register, same immediate, or same stack allocation).
func valueKey(v ir.Value) string {
	switch v.Kind {
	case ir.VRegister:
		return fmt.Sprintf("r%d", v.Reg)
	case ir.VImmediate:
		switch v.ImmKind {
		case ir.ImmInt:
			return fmt.Sprintf("ii%d", v.ImmInt)
		case ir.ImmUint:
			return fmt.Sprintf("iu%d", v.ImmUint)
		case ir.ImmF32:
			return fmt.Sprintf("if%g", v.ImmF32)
		case ir.ImmF64:
			return fmt.Sprintf("id%g", v.ImmF64)
		default:
			return "i?"
		}
	case ir.VStackAlloc:
		return fmt.Sprintf("a%d", v.AllocID)
	case ir.VModuleData:
		return fmt.Sprintf("m%d.%d", v.ModuleID, v.SlotID)
	case ir.VNull:
		return "null"
	default:
		return "poison"
	}
}

// insKey renders an instruction's operator and operand identities into a
// single signature string, for CSE's "have we computed this before" lookup.
// Two pure instructions with the same key compute the same value.
func insKey(ins ir.Instruction) string {
	s := ins.Op.String()
	for _, u := range ins.Uses() {
		s += "|" + valueKey(u)
	}
	return s
}

// substituteOperands rewrites every register operand of ins that appears in
// subst, leaving the result slot (Operands[0] when IsAssignment) untouched.
// Returns the rewritten instruction and whether anything changed.
func substituteOperands(ins ir.Instruction, subst map[int]ir.Value) (ir.Instruction, bool) {
	start := 0
	if ins.Op.IsAssignment() {
		start = 1
	}
	changed := false
	for i := start; i < ins.NumOps; i++ {
		op := ins.Operands[i]
		if op.Kind != ir.VRegister {
			continue
		}
		if repl, ok := subst[op.Reg]; ok {
			ins.Operands[i] = repl
			changed = true
		}
	}
	return ins, changed
}
