package optimize

import "github.com/tsnlang/tsn/internal/ir"

// copyPropagation replaces every use of a register defined by a pure copy
// (a cvt whose source and destination share exactly the same type, so
// nothing is actually converted) with that copy's source, letting
// dead-code elimination remove the copy afterward.
//
// Grounded on the teacher's *n = *(c0) node-replacement idiom in
// constantFolding (src/ir/optimise.go): there, folding a node to a known
// value overwrites the node in place so every existing reference to it
// sees the replacement directly. Registers here are referenced by id
// rather than by pointer, so the equivalent move is a substitution map
// threaded across the instruction stream instead of an in-place struct
// copy. This is sound without dominance analysis because every virtual
// register in this IR is written by exactly one instruction (the compiler
// never reuses a register id), so a register's single definition is always
// available to any later use in the same function.
type copyPropagation struct{}

func (p *copyPropagation) Name() string { return "copy_propagation" }

func (p *copyPropagation) Apply(fd *ir.FunctionDef) bool {
	instrs := fd.Code.Instructions
	subst := map[int]ir.Value{}
	changed := false

	resolve := func(v ir.Value) ir.Value {
		for v.Kind == ir.VRegister {
			r, ok := subst[v.Reg]
			if !ok {
				break
			}
			v = r
		}
		return v
	}

	out := make([]ir.Instruction, len(instrs))
	for i, ins := range instrs {
		rewritten, did := substituteOperandsResolved(ins, subst, resolve)
		if did {
			changed = true
		}
		if rewritten.Op == ir.OpCvt && rewritten.NumOps == 2 {
			dst := rewritten.Operands[0]
			src := rewritten.Operands[1]
			if dst.Kind == ir.VRegister && src.Type == dst.Type {
				subst[dst.Reg] = resolve(src)
			}
		}
		out[i] = rewritten
	}

	if changed {
		fd.Code.Replace(out)
	}
	return changed
}

// substituteOperandsResolved is substituteOperands generalized to also chase
// transitive substitutions (a copy of a copy) via resolve.
func substituteOperandsResolved(ins ir.Instruction, subst map[int]ir.Value, resolve func(ir.Value) ir.Value) (ir.Instruction, bool) {
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
		if _, ok := subst[op.Reg]; !ok {
			continue
		}
		ins.Operands[i] = resolve(op)
		changed = true
	}
	return ins, changed
}
