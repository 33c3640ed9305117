package optimize

import "github.com/tsnlang/tsn/internal/ir"

// deadCodeElimination drops any instruction that neither has a side effect
// nor defines a register some later-kept instruction reads.
//
// Grounded on the teacher's constantFolding pass's broader "simplify once
// you know a value is unused" philosophy (src/ir/optimise.go), but unlike
// the teacher's AST this IR is a flat instruction list, so liveness can be
// decided with one backward sweep: walk from the end, keep an instruction
// if it has a side effect (ir.Op.HasSideEffect, which already covers
// Label, so a jump target is never stripped) or if its result register was
// already marked used by something kept further down; keeping an
// instruction marks all of its Uses() as used before moving further back.
// Because every register here has exactly one defining instruction, this
// single pass is exact — there's no need to iterate to a fixpoint the way
// a general dataflow liveness analysis would.
type deadCodeElimination struct{}

func (p *deadCodeElimination) Name() string { return "dead_code_elimination" }

func (p *deadCodeElimination) Apply(fd *ir.FunctionDef) bool {
	instrs := fd.Code.Instructions
	keep := make([]bool, len(instrs))
	used := map[int]bool{}

	for i := len(instrs) - 1; i >= 0; i-- {
		ins := instrs[i]
		necessary := ins.Op.HasSideEffect()
		if !necessary {
			if result, ok := ins.Result(); ok && result.Kind == ir.VRegister && used[result.Reg] {
				necessary = true
			}
		}
		if !necessary {
			continue
		}
		keep[i] = true
		for _, u := range ins.Uses() {
			if u.Kind == ir.VRegister {
				used[u.Reg] = true
			}
		}
	}

	changed := false
	out := make([]ir.Instruction, 0, len(instrs))
	for i, ins := range instrs {
		if keep[i] {
			out = append(out, ins)
		} else {
			changed = true
		}
	}

	if changed {
		fd.Code.Replace(out)
	}
	return changed
}
