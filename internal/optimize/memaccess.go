package optimize

import "github.com/tsnlang/tsn/internal/ir"

// memoryAccessReduction forwards a stack slot's most recent stored value
// directly into a load that reads the same slot without an intervening
// write, and drops a load that repeats an immediately preceding load of
// the same slot, within a basic block.
//
// Grounded on the teacher's constantFolding pass's general "rewrite this
// node once its inputs are known" shape (src/ir/optimise.go), specialized
// here to Load/Store pairs over ir.VStackAlloc addresses. Two stack
// allocations never alias (the compiler hands out a fresh AllocID per
// stack_alloc and never reuses one for two live objects), so keying by
// (AllocID, offset) is alias-free without a real alias analysis. A Call
// instruction conservatively clears every tracked slot, since a callee may
// have been passed the address of any local and could have mutated it.
type memoryAccessReduction struct{}

func (p *memoryAccessReduction) Name() string { return "memory_access_reduction" }

func (p *memoryAccessReduction) Apply(fd *ir.FunctionDef) bool {
	instrs := fd.Code.Instructions
	cfg := fd.Code.CFG()
	out := make([]ir.Instruction, len(instrs))
	copy(out, instrs)
	changed := false

	type slotKey struct {
		alloc  int
		offset int64
	}

	for _, block := range cfg.Blocks {
		known := map[slotKey]ir.Value{}
		for i := block.Start; i < block.End; i++ {
			ins := out[i]
			switch ins.Op {
			case ir.OpCall:
				known = map[slotKey]ir.Value{}
			case ir.OpStore:
				addr, val := ins.Operands[0], ins.Operands[1]
				if addr.Kind != ir.VStackAlloc {
					continue
				}
				known[slotKey{addr.AllocID, ins.Operands[2].ImmInt}] = val
			case ir.OpLoad:
				dst, addr := ins.Operands[0], ins.Operands[1]
				if addr.Kind != ir.VStackAlloc {
					continue
				}
				k := slotKey{addr.AllocID, ins.Operands[2].ImmInt}
				if prior, ok := known[k]; ok && prior.Type == dst.Type {
					out[i] = ir.Cvt(dst, prior, ins.Loc)
					changed = true
					continue
				}
				known[k] = dst
			}
		}
	}

	if changed {
		fd.Code.Replace(out)
	}
	return changed
}
