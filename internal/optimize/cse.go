package optimize

import "github.com/tsnlang/tsn/internal/ir"

// commonSubexpression rewrites a pure instruction that recomputes a value
// already computed earlier in the same basic block into a cvt-copy of that
// earlier result, leaving copy propagation and dead-code elimination to
// finish the job.
//
// Grounded on the teacher's constantFolding pass (src/ir/optimise.go) in
// spirit only — the teacher has no CSE pass of its own (VSL programs are
// small enough it never needed one) — so this is built the way the rest of
// the examples pack's compilers structure a block-local value-numbering
// pass: a fresh lookup table per basic block, seeded from
// fd.Code.CFG()'s block boundaries, rather than a whole-function table,
// since a value computed in one block isn't necessarily available on every
// path reaching a later block without control-flow-merge (phi) handling
// this IR doesn't have.
type commonSubexpression struct{}

func (p *commonSubexpression) Name() string { return "common_subexpression" }

func (p *commonSubexpression) Apply(fd *ir.FunctionDef) bool {
	instrs := fd.Code.Instructions
	cfg := fd.Code.CFG()
	out := make([]ir.Instruction, len(instrs))
	copy(out, instrs)
	changed := false

	for _, block := range cfg.Blocks {
		seen := map[string]ir.Value{}
		for i := block.Start; i < block.End; i++ {
			ins := out[i]
			if ins.Op.HasSideEffect() || !ins.Op.IsAssignment() {
				continue
			}
			// A load is not pure: a store between two loads of the same
			// address changes what the second one reads.
			if ins.Op == ir.OpLoad {
				continue
			}
			result, ok := ins.Result()
			if !ok || result.Kind != ir.VRegister {
				continue
			}
			key := insKey(ins)
			if prior, ok := seen[key]; ok {
				out[i] = ir.Cvt(result, prior, ins.Loc)
				changed = true
				continue
			}
			seen[key] = result
		}
	}

	if changed {
		fd.Code.Replace(out)
	}
	return changed
}
