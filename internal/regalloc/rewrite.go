package regalloc

import (
	"github.com/tsnlang/tsn/internal/ir"
	"github.com/tsnlang/tsn/internal/types"
)

// rewrite applies the allocator's decisions to fd's instruction stream:
// every surviving virtual register is renumbered to its assigned physical
// index (spec.md §4.7: "the IR uses vreg ids in [0..N)/[0..M) which the VM
// interprets as physical register indices"), and every spilled register
// is replaced by a load immediately before each use and a store
// immediately after its definition, addressed into a single per-function
// spill frame.
func rewrite(fd *ir.FunctionDef, physOf map[int]int, spilled map[int]bool, typeReg *types.TypeRegistry, opts Options) {
	remapValue := func(v *ir.Value) {
		if v.Kind == ir.VRegister {
			if p, ok := physOf[v.Reg]; ok {
				v.Reg = p
			}
		}
	}

	if len(spilled) == 0 {
		out := make([]ir.Instruction, len(fd.Code.Instructions))
		for i, ins := range fd.Code.Instructions {
			for j := 0; j < ins.NumOps; j++ {
				remapValue(&ins.Operands[j])
			}
			out[i] = ins
		}
		fd.Code.Replace(out)
		for i := range fd.Params {
			remapValue(&fd.Params[i])
		}
		return
	}

	sm := NewStackManager()
	regType := firstTypeOf(fd, spilled)
	for r := range spilled {
		t := regType[r]
		size := int64(8)
		if t != nil && t.Meta.Size > 0 {
			size = int64(t.Meta.Size)
		}
		sm.Alloc(r, size)
	}

	frameName := typeReg.AnonymousName("spillframe")
	frameType := typeReg.Declare(frameName)
	typeReg.Complete(frameType, types.Meta{
		Size: int(sm.Size()), POD: true, TriviallyCopyable: true, TriviallyDestruct: true, Anonymous: true,
	}, nil, nil, nil, nil)
	frame := fd.AllocStack(frameType)

	scratchGP := scratchIndices(opts.NumGP)
	scratchFP := scratchIndices(opts.NumFP)

	instrs := fd.Code.Instructions
	out := make([]ir.Instruction, 0, len(instrs)+2*len(spilled))

	for _, ins := range instrs {
		scratchUsed := 0
		nextScratch := func(floating bool) int {
			pool := scratchGP
			if floating {
				pool = scratchFP
			}
			idx := pool[scratchUsed%len(pool)]
			scratchUsed++
			return idx
		}

		rewritten := ins
		var loads []ir.Instruction
		var hasStore bool
		var storeIns ir.Instruction

		start := 0
		if ins.Op.IsAssignment() {
			start = 1
		}
		for i := start; i < ins.NumOps; i++ {
			v := ins.Operands[i]
			if v.Kind != ir.VRegister || !spilled[v.Reg] {
				continue
			}
			offset, _ := sm.Offset(v.Reg)
			sr := nextScratch(v.IsFloating())
			scratchVal := ir.NewRegister(sr, v.Type)
			loads = append(loads, ir.Load(scratchVal, frame, offset, v.Loc))
			rewritten.Operands[i] = scratchVal
		}

		if ins.Op.IsAssignment() && ins.NumOps > 0 {
			res := ins.Operands[0]
			if res.Kind == ir.VRegister && spilled[res.Reg] {
				offset, _ := sm.Offset(res.Reg)
				sr := nextScratch(res.IsFloating())
				scratchVal := ir.NewRegister(sr, res.Type)
				rewritten.Operands[0] = scratchVal
				storeIns = ir.Store(frame, scratchVal, offset, res.Loc)
				hasStore = true
			}
		}

		for j := 0; j < rewritten.NumOps; j++ {
			remapValue(&rewritten.Operands[j])
		}

		out = append(out, loads...)
		out = append(out, rewritten)
		if hasStore {
			out = append(out, storeIns)
		}
	}

	fd.Code.Replace(out)
	for i := range fd.Params {
		remapValue(&fd.Params[i])
	}
}

// firstTypeOf records, for every spilled register, the type carried by its
// first-seen occurrence (a spilled register has exactly one definition, so
// any occurrence agrees on type).
func firstTypeOf(fd *ir.FunctionDef, spilled map[int]bool) map[int]*types.DataType {
	out := map[int]*types.DataType{}
	note := func(v ir.Value) {
		if v.Kind != ir.VRegister || !spilled[v.Reg] {
			return
		}
		if _, ok := out[v.Reg]; !ok {
			out[v.Reg] = v.Type
		}
	}
	for _, p := range fd.Params {
		note(p)
	}
	for _, ins := range fd.Code.Instructions {
		for i := 0; i < ins.NumOps; i++ {
			note(ins.Operands[i])
		}
	}
	return out
}

// scratchIndices returns the top scratchRegs physical indices of a bank
// sized n, the registers held back from ordinary allocation for spill
// reload temporaries. Falls back to index 0 reused for every slot when n
// is too small to reserve a full set, rather than panicking on an
// unreasonably tight register budget.
func scratchIndices(n int) []int {
	if n <= 0 {
		return []int{0}
	}
	idx := make([]int, 0, scratchRegs)
	for i := 0; i < scratchRegs; i++ {
		c := n - 1 - i
		if c < 0 {
			c = 0
		}
		idx = append(idx, c)
	}
	return idx
}
