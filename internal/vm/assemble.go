package vm

import (
	"fmt"
	"math"

	"github.com/tsnlang/tsn/internal/ir"
	"github.com/tsnlang/tsn/internal/types"
)

func uint64FromFloat(v float64) uint64 { return math.Float64bits(v) }

// Program is one module's assembled output: a flat, byte-addressed
// instruction stream for every script function, plus the tables the VM
// needs to resolve a call (spec.md §4.9: "multiple VM states may share one
// assembled Program").
type Program struct {
	Code []byte

	// Funcs/FuncIndex are the function table Call's callee immediate
	// indexes into: Funcs[FuncIndex[fn]] == fn for every fn this Program
	// knows about, script or host.
	Funcs     []*types.Function
	FuncIndex map[*types.Function]int

	// FuncBase holds each script function's entry byte offset into Code.
	// Absent for host functions (dispatched through internal/ffi instead).
	FuncBase map[*types.Function]int

	// Frames holds each script function's FrameLayout, consulted by the VM
	// to reserve/release sp across a call.
	Frames map[*types.Function]*FrameLayout

	Module *types.Module
}

// Assemble lowers every function in fns (the regalloc'd, already-optimized
// IR from internal/compiler.Compiler.Output) into one Program. The function
// table is mod.Functions, script and host alike, so a call site's callee
// resolves to a FuncIndex entry when it belongs to mod; fns must hold a body
// for every script function in mod. The bank-relative physical indices
// baked into fd.Code are offset by GPBase/FPBase (see physReg).
func Assemble(mod *types.Module, fns map[*types.Function]*ir.FunctionDef) (*Program, error) {
	p := &Program{
		Funcs:     make([]*types.Function, 0, len(fns)),
		FuncIndex: make(map[*types.Function]int, len(fns)),
		FuncBase:  make(map[*types.Function]int, len(fns)),
		Frames:    make(map[*types.Function]*FrameLayout, len(fns)),
		Module:    mod,
	}
	for _, fn := range mod.Functions {
		p.FuncIndex[fn] = len(p.Funcs)
		p.Funcs = append(p.Funcs, fn)
	}

	as := &assembler{prog: p}
	for _, fn := range mod.Functions {
		if fn.IsHost() {
			continue
		}
		fd, ok := fns[fn]
		if !ok {
			return nil, fmt.Errorf("vm: no compiled body for script function %q", fn.FQN)
		}
		fl := BuildFrameLayout(fd)
		p.Frames[fn] = fl
		buf, err := as.assembleFunction(fd, fl)
		if err != nil {
			return nil, fmt.Errorf("vm: assembling %q: %w", fn.FQN, err)
		}
		p.FuncBase[fn] = len(p.Code)
		p.Code = append(p.Code, buf...)
	}
	return p, nil
}

type assembler struct {
	prog *Program
}

// encWord is one lowered instruction, still carrying an unresolved label
// reference where applicable; labelPos resolves it to a function-local byte
// offset once every label in the function has been seen.
type encWord struct {
	op       Opcode
	r1, r2, r3 int
	flags    Flags
	hasImm   bool
	imm      uint64
	labelRef bool
	label    int
}

func (w encWord) size() int {
	if w.hasImm || w.labelRef {
		return wordSize + immSize
	}
	return wordSize
}

// assembleFunction lowers fd's instruction stream into a function-local byte
// buffer. Jump/branch targets are encoded as byte offsets local to this
// function: the VM tracks the base offset of whichever function is
// currently executing and adds it in, so no cross-function relocation pass
// is needed (see vm.go's dispatch of OpJump/OpBranch).
func (as *assembler) assembleFunction(fd *ir.FunctionDef, fl *FrameLayout) ([]byte, error) {
	fa := &funcAssembler{asm: as, fl: fl, labelPos: map[int]int{}}

	words, err := fa.lower(fd)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, len(words)*wordSize)
	for _, w := range words {
		imm := w.imm
		if w.labelRef {
			off, ok := fa.labelPos[w.label]
			if !ok {
				return nil, fmt.Errorf("unresolved label %d", w.label)
			}
			imm = uint64(int64(off))
		}
		word := make([]byte, wordSize)
		putWord(word, EncodeWord(w.op, w.r1, w.r2, w.r3, w.flags))
		buf = append(buf, word...)
		if w.hasImm || w.labelRef {
			ib := make([]byte, immSize)
			putImm(ib, imm)
			buf = append(buf, ib...)
		}
	}
	return buf, nil
}

// funcAssembler holds the per-function state threaded through lowering: the
// frame layout (for VStackAlloc address materialization), the label
// position table (byte offsets, filled in as labels are encountered), and a
// small round-robin scratch-register picker mirroring regalloc's own
// per-instruction scratch reuse (internal/regalloc/rewrite.go's
// nextScratch).
type funcAssembler struct {
	asm      *assembler
	fl       *FrameLayout
	labelPos map[int]int
	scratchN int
}

func (fa *funcAssembler) nextScratch(floating bool) int {
	pair := [2]int{AsmScratchGP1, AsmScratchGP2}
	if floating {
		pair = [2]int{AsmScratchFP1, AsmScratchFP2}
	}
	r := pair[fa.scratchN%2]
	fa.scratchN++
	return r
}

// lower expands every ir.Instruction in fd into encWords, in order,
// recording each label's current byte offset as it's encountered.
func (fa *funcAssembler) lower(fd *ir.FunctionDef) ([]encWord, error) {
	var out []encWord
	byteOff := 0
	emit := func(w encWord) { out = append(out, w); byteOff += w.size() }

	for _, ins := range fd.Code.Instructions {
		fa.scratchN = 0
		if ins.Op == ir.OpLabel {
			fa.labelPos[ins.Labels[0]] = byteOff
			continue
		}
		if ins.Op == ir.OpMarkIfBegin || ins.Op == ir.OpMarkIfEnd ||
			ins.Op == ir.OpMarkLoopHeader || ins.Op == ir.OpMarkLoopEnd {
			continue
		}
		if err := fa.lowerOne(ins, emit); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// physReg returns v's VM register index, offset into the s*/f* bank by the
// bank base: regalloc leaves v.Reg as a bank-relative physical index (see
// internal/regalloc/rewrite.go), so this file is the one place that knows
// those indices land at GPBase/FPBase in this register file.
func physReg(v ir.Value) int {
	if v.IsFloating() {
		return FPBase + v.Reg
	}
	return GPBase + v.Reg
}

// immBits extracts v's immediate payload as a raw 64-bit pattern, and
// whether it should be interpreted as a float on the other end.
func immBits(v ir.Value) (bits uint64, isFloat bool) {
	switch v.ImmKind {
	case ir.ImmInt:
		return uint64(v.ImmInt), false
	case ir.ImmUint:
		return v.ImmUint, false
	case ir.ImmF32:
		return uint64FromFloat(float64(v.ImmF32)), true
	case ir.ImmF64:
		return uint64FromFloat(v.ImmF64), true
	default:
		// ImmFunction/ImmModule operands are resolved by their owning
		// instruction (call/module_data), never reach here as a bare value.
		return 0, false
	}
}

// forceReg resolves v to a register holding its value, materializing it
// first if necessary: a VStackAlloc local's effective address (sp + frame
// offset) via a synthesized iadd, or a bare immediate via a synthesized cvt
// (the same idiom internal/optimize's constant-folding pass uses to
// materialize a folded value — see foldconst.go).
func (fa *funcAssembler) forceReg(v ir.Value, emit func(encWord)) (int, error) {
	switch v.Kind {
	case ir.VRegister:
		return physReg(v), nil
	case ir.VStackAlloc:
		off, ok := fa.fl.Offset(v.AllocID)
		if !ok {
			return 0, fmt.Errorf("no frame slot for alloc %d", v.AllocID)
		}
		s := fa.nextScratch(false)
		emit(encWord{op: OpIAdd, r1: s, r2: RegSP, flags: FlagOp1Reg | FlagOp2Reg, hasImm: true, imm: uint64(off)})
		return s, nil
	case ir.VImmediate:
		s := fa.nextScratch(v.IsFloating())
		bits, isFloat := immBits(v)
		flags := Flags(0)
		if isFloat {
			flags |= FlagOp3Float
		}
		emit(encWord{op: OpCvt, r1: s, flags: flags, hasImm: true, imm: bits})
		return s, nil
	default:
		return 0, fmt.Errorf("value kind %d cannot be forced into a register", v.Kind)
	}
}

// regOrImm resolves v for an operand slot that may legally be the trailing
// immediate: a register stays a register, an immediate is passed through
// as-is, anything else (a stack-local address, in the rare case an earlier
// pass left one in a slot that permits immediates) is still forced into a
// register since only VRegister/VImmediate are valid in such a slot.
func (fa *funcAssembler) regOrImm(v ir.Value, emit func(encWord)) (reg int, isReg bool, imm uint64, isFloat bool, err error) {
	switch v.Kind {
	case ir.VRegister:
		return physReg(v), true, 0, false, nil
	case ir.VImmediate:
		bits, f := immBits(v)
		return 0, false, bits, f, nil
	default:
		r, err := fa.forceReg(v, emit)
		return r, true, 0, false, err
	}
}

// lowerOne expands one non-meta, non-label ir.Instruction into its encWords.
func (fa *funcAssembler) lowerOne(ins ir.Instruction, emit func(encWord)) error {
	op, ok := irToOpcode[ins.Op]
	if !ok {
		return fmt.Errorf("no vm opcode for ir op %s", ins.Op)
	}

	switch ins.Op {
	case ir.OpJump:
		emit(encWord{op: op, labelRef: true, label: ins.Labels[0]})
		return nil

	case ir.OpBranch:
		cond, err := fa.forceReg(ins.Operands[0], emit)
		if err != nil {
			return err
		}
		emit(encWord{op: op, r1: cond, flags: FlagOp1Reg, labelRef: true, label: ins.Labels[0]})
		return nil

	case ir.OpRet:
		if ins.NumOps > 0 {
			src, err := fa.forceReg(ins.Operands[0], emit)
			if err != nil {
				return err
			}
			dst := ValueReg(ins.Operands[0].Type)
			emit(encWord{op: OpCvt, r1: dst, r2: src, flags: FlagOp1Reg | FlagOp2Reg})
		}
		emit(encWord{op: op})
		return nil

	case ir.OpCall:
		target, _ := ins.CallTarget.(*types.Function)
		idx, ok := fa.asm.prog.FuncIndex[target]
		if !ok {
			return fmt.Errorf("call target %v not in function table", ins.CallTarget)
		}
		var flags Flags
		if target.IsHost() {
			flags |= FlagIsHostCall
		}
		emit(encWord{op: op, flags: flags, hasImm: true, imm: uint64(idx)})
		if ins.NumOps > 0 {
			dst := ins.Operands[0]
			if dst.Kind == ir.VRegister {
				src := ValueReg(dst.Type)
				emit(encWord{op: OpCvt, r1: physReg(dst), r2: src, flags: FlagOp1Reg | FlagOp2Reg})
			}
		}
		return nil

	case ir.OpTerm:
		emit(encWord{op: op})
		return nil

	case ir.OpParam:
		reg, isReg, imm, isFloat, err := fa.regOrImm(ins.Operands[0], emit)
		if err != nil {
			return err
		}
		w := encWord{op: op}
		if isReg {
			w.r1, w.flags = reg, FlagOp1Reg
		} else {
			w.hasImm, w.imm = true, imm
			if isFloat {
				w.flags |= FlagOp3Float
			}
		}
		emit(w)
		return nil

	case ir.OpStackFree:
		reg, err := fa.forceReg(ins.Operands[0], emit)
		if err != nil {
			return err
		}
		emit(encWord{op: op, r1: reg, flags: FlagOp1Reg})
		return nil

	case ir.OpStackAlloc:
		dst, err := fa.forceReg(ins.Operands[0], emit)
		if err != nil {
			return err
		}
		_, _, imm, _, err := fa.regOrImm(ins.Operands[1], emit)
		if err != nil {
			return err
		}
		emit(encWord{op: op, r1: dst, flags: FlagOp1Reg, hasImm: true, imm: imm})
		return nil

	case ir.OpNot, ir.OpCvt:
		dst, err := fa.forceReg(ins.Operands[0], emit)
		if err != nil {
			return err
		}
		reg, isReg, imm, isFloat, err := fa.regOrImm(ins.Operands[1], emit)
		if err != nil {
			return err
		}
		w := encWord{op: op, r1: dst, flags: FlagOp1Reg}
		if isReg {
			w.r2, w.flags = reg, w.flags|FlagOp2Reg
		} else {
			w.hasImm, w.imm = true, imm
			if isFloat {
				w.flags |= FlagOp3Float
			}
		}
		emit(w)
		return nil

	case ir.OpLoad:
		dst, err := fa.forceReg(ins.Operands[0], emit)
		if err != nil {
			return err
		}
		src, err := fa.forceReg(ins.Operands[1], emit)
		if err != nil {
			return err
		}
		_, _, imm, _, err := fa.regOrImm(ins.Operands[2], emit)
		if err != nil {
			return err
		}
		emit(encWord{op: op, r1: dst, r2: src, flags: FlagOp1Reg | FlagOp2Reg, hasImm: true, imm: imm})
		return nil

	case ir.OpStore:
		addr, err := fa.forceReg(ins.Operands[0], emit)
		if err != nil {
			return err
		}
		val, err := fa.forceReg(ins.Operands[1], emit)
		if err != nil {
			return err
		}
		_, _, imm, _, err := fa.regOrImm(ins.Operands[2], emit)
		if err != nil {
			return err
		}
		emit(encWord{op: op, r1: addr, r2: val, flags: FlagOp1Reg | FlagOp2Reg, hasImm: true, imm: imm})
		return nil

	case ir.OpModuleData:
		// Operands[1] (module id) is dropped: a Program assembles exactly
		// one module, so every module_data reference targets it and the
		// slot id alone is enough for the VM to index Program.Module's
		// DataSlots directly. A cross-module reference would need a module
		// table this package doesn't have a caller for yet.
		dst, err := fa.forceReg(ins.Operands[0], emit)
		if err != nil {
			return err
		}
		slotID := ins.Operands[2].ImmInt
		emit(encWord{op: op, r1: dst, flags: FlagOp1Reg, hasImm: true, imm: uint64(slotID)})
		return nil

	default:
		// Binary arithmetic/bitwise/logical/comparison: dst, a, b.
		dst, err := fa.forceReg(ins.Operands[0], emit)
		if err != nil {
			return err
		}
		a, err := fa.forceReg(ins.Operands[1], emit)
		if err != nil {
			return err
		}
		reg, isReg, imm, isFloat, err := fa.regOrImm(ins.Operands[2], emit)
		if err != nil {
			return err
		}
		w := encWord{op: op, r1: dst, r2: a, flags: FlagOp1Reg | FlagOp2Reg}
		if isReg {
			w.r3, w.flags = reg, w.flags|FlagOp3Reg
		} else {
			w.hasImm, w.imm = true, imm
			if isFloat {
				w.flags |= FlagOp3Float
			}
		}
		if isComparison(ins.Op) && ins.Operands[1].IsFloating() {
			// Comparison opcodes (unlike arithmetic's iadd/uadd/fadd/dadd
			// split) are family-polymorphic at the ir.Op level — "operand
			// Type selects the numeric family" — so the VM needs a runtime
			// signal for which compare to run. FlagOp3Float already means
			// "the trailing value is floating" for the immediate case; here
			// it's set unconditionally off the left operand's static type so
			// register/register comparisons get the same signal. Signed vs.
			// unsigned integer comparisons are not distinguished (both
			// compare as signed int64): a known simplification, see
			// DESIGN.md.
			w.flags |= FlagOp3Float
		}
		emit(w)
		return nil
	}
}

func isComparison(op ir.Op) bool {
	switch op {
	case ir.OpLT, ir.OpGT, ir.OpLTE, ir.OpGTE, ir.OpCmp, ir.OpNCmp:
		return true
	default:
		return false
	}
}
