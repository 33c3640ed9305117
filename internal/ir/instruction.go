package ir

import (
	"fmt"

	"github.com/tsnlang/tsn/internal/source"
)

// Op enumerates the three-address-code instruction set of spec.md §4.4.
type Op int

const (
	// Memory.
	OpLoad Op = iota
	OpStore
	OpStackAlloc
	OpStackFree
	OpModuleData

	// Arithmetic: signed.
	OpIAdd
	OpISub
	OpIMul
	OpIDiv
	OpIMod
	// Arithmetic: unsigned.
	OpUAdd
	OpUSub
	OpUMul
	OpUDiv
	OpUMod
	// Arithmetic: f32.
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFMod
	// Arithmetic: f64.
	OpDAdd
	OpDSub
	OpDMul
	OpDDiv
	OpDMod

	// Bitwise/shift.
	OpBAnd
	OpBOr
	OpBXor
	OpSL
	OpSR

	// Logical.
	OpLAnd
	OpLOr
	OpNot

	// Comparison (operand Type selects the numeric family).
	OpLT
	OpGT
	OpLTE
	OpGTE
	OpCmp
	OpNCmp

	// Control flow.
	OpLabel
	OpJump
	OpBranch
	OpRet
	OpTerm

	// Calls/arguments.
	OpParam
	OpCall
	OpCvt

	// Meta (advisory; may be dropped before codegen).
	OpMarkIfBegin
	OpMarkIfEnd
	OpMarkLoopHeader
	OpMarkLoopEnd
)

var opNames = map[Op]string{
	OpLoad: "load", OpStore: "store", OpStackAlloc: "stack_alloc", OpStackFree: "stack_free",
	OpModuleData: "module_data",
	OpIAdd: "iadd", OpISub: "isub", OpIMul: "imul", OpIDiv: "idiv", OpIMod: "imod",
	OpUAdd: "uadd", OpUSub: "usub", OpUMul: "umul", OpUDiv: "udiv", OpUMod: "umod",
	OpFAdd: "fadd", OpFSub: "fsub", OpFMul: "fmul", OpFDiv: "fdiv", OpFMod: "fmod",
	OpDAdd: "dadd", OpDSub: "dsub", OpDMul: "dmul", OpDDiv: "ddiv", OpDMod: "dmod",
	OpBAnd: "band", OpBOr: "bor", OpBXor: "bxor", OpSL: "sl", OpSR: "sr",
	OpLAnd: "land", OpLOr: "lor", OpNot: "not",
	OpLT: "lt", OpGT: "gt", OpLTE: "lte", OpGTE: "gte", OpCmp: "cmp", OpNCmp: "ncmp",
	OpLabel: "label", OpJump: "jump", OpBranch: "branch", OpRet: "ret", OpTerm: "term",
	OpParam: "param", OpCall: "call", OpCvt: "cvt",
	OpMarkIfBegin: "mark.if.begin", OpMarkIfEnd: "mark.if.end",
	OpMarkLoopHeader: "mark.loop.header", OpMarkLoopEnd: "mark.loop.end",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// IsAssignment reports whether o writes one of its operands, per spec.md
// §4.4: "An instruction is an assignment iff it writes one of its operands
// (load, stack_alloc, module_data, arithmetic/bitwise/shift/logical/
// comparison/cvt/call-with-result/eq/neg)." This predicate drives liveness
// and dead-code elimination.
func (o Op) IsAssignment() bool {
	switch o {
	case OpLoad, OpStackAlloc, OpModuleData,
		OpIAdd, OpISub, OpIMul, OpIDiv, OpIMod,
		OpUAdd, OpUSub, OpUMul, OpUDiv, OpUMod,
		OpFAdd, OpFSub, OpFMul, OpFDiv, OpFMod,
		OpDAdd, OpDSub, OpDMul, OpDDiv, OpDMod,
		OpBAnd, OpBOr, OpBXor, OpSL, OpSR,
		OpLAnd, OpLOr, OpNot,
		OpLT, OpGT, OpLTE, OpGTE, OpCmp, OpNCmp,
		OpCvt, OpCall:
		return true
	}
	return false
}

// IsTerminator reports whether o ends a basic block with no fallthrough,
// per spec.md §4.5's CFG construction rule for ret/term.
func (o Op) IsTerminator() bool { return o == OpRet || o == OpTerm }

// HasSideEffect reports whether o may affect observable state beyond its
// result register, used by dead-code elimination (spec.md §4.6 step 5:
// "not a call").
func (o Op) HasSideEffect() bool {
	switch o {
	case OpCall, OpStore, OpStackFree, OpParam, OpRet, OpTerm, OpJump, OpBranch, OpLabel:
		return true
	}
	return false
}

// Instruction is one three-address-code instruction, per spec.md §3/§4.4:
// "{op, operands[3], labels[3], src-location}".
type Instruction struct {
	Op       Op
	Operands [3]Value
	NumOps   int // how many of Operands are meaningful
	Labels   [3]int
	NumLabels int
	Loc      source.Location

	// CallTarget is set only for OpCall: the callee function. Kept separate
	// from Operands because a callee isn't a Value in the vreg/immediate
	// sense — it's resolved at compile time against the FunctionRegistry.
	CallTarget interface{} // *types.Function, set by internal/compiler

	wrapper interface{} // scratch, e.g. CSE/copy-prop bookkeeping
}

// Result returns the Value this instruction assigns to, if Op.IsAssignment().
// By convention the result is always Operands[0].
func (ins Instruction) Result() (Value, bool) {
	if !ins.Op.IsAssignment() || ins.NumOps == 0 {
		return Value{}, false
	}
	return ins.Operands[0], true
}

// Uses returns the operands this instruction reads (everything but the
// result slot, when Op.IsAssignment()).
func (ins Instruction) Uses() []Value {
	start := 0
	if ins.Op.IsAssignment() {
		start = 1
	}
	if start >= ins.NumOps {
		return nil
	}
	return append([]Value(nil), ins.Operands[start:ins.NumOps]...)
}

func (ins Instruction) String() string {
	s := ins.Op.String()
	for i := 0; i < ins.NumOps; i++ {
		s += " " + ins.Operands[i].String()
	}
	for i := 0; i < ins.NumLabels; i++ {
		s += fmt.Sprintf(" L%d", ins.Labels[i])
	}
	return s
}

// Label builds a `label id` instruction.
func Label(id int, loc source.Location) Instruction {
	return Instruction{Op: OpLabel, Labels: [3]int{id}, NumLabels: 1, Loc: loc}
}

// Jump builds a `jump label` instruction.
func Jump(label int, loc source.Location) Instruction {
	return Instruction{Op: OpJump, Labels: [3]int{label}, NumLabels: 1, Loc: loc}
}

// Branch builds a `branch cond label` instruction: falls through to the next
// instruction if cond is truthy, else jumps to label (spec.md §4.4).
func Branch(cond Value, label int, loc source.Location) Instruction {
	return Instruction{Op: OpBranch, Operands: [3]Value{cond}, NumOps: 1, Labels: [3]int{label}, NumLabels: 1, Loc: loc}
}

// Ret builds a `ret [value]` instruction. If value is the zero Value
// (Kind==VRegister && Reg==0 is ambiguous with a real register 0; callers
// pass hasValue explicitly instead), hasValue controls whether the operand
// is present.
func Ret(value Value, hasValue bool, loc source.Location) Instruction {
	ins := Instruction{Op: OpRet, Loc: loc}
	if hasValue {
		ins.Operands[0] = value
		ins.NumOps = 1
	}
	return ins
}

// Term builds an abnormal-termination instruction.
func Term(loc source.Location) Instruction { return Instruction{Op: OpTerm, Loc: loc} }

// Param builds a `param value` instruction, appended in call-argument order.
func Param(value Value, loc source.Location) Instruction {
	return Instruction{Op: OpParam, Operands: [3]Value{value}, NumOps: 1, Loc: loc}
}

// Call builds a `call callee [result]` instruction.
func Call(target interface{}, result Value, hasResult bool, loc source.Location) Instruction {
	ins := Instruction{Op: OpCall, CallTarget: target, Loc: loc}
	if hasResult {
		ins.Operands[0] = result
		ins.NumOps = 1
	}
	return ins
}

// Binary builds a two-operand, single-result instruction: `dst = op a, b`.
func Binary(op Op, dst, a, b Value, loc source.Location) Instruction {
	return Instruction{Op: op, Operands: [3]Value{dst, a, b}, NumOps: 3, Loc: loc}
}

// Unary builds a one-operand, single-result instruction: `dst = op a`.
func Unary(op Op, dst, a Value, loc source.Location) Instruction {
	return Instruction{Op: op, Operands: [3]Value{dst, a}, NumOps: 2, Loc: loc}
}

// Load builds `dst = load src[+imm-offset]`.
func Load(dst, src Value, offset int64, loc source.Location) Instruction {
	off := ImmInt64(offset, nil)
	return Instruction{Op: OpLoad, Operands: [3]Value{dst, src, off}, NumOps: 3, Loc: loc}
}

// Store builds `store dst, src[+imm-offset]`.
func Store(dst, src Value, offset int64, loc source.Location) Instruction {
	off := ImmInt64(offset, nil)
	return Instruction{Op: OpStore, Operands: [3]Value{dst, src, off}, NumOps: 3, Loc: loc}
}

// StackAllocInsn builds `dst = stack_alloc imm-size`.
func StackAllocInsn(dst Value, size int64, loc source.Location) Instruction {
	sz := ImmInt64(size, nil)
	return Instruction{Op: OpStackAlloc, Operands: [3]Value{dst, sz}, NumOps: 2, Loc: loc}
}

// StackFreeInsn builds `stack_free alloc`.
func StackFreeInsn(alloc Value, loc source.Location) Instruction {
	return Instruction{Op: OpStackFree, Operands: [3]Value{alloc}, NumOps: 1, Loc: loc}
}

// ModuleDataInsn builds `dst = module_data imm-module-id imm-slot`.
func ModuleDataInsn(dst Value, moduleID uint64, slot int, loc source.Location) Instruction {
	mid := ImmUint64(moduleID, nil)
	sid := ImmInt64(int64(slot), nil)
	return Instruction{Op: OpModuleData, Operands: [3]Value{dst, mid, sid}, NumOps: 3, Loc: loc}
}

// Cvt builds `dst = cvt src` (typed conversion).
func Cvt(dst, src Value, loc source.Location) Instruction {
	return Instruction{Op: OpCvt, Operands: [3]Value{dst, src}, NumOps: 2, Loc: loc}
}
