package vm

import (
	"encoding/binary"

	"github.com/tsnlang/tsn/internal/ir"
)

// Opcode is the VM's runtime instruction tag, the 8-bit field of spec.md
// §4.9's opcode word. It mirrors ir.Op's arithmetic/memory/control-flow
// split one-for-one (ir.Op's meta marks, MarkIfBegin etc., have no runtime
// meaning and never reach an Opcode — the assembler drops them) plus one
// VM-only addition, OpHalt, the sentinel spec.md §4.10 describes for
// host-to-script calls: "set ra to a sentinel that halts execution on
// return."
type Opcode uint8

const (
	OpLoad Opcode = iota
	OpStore
	OpStackAlloc
	OpStackFree
	OpModuleData

	OpIAdd
	OpISub
	OpIMul
	OpIDiv
	OpIMod
	OpUAdd
	OpUSub
	OpUMul
	OpUDiv
	OpUMod
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFMod
	OpDAdd
	OpDSub
	OpDMul
	OpDDiv
	OpDMod

	OpBAnd
	OpBOr
	OpBXor
	OpSL
	OpSR

	OpLAnd
	OpLOr
	OpNot

	OpLT
	OpGT
	OpLTE
	OpGTE
	OpCmp
	OpNCmp

	OpJump
	OpBranch
	OpRet
	OpTerm

	OpParam
	OpCall
	OpCvt

	OpHalt
)

// Calling convention: a function's return value is always left in v0 (gp)
// or vf0 (fp) when it executes ret, following the teacher-agnostic but
// ubiquitous MIPS-style ABI the register file's own naming already implies
// (v = "value" registers). The assembler lowers `ret value` into a move of
// value into v0/vf0 followed by a bare, 0-operand ret, and lowers a `call
// [result]` into a 1-operand call (the callee, always the trailing
// immediate — see forcedImmediate) followed by a move from v0/vf0 into
// result when hasResult is set. This sidesteps spec.md §4.9's 4-flag scheme
// ever needing to represent "operand entirely absent" (only "register" vs
// "trailing immediate" for a present operand), since ret/call always have
// exactly the arity below regardless of whether the IR instruction carried
// a value.
//
// Jump and branch targets follow the same shape: a resolved jump is always
// a byte offset into the instruction stream, never a register, so Jump's
// sole operand and Branch's second operand are unconditionally the trailing
// immediate too (see forcedImmediate). Branch's first operand, the
// condition, is always a register — an immediate condition is dead code the
// optimizer already eliminates (a constant branch becomes an unconditional
// jump or nothing), so the assembler never needs to canonicalize it.

// irToOpcode maps a compiler ir.Op onto its runtime Opcode. ir.OpLabel has
// no entry: labels are resolved to byte offsets at assembly time and never
// themselves reach the instruction stream, and the Mark* meta ops are
// dropped by the assembler before this lookup is ever consulted.
var irToOpcode = map[ir.Op]Opcode{
	ir.OpLoad: OpLoad, ir.OpStore: OpStore, ir.OpStackAlloc: OpStackAlloc,
	ir.OpStackFree: OpStackFree, ir.OpModuleData: OpModuleData,
	ir.OpIAdd: OpIAdd, ir.OpISub: OpISub, ir.OpIMul: OpIMul, ir.OpIDiv: OpIDiv, ir.OpIMod: OpIMod,
	ir.OpUAdd: OpUAdd, ir.OpUSub: OpUSub, ir.OpUMul: OpUMul, ir.OpUDiv: OpUDiv, ir.OpUMod: OpUMod,
	ir.OpFAdd: OpFAdd, ir.OpFSub: OpFSub, ir.OpFMul: OpFMul, ir.OpFDiv: OpFDiv, ir.OpFMod: OpFMod,
	ir.OpDAdd: OpDAdd, ir.OpDSub: OpDSub, ir.OpDMul: OpDMul, ir.OpDDiv: OpDDiv, ir.OpDMod: OpDMod,
	ir.OpBAnd: OpBAnd, ir.OpBOr: OpBOr, ir.OpBXor: OpBXor, ir.OpSL: OpSL, ir.OpSR: OpSR,
	ir.OpLAnd: OpLAnd, ir.OpLOr: OpLOr, ir.OpNot: OpNot,
	ir.OpLT: OpLT, ir.OpGT: OpGT, ir.OpLTE: OpLTE, ir.OpGTE: OpGTE, ir.OpCmp: OpCmp, ir.OpNCmp: OpNCmp,
	ir.OpJump: OpJump, ir.OpBranch: OpBranch, ir.OpRet: OpRet, ir.OpTerm: OpTerm,
	ir.OpParam: OpParam, ir.OpCall: OpCall, ir.OpCvt: OpCvt,
}

// Flag bits packed into the low nibble of the opcode word, per spec.md
// §4.9: "4 flag bits {op1-assigned, op2-assigned, op3-assigned,
// op3-is-float}". "Assigned" here means "this operand slot holds a
// register index"; an operand slot that is not assigned but is within the
// instruction's arity carries its value in the trailing 64-bit immediate
// word instead (only the last operand of any instruction this assembler
// emits is ever allowed to be an immediate — see assemble.go's
// forceReg/regOrImm). For the three opcodes where the last slot is
// unconditionally an immediate (Jump's target, Branch's target, Call's
// callee — see forcedImmediate), that slot's own "assigned" bit is never
// meaningful and OpCall repurposes FlagOp1Reg's position as FlagIsHostCall
// instead (see DecodedWord.IsHostCall).
const (
	FlagOp1Reg Flags = 1 << iota
	FlagOp2Reg
	FlagOp3Reg
	FlagOp3Float
)

// FlagIsHostCall is FlagOp1Reg's bit position, repurposed for OpCall only:
// Call's sole operand (the callee) is always the trailing immediate, so the
// bit that would otherwise mean "operand 1 is a register" is free and
// instead marks whether the callee is a host function (dispatched through
// internal/ffi) rather than a script function (dispatched by jumping to its
// entry offset).
const FlagIsHostCall = FlagOp1Reg

// Flags is the opcode word's 4-bit flag nibble.
type Flags uint8

// word bit layout: [31:24]=op [23:18]=reg1 [17:12]=reg2 [11:6]=reg3 [5:2]=flags [1:0]=reserved
const (
	opShift    = 24
	reg1Shift  = 18
	reg2Shift  = 12
	reg3Shift  = 6
	flagsShift = 2
	regMask    = 0x3F
	flagsMask  = 0xF
)

// EncodeWord packs one opcode word, per spec.md §4.9/§6's 32-bit layout.
// r1/r2/r3 are physical register indices (0 when the corresponding flag bit
// is unset, i.e. the slot is unused or holds the trailing immediate).
func EncodeWord(op Opcode, r1, r2, r3 int, flags Flags) uint32 {
	return uint32(op)<<opShift |
		uint32(r1&regMask)<<reg1Shift |
		uint32(r2&regMask)<<reg2Shift |
		uint32(r3&regMask)<<reg3Shift |
		uint32(flags&flagsMask)<<flagsShift
}

// DecodedWord is an opcode word split back into its fields.
type DecodedWord struct {
	Op             Opcode
	R1, R2, R3     int
	Flags          Flags
}

// DecodeWord unpacks a 32-bit opcode word.
func DecodeWord(w uint32) DecodedWord {
	return DecodedWord{
		Op:    Opcode(w >> opShift),
		R1:    int((w >> reg1Shift) & regMask),
		R2:    int((w >> reg2Shift) & regMask),
		R3:    int((w >> reg3Shift) & regMask),
		Flags: Flags((w >> flagsShift) & flagsMask),
	}
}

// forcedImmediate reports whether op's last operand slot is always a
// trailing immediate regardless of its "assigned" flag bit: Jump (the jump
// target, a resolved byte offset), Branch (same, as its second operand) and
// Call (the callee, a function-table index) can none of them ever name a
// register in that slot.
func forcedImmediate(op Opcode) bool {
	switch op {
	case OpJump, OpBranch, OpCall:
		return true
	default:
		return false
	}
}

// HasImmediate reports whether this decoded word's instruction carries a
// trailing 64-bit immediate word: always true when forcedImmediate(d.Op),
// otherwise inferred from arity() and the reg-assigned flags, where the last
// operand within the instruction's arity is an immediate exactly when its
// "assigned" flag is clear.
func (d DecodedWord) HasImmediate() bool {
	n := arity(d.Op)
	if n == 0 {
		return false
	}
	if forcedImmediate(d.Op) {
		return true
	}
	switch n {
	case 1:
		return d.Flags&FlagOp1Reg == 0
	case 2:
		return d.Flags&FlagOp2Reg == 0
	default:
		return d.Flags&FlagOp3Reg == 0
	}
}

// IsHostCall reports whether a decoded OpCall targets a host function. Valid
// only when d.Op == OpCall; see FlagIsHostCall.
func (d DecodedWord) IsHostCall() bool { return d.Flags&FlagIsHostCall != 0 }

// ImmediateIsFloat reports whether a present trailing immediate should be
// reinterpreted as an IEEE-754 double rather than a signed/unsigned 64-bit
// integer.
func (d DecodedWord) ImmediateIsFloat() bool { return d.Flags&FlagOp3Float != 0 }

// wordSize/immSize are the byte widths of the two word kinds in the
// instruction stream (spec.md §6: "Instruction streams are little-endian on
// the host").
const (
	wordSize = 4
	immSize  = 8
)

func putWord(buf []byte, w uint32) { binary.LittleEndian.PutUint32(buf, w) }
func getWord(buf []byte) uint32    { return binary.LittleEndian.Uint32(buf) }
func putImm(buf []byte, v uint64)  { binary.LittleEndian.PutUint64(buf, v) }
func getImm(buf []byte) uint64     { return binary.LittleEndian.Uint64(buf) }

// arity returns how many operand slots op's encoded instruction format
// uses (0-3). Unlike ir.Instruction this is a fixed per-opcode constant:
// the assembler canonicalizes ret's value and call's result (see the
// calling-convention comment above) so neither ever needs a variable arity
// at the encoding layer.
//
//	0: OpTerm, OpHalt, OpRet                   — no encoded operands
//	1: OpJump (target), OpCall (callee),
//	   OpStackFree (alloc addr), OpParam (value)
//	2: OpBranch (cond, target), OpStackAlloc (dst, size),
//	   OpNot (dst, a), OpCvt (dst, src),
//	   OpModuleData (dst, resolved slot index — the assembler folds away
//	   the source module id, since one Program assembles one module)
//	3: OpLoad (dst, base, offset), OpStore (base, value, offset), and every binary
//	   arithmetic/bitwise/logical/comparison op (dst, a, b)
func arity(op Opcode) int {
	switch op {
	case OpTerm, OpHalt, OpRet:
		return 0
	case OpJump, OpCall, OpStackFree, OpParam:
		return 1
	case OpBranch, OpStackAlloc, OpNot, OpCvt, OpModuleData:
		return 2
	case OpLoad, OpStore:
		return 3
	default:
		return 3 // binary arithmetic/bitwise/logical/comparison: dst, a, b
	}
}
