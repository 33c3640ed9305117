// Package vm implements the bytecode backend of spec.md §4.9: encoding IR
// into a 32-bit opcode word (+ optional 64-bit immediate), a 64-register
// file, and the single-threaded fetch-decode-dispatch execution loop.
//
// The teacher never has this problem — it lowers IR straight to native ARM/
// RISC-V assembly for ahead-of-time linking (src/backend/arm,
// src/backend/riscv) rather than to a bytecode interpreted at runtime — so
// this package is grounded on the teacher's asm.go/regfile.go for its
// *shape* (a named register file, an instruction encoder, a linear opcode
// dispatch) while the actual instruction set and binary encoding follow
// spec.md §4.9/§6 directly, the way a register-VM bytecode project in the
// wider examples pack (e.g. a Lua-style register bytecode: see
// other_examples/57dc015c_sentra-language-sentra__internal-vmregister-bytecode.go.go)
// structures an opcode enum, a packed instruction word, and a dispatch loop.
package vm

import "math"

// Register names and indices, per spec.md §4.9: "zero, v0..v3, vf0..vf3,
// a0..a7, fa0..fa7, s0..s15, f0..f15, ip, ra, sp". 6-bit operand fields
// (spec.md §6) cap the register space at 64; this file assigns the 60 named
// registers indices [0,60) in declaration order, leaving [60,64) unused.
//
// s0..s15/f0..f15 are the allocatable general-purpose/floating banks
// internal/regalloc targets (Options{NumGP: 16, NumFP: 16}); a0..a7/fa0..fa7
// are the argument-passing bank used by call/param and the FFI marshalling
// layer; v0..v3/vf0..vf3 are the MIPS-style "value" registers a function's
// result is always left in when it executes ret, and that a call site reads
// its result back out of (see the calling-convention comment in encode.go).
// Only v0/vf0 are used by the calling convention itself; v1..v3/vf1..vf3
// exist so a multi-value extension has somewhere to go without renumbering
// every other bank, and go unused today.
//
// regalloc's own 2 reserved scratch registers per bank (used by rewrite.go
// to materialize spilled operands) are NOT v0..v3/vf0..vf3 — they're carved
// from the tail of the s*/f* banks themselves (s14/s15, f14/f15), since
// regalloc's Options{NumGP, NumFP} already budgets NumScratch out of the
// bank it was given rather than borrowing registers from another bank.
const (
	RegZero = iota
	RegV0
	RegV1
	RegV2
	RegV3
	RegVF0
	RegVF1
	RegVF2
	RegVF3
	RegA0
	RegA1
	RegA2
	RegA3
	RegA4
	RegA5
	RegA6
	RegA7
	RegFA0
	RegFA1
	RegFA2
	RegFA3
	RegFA4
	RegFA5
	RegFA6
	RegFA7
	RegS0
	RegS1
	RegS2
	RegS3
	RegS4
	RegS5
	RegS6
	RegS7
	RegS8
	RegS9
	RegS10
	RegS11
	RegS12
	RegS13
	RegS14
	RegS15
	RegF0
	RegF1
	RegF2
	RegF3
	RegF4
	RegF5
	RegF6
	RegF7
	RegF8
	RegF9
	RegF10
	RegF11
	RegF12
	RegF13
	RegF14
	RegF15
	RegIP
	RegRA
	RegSP

	NumNamedRegisters // 60
	NumRegisters = 64 // the full 6-bit operand space
)

// NumGPRegisters/NumFPRegisters are the sizes of the s*/f* allocatable
// banks, the budget internal/regalloc.Options should be constructed with
// when targeting this register file.
const (
	NumGPRegisters = 16
	NumFPRegisters = 16
	NumScratch     = 2 // matches regalloc.scratchRegs; reserved from each bank's tail (s14/s15, f14/f15)
)

// AsmScratchGP1/AsmScratchGP2 (and their floating counterparts) are the
// assembler's own materialization scratches, distinct from regalloc's
// spill-reload scratches (s14/s15, f14/f15): lowering a single ir.Instruction
// can need to materialize up to two operands at once (e.g. a store whose
// address is a stack-local and whose value is a bare immediate), so the
// assembler reserves a small pool of its own out of v1..v3/vf1..vf3 — v0/vf0
// are left untouched since they carry a live call result across the
// immediately-preceding or -following instruction.
const (
	AsmScratchGP1 = RegV1
	AsmScratchGP2 = RegV2
	AsmScratchFP1 = RegVF1
	AsmScratchFP2 = RegVF2
)

// GPBase/FPBase are the first physical index of the s*/f* banks, i.e. what
// internal/regalloc's physOf indices must be offset by to land in this
// register file (regalloc itself is bank-relative: physical index 0 in its
// gp bank is s0 here, not RegZero).
const (
	GPBase = RegS0
	FPBase = RegF0
)

var regNames = [NumNamedRegisters]string{
	RegZero: "zero",
	RegV0: "v0", RegV1: "v1", RegV2: "v2", RegV3: "v3",
	RegVF0: "vf0", RegVF1: "vf1", RegVF2: "vf2", RegVF3: "vf3",
	RegA0: "a0", RegA1: "a1", RegA2: "a2", RegA3: "a3",
	RegA4: "a4", RegA5: "a5", RegA6: "a6", RegA7: "a7",
	RegFA0: "fa0", RegFA1: "fa1", RegFA2: "fa2", RegFA3: "fa3",
	RegFA4: "fa4", RegFA5: "fa5", RegFA6: "fa6", RegFA7: "fa7",
	RegS0: "s0", RegS1: "s1", RegS2: "s2", RegS3: "s3",
	RegS4: "s4", RegS5: "s5", RegS6: "s6", RegS7: "s7",
	RegS8: "s8", RegS9: "s9", RegS10: "s10", RegS11: "s11",
	RegS12: "s12", RegS13: "s13", RegS14: "s14", RegS15: "s15",
	RegF0: "f0", RegF1: "f1", RegF2: "f2", RegF3: "f3",
	RegF4: "f4", RegF5: "f5", RegF6: "f6", RegF7: "f7",
	RegF8: "f8", RegF9: "f9", RegF10: "f10", RegF11: "f11",
	RegF12: "f12", RegF13: "f13", RegF14: "f14", RegF15: "f15",
	RegIP: "ip", RegRA: "ra", RegSP: "sp",
}

// RegisterName returns the assembler-style name of physical register r, or
// "r?" for any index outside the named registers (including the four
// reserved-but-unnamed ones).
func RegisterName(r int) string {
	if r >= 0 && r < NumNamedRegisters {
		return regNames[r]
	}
	return "r?"
}

// RegisterFile is the VM's 64-slot, 64-bit-per-slot register bank. Every
// slot stores its bit pattern untyped; callers reinterpret via Float64/
// SetFloat64 for floating-point values, matching how a real machine's
// register file has no type of its own. Writes to RegZero are ignored and
// reads always return 0, per spec.md §4.9: "zero is always 0 and writes are
// ignored."
type RegisterFile struct {
	slots [NumRegisters]uint64
}

// Int64 reads slot r reinterpreted as a signed 64-bit integer.
func (rf *RegisterFile) Int64(r int) int64 { return int64(rf.slots[r]) }

// Uint64 reads slot r as a raw 64-bit pattern (unsigned integer or float
// bits, depending on what was last written).
func (rf *RegisterFile) Uint64(r int) uint64 { return rf.slots[r] }

// Float64 reads slot r reinterpreted as an IEEE-754 double.
func (rf *RegisterFile) Float64(r int) float64 { return math.Float64frombits(rf.slots[r]) }

// SetInt64 writes a signed integer into slot r. A write to RegZero is
// silently dropped.
func (rf *RegisterFile) SetInt64(r int, v int64) {
	if r == RegZero {
		return
	}
	rf.slots[r] = uint64(v)
}

// SetUint64 writes a raw 64-bit pattern into slot r.
func (rf *RegisterFile) SetUint64(r int, v uint64) {
	if r == RegZero {
		return
	}
	rf.slots[r] = v
}

// SetFloat64 writes a double into slot r.
func (rf *RegisterFile) SetFloat64(r int, v float64) {
	if r == RegZero {
		return
	}
	rf.slots[r] = math.Float64bits(v)
}
