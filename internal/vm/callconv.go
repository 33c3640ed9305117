package vm

import "github.com/tsnlang/tsn/internal/types"

// ValueReg returns the register a value of type t is left in by ret, or read
// from after call: v0 for every integral/pointer/host type, vf0 for floating
// types, per the calling convention documented above OpHalt.
func ValueReg(t *types.DataType) int {
	if t != nil && t.Meta.Floating {
		return RegVF0
	}
	return RegV0
}

// argBank is the fixed-size argument-register bank (a0..a7 or fa0..fa7) one
// half of ArgReg indexes into.
type argBank struct {
	base, n int
}

var (
	gpArgBank = argBank{base: RegA0, n: 8}
	fpArgBank = argBank{base: RegFA0, n: 8}
)

// ArgReg returns the physical register a call's i'th argument of the given
// floating-ness is passed in, and whether that argument fits in the
// register bank at all (spec.md §4.9/§4.10 name the a0..a7/fa0..fa7 banks
// but don't specify overflow behaviour for more than 8 same-kind arguments
// in one call — an Open Question resolved here: overflow arguments are
// pushed onto the stack by the caller, most-recently-pushed last, mirroring
// how stack_alloc/stack_free already manage the rest of the frame). i is
// the argument's position within its own kind's sequence (its i'th integral
// argument, or its i'th floating argument), not its position in the full
// argument list — the compiler's call-site lowering is responsible for
// splitting mixed integral/floating argument lists into these two counters.
func ArgReg(i int, floating bool) (reg int, ok bool) {
	bank := gpArgBank
	if floating {
		bank = fpArgBank
	}
	if i < 0 || i >= bank.n {
		return 0, false
	}
	return bank.base + i, true
}
