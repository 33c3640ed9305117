package ir

import "golang.org/x/exp/constraints"

// Number is the constraint spec.md §4.4's four arithmetic instruction
// families (signed/unsigned integral, f32, f64) all satisfy, letting the
// constant-folding arithmetic below share one generic implementation per
// operator instead of one hand-duplicated function per family.
type Number interface {
	constraints.Integer | constraints.Float
}

// FoldAdd, FoldSub, and FoldMul evaluate the three operators that never
// trap, across any numeric family.
func FoldAdd[T Number](a, b T) T { return a + b }
func FoldSub[T Number](a, b T) T { return a - b }
func FoldMul[T Number](a, b T) T { return a * b }

// FoldDiv evaluates a/b, returning ok=false on division by zero so the
// caller leaves the instruction unfolded for the VM to trap on at runtime
// (spec.md §7's runtime error taxonomy) instead of folding a trapping
// operation away at compile time.
func FoldDiv[T Number](a, b T) (result T, ok bool) {
	if b == 0 {
		return result, false
	}
	return a / b, true
}

// FoldMod evaluates a%b for the integer families only; Go's % doesn't accept
// float operands, and the float mod opcodes (fmod/dmod) are not
// constant-folded.
func FoldMod[T constraints.Integer](a, b T) (result T, ok bool) {
	if b == 0 {
		return result, false
	}
	return a % b, true
}
