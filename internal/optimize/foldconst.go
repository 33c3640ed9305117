package optimize

import (
	"github.com/tsnlang/tsn/internal/ir"
	"github.com/tsnlang/tsn/internal/types"
)

// constantFolding collapses an arithmetic/bitwise/comparison instruction
// whose operands are all immediates into a cvt that just moves the
// precomputed result into the destination register, and simplifies the
// identity cases (x*1, x*0, x|0, x&0) the teacher's constantFolding calls
// out even when only one operand is a compile-time constant.
//
// Grounded on the teacher's Node.constantFolding (src/ir/optimise.go),
// including its algebraic-identity special cases (multiply/divide/mod by
// 1, OR/AND by 0); this pass keeps that same switch-on-operator shape but
// operates on ir.Instruction's per-family opcode split (iadd/uadd/fadd/
// dadd, ...) instead of the teacher's single untyped "+"/"-"/... string,
// and produces a cvt (a same-size reinterpreting move, since there's no
// dedicated load-immediate opcode here) in place of the teacher's in-place
// AST-node replacement.
type constantFolding struct{}

func (p *constantFolding) Name() string { return "constant_folding" }

func (p *constantFolding) Apply(fd *ir.FunctionDef) bool {
	instrs := fd.Code.Instructions
	changed := false
	out := make([]ir.Instruction, len(instrs))
	for i, ins := range instrs {
		if folded, ok := foldInstruction(ins); ok {
			out[i] = folded
			changed = true
		} else {
			out[i] = ins
		}
	}
	if changed {
		fd.Code.Replace(out)
	}
	return changed
}

func foldInstruction(ins ir.Instruction) (ir.Instruction, bool) {
	switch ins.NumOps {
	case 3:
		return foldBinary(ins)
	case 2:
		if ins.Op == ir.OpNot {
			return foldNot(ins)
		}
	}
	return ins, false
}

func foldBinary(ins ir.Instruction) (ir.Instruction, bool) {
	dst, a, b := ins.Operands[0], ins.Operands[1], ins.Operands[2]
	if a.Kind == ir.VImmediate && b.Kind == ir.VImmediate {
		if v, ok := foldImmediates(ins.Op, a, b, dst.Type); ok {
			return ir.Cvt(dst, v, ins.Loc), true
		}
		return ins, false
	}
	if v, ok := foldIdentity(ins.Op, a, b); ok {
		return ir.Cvt(dst, v, ins.Loc), true
	}
	return ins, false
}

func foldNot(ins ir.Instruction) (ir.Instruction, bool) {
	dst, a := ins.Operands[0], ins.Operands[1]
	if a.Kind != ir.VImmediate {
		return ins, false
	}
	truthy := a.ImmInt != 0 || a.ImmUint != 0 || a.ImmF32 != 0 || a.ImmF64 != 0
	result := int64(0)
	if !truthy {
		result = 1
	}
	return ir.Cvt(dst, ir.ImmInt64(result, dst.Type), ins.Loc), true
}

// foldImmediates computes the result of op over two immediate operands,
// returning ok=false for opcodes this pass doesn't fold (control flow,
// memory, calls) or a division/modulo by zero (left for the VM to trap at
// runtime, per spec.md's runtime error taxonomy, rather than folded away
// here).
func foldImmediates(op ir.Op, a, b ir.Value, resultType *types.DataType) (ir.Value, bool) {
	t := a.Type
	switch op {
	case ir.OpIAdd:
		return ir.ImmInt64(ir.FoldAdd(a.ImmInt, b.ImmInt), t), true
	case ir.OpISub:
		return ir.ImmInt64(ir.FoldSub(a.ImmInt, b.ImmInt), t), true
	case ir.OpIMul:
		return ir.ImmInt64(ir.FoldMul(a.ImmInt, b.ImmInt), t), true
	case ir.OpIDiv:
		v, ok := ir.FoldDiv(a.ImmInt, b.ImmInt)
		if !ok {
			return ir.Value{}, false
		}
		return ir.ImmInt64(v, t), true
	case ir.OpIMod:
		v, ok := ir.FoldMod(a.ImmInt, b.ImmInt)
		if !ok {
			return ir.Value{}, false
		}
		return ir.ImmInt64(v, t), true
	case ir.OpUAdd:
		return ir.ImmUint64(ir.FoldAdd(a.ImmUint, b.ImmUint), t), true
	case ir.OpUSub:
		return ir.ImmUint64(ir.FoldSub(a.ImmUint, b.ImmUint), t), true
	case ir.OpUMul:
		return ir.ImmUint64(ir.FoldMul(a.ImmUint, b.ImmUint), t), true
	case ir.OpUDiv:
		v, ok := ir.FoldDiv(a.ImmUint, b.ImmUint)
		if !ok {
			return ir.Value{}, false
		}
		return ir.ImmUint64(v, t), true
	case ir.OpUMod:
		v, ok := ir.FoldMod(a.ImmUint, b.ImmUint)
		if !ok {
			return ir.Value{}, false
		}
		return ir.ImmUint64(v, t), true
	case ir.OpFAdd:
		return ir.ImmFloat32(ir.FoldAdd(a.ImmF32, b.ImmF32), t), true
	case ir.OpFSub:
		return ir.ImmFloat32(ir.FoldSub(a.ImmF32, b.ImmF32), t), true
	case ir.OpFMul:
		return ir.ImmFloat32(ir.FoldMul(a.ImmF32, b.ImmF32), t), true
	case ir.OpFDiv:
		v, ok := ir.FoldDiv(a.ImmF32, b.ImmF32)
		if !ok {
			return ir.Value{}, false
		}
		return ir.ImmFloat32(v, t), true
	case ir.OpDAdd:
		return ir.ImmFloat64(ir.FoldAdd(a.ImmF64, b.ImmF64), t), true
	case ir.OpDSub:
		return ir.ImmFloat64(ir.FoldSub(a.ImmF64, b.ImmF64), t), true
	case ir.OpDMul:
		return ir.ImmFloat64(ir.FoldMul(a.ImmF64, b.ImmF64), t), true
	case ir.OpDDiv:
		v, ok := ir.FoldDiv(a.ImmF64, b.ImmF64)
		if !ok {
			return ir.Value{}, false
		}
		return ir.ImmFloat64(v, t), true
	case ir.OpBAnd:
		return ir.ImmInt64(a.ImmInt&b.ImmInt, t), true
	case ir.OpBOr:
		return ir.ImmInt64(a.ImmInt|b.ImmInt, t), true
	case ir.OpBXor:
		return ir.ImmInt64(a.ImmInt^b.ImmInt, t), true
	case ir.OpSL:
		return ir.ImmInt64(a.ImmInt<<uint(b.ImmInt), t), true
	case ir.OpSR:
		return ir.ImmInt64(a.ImmInt>>uint(b.ImmInt), t), true
	case ir.OpLT:
		return boolVal(resultType, a.ImmInt < b.ImmInt), true
	case ir.OpGT:
		return boolVal(resultType, a.ImmInt > b.ImmInt), true
	case ir.OpLTE:
		return boolVal(resultType, a.ImmInt <= b.ImmInt), true
	case ir.OpGTE:
		return boolVal(resultType, a.ImmInt >= b.ImmInt), true
	case ir.OpCmp:
		return boolVal(resultType, a.ImmInt == b.ImmInt), true
	case ir.OpNCmp:
		return boolVal(resultType, a.ImmInt != b.ImmInt), true
	}
	return ir.Value{}, false
}

// boolVal builds the boolean-typed immediate a comparison folds to, using
// the comparison instruction's own destination type rather than guessing a
// registry lookup the optimizer has no access to.
func boolVal(t *types.DataType, v bool) ir.Value {
	n := int64(0)
	if v {
		n = 1
	}
	return ir.ImmInt64(n, t)
}

// intOf reads an integer immediate's value regardless of whether it was
// built signed or unsigned, since the two share no field.
func intOf(v ir.Value) int64 {
	if v.ImmKind == ir.ImmUint {
		return int64(v.ImmUint)
	}
	return v.ImmInt
}

// foldIdentity simplifies a*1, a*0, a|0, a&0, matching the teacher's
// algebraic-identity cases, when only one side of the operator is a
// compile-time constant.
func foldIdentity(op ir.Op, a, b ir.Value) (ir.Value, bool) {
	imm, other, immOnRight := a, b, false
	if b.Kind == ir.VImmediate {
		imm, other, immOnRight = b, a, true
	} else if a.Kind != ir.VImmediate {
		return ir.Value{}, false
	}
	if imm.ImmKind != ir.ImmInt && imm.ImmKind != ir.ImmUint {
		return ir.Value{}, false
	}
	n := intOf(imm)

	switch op {
	case ir.OpIMul, ir.OpUMul:
		if n == 1 {
			return other, true
		}
		if n == 0 {
			return zeroValueLike(other), true
		}
	case ir.OpIDiv, ir.OpUDiv:
		if immOnRight && n == 1 {
			return other, true
		}
	case ir.OpIMod, ir.OpUMod:
		if immOnRight && n == 1 {
			return zeroValueLike(other), true
		}
	case ir.OpBOr:
		if n == 0 {
			return other, true
		}
	case ir.OpBAnd:
		if n == 0 {
			return zeroValueLike(other), true
		}
	}
	return ir.Value{}, false
}

// zeroValueLike builds the zero immediate matching like's kind (signed vs.
// unsigned), since an identity fold's "replace with zero" case must not
// mix an int zero into an unsigned-typed register or vice versa.
func zeroValueLike(like ir.Value) ir.Value {
	if like.Type != nil && like.Type.Meta.Unsigned {
		return ir.ImmUint64(0, like.Type)
	}
	return ir.ImmInt64(0, like.Type)
}
