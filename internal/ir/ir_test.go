package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/types"
)

func i32() *types.DataType { return &types.DataType{Name: "i32", Meta: types.Meta{Size: 4, Integral: true}} }

func TestValueStringForms(t *testing.T) {
	ty := i32()
	require.Equal(t, "r3:i32", NewRegister(3, ty).String())
	require.Equal(t, "#42:i32", ImmInt64(42, ty).String())
	require.Equal(t, "alloc1:i32", NewStackAlloc(1, ty).String())
	require.Equal(t, "mod[7,2]:i32", NewModuleData(7, 2, ty).String())
	require.Equal(t, "poison:i32", Poison(ty).String())
	require.Equal(t, "null", Null(nil).String())
}

func TestInstructionResultAndUses(t *testing.T) {
	ty := i32()
	dst := NewRegister(0, ty)
	a := NewRegister(1, ty)
	b := ImmInt64(5, ty)
	ins := Binary(OpIAdd, dst, a, b, source.Location{})

	res, ok := ins.Result()
	require.True(t, ok)
	require.Equal(t, dst, res)

	uses := ins.Uses()
	require.Len(t, uses, 2)
	require.Equal(t, a, uses[0])
	require.Equal(t, b, uses[1])
}

func TestOpIsAssignmentAndTerminator(t *testing.T) {
	require.True(t, OpIAdd.IsAssignment())
	require.False(t, OpStore.IsAssignment())
	require.True(t, OpRet.IsTerminator())
	require.True(t, OpTerm.IsTerminator())
	require.False(t, OpJump.IsTerminator())
}

// buildLinearFunction constructs: r0 = iadd r1, #1; store r0, alloc0; ret r0
func buildLinearFunction() *FunctionDef {
	fn := &types.Function{Name: "f"}
	fd := NewFunctionDef(fn)
	ty := i32()
	p := fd.BindParam(ty)
	dst := fd.AllocReg(ty)
	alloc := fd.AllocStack(ty)

	fd.Emit(Binary(OpIAdd, dst, p, ImmInt64(1, ty), source.Location{}))
	fd.Emit(Store(alloc, dst, 0, source.Location{}))
	fd.Emit(Ret(dst, true, source.Location{}))
	return fd
}

func TestCodeHolderCFGSingleBlock(t *testing.T) {
	fd := buildLinearFunction()
	cfg := fd.Code.CFG()
	require.Len(t, cfg.Blocks, 1)
	require.Equal(t, 0, cfg.Blocks[0].Start)
	require.Equal(t, 3, cfg.Blocks[0].End)
	require.Empty(t, cfg.Blocks[0].Succ)
}

func TestCodeHolderCFGBranching(t *testing.T) {
	ty := i32()
	fn := &types.Function{Name: "g"}
	fd := NewFunctionDef(fn)
	cond := fd.AllocReg(ty)
	thenLbl := fd.NewLabel()
	endLbl := fd.NewLabel()

	fd.Emit(Branch(cond, thenLbl, source.Location{})) // block0: [0,1)
	fd.Emit(Jump(endLbl, source.Location{}))           // block1 (else): [1,2)
	fd.Emit(Label(thenLbl, source.Location{}))         // block2 (then): [2,4)
	fd.Emit(Ret(Value{}, false, source.Location{}))
	fd.Emit(Label(endLbl, source.Location{})) // block3 (end): [4,6)
	fd.Emit(Ret(Value{}, false, source.Location{}))

	cfg := fd.Code.CFG()
	require.Len(t, cfg.Blocks, 4)
	// block0 (branch) falls through to block1 and jumps to block2 (then).
	require.ElementsMatch(t, []int{1, 2}, cfg.Blocks[0].Succ)
	// block1 (else, unconditional jump) targets block3 (end).
	require.Equal(t, []int{3}, cfg.Blocks[1].Succ)
	// block2 (then) terminates in ret: no successors.
	require.Empty(t, cfg.Blocks[2].Succ)
}

func TestLivenessIntervalCoversParamUse(t *testing.T) {
	fd := buildLinearFunction()
	live := fd.Code.Liveness()
	iv, ok := live.IntervalFor(fd.Params[0].Reg)
	require.True(t, ok)
	require.Equal(t, 0, iv.Start)
}

func TestCodeHolderRebuildIsIdempotent(t *testing.T) {
	fd := buildLinearFunction()
	cfg1 := fd.Code.CFG()
	cfg2 := fd.Code.CFG()
	require.Same(t, cfg1, cfg2, "rebuildAll must not recompute when not dirty")

	fd.Code.Invalidate()
	cfg3 := fd.Code.CFG()
	require.NotSame(t, cfg1, cfg3)
}
