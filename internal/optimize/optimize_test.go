package optimize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/internal/ir"
	"github.com/tsnlang/tsn/internal/optimize"
	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/types"
)

func i32Type() *types.DataType {
	return &types.DataType{Name: "i32", Meta: types.Meta{Size: 4, Integral: true}}
}

func noopLog() *diag.Logger { return diag.New(nil, false) }

// buildScenarioS4 constructs spec.md §8 scenario S4: r1 = iadd 2, 3;
// r2 = imul r1, 4; ret r2 — the whole body is compile-time constant and
// should fold down to `ret imm(20)`.
func buildScenarioS4() *ir.FunctionDef {
	ty := i32Type()
	fn := &types.Function{Name: "s4"}
	fd := ir.NewFunctionDef(fn)
	r1 := fd.AllocReg(ty)
	r2 := fd.AllocReg(ty)

	fd.Emit(ir.Binary(ir.OpIAdd, r1, ir.ImmInt64(2, ty), ir.ImmInt64(3, ty), source.Location{}))
	fd.Emit(ir.Binary(ir.OpIMul, r2, r1, ir.ImmInt64(4, ty), source.Location{}))
	fd.Emit(ir.Ret(r2, true, source.Location{}))
	return fd
}

func TestScenarioS4FoldsToConstantReturn(t *testing.T) {
	fd := buildScenarioS4()
	optimize.RunFunction(fd, optimize.DefaultPasses(), noopLog())

	instrs := fd.Code.Instructions
	require.Len(t, instrs, 1, "copy-prop/fold/DCE should collapse the whole body to one ret")

	ret := instrs[0]
	require.Equal(t, ir.OpRet, ret.Op)
	require.Equal(t, 1, ret.NumOps)
	val := ret.Operands[0]
	require.True(t, val.IsImmediate())
	assert.EqualValues(t, 20, val.ImmInt)
}

// TestOptimizerReachesFixpoint exercises spec.md §8 property #6: running the
// default pipeline again after it has already converged must report no
// further change, since copy-prop/fold/CSE/DCE interact (a fold can expose a
// new dead register, a dead-code removal can expose nothing left to fold)
// and the driver is required to loop until nothing moves.
func TestOptimizerReachesFixpoint(t *testing.T) {
	fd := buildScenarioS4()
	passes := optimize.DefaultPasses()

	optimize.RunFunction(fd, passes, noopLog())
	before := append([]ir.Instruction(nil), fd.Code.Instructions...)

	changed := false
	for _, p := range passes {
		if p.Apply(fd) {
			changed = true
		}
	}
	assert.False(t, changed, "a second round over an already-converged function must be a no-op")
	assert.Equal(t, before, fd.Code.Instructions)
}

// TestConstantFoldingIsIdempotent exercises spec.md §8 property #7: folding
// an already-folded instruction stream a second time must not change it
// further (no oscillation between two folded forms).
func TestConstantFoldingIsIdempotent(t *testing.T) {
	fd := buildScenarioS4()
	pass := constantFoldingPass(t)

	first := pass.Apply(fd)
	require.True(t, first, "first application should fold the constant iadd")
	second := pass.Apply(fd)
	assert.False(t, second, "re-applying constant folding to already-folded code must report no change")
}

// constantFoldingPass extracts DefaultPasses' constant-folding pass by name,
// since the concrete type is unexported outside the package.
func constantFoldingPass(t *testing.T) optimize.Pass {
	t.Helper()
	for _, p := range optimize.DefaultPasses() {
		if p.Name() == "constant_folding" {
			return p
		}
	}
	t.Fatal("constant_folding pass not found in DefaultPasses")
	return nil
}

// TestDeadCodeEliminationDropsUnusedPureInstruction exercises spec.md §8
// property #8 (DCE soundness): a pure instruction whose result is never
// read is removed, while an instruction with a side effect (store) or
// whose result feeds the return survives.
func TestDeadCodeEliminationDropsUnusedPureInstruction(t *testing.T) {
	ty := i32Type()
	fn := &types.Function{Name: "dce"}
	fd := ir.NewFunctionDef(fn)
	p := fd.BindParam(ty)
	dead := fd.AllocReg(ty)
	alloc := fd.AllocStack(ty)
	live := fd.AllocReg(ty)

	fd.Emit(ir.Binary(ir.OpIAdd, dead, p, ir.ImmInt64(1, ty), source.Location{})) // unused result
	fd.Emit(ir.Store(alloc, p, 0, source.Location{}))                            // side effect: kept
	fd.Emit(ir.Binary(ir.OpIMul, live, p, ir.ImmInt64(2, ty), source.Location{}))
	fd.Emit(ir.Ret(live, true, source.Location{}))

	pass := deadCodePass(t)
	changed := pass.Apply(fd)
	require.True(t, changed)

	var ops []ir.Op
	for _, ins := range fd.Code.Instructions {
		ops = append(ops, ins.Op)
	}
	assert.Equal(t, []ir.Op{ir.OpStore, ir.OpIMul, ir.OpRet}, ops)
}

func deadCodePass(t *testing.T) optimize.Pass {
	t.Helper()
	for _, p := range optimize.DefaultPasses() {
		if p.Name() == "dead_code_elimination" {
			return p
		}
	}
	t.Fatal("dead_code_elimination pass not found in DefaultPasses")
	return nil
}

// TestRunSplitsAcrossWorkersWithoutRace exercises optimize.Run's threaded
// path (opt.Threads > 1): every function body must reach the same fixed
// point it would sequentially, regardless of which worker processed it.
func TestRunSplitsAcrossWorkersWithoutRace(t *testing.T) {
	output := map[*types.Function]*ir.FunctionDef{}
	for i := 0; i < 8; i++ {
		fd := buildScenarioS4()
		output[fd.Func] = fd
	}

	optimize.Run(output, optimize.Options{Threads: 4}, noopLog())

	for _, fd := range output {
		require.Len(t, fd.Code.Instructions, 1)
		assert.EqualValues(t, 20, fd.Code.Instructions[0].Operands[0].ImmInt)
	}
}
