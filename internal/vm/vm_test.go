package vm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsnlang/tsn/internal/compiler"
	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/internal/exec"
	"github.com/tsnlang/tsn/internal/parser"
	"github.com/tsnlang/tsn/internal/regalloc"
	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/types"
	"github.com/tsnlang/tsn/internal/vm"
)

var regallocOpts = regalloc.Options{NumGP: vm.NumGPRegisters, NumFP: vm.NumFPRegisters}

// buildProgram parses and compiles text, register-allocates every compiled
// function, and assembles the result into one vm.Program, following the
// same compile-then-lower pipeline internal/compiler's own tests use to
// reach a *compiler.Compiler (see compiler_test.go's compileSource).
func buildProgram(t *testing.T, text string) (*vm.Program, *types.Module, *types.TypeRegistry) {
	t.Helper()
	src := source.New("test.tsn", text)
	log := diag.New(nil, false)
	root := parser.Parse(src, log, nil)
	require.False(t, log.HasErrors(), "unexpected parse errors: %v", log.Records())

	reg := types.NewTypeRegistry()
	funcs := types.NewFunctionRegistry()
	mod := types.NewModule("test", "test.tsn")
	c := compiler.New(reg, funcs, mod, log)
	c.CompileProgram(root)
	require.False(t, log.HasErrors(), "unexpected compile errors: %v", log.Records())

	for _, fd := range c.Output {
		regalloc.Allocate(fd, regallocOpts, reg)
	}

	prog, err := vm.Assemble(mod, c.Output)
	require.NoError(t, err)
	return prog, mod, reg
}

func findFunc(mod *types.Module, fqn string) *types.Function {
	for _, fn := range mod.Functions {
		if fn.FQN == fqn {
			return fn
		}
	}
	return nil
}

func TestArithmeticReturn(t *testing.T) {
	prog, mod, _ := buildProgram(t, `
		function add(a: i32, b: i32): i32 {
			return a + b;
		}
	`)
	fn := findFunc(mod, "add")
	require.NotNil(t, fn)

	m := vm.New(prog, 4096)
	m.Regs.SetInt64(vm.RegA0, 3)
	m.Regs.SetInt64(vm.RegA1, 4)

	result, isFloat, err := m.CallScript(context.Background(), fn)
	require.NoError(t, err)
	assert.False(t, isFloat)
	assert.Equal(t, int64(7), int64(result))
}

func TestLocalsRoundTrip(t *testing.T) {
	prog, mod, _ := buildProgram(t, `
		function scale(a: i32): i32 {
			let x = a * 2;
			let y = x + 1;
			return y;
		}
	`)
	fn := findFunc(mod, "scale")
	require.NotNil(t, fn)

	m := vm.New(prog, 4096)
	m.Regs.SetInt64(vm.RegA0, 10)

	result, _, err := m.CallScript(context.Background(), fn)
	require.NoError(t, err)
	assert.Equal(t, int64(21), int64(result))
}

func TestScriptToScriptCall(t *testing.T) {
	prog, mod, _ := buildProgram(t, `
		function helper(a: i32): i32 {
			return a + 1;
		}
		function caller(a: i32): i32 {
			return helper(a) + helper(a);
		}
	`)
	fn := findFunc(mod, "caller")
	require.NotNil(t, fn)

	m := vm.New(prog, 4096)
	m.Regs.SetInt64(vm.RegA0, 5)

	result, _, err := m.CallScript(context.Background(), fn)
	require.NoError(t, err)
	assert.Equal(t, int64(12), int64(result))
}

func TestBranchSelectsElseArm(t *testing.T) {
	prog, mod, _ := buildProgram(t, `
		function pick(a: i32): i32 {
			if (a > 0) {
				return 1;
			} else {
				return -1;
			}
		}
	`)
	fn := findFunc(mod, "pick")
	require.NotNil(t, fn)

	m := vm.New(prog, 4096)
	m.Regs.SetInt64(vm.RegA0, -5)

	result, _, err := m.CallScript(context.Background(), fn)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), int64(result))
}

func TestDivideByZeroRaisesException(t *testing.T) {
	prog, mod, _ := buildProgram(t, `
		function divide(a: i32, b: i32): i32 {
			return a / b;
		}
	`)
	fn := findFunc(mod, "divide")
	require.NotNil(t, fn)

	m := vm.New(prog, 4096)
	m.Regs.SetInt64(vm.RegA0, 10)
	m.Regs.SetInt64(vm.RegA1, 0)

	ec := exec.New()
	ctx := exec.WithContext(context.Background(), ec)
	_, _, err := m.CallScript(ctx, fn)
	require.NoError(t, err)
	assert.True(t, ec.HasException())
}

func TestHostCallDispatch(t *testing.T) {
	prog, mod, _ := buildProgram(t, `
		function double(a: i32): i32 {
			return a + a;
		}
	`)
	fn := findFunc(mod, "double")
	require.NotNil(t, fn)

	m := vm.New(prog, 4096)
	var sawHostCall bool
	m.HostCall = func(ctx context.Context, v *vm.VM, callee *types.Function) (uint64, bool, error) {
		sawHostCall = true
		return 0, false, nil
	}
	m.Regs.SetInt64(vm.RegA0, 21)

	_, _, err := m.CallScript(context.Background(), fn)
	require.NoError(t, err)
	assert.False(t, sawHostCall, "double is a script function and must not reach HostCall")
}
