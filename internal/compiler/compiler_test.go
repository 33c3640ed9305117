package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsnlang/tsn/internal/compiler"
	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/internal/ir"
	"github.com/tsnlang/tsn/internal/parser"
	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/types"
)

// compileSource parses and compiles text into a fresh module, returning the
// Compiler (and its accumulated diagnostics) for inspection.
func compileSource(t *testing.T, text string) *compiler.Compiler {
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
	return c
}

func findFunc(c *compiler.Compiler, fqn string) (*types.Function, *ir.FunctionDef) {
	for fn, fd := range c.Output {
		if fn.FQN == fqn {
			return fn, fd
		}
	}
	return nil, nil
}

// TestArithmeticReturn covers spec.md §8 scenario S1: a simple function
// adding two i32 parameters compiles to code containing an integer add and a
// ret that carries a value.
func TestArithmeticReturn(t *testing.T) {
	c := compileSource(t, `
		function add(a: i32, b: i32): i32 {
			return a + b;
		}
	`)
	require.False(t, c.Log.HasErrors(), "unexpected compile errors: %v", c.Log.Records())

	fn, fd := findFunc(c, "add")
	require.NotNil(t, fn, "add was not compiled")
	require.NotNil(t, fd)

	var sawAdd, sawRet bool
	for _, ins := range fd.Code.Instructions {
		switch ins.Op {
		case ir.OpIAdd:
			sawAdd = true
		case ir.OpRet:
			sawRet = true
			assert.Equal(t, 1, ins.NumOps, "expected ret to carry a value")
		}
	}
	assert.True(t, sawAdd, "expected an IAdd instruction")
	assert.True(t, sawRet, "expected a Ret instruction")
}

// TestOverloadResolutionAmbiguous covers spec.md §8 scenario S3: two
// overloads that are equally good matches for the same call site must be
// reported as ambiguous rather than silently picking one.
func TestOverloadResolutionAmbiguous(t *testing.T) {
	c := compileSource(t, `
		function pick(a: i32, b: i64): i32 {
			return a;
		}
		function pick(a: i64, b: i32): i32 {
			return a;
		}
		function caller(): i32 {
			return pick(1, 2);
		}
	`)
	require.True(t, c.Log.HasErrors(), "expected an ambiguous-overload diagnostic")

	var found bool
	for _, r := range c.Log.Records() {
		if r.Code == diag.CodeAmbiguousOverload {
			found = true
		}
	}
	assert.True(t, found, "expected CodeAmbiguousOverload among: %v", c.Log.Records())
}

// TestOverloadResolutionExactMatch ensures that when one candidate matches
// exactly and another only matches by family, the exact match wins outright
// rather than tripping the ambiguity check.
func TestOverloadResolutionExactMatch(t *testing.T) {
	c := compileSource(t, `
		function pick(a: i32): i32 {
			return a;
		}
		function pick(a: i64): i32 {
			return a;
		}
		function caller(): i32 {
			return pick(1);
		}
	`)
	assert.False(t, c.Log.HasErrors(), "unexpected compile errors: %v", c.Log.Records())
}

// TestIfElseTermination exercises compileIf's terminated-propagation: when
// both branches return, the function should not need (and the compiler
// should not emit) a trailing implicit return after the if.
func TestIfElseTermination(t *testing.T) {
	c := compileSource(t, `
		function abs(a: i32): i32 {
			if (a < 0) {
				return 0 - a;
			} else {
				return a;
			}
		}
	`)
	require.False(t, c.Log.HasErrors(), "unexpected compile errors: %v", c.Log.Records())

	_, fd := findFunc(c, "abs")
	require.NotNil(t, fd)

	rets := 0
	for _, ins := range fd.Code.Instructions {
		if ins.Op == ir.OpRet {
			rets++
		}
	}
	assert.Equal(t, 2, rets, "expected exactly the two explicit returns, no implicit trailing one")
}

// TestLoopBreakContinue exercises break/continue label wiring across a
// while loop, including that continue correctly skips past an enclosing
// switch to reach the loop (spec.md continue-through-switch behavior).
func TestLoopBreakContinue(t *testing.T) {
	c := compileSource(t, `
		function run(n: i32): i32 {
			let total: i32 = 0;
			while (n > 0) {
				switch (n) {
				case 1:
					n = n - 1;
					continue;
				default:
					break;
				}
				total = total + n;
				n = n - 1;
			}
			return total;
		}
	`)
	assert.False(t, c.Log.HasErrors(), "unexpected compile errors: %v", c.Log.Records())
}
