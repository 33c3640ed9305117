package llvmdump_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsnlang/tsn/internal/compiler"
	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/internal/ir/llvmdump"
	"github.com/tsnlang/tsn/internal/parser"
	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/types"
)

func TestDumpRendersDefineBlock(t *testing.T) {
	src := source.New("test.tsn", `
		function add(a: i32, b: i32): i32 {
			return a + b;
		}
	`)
	log := diag.New(nil, false)
	root := parser.Parse(src, log, nil)
	require.False(t, log.HasErrors())

	reg := types.NewTypeRegistry()
	funcs := types.NewFunctionRegistry()
	mod := types.NewModule("test", "test.tsn")
	c := compiler.New(reg, funcs, mod, log)
	c.CompileProgram(root)
	require.False(t, log.HasErrors())

	var sb strings.Builder
	for _, d := range c.Output {
		require.NoError(t, llvmdump.Dump(&sb, d))
	}

	out := sb.String()
	assert.Contains(t, out, "define i64 @add(")
	assert.Contains(t, out, "ret i64")
}
