package persist_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tsnlang/tsn/internal/compiler"
	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/internal/ir"
	"github.com/tsnlang/tsn/internal/parser"
	"github.com/tsnlang/tsn/internal/persist"
	"github.com/tsnlang/tsn/internal/regalloc"
	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/types"
	"github.com/tsnlang/tsn/internal/vm"
)

var regallocOpts = regalloc.Options{NumGP: vm.NumGPRegisters, NumFP: vm.NumFPRegisters}

// buildModule mirrors internal/vm's buildProgram helper, but stops one step
// short of vm.Assemble: persist.Marshal needs the TypeRegistry/
// FunctionRegistry/Module/FunctionDefs directly, not an assembled Program.
func buildModule(t *testing.T, text string) (*types.Module, *types.TypeRegistry, *types.FunctionRegistry, map[*types.Function]*ir.FunctionDef, *source.ModuleSource) {
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
	return mod, reg, funcs, c.Output, src
}

func findFunc(mod *types.Module, fqn string) *types.Function {
	for _, fn := range mod.Functions {
		if fn.FQN == fqn {
			return fn
		}
	}
	return nil
}

func TestMarshalUnmarshalRoundTripRunsIdentically(t *testing.T) {
	mod, reg, funcs, defs, src := buildModule(t, `
		function add(a: i32, b: i32): i32 {
			let c = a + b;
			return c * 2;
		}
	`)

	data, err := persist.Marshal(mod, reg, funcs, defs, src)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	restoredReg := types.NewTypeRegistry()
	restoredFuncs := types.NewFunctionRegistry()
	restored, err := persist.Unmarshal(data, restoredReg, restoredFuncs)
	require.NoError(t, err)

	fn := findFunc(restored.Module, "add")
	require.NotNil(t, fn)

	prog, err := vm.Assemble(restored.Module, restored.FuncDefs)
	require.NoError(t, err)

	m := vm.New(prog, 4096)
	m.Regs.SetInt64(vm.RegA0, 3)
	m.Regs.SetInt64(vm.RegA1, 4)
	result, isFloat, err := m.CallScript(context.Background(), fn)
	require.NoError(t, err)
	assert.False(t, isFloat)
	assert.Equal(t, int64(14), int64(result))
}

func TestUnmarshalRejectsAPIVersionMismatch(t *testing.T) {
	rec := persist.ModuleRecord{
		Header: persist.ModuleHeader{
			APIVersion:               persist.APIVersion + 1,
			ContextBuiltinAPIVersion: persist.ContextBuiltinAPIVersion,
			Name:                     "stale",
			Path:                     "stale.tsn",
		},
	}
	data, err := msgpack.Marshal(&rec)
	require.NoError(t, err)

	_, err = persist.Unmarshal(data, types.NewTypeRegistry(), types.NewFunctionRegistry())
	require.Error(t, err)
	var verErr *persist.VersionError
	require.ErrorAs(t, err, &verErr)
	assert.Equal(t, persist.APIVersion, verErr.WantAPIVersion)
	assert.Equal(t, persist.APIVersion+1, verErr.GotAPIVersion)
}

func TestUnmarshalPreservesModuleIdentity(t *testing.T) {
	mod, reg, funcs, defs, src := buildModule(t, `
		function zero(): i32 {
			return 0;
		}
	`)
	data, err := persist.Marshal(mod, reg, funcs, defs, src)
	require.NoError(t, err)

	restored, err := persist.Unmarshal(data, types.NewTypeRegistry(), types.NewFunctionRegistry())
	require.NoError(t, err)
	assert.Equal(t, mod.ID, restored.Module.ID)
	assert.Equal(t, mod.Name, restored.Module.Name)
	assert.Equal(t, mod.Path, restored.Module.Path)
	assert.Len(t, restored.Module.Functions, len(mod.Functions))
}
