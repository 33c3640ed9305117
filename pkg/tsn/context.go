// Package tsn is the small embedding façade SPEC_FULL.md §0 names: a
// Context wiring internal/source through internal/vm into one entry point,
// the way a host application embeds this toolchain without importing every
// internal/* package itself.
//
// The teacher has no embedding surface at all (main.go drives every stage
// directly for a one-shot compile-to-binary run); this package is grounded
// on main.go's own run() function for its overall shape (read source,
// parse, "optimise", generate) generalized from "compile once and exit" to
// "compile, call, and persist repeatedly against one shared Context."
package tsn

import (
	"context"
	"path/filepath"
	"reflect"
	"sync"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/tsnlang/tsn/internal/compiler"
	"github.com/tsnlang/tsn/internal/config"
	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/internal/exec"
	"github.com/tsnlang/tsn/internal/ffi"
	"github.com/tsnlang/tsn/internal/ir"
	"github.com/tsnlang/tsn/internal/optimize"
	"github.com/tsnlang/tsn/internal/parser"
	"github.com/tsnlang/tsn/internal/persist"
	"github.com/tsnlang/tsn/internal/regalloc"
	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/types"
	"github.com/tsnlang/tsn/internal/vm"
)

// DefaultStackSize is the per-VM stack byte count a Context allocates when
// the caller doesn't need a specific budget.
const DefaultStackSize = 64 * 1024

var regallocOpts = regalloc.Options{NumGP: vm.NumGPRegisters, NumFP: vm.NumFPRegisters}

// Module is one compiled unit a Context knows how to run, persist, or
// restore: the underlying types.Module plus the register-allocated IR
// vm.Assemble needs to reach a Program (spec.md §3's Module, widened with
// the artifacts a running Context keeps alongside it).
type Module struct {
	*types.Module
	Program *vm.Program
	Defs    map[*types.Function]*ir.FunctionDef
}

// FindFunction looks up one of m's own top-level functions by its
// fully-qualified name.
func (m *Module) FindFunction(fqn string) *types.Function {
	for _, fn := range m.Functions {
		if fn.FQN == fqn {
			return fn
		}
	}
	return nil
}

// Context is the shared compilation/runtime environment spec.md §5 calls
// "shared resources": one TypeRegistry/FunctionRegistry/Logger per host
// process (or per isolated sandbox, if a host wants several), plus every
// Module compiled or restored against it.
type Context struct {
	Config config.Config
	Log    *diag.Logger

	TypeReg *types.TypeRegistry
	FuncReg *types.FunctionRegistry

	mu      sync.Mutex
	modules map[string]*Module
}

// New creates a Context with fresh, empty registries.
func New(cfg config.Config, log *diag.Logger) *Context {
	if log == nil {
		log = diag.New(nil, cfg.DebugLogging)
	}
	return &Context{
		Config:  cfg,
		Log:     log,
		TypeReg: types.NewTypeRegistry(),
		FuncReg: types.NewFunctionRegistry(),
		modules: map[string]*Module{},
	}
}

// Compile parses and compiles text (named path for diagnostics), optimizes
// it (unless Config.DisableOptimizations, per spec.md §6), register-
// allocates every function, and assembles the result into a runnable
// Module, following main.go's run()'s own read-parse-optimise-generate
// pipeline.
func (c *Context) Compile(path, text string) (*Module, error) {
	src := source.New(path, text)
	root := parser.Parse(src, c.Log, nil)
	if c.Log.HasErrors() {
		return nil, errors.Errorf("tsn: %q failed to parse", path)
	}

	mod := types.NewModule(filepath.Base(path), path)
	comp := compiler.New(c.TypeReg, c.FuncReg, mod, c.Log)
	comp.CompileProgram(root)
	if c.Log.HasErrors() {
		return nil, errors.Errorf("tsn: %q failed to compile", path)
	}

	if !c.Config.DisableOptimizations {
		optimize.Run(comp.Output, optimize.Options{Threads: c.Config.Threads}, c.Log)
	}
	for _, fd := range comp.Output {
		regalloc.Allocate(fd, regallocOpts, c.TypeReg)
	}

	prog, err := vm.Assemble(mod, comp.Output)
	if err != nil {
		return nil, errors.Wrapf(err, "tsn: assembling %q", path)
	}

	m := &Module{Module: mod, Program: prog, Defs: comp.Output}
	c.mu.Lock()
	c.modules[path] = m
	c.mu.Unlock()
	return m, nil
}

// Module looks up a previously Compile'd or Restore'd module by its path.
func (c *Context) Module(path string) (*Module, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.modules[path]
	return m, ok
}

// NewVM creates a fresh VM over m's Program with an *ffi.Host already
// installed as its HostCall hook, ready for host-to-script calls via
// VM.CallScript or script-to-host calls the host has Bind'd functions for
// (spec.md §4.10).
func (c *Context) NewVM(m *Module, stackSize int) (*vm.VM, *ffi.Host) {
	if stackSize <= 0 {
		stackSize = DefaultStackSize
	}
	machine := vm.New(m.Program, stackSize)
	host := ffi.NewHost(machine, c.TypeReg)
	return machine, host
}

// Call invokes m's fqn-named function with args marshaled into the VM's
// argument registers by their declared parameter types, per spec.md §4.10's
// host-to-script calling convention. If Config.DisableExecution is set, the
// call is short-circuited into a zero-valued no-op (spec.md §6).
func (c *Context) Call(ctx context.Context, m *Module, fqn string, args ...interface{}) (result uint64, isFloat bool, err error) {
	fn := m.FindFunction(fqn)
	if fn == nil {
		return 0, false, errors.Errorf("tsn: %q has no function %q", m.Path, fqn)
	}
	if c.Config.DisableExecution {
		return 0, false, nil
	}

	machine, _ := c.NewVM(m, DefaultStackSize)
	if err := setCallArgs(machine, fn, args); err != nil {
		return 0, false, err
	}
	return machine.CallScript(ctx, fn)
}

// setCallArgs writes args into machine's argument registers in declaration
// order, classifying each by the callee's declared parameter type the same
// way internal/ffi.ClassifyArg does for a host binding's own arguments.
func setCallArgs(machine *vm.VM, fn *types.Function, args []interface{}) error {
	params := fn.Signature.Arguments[fn.ImplicitArgCount:]
	if len(args) != len(params) {
		return errors.Errorf("tsn: %q expects %d arguments, got %d", fn.FQN, len(params), len(args))
	}
	gpi, fpi := 0, 0
	for i, p := range params {
		class := ffi.ClassifyArg(p.Type)
		floating := class == ffi.ArgFloat
		var reg int
		var ok bool
		if floating {
			reg, ok = vm.ArgReg(fpi, true)
			fpi++
		} else {
			reg, ok = vm.ArgReg(gpi, false)
			gpi++
		}
		if !ok {
			return errors.Errorf("tsn: %q argument %d overflows the register argument banks", fn.FQN, i)
		}
		v := reflect.ValueOf(args[i])
		switch class {
		case ffi.ArgFloat:
			machine.Regs.SetFloat64(reg, v.Float())
		case ffi.ArgPointer:
			machine.Regs.SetUint64(reg, uint64(v.Pointer()))
		default:
			if v.Kind() >= reflect.Uint && v.Kind() <= reflect.Uintptr {
				machine.Regs.SetUint64(reg, v.Uint())
			} else {
				machine.Regs.SetInt64(reg, v.Int())
			}
		}
	}
	return nil
}

// Persist serializes m (and the shared TypeReg/FuncReg it references) into
// a msgpack buffer per spec.md §4.12/§6, embedding src so a later Restore
// can still attach source locations. Pass nil for src to omit the original
// text from the persisted artifact.
func (c *Context) Persist(m *Module, src *source.ModuleSource) ([]byte, error) {
	return persist.Marshal(m.Module, c.TypeReg, c.FuncReg, m.Defs, src)
}

// Restore rebuilds a Module from data previously produced by Persist,
// fixing up type_id/function_id references against c's own registries
// (spec.md §4.12) and reassembling a runnable Program without recompiling
// or re-optimizing.
func (c *Context) Restore(data []byte) (*Module, error) {
	restored, err := persist.Unmarshal(data, c.TypeReg, c.FuncReg)
	if err != nil {
		return nil, err
	}
	prog, err := vm.Assemble(restored.Module, restored.FuncDefs)
	if err != nil {
		return nil, errors.Wrap(err, "tsn: assembling restored module")
	}
	m := &Module{Module: restored.Module, Program: prog, Defs: restored.FuncDefs}
	c.mu.Lock()
	c.modules[restored.Module.Path] = m
	c.mu.Unlock()
	return m, nil
}

// Destroy runs m's data slots' destructors in reverse declaration order
// (spec.md §3) over a scratch VM, then marks m destroyed.
func (c *Context) Destroy(m *Module) {
	machine, host := c.NewVM(m, DefaultStackSize)
	m.Module.Destroy(func(fn *types.Function, addr []byte) {
		if fn.IsScript() {
			_, _, _ = machine.CallScript(context.Background(), fn)
			return
		}
		_ = host.InvokeDestructor(fn, unsafePointerOf(addr))
	})
}

// unsafePointerOf returns a pointer to addr's backing array, or nil for an
// empty slice (a zero-sized data slot has no addressable storage).
func unsafePointerOf(addr []byte) unsafe.Pointer {
	if len(addr) == 0 {
		return nil
	}
	return unsafe.Pointer(&addr[0])
}

// NewExecutionContext creates a fresh per-call-thread ExecutionContext
// (spec.md §4.11), for a host that wants to thread one through its own
// context.Context value alongside a VM call.
func (c *Context) NewExecutionContext() *exec.ExecutionContext {
	return exec.New()
}
