package ffi

import (
	"context"
	"math"
	"reflect"
	"unsafe"

	"github.com/mattn/go-pointer"
	"github.com/pkg/errors"

	"github.com/tsnlang/tsn/internal/types"
	"github.com/tsnlang/tsn/internal/vm"
)

// Binding is one host function exposed to scripts: a reflected Go callable
// plus the argument classification Bind precomputed from fn.Signature, so
// Dispatch never has to re-walk the signature on every call.
type Binding struct {
	fn      *types.Function
	goFunc  reflect.Value
	argTys  []reflect.Type
	classes []ArgClass
	result  ArgClass // zero value (ArgInteger) is meaningless when fn has no return
	hasRet  bool
}

// Host is the registry of host<->script bindings for one Program: it
// installs itself as a vm.VM's HostCall hook (script-to-host calls),
// drives host-to-script calls via vm.VM.CallScript, and serves as the
// ffi.DestructorInvoker for Closure.Release. Grounded on
// original_source/include/tsn/bind/call_host_to_host.hpp's call_context,
// adapted: there is no generated per-function C thunk here, reflection
// stands in for it on the Go-native path and purego.SyscallN on the dylib
// path (marshal.go's HostToHost).
type Host struct {
	vm       *vm.VM
	typeReg  *types.TypeRegistry
	bindings map[*types.Function]*Binding
}

// NewHost creates a Host bound to v's register/stack state. v.HostCall is
// set to this Host's Dispatch method so script code invoking a bound
// function routes back here automatically.
func NewHost(v *vm.VM, typeReg *types.TypeRegistry) *Host {
	h := &Host{vm: v, typeReg: typeReg, bindings: map[*types.Function]*Binding{}}
	v.HostCall = h.Dispatch
	return h
}

// Bind registers goFunc as fn's host implementation. goFunc's reflected
// arity (minus a leading context.Context, if present, standing in for
// spec.md §3's context_ptr argument) must match len(fn.Signature.Arguments)
// after implicit arguments are excluded; a leading context.Context
// parameter is accepted in place of an ArgContextPtr-classified argument,
// the idiomatic Go rendition of the original's raw Context* parameter.
//
// On success fn.HostAddress and fn.HostWrapper are both set to a pinned
// handle for this Binding (via go-pointer), satisfying Function.Valid()'s
// "both set or both nil" invariant — a Go-native binding needs no thunk
// distinct from the binding itself, so both fields point at the same pin.
func (h *Host) Bind(fn *types.Function, goFunc interface{}) error {
	if fn.Signature == nil || !fn.Signature.Meta.Function {
		return errors.Errorf("ffi: %q has no function signature to bind against", fn.FQN)
	}
	gv := reflect.ValueOf(goFunc)
	if gv.Kind() != reflect.Func {
		return errors.Errorf("ffi: Bind target for %q is not a func (got %s)", fn.FQN, gv.Kind())
	}
	gt := gv.Type()

	args := fn.Signature.Arguments[fn.ImplicitArgCount:]
	want := len(args)

	// A leading context.Context stands in for an ArgContextPtr argument; a
	// leading unsafe.Pointer on a method or destructor stands in for the
	// implicit self/this pointer. Neither is counted against fn.Signature's
	// own (non-implicit) argument list.
	leading := 0
	if gt.NumIn() > 0 {
		switch {
		case gt.In(0) == reflect.TypeOf((*context.Context)(nil)).Elem():
			leading = 1
		case gt.In(0).Kind() == reflect.UnsafePointer && fn.This != nil:
			leading = 1
		}
	}
	got := gt.NumIn() - leading
	if got != want {
		return errors.Errorf("ffi: %q expects %d bindable arguments, goFunc has %d", fn.FQN, want, got)
	}

	b := &Binding{fn: fn, goFunc: gv}
	for i, a := range args {
		b.classes = append(b.classes, ClassifyArg(a.Type))
		b.argTys = append(b.argTys, gt.In(i+leading))
	}
	if ret := fn.Signature.ReturnType; ret != nil {
		b.hasRet = true
		b.result = ClassifyArg(ret)
	}

	handle := pointer.Save(b)
	fn.HostAddress = handle
	fn.HostWrapper = handle
	h.bindings[fn] = b
	return nil
}

// HostType describes an object type the host exposes to scripts, per
// spec.md §6's "Bound symbol API": "object types with constructors,
// destructor, methods, properties (with optional getter/setter)". BindType
// declares dt in typeReg and stamps it with Meta.Host/HostTypeHash; the
// caller then uses BindCtor/BindMethod/BindProperty (and Bind, for the
// destructor and free functions) to fill in the callables the same way a
// script-declared class's accessors are wired in internal/compiler.
type HostType struct {
	Name string
	Size int // Meta.Size; spec.md §3's per-type size in bytes

	host   *Host
	dt     *types.DataType
	props  map[string]*types.Property
	methds []*types.Function // includes constructors, accessors, and ordinary methods alike
	dtor   *types.Function
}

// BindType declares name as a host-owned DataType (Meta.Host = true) with a
// stable HostTypeHash derived the same way TypeRegistry.Declare derives a
// TypeID, so a persisted module can recognize the same host type again
// after a process restart (internal/persist's HostTypeHash round trip)
// without depending on registration order.
func (h *Host) BindType(name string, size int) *HostType {
	dt := h.typeReg.Declare(name)
	return &HostType{
		Name: name, Size: size,
		host: h, dt: dt,
		props: map[string]*types.Property{},
	}
}

// BindCtor registers goFunc as one of ht's constructors (spec.md §6:
// "object types with constructors"). goFunc is bound exactly like a free
// function (see Bind); its first script-visible argument list becomes an
// overload of ht's type name, resolved by internal/compiler's normal
// overload resolution once ht.Complete runs.
func (ht *HostType) BindCtor(fn *types.Function, goFunc interface{}) error {
	fn.This = ht.dt
	if err := ht.host.Bind(fn, goFunc); err != nil {
		return errors.Wrapf(err, "ffi: binding constructor for host type %q", ht.Name)
	}
	ht.methds = append(ht.methds, fn)
	return nil
}

// BindDtor registers goFunc as ht's destructor (spec.md §6: "...destructor,
// methods..."), reachable from InvokeDestructor the same way a script
// class's compiled destructor is.
func (ht *HostType) BindDtor(fn *types.Function, goFunc interface{}) error {
	fn.This = ht.dt
	if err := ht.host.Bind(fn, goFunc); err != nil {
		return errors.Wrapf(err, "ffi: binding destructor for host type %q", ht.Name)
	}
	ht.dtor = fn
	return nil
}

// BindMethod registers goFunc as one of ht's ordinary methods.
func (ht *HostType) BindMethod(fn *types.Function, goFunc interface{}) error {
	fn.This = ht.dt
	if err := ht.host.Bind(fn, goFunc); err != nil {
		return errors.Wrapf(err, "ffi: binding method for host type %q", ht.Name)
	}
	ht.methds = append(ht.methds, fn)
	return nil
}

// BindProperty declares a property named name on ht, with an optional
// getter and/or setter (spec.md §6: "properties (with optional getter/
// setter)"); either may be nil, matching internal/compiler's ReadOnly/
// WriteOnly classification for a script property with only one accessor.
// Offset follows internal/compiler.compileClassDecl's convention of
// bump-allocating each non-static property in declaration order.
func (ht *HostType) BindProperty(propName string, propType *types.DataType, access types.Access, getter, setter *types.Function) {
	offset := ht.Size
	ht.Size += propType.Meta.Size
	p := types.Property{
		Name: propName, Type: propType, Offset: offset, Access: access,
		Getter: getter, Setter: setter,
		ReadOnly:  getter != nil && setter == nil,
		WriteOnly: setter != nil && getter == nil,
	}
	ht.props[propName] = &p
}

// Complete freezes ht's DataType after every BindCtor/BindDtor/BindMethod/
// BindProperty call has run, mirroring internal/compiler.compileClassDecl's
// own Types.Complete call at the end of a class body.
func (ht *HostType) Complete(bases []*types.DataType) *types.DataType {
	props := make([]types.Property, 0, len(ht.props))
	for _, p := range ht.props {
		props = append(props, *p)
	}
	ht.host.typeReg.Complete(ht.dt, types.Meta{
		Size: ht.Size, Host: true, HostTypeHash: types.HashName(ht.Name),
	}, props, bases, ht.methds, ht.dtor)
	return ht.dt
}

// Dispatch satisfies vm.HostCall: it reads fn's arguments out of v's
// a0..a7/fa0..fa7 registers (the convention vm.CallScript's callers and
// script call sites both already marshal into), invokes the bound Go
// function by reflection, and returns the result's raw bits.
//
// Dispatch only handles the free-function binding shape (an optional
// leading context.Context, then fn.Signature.Arguments); a method binding's
// leading self pointer has no register of its own in the calling
// convention yet, so bound methods are only reachable through a direct
// caller-held handle (InvokeDestructor's path), not a script call
// instruction.
func (h *Host) Dispatch(ctx context.Context, v *vm.VM, fn *types.Function) (uint64, bool, error) {
	b, ok := h.bindings[fn]
	if !ok {
		return 0, false, errors.Errorf("ffi: %q has no registered host binding", fn.FQN)
	}

	in := make([]reflect.Value, 0, len(b.argTys)+1)
	if b.goFunc.Type().NumIn() > len(b.argTys) {
		in = append(in, reflect.ValueOf(ctx))
	}
	gpi, fpi := 0, 0
	for i, class := range b.classes {
		floating := class == ArgFloat
		var reg int
		var regOK bool
		if floating {
			reg, regOK = vm.ArgReg(fpi, true)
			fpi++
		} else {
			reg, regOK = vm.ArgReg(gpi, false)
			gpi++
		}
		if !regOK {
			return 0, false, errors.Errorf("ffi: %q argument %d overflows the register argument banks (stack-spilled arguments are not yet supported)", fn.FQN, i)
		}
		bits := v.Regs.Uint64(reg)
		in = append(in, argWordToReflect(bits, floating, b.argTys[i]))
	}

	out := b.goFunc.Call(in)
	if !b.hasRet {
		return 0, false, nil
	}
	if len(out) == 0 {
		return 0, false, errors.Errorf("ffi: %q declares a return value but its binding returns nothing", fn.FQN)
	}
	if errVal, ok := lastErr(out); ok && !errVal.IsNil() {
		return 0, false, errVal.Interface().(error)
	}

	rv := out[0]
	switch b.result {
	case ArgFloat:
		return floatBits(rv), true, nil
	case ArgPointer:
		return uint64(rv.Pointer()), false, nil
	default:
		return intBits(rv), false, nil
	}
}

// InvokeDestructor runs fn (a host-bound destructor) against self, serving
// as the ffi.DestructorInvoker closures built through this Host use.
func (h *Host) InvokeDestructor(fn *types.Function, self unsafe.Pointer) error {
	if fn.IsScript() {
		_, _, err := h.vm.CallScript(context.Background(), fn)
		return err
	}
	b, ok := h.bindings[fn]
	if !ok {
		return errors.Errorf("ffi: destructor %q has no registered host binding", fn.FQN)
	}
	in := []reflect.Value{reflect.ValueOf(self)}
	b.goFunc.Call(in)
	return nil
}

// Unbind releases the pinned handle a prior Bind installed on fn, e.g. when
// a Program (and every Host over it) is being torn down.
func (h *Host) Unbind(fn *types.Function) {
	if fn.HostAddress != nil {
		pointer.Unref(fn.HostAddress)
	}
	delete(h.bindings, fn)
	fn.HostAddress = nil
	fn.HostWrapper = nil
}

// lastErr reports whether out's final result is an error-typed value,
// Go's idiomatic "last return is the error" convention for a bound
// function that can itself fail independent of the script-level exception
// mechanism.
func lastErr(out []reflect.Value) (reflect.Value, bool) {
	if len(out) == 0 {
		return reflect.Value{}, false
	}
	last := out[len(out)-1]
	if last.Type() == reflect.TypeOf((*error)(nil)).Elem() {
		return last, true
	}
	return reflect.Value{}, false
}

func floatBits(v reflect.Value) uint64 {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return math.Float64bits(v.Float())
	default:
		return 0
	}
}

func intBits(v reflect.Value) uint64 {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint()
	case reflect.Bool:
		if v.Bool() {
			return 1
		}
		return 0
	default:
		return uint64(v.Int())
	}
}
