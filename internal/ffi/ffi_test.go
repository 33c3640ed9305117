package ffi_test

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsnlang/tsn/internal/ffi"
	"github.com/tsnlang/tsn/internal/types"
	"github.com/tsnlang/tsn/internal/vm"
)

// capturedIntType registers a primitive i32-shaped type whose Destructor is
// dtor, for building a capture buffer with one destructible field.
func capturedIntType(reg *types.TypeRegistry, dtor *types.Function) *types.DataType {
	dt := reg.Declare("ffi_test.i32")
	reg.Complete(dt, types.Meta{Size: 4, Primitive: true, Integral: true}, nil, nil, nil, dtor)
	return dt
}

func encodeCapture(dt *types.DataType) []byte {
	buf := make([]byte, 0, 4+8+dt.Meta.Size)
	hdr := make([]byte, 4)
	binary.LittleEndian.PutUint32(hdr, 1)
	buf = append(buf, hdr...)
	tid := make([]byte, 8)
	binary.LittleEndian.PutUint64(tid, uint64(dt.ID))
	buf = append(buf, tid...)
	buf = append(buf, make([]byte, dt.Meta.Size)...)
	return buf
}

func TestClosureRefcountDestroysExactlyOnce(t *testing.T) {
	reg := types.NewTypeRegistry()
	dtor := &types.Function{FQN: "ffi_test.i32.dtor"}
	dt := capturedIntType(reg, dtor)
	capture := encodeCapture(dt)

	var mu sync.Mutex
	var calls int
	invoke := func(fn *types.Function, self unsafe.Pointer) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		assert.Same(t, dtor, fn)
		return nil
	}

	target := &types.Function{FQN: "ffi_test.target"}
	c, err := ffi.NewClosure(target, nil, capture, reg, invoke)
	require.NoError(t, err)

	// Three independent shares: the implicit one NewClosure started with,
	// plus two more from NewRef, dropped in an order that isn't simply FIFO.
	initial := ffi.InitialRef(c)
	second := ffi.NewRef(c)
	third := ffi.NewRef(c)

	require.NoError(t, second.Release())
	assert.Equal(t, 0, calls, "destructors must not run until every share is released")
	require.NoError(t, initial.Release())
	assert.Equal(t, 0, calls)
	require.NoError(t, third.Release())
	assert.Equal(t, 1, calls, "destructor must run exactly once, on the last release")

	// A further release on an already-released ref is a no-op, not a second
	// destruction.
	require.NoError(t, third.Release())
	assert.Equal(t, 1, calls)
}

func TestNewClosureRejectsSelfOnNonMethod(t *testing.T) {
	reg := types.NewTypeRegistry()
	target := &types.Function{FQN: "ffi_test.freeFn"} // This == nil: not a method
	var dummy int
	_, err := ffi.NewClosure(target, unsafe.Pointer(&dummy), nil, reg, nil)
	assert.Error(t, err)
}

func TestNewClosureRejectsTruncatedCapture(t *testing.T) {
	reg := types.NewTypeRegistry()
	target := &types.Function{FQN: "ffi_test.target"}
	_, err := ffi.NewClosure(target, nil, []byte{1, 2, 3}, reg, nil)
	assert.Error(t, err)
}

func TestClassifyArg(t *testing.T) {
	reg := types.NewTypeRegistry()
	i32 := reg.Declare("ffi_test.classify.i32")
	reg.Complete(i32, types.Meta{Primitive: true, Integral: true}, nil, nil, nil, nil)
	f64 := reg.Declare("ffi_test.classify.f64")
	reg.Complete(f64, types.Meta{Primitive: true, Floating: true}, nil, nil, nil, nil)
	obj := reg.Declare("ffi_test.classify.obj")
	reg.Complete(obj, types.Meta{Primitive: false}, nil, nil, nil, nil)

	assert.Equal(t, ffi.ArgInteger, ffi.ClassifyArg(i32))
	assert.Equal(t, ffi.ArgFloat, ffi.ClassifyArg(f64))
	assert.Equal(t, ffi.ArgPointer, ffi.ClassifyArg(obj))
	assert.Equal(t, ffi.ArgPointer, ffi.ClassifyArg(nil))
}

// buildHostFunction constructs a *types.Function describing a two-argument
// (i32, i32) -> i32 host-bound function signature, without going through the
// parser: the language has no extern/host declaration syntax yet (scripts
// only ever define functions of their own), so host bindings are registered
// directly against the type/function registries the way pkg/tsn's façade
// will eventually do for a host's exposed API surface.
func buildHostFunction(reg *types.TypeRegistry) *types.Function {
	i32 := reg.Declare("ffi_test.host.i32")
	reg.Complete(i32, types.Meta{Size: 4, Primitive: true, Integral: true}, nil, nil, nil, nil)

	sig := reg.Declare("ffi_test.host.add$sig")
	reg.Complete(sig, types.Meta{Function: true}, nil, nil, nil, nil)
	sig.ReturnType = i32
	sig.Arguments = []types.Argument{
		{PassKind: types.ArgValue, Type: i32},
		{PassKind: types.ArgValue, Type: i32},
	}

	return &types.Function{ID: 1, Name: "add", FQN: "ffi_test.host.add", Signature: sig}
}

func TestHostBindAndDispatchRoundTrip(t *testing.T) {
	reg := types.NewTypeRegistry()
	fn := buildHostFunction(reg)

	v := vm.New(nil, 256)
	host := ffi.NewHost(v, reg)

	add := func(a, b int32) int32 { return a + b }
	require.NoError(t, host.Bind(fn, add))
	assert.True(t, fn.Valid())
	assert.True(t, fn.IsHost())

	a0, _ := vm.ArgReg(0, false)
	a1, _ := vm.ArgReg(1, false)
	v.Regs.SetInt64(a0, 7)
	v.Regs.SetInt64(a1, 35)

	result, isFloat, err := host.Dispatch(context.Background(), v, fn)
	require.NoError(t, err)
	assert.False(t, isFloat)
	assert.EqualValues(t, 42, int32(result))
}

func TestHostBindRejectsArityMismatch(t *testing.T) {
	reg := types.NewTypeRegistry()
	fn := buildHostFunction(reg)

	v := vm.New(nil, 256)
	host := ffi.NewHost(v, reg)

	wrongArity := func(a int32) int32 { return a }
	err := host.Bind(fn, wrongArity)
	assert.Error(t, err)
}

// TestHostBindTypeRegistersPropertiesAndCtor exercises spec.md §6's object-
// type half of the bound symbol API: a host type with a constructor and a
// get/set property pair should come out of Complete as an ordinary
// *types.DataType a script-facing property read/write can dispatch through.
func TestHostBindTypeRegistersPropertiesAndCtor(t *testing.T) {
	reg := types.NewTypeRegistry()
	i32 := reg.Declare("ffi_test.host.Point.i32")
	reg.Complete(i32, types.Meta{Size: 4, Primitive: true, Integral: true}, nil, nil, nil, nil)

	v := vm.New(nil, 64)
	host := ffi.NewHost(v, reg)

	ht := host.BindType("ffi_test.host.Point", 0)

	ctorSig := reg.Declare("ffi_test.host.Point.ctor$sig")
	reg.Complete(ctorSig, types.Meta{Function: true}, nil, nil, nil, nil)
	ctorFn := &types.Function{ID: 10, FQN: "ffi_test.host.Point::Point", Signature: ctorSig}
	require.NoError(t, ht.BindCtor(ctorFn, func(self unsafe.Pointer) {}))

	getSig := reg.Declare("ffi_test.host.Point.getX$sig")
	reg.Complete(getSig, types.Meta{Function: true}, nil, nil, nil, nil)
	getSig.ReturnType = i32
	getFn := &types.Function{ID: 11, FQN: "ffi_test.host.Point::get$x", Signature: getSig}
	require.NoError(t, ht.BindMethod(getFn, func(self unsafe.Pointer) int32 { return *(*int32)(self) }))

	ht.BindProperty("x", i32, types.AccessPublic, getFn, nil)

	dt := ht.Complete(nil)

	require.True(t, dt.Meta.Host)
	assert.NotZero(t, dt.Meta.HostTypeHash)
	require.Len(t, dt.Properties, 1)
	assert.Equal(t, "x", dt.Properties[0].Name)
	assert.Same(t, getFn, dt.Properties[0].Getter)
	assert.True(t, dt.Properties[0].ReadOnly)
	assert.Nil(t, dt.Properties[0].Setter)
	assert.Same(t, ctorFn, dt.Methods[0])
	assert.True(t, ctorFn.Valid())
}

func TestHostInvokeDestructorRunsHostBinding(t *testing.T) {
	reg := types.NewTypeRegistry()
	owner := &types.DataType{Name: "ffi_test.host.Owned"}
	dtorFn := &types.Function{
		ID: 2, FQN: "ffi_test.host.dtor",
		Signature: &types.DataType{Meta: types.Meta{Function: true}},
		This:      owner,
	}

	v := vm.New(nil, 64)
	host := ffi.NewHost(v, reg)

	var destructed int32
	require.NoError(t, host.Bind(dtorFn, func(self unsafe.Pointer) {
		destructed = *(*int32)(self)
	}))

	val := int32(99)
	require.NoError(t, host.InvokeDestructor(dtorFn, unsafe.Pointer(&val)))
	assert.EqualValues(t, 99, destructed)
}
