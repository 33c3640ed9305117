package ffi

import (
	"encoding/binary"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/tsnlang/tsn/internal/types"
)

// capturedField is one entry of a Closure's capture-data buffer, per
// spec.md §3: "Capture data layout: u32 count | (type_id, bytes)* ...".
type capturedField struct {
	typeID types.TypeID
	offset int // byte offset of this field's value within Closure.capture
	size   int
}

// DestructorInvoker runs fn (a script or host destructor) against self,
// abstracting over which executes it: a *Host dispatches a host destructor
// through its Binding table, while a script destructor runs through
// (*vm.VM).CallScript. Closure takes one in at construction time rather than
// importing internal/vm or internal/ffi's own Host directly, so this file
// has no dependency on how the caller chose to wire either.
type DestructorInvoker func(fn *types.Function, self unsafe.Pointer) error

// Closure is the reference-counted bound-function value of spec.md §3:
// "{target: FunctionId, self: ptr, capture-data: ptr, ref-count}". Capture
// data is read once at construction time into a flat field table so Release
// can run each captured field's destructor by type id without re-parsing the
// `u32 count | (type_id, bytes)*` header on every drop.
type Closure struct {
	Target *types.Function
	Self   unsafe.Pointer

	capture []byte
	fields  []capturedField
	refs    atomic.Int32

	typeReg *types.TypeRegistry
	invoke  DestructorInvoker
}

// NewClosure parses capture's `u32 count | (type_id, bytes)*` header (spec.md
// §3) against typeReg to learn each field's size, and returns a Closure with
// an initial reference count of 1 — the caller's own first ClosureRef is
// implicit and must still be released exactly once like any other. invoke
// may be nil if none of the captured fields' types has a destructor (a
// common case for primitive captures); Release returns an error if it turns
// out to be needed and wasn't supplied.
func NewClosure(target *types.Function, self unsafe.Pointer, capture []byte, typeReg *types.TypeRegistry, invoke DestructorInvoker) (*Closure, error) {
	if self != nil && target.This == nil {
		return nil, errors.Errorf("ffi: %q is not a method, cannot bind a self pointer to it", target.FQN)
	}

	c := &Closure{Target: target, Self: self, capture: capture, typeReg: typeReg, invoke: invoke}
	c.refs.Store(1)

	if len(capture) < 4 {
		if len(capture) == 0 {
			return c, nil
		}
		return nil, errors.New("ffi: capture buffer shorter than its own count header")
	}
	count := binary.LittleEndian.Uint32(capture)
	off := 4
	for i := uint32(0); i < count; i++ {
		if off+8 > len(capture) {
			return nil, errors.Errorf("ffi: capture buffer truncated at field %d", i)
		}
		tid := types.TypeID(binary.LittleEndian.Uint64(capture[off:]))
		off += 8
		dt, ok := typeReg.ByID(tid)
		if !ok {
			return nil, errors.Errorf("ffi: capture field %d: unknown type id %d", i, tid)
		}
		size := dt.Meta.Size
		if off+size > len(capture) {
			return nil, errors.Errorf("ffi: capture buffer truncated at field %d (type %s)", i, dt.Name)
		}
		c.fields = append(c.fields, capturedField{typeID: tid, offset: off, size: size})
		off += size
	}
	return c, nil
}

// ClosureRef is one reference-counted handle to a Closure, per spec.md §8
// property 12: "constructing k ClosureRefs from one Closure and dropping
// them in any order destroys the closure exactly once." NewRef increments the
// shared count, InitialRef wraps the share NewClosure already counted, and
// only Release decrements it.
type ClosureRef struct {
	c *Closure
}

// NewRef increments c's reference count and returns a handle owning one
// share of it.
func NewRef(c *Closure) *ClosureRef {
	c.refs.Inc()
	return &ClosureRef{c: c}
}

// InitialRef wraps the reference count NewClosure already started at 1 into
// an owned handle, without incrementing further. Call this exactly once per
// Closure — typically right after NewClosure — to turn its implicit first
// share into a releasable ClosureRef; every further share comes from NewRef.
func InitialRef(c *Closure) *ClosureRef {
	return &ClosureRef{c: c}
}

// Closure returns the referenced Closure, valid only until this ref (and
// every other outstanding ref) is released.
func (r *ClosureRef) Closure() *Closure { return r.c }

// Release drops this ref's share of c's ownership. When the last share is
// dropped, every captured field's destructor runs (in capture order) using
// the type ids recorded at construction, per spec.md §5's ownership policy:
// "destructors are invoked using the captured type ids before the raw memory
// is returned to the pool." This package has no pooled allocator of its own
// (spec.md's "pooled allocator for capture blocks" is a host-side memory
// concern, not an FFI marshalling one); the capture buffer is simply
// released to the Go garbage collector once destructed.
func (r *ClosureRef) Release() error {
	if r.c == nil {
		return nil // already released
	}
	c := r.c
	r.c = nil
	if c.refs.Dec() > 0 {
		return nil
	}
	return c.runDestructors()
}

func (c *Closure) runDestructors() error {
	for _, f := range c.fields {
		dt, ok := c.typeReg.ByID(f.typeID)
		if !ok || dt.Destructor == nil {
			continue
		}
		if c.invoke == nil {
			return errors.Errorf("ffi: captured field of type %s has a destructor but no invoker was supplied", dt.Name)
		}
		fieldPtr := unsafe.Pointer(&c.capture[f.offset])
		if err := c.invoke(dt.Destructor, fieldPtr); err != nil {
			return errors.Wrapf(err, "ffi: destructing captured field of type %s", dt.Name)
		}
	}
	return nil
}
