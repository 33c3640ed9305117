// Package ir implements the typed three-address-code intermediate
// representation from spec.md §3-§4.5: Value, Instruction, FunctionDef,
// CodeHolder, the control-flow graph, and liveness data.
//
// The teacher compiler's lir.Value (src/ir/lir/lir.go) is an interface with
// SetHW/GetHW/GetWrapper hooks used by register allocation; this package
// keeps that same allocation-hook shape but models Value itself as the
// tagged-union struct spec.md §3 describes, since the spec's Value is a
// closed set of six kinds rather than an open interface hierarchy.
package ir

import (
	"fmt"

	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/types"
)

// ValueKind selects which field of Value is meaningful.
type ValueKind int

const (
	VRegister ValueKind = iota
	VImmediate
	VStackAlloc
	VModuleData
	VPoison
	VNull
)

// ImmediateKind narrows VImmediate's payload.
type ImmediateKind int

const (
	ImmInt ImmediateKind = iota
	ImmUint
	ImmF32
	ImmF64
	ImmFunction
	ImmModule
)

// ValueFlags are the bit flags spec.md §3 attaches to every Value:
// "readable, writable, static, pointer".
type ValueFlags uint8

const (
	FlagReadable ValueFlags = 1 << iota
	FlagWritable
	FlagStatic
	FlagPointer
)

// Value is the tagged operand type of every Instruction, per spec.md §3.
// Exactly one of the kind-specific fields is meaningful, selected by Kind.
type Value struct {
	Kind ValueKind
	Type *types.DataType

	// VRegister
	Reg int

	// VImmediate
	ImmKind  ImmediateKind
	ImmInt   int64
	ImmUint  uint64
	ImmF32   float32
	ImmF64   float64
	ImmFunc  *types.Function
	ImmMod   uint64

	// VStackAlloc
	AllocID int

	// VModuleData
	ModuleID uint64
	SlotID   int

	Flags       ValueFlags
	StackAllocID int // non-zero if this value's address was taken (AllocID of the backing stack_alloc)
	SourceLabel string
	Loc         source.Location

	// hw is set by register allocation: either a regalloc.Physical, or a
	// spill slot offset boxed as an int once the allocator resolves it.
	hw interface{}
	// wrapper is scratch storage used by whichever pass currently owns
	// per-instruction bookkeeping (liveness interval node, RIG node, ...).
	wrapper interface{}
}

// NewRegister builds a register Value.
func NewRegister(id int, t *types.DataType) Value {
	return Value{Kind: VRegister, Reg: id, Type: t, Flags: FlagReadable | FlagWritable}
}

// ImmInt64 builds a signed integer immediate.
func ImmInt64(v int64, t *types.DataType) Value {
	return Value{Kind: VImmediate, ImmKind: ImmInt, ImmInt: v, Type: t, Flags: FlagReadable}
}

// ImmUint64 builds an unsigned integer immediate.
func ImmUint64(v uint64, t *types.DataType) Value {
	return Value{Kind: VImmediate, ImmKind: ImmUint, ImmUint: v, Type: t, Flags: FlagReadable}
}

// ImmFloat32 builds an f32 immediate.
func ImmFloat32(v float32, t *types.DataType) Value {
	return Value{Kind: VImmediate, ImmKind: ImmF32, ImmF32: v, Type: t, Flags: FlagReadable}
}

// ImmFloat64 builds an f64 immediate.
func ImmFloat64(v float64, t *types.DataType) Value {
	return Value{Kind: VImmediate, ImmKind: ImmF64, ImmF64: v, Type: t, Flags: FlagReadable}
}

// NewStackAlloc builds an address-of-allocation Value.
func NewStackAlloc(allocID int, t *types.DataType) Value {
	return Value{Kind: VStackAlloc, AllocID: allocID, Type: t, Flags: FlagReadable | FlagPointer}
}

// NewModuleData builds a Value referencing a module-global data slot.
func NewModuleData(moduleID uint64, slotID int, t *types.DataType) Value {
	return Value{Kind: VModuleData, ModuleID: moduleID, SlotID: slotID, Type: t, Flags: FlagReadable | FlagWritable}
}

// Poison is the error placeholder Value emitted when compilation of an
// expression fails but emission must continue (spec.md §3 Value kinds).
func Poison(t *types.DataType) Value { return Value{Kind: VPoison, Type: t} }

// Null is the literal null Value.
func Null(t *types.DataType) Value { return Value{Kind: VNull, Type: t} }

// IsRegister reports whether v is a VRegister value.
func (v Value) IsRegister() bool { return v.Kind == VRegister }

// IsImmediate reports whether v is a VImmediate value.
func (v Value) IsImmediate() bool { return v.Kind == VImmediate }

// IsPoison reports whether v is the error placeholder.
func (v Value) IsPoison() bool { return v.Kind == VPoison }

// IsFloating reports whether v's Type is a floating-point type, used by
// register allocation's gp/fp bank split and the VM's opcode immediate
// float flag.
func (v Value) IsFloating() bool { return v.Type != nil && v.Type.Meta.Floating }

// SetHW records the physical register or spill slot assigned by register
// allocation.
func (v *Value) SetHW(hw interface{}) { v.hw = hw }

// GetHW retrieves the physical register or spill slot assigned by register
// allocation, or nil if unassigned.
func (v Value) GetHW() interface{} { return v.hw }

// SetWrapper attaches scratch per-pass bookkeeping (e.g. a liveness interval).
func (v *Value) SetWrapper(w interface{}) { v.wrapper = w }

// GetWrapper retrieves scratch per-pass bookkeeping.
func (v Value) GetWrapper() interface{} { return v.wrapper }

// String renders a debug form of v, e.g. "r3:i32", "#42:i32", "poison:f32".
func (v Value) String() string {
	tn := "?"
	if v.Type != nil {
		tn = v.Type.Name
	}
	switch v.Kind {
	case VRegister:
		return fmt.Sprintf("r%d:%s", v.Reg, tn)
	case VImmediate:
		switch v.ImmKind {
		case ImmInt:
			return fmt.Sprintf("#%d:%s", v.ImmInt, tn)
		case ImmUint:
			return fmt.Sprintf("#%d:%s", v.ImmUint, tn)
		case ImmF32:
			return fmt.Sprintf("#%g:%s", v.ImmF32, tn)
		case ImmF64:
			return fmt.Sprintf("#%g:%s", v.ImmF64, tn)
		case ImmFunction:
			return fmt.Sprintf("#func<%s>", v.ImmFunc.Name)
		default:
			return "#mod"
		}
	case VStackAlloc:
		return fmt.Sprintf("alloc%d:%s", v.AllocID, tn)
	case VModuleData:
		return fmt.Sprintf("mod[%d,%d]:%s", v.ModuleID, v.SlotID, tn)
	case VPoison:
		return "poison:" + tn
	default:
		return "null"
	}
}
