package ir

import (
	"fmt"
	"strings"

	"github.com/tsnlang/tsn/internal/types"
)

// FunctionDef is a function body under construction or already compiled,
// per spec.md §4.5: "A compiled function is its parameter list, its declared
// stack slots, and a CodeHolder of its instructions." It is the unit the
// optimizer, register allocator, and VM codegen each operate on in turn.
type FunctionDef struct {
	Func   *types.Function
	Params []Value // VRegister values bound to incoming arguments, in order
	Locals []Value // VStackAlloc values for every slot AllocStack reserved, in allocation order

	Code *CodeHolder

	nextReg  int
	nextAlloc int
}

// NewFunctionDef creates an empty FunctionDef for fn.
func NewFunctionDef(fn *types.Function) *FunctionDef {
	return &FunctionDef{Func: fn, Code: newCodeHolder()}
}

// AllocReg mints a fresh virtual register of type t.
func (fd *FunctionDef) AllocReg(t *types.DataType) Value {
	v := NewRegister(fd.nextReg, t)
	fd.nextReg++
	return v
}

// AllocStack reserves a new stack slot of type t and appends it to Locals.
func (fd *FunctionDef) AllocStack(t *types.DataType) Value {
	v := NewStackAlloc(fd.nextAlloc, t)
	fd.nextAlloc++
	fd.Locals = append(fd.Locals, v)
	return v
}

// BindParam appends a parameter binding in declaration order and returns the
// register Value the rest of the function body should reference.
func (fd *FunctionDef) BindParam(t *types.DataType) Value {
	v := fd.AllocReg(t)
	fd.Params = append(fd.Params, v)
	return v
}

// Emit appends ins to the function's linear instruction buffer and
// invalidates any cached CFG/liveness (see CodeHolder.rebuildAll).
func (fd *FunctionDef) Emit(ins Instruction) {
	fd.Code.append(ins)
}

// NewLabel mints a fresh label id, unique within this function.
func (fd *FunctionDef) NewLabel() int {
	return fd.Code.newLabel()
}

// NumRegisters returns how many distinct virtual registers have been
// allocated, used to size the register-allocator's working set.
func (fd *FunctionDef) NumRegisters() int { return fd.nextReg }

func (fd *FunctionDef) String() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("function %s(", fd.Func.Name))
	for i, p := range fd.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.String())
	}
	sb.WriteString(") {\n")
	for _, l := range fd.Locals {
		sb.WriteString("\t" + l.String() + "\n")
	}
	for _, ins := range fd.Code.Instructions {
		sb.WriteString("\t" + ins.String() + "\n")
	}
	sb.WriteString("}")
	return sb.String()
}
