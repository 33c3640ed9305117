package compiler

import (
	"fmt"
	"strings"

	"github.com/tsnlang/tsn/internal/ast"
	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/internal/types"
)

// resolveType turns a parser TypeIdentifier node into a registry DataType,
// per spec.md §4.2's pointer-suffix and single-generic-argument syntax. An
// unresolvable name is reported and resolved to i32 so compilation can
// continue and surface further, independent errors in the same pass.
func (c *Compiler) resolveType(n *ast.Node) *types.DataType {
	if n == nil {
		return c.primitives["void"]
	}
	if strings.HasSuffix(n.StringValue, "*") && n.DataType != nil {
		return c.pointerTo(c.resolveType(n.DataType))
	}
	if n.Arguments != nil {
		return c.resolveGeneric(n)
	}
	if dt, ok := c.primitives[n.StringValue]; ok {
		return dt
	}
	if dt, ok := c.Types.ByName(n.StringValue); ok {
		return dt
	}
	c.Log.Err(diag.CodeUnknownSymbol, &n.Loc, "unknown type %q", n.StringValue)
	return c.primitives["i32"]
}

// pointerTo interns the pointer-to-inner type, naming it "<inner>*" so
// repeated resolution of the same pointer level returns the same DataType.
func (c *Compiler) pointerTo(inner *types.DataType) *types.DataType {
	name := inner.Name + "*"
	if dt, ok := c.Types.ByName(name); ok {
		return dt
	}
	dt := c.Types.Declare(name)
	c.Types.Complete(dt, types.Meta{Size: 8, POD: true, TriviallyCopyable: true, TriviallyDestruct: true}, nil, nil, nil, nil)
	dt.PointeeType = inner
	return dt
}

// resolveGeneric instantiates (or reuses) a template type for a single
// generic type argument, e.g. Array<i32> (SPEC_FULL.md §4.3.5 templates).
func (c *Compiler) resolveGeneric(n *ast.Node) *types.DataType {
	arg := c.resolveType(n.Arguments)
	name := n.StringValue + "<" + arg.Name + ">"
	if dt, ok := c.Types.ByName(name); ok {
		return dt
	}
	tmpl, ok := c.templates[n.StringValue]
	if !ok {
		c.Log.Err(diag.CodeUnknownSymbol, &n.Loc, "unknown template %q", n.StringValue)
		return c.primitives["i32"]
	}
	return c.instantiateTemplate(tmpl, name, arg, n.Loc)
}

// internStringConstant interns a string literal into a private module data
// slot, reusing the slot if the same text was already interned. The host
// loader is responsible for materializing the slot's backing bytes; the
// compiler only reserves the slot and records its source text.
func (c *Compiler) internStringConstant(text string) *types.DataSlot {
	if slot, ok := c.stringConstants[text]; ok {
		return slot
	}
	name := fmt.Sprintf("$str$%d", len(c.stringConstants))
	slot := c.Module.AddDataSlot(name, c.primitives["string"], types.AccessPrivate, nil)
	c.stringConstants[text] = slot
	return slot
}
