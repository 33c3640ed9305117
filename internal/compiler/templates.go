package compiler

import (
	"github.com/tsnlang/tsn/internal/ast"
	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/types"
)

// templateDef is a recorded template definition: its AST and the single type
// parameter name substituted at instantiation (spec.md §4.3.5: "A template
// definition is recorded with its AST ... At instantiation, a deep copy of
// the AST is recompiled with the template parameter substituted").
//
// The grammar has no user-facing syntax for declaring `class Foo<T>`, so
// user-defined templates are an open item (see DESIGN.md); this package
// seeds the mechanism with host-provided generic containers instead, the way
// a host API would register them.
type templateDef struct {
	Name      string
	TypeParam string
	Decl      *ast.Node // a ClassDecl node referencing TypeParam as a bare TypeIdentifier
}

// registerBuiltinTemplates seeds the template table with the host-provided
// generic container types SPEC_FULL.md calls for.
func registerBuiltinTemplates() map[string]*templateDef {
	box := &ast.Node{
		Kind:       ast.ClassDecl,
		Identifier: &ast.Node{Kind: ast.Identifier, StringValue: "Box"},
		Body: &ast.Node{
			Kind:        ast.Property,
			StringValue: "value",
			Modifier:    &ast.Node{Kind: ast.Identifier, StringValue: "public"},
			DataType:    &ast.Node{Kind: ast.TypeIdentifier, StringValue: "T"},
		},
	}
	return map[string]*templateDef{
		"Box": {Name: "Box", TypeParam: "T", Decl: box},
	}
}

// instantiateTemplate compiles a fresh copy of tmpl.Decl with every bare
// reference to tmpl.TypeParam substituted for arg, producing a DataType
// named name. Diagnostics from a failed instantiation are rolled back via
// a Logger transaction so a retried or alternate instantiation starts clean.
func (c *Compiler) instantiateTemplate(tmpl *templateDef, name string, arg *types.DataType, loc source.Location) *types.DataType {
	tx := c.Log.Begin()

	decl := deepCopyNode(tmpl.Decl)
	substituteTypeParam(decl, tmpl.TypeParam, arg)
	decl.Identifier.StringValue = name

	hadErrors := c.Log.HasErrors()
	c.compileClassDecl(decl)

	dt, ok := c.Types.ByName(name)
	if !ok || (!hadErrors && c.Log.HasErrors()) {
		c.Log.Revert(tx)
		c.Log.Err(diag.CodeTemplateInstantiationFailed, &loc, "failed to instantiate template %q with argument %q", tmpl.Name, arg.Name)
		return c.primitives["i32"]
	}
	c.Log.Commit(tx)
	dt.Meta.Template = true
	return dt
}

func deepCopyNode(n *ast.Node) *ast.Node {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Initializer = deepCopyNode(n.Initializer)
	cp.Condition = deepCopyNode(n.Condition)
	cp.Body = deepCopyNode(n.Body)
	cp.ElseBody = deepCopyNode(n.ElseBody)
	cp.LValue = deepCopyNode(n.LValue)
	cp.RValue = deepCopyNode(n.RValue)
	cp.Callee = deepCopyNode(n.Callee)
	cp.Arguments = deepCopyNode(n.Arguments)
	cp.Modifier = deepCopyNode(n.Modifier)
	cp.DataType = deepCopyNode(n.DataType)
	cp.Identifier = deepCopyNode(n.Identifier)
	cp.Next = deepCopyNode(n.Next)
	return &cp
}

// substituteTypeParam replaces every bare TypeIdentifier named param, found
// anywhere in the tree rooted at n, with a reference to arg's resolved name.
func substituteTypeParam(n *ast.Node, param string, arg *types.DataType) {
	if n == nil {
		return
	}
	if n.Kind == ast.TypeIdentifier && n.StringValue == param {
		n.StringValue = arg.Name
		n.Arguments = nil
		n.DataType = nil
		return
	}
	substituteTypeParam(n.Initializer, param, arg)
	substituteTypeParam(n.Condition, param, arg)
	substituteTypeParam(n.Body, param, arg)
	substituteTypeParam(n.ElseBody, param, arg)
	substituteTypeParam(n.LValue, param, arg)
	substituteTypeParam(n.RValue, param, arg)
	substituteTypeParam(n.Callee, param, arg)
	substituteTypeParam(n.Arguments, param, arg)
	substituteTypeParam(n.Modifier, param, arg)
	substituteTypeParam(n.DataType, param, arg)
	substituteTypeParam(n.Identifier, param, arg)
	substituteTypeParam(n.Next, param, arg)
}
