package compiler

import (
	"fmt"

	"github.com/tsnlang/tsn/internal/ast"
	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/internal/ir"
	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/types"
)

// Compiler is the AST->IR driver of spec.md §4.3. One Compiler compiles one
// Module against the registries shared across every module in a Context.
type Compiler struct {
	Types     *types.TypeRegistry
	Functions *types.FunctionRegistry
	Module    *types.Module
	Log       *diag.Logger

	primitives map[string]*types.DataType

	// Output accumulates the compiled FunctionDefs, keyed by Function, so the
	// optimizer/register allocator/VM codegen stages can iterate them (spec.md
	// §4.3: "Outputs: a CompilerOutput containing a FunctionDef per compiled
	// function").
	Output map[*types.Function]*ir.FunctionDef

	templates       map[string]*templateDef
	stringConstants map[string]*types.DataSlot
}

// New creates a Compiler over shared registries and the Module being
// compiled. Primitive scalar types are registered into reg the first time a
// Compiler is created for a fresh registry (Declare is idempotent, so
// calling New repeatedly against the same registry is safe).
func New(reg *types.TypeRegistry, funcs *types.FunctionRegistry, mod *types.Module, log *diag.Logger) *Compiler {
	return &Compiler{
		Types: reg, Functions: funcs, Module: mod, Log: log,
		primitives:      registerPrimitives(reg),
		Output:          map[*types.Function]*ir.FunctionDef{},
		templates:       registerBuiltinTemplates(),
		stringConstants: map[string]*types.DataSlot{},
	}
}

// CompileProgram compiles every top-level declaration in root (an ast.Root
// node) into Module. Compile errors abort emission of the offending
// top-level unit but not the whole module (spec.md §7 propagation policy);
// the module is "not compiled" overall iff c.Log.HasErrors() afterward.
func (c *Compiler) CompileProgram(root *ast.Node) {
	for _, item := range ast.ToSlice(root.Body) {
		c.compileTopLevel(item)
	}
}

func (c *Compiler) compileTopLevel(n *ast.Node) {
	switch n.Kind {
	case ast.Import:
		// Cross-module import resolution is a host/workspace-scanner concern
		// (spec.md §1 Non-goals); the compiler only records the reference.
	case ast.Export:
		if n.Body != nil {
			c.compileTopLevel(n.Body)
		}
	case ast.FunctionDecl:
		c.compileFunctionDecl(n, nil, "")
	case ast.ClassDecl:
		c.compileClassDecl(n)
	case ast.EnumDecl:
		c.compileEnumDecl(n)
	case ast.VariableDecl:
		c.compileModuleVariable(n)
	default:
		// A bare top-level statement: the teacher has no module-init concept,
		// so this is rejected rather than silently ignored.
		c.Log.Err(diag.CodeUnexpectedToken, &n.Loc, "statements are not allowed outside a function body")
	}
}

// compileModuleVariable declares a module-global data slot (spec.md §3
// Module: "data-slots[]") for a top-level `let`/`const`.
func (c *Compiler) compileModuleVariable(n *ast.Node) {
	var dt *types.DataType
	if n.DataType != nil {
		dt = c.resolveType(n.DataType)
	} else {
		dt = c.primitives["i32"]
	}
	if dt == nil {
		c.Log.Err(diag.CodeTypeMismatch, &n.Loc, "cannot determine type of module variable %q", n.Identifier.StringValue)
		return
	}
	c.Module.AddDataSlot(n.Identifier.StringValue, dt, types.AccessPublic, nil)
}

func (c *Compiler) compileEnumDecl(n *ast.Node) {
	var values []types.EnumValue
	next := int64(0)
	for _, m := range ast.ToSlice(n.Body) {
		if m.Initializer != nil {
			if v, ok := c.constEval(m.Initializer); ok {
				next = v
			}
		}
		values = append(values, types.EnumValue{Name: m.StringValue, Value: next})
		next++
	}
	dt := c.Types.Declare(n.Identifier.StringValue)
	c.Types.Complete(dt, types.Meta{Size: 4, Integral: true, POD: true, TriviallyCopyable: true}, nil, nil, nil, nil)
	dt.EnumValues = values
	c.Module.AddType(dt)
}

// constEval folds a restricted constant-expression subset (integer literals
// and +/- unary) used for enum member initializers, since full constant
// folding lives in internal/optimize and runs on compiled IR, not raw AST.
func (c *Compiler) constEval(n *ast.Node) (int64, bool) {
	switch n.Kind {
	case ast.IntLiteral:
		return n.IntValue, true
	case ast.UnaryOp:
		if v, ok := c.constEval(n.Body); ok {
			if n.StringValue == "-" {
				return -v, true
			}
			return v, true
		}
	}
	return 0, false
}

func (c *Compiler) compileClassDecl(n *ast.Node) {
	name := n.Identifier.StringValue
	dt := c.Types.Declare(name) // placeholder breaks self-referencing method signatures (spec.md §9)

	var bases []*types.DataType
	if n.Modifier != nil {
		if base, ok := c.Types.ByName(n.Modifier.StringValue); ok {
			bases = append(bases, base)
		} else {
			c.Log.Err(diag.CodeUnknownSymbol, &n.Modifier.Loc, "unknown base class %q", n.Modifier.StringValue)
		}
	}

	var properties []types.Property
	var methods []*types.Function
	var dtor *types.Function
	size := 0
	// getters/setters accumulate by property name as ast.Accessor members are
	// compiled, since a class body lists properties and their accessors in
	// any order and a get/set pair is matched by name, not by position.
	getters := map[string]*types.Function{}
	setters := map[string]*types.Function{}
	for _, member := range ast.ToSlice(n.Body) {
		switch member.Kind {
		case ast.Property:
			access := types.AccessPublic
			if member.Modifier != nil && member.Modifier.StringValue == "private" {
				access = types.AccessPrivate
			}
			pt := c.primitives["i32"]
			if member.DataType != nil {
				pt = c.resolveType(member.DataType)
			}
			properties = append(properties, types.Property{
				Name: member.StringValue, Type: pt, Offset: size, Access: access, Static: member.BoolValue,
			})
			if !member.BoolValue {
				size += pt.Meta.Size
			}
		case ast.Accessor:
			fn := c.compileAccessor(member, dt, name)
			methods = append(methods, fn)
			verb := member.Modifier.StringValue[:3] // "get" or "set"
			if verb == "get" {
				getters[member.StringValue] = fn
			} else {
				setters[member.StringValue] = fn
			}
		case ast.FunctionDecl:
			isDtor := member.StringValue == "~"+name
			fn := c.compileFunctionDecl(member, dt, name)
			if fn == nil {
				continue
			}
			if isDtor {
				dtor = fn
			} else {
				methods = append(methods, fn)
			}
		}
	}
	// Link each property to its get/set accessor by name (spec.md §4.3.1:
	// "for property accessors with get/set functions, read is a call to the
	// getter, write is a call to the setter") before Complete freezes dt.
	for i := range properties {
		p := &properties[i]
		get, hasGet := getters[p.Name]
		set, hasSet := setters[p.Name]
		p.Getter = get
		p.Setter = set
		p.ReadOnly = hasGet && !hasSet
		p.WriteOnly = hasSet && !hasGet
	}
	c.Types.Complete(dt, types.Meta{Size: size}, properties, bases, methods, dtor)
	c.Module.AddType(dt)
}

func (c *Compiler) compileAccessor(n *ast.Node, owner *types.DataType, className string) *types.Function {
	kindAccess := n.Modifier.StringValue // "get:public" or "set:private"
	verb := kindAccess[:3]
	fqn := fmt.Sprintf("%s::%s$%s", className, verb, n.StringValue)
	retType := c.primitives["void"]
	if n.DataType != nil {
		retType = c.resolveType(n.DataType)
	}
	fn := c.newFunction(fqn, n.StringValue+"$accessor", retType, n.Arguments, owner, types.AccessPublic)
	c.compileFunctionBody(fn, n.Body, n.Arguments, owner)
	return fn
}

// newFunction builds a Function, its signature DataType, and registers both
// in the shared registries (spec.md §3: "function_id maps 1:1 to an index in
// the function registry").
func (c *Compiler) newFunction(fqn, name string, ret *types.DataType, paramsNode *ast.Node, this *types.DataType, access types.Access) *types.Function {
	var args []types.Argument
	implicit := 0
	if this != nil {
		args = append(args, types.Argument{PassKind: types.ArgPointer, Type: this})
		implicit++
	}
	for _, p := range ast.ToSlice(paramsNode) {
		pt := c.primitives["i32"]
		if p.DataType != nil {
			pt = c.resolveType(p.DataType)
		}
		kind := types.ArgValue
		if !pt.Meta.Primitive {
			kind = types.ArgPointer
		}
		args = append(args, types.Argument{PassKind: kind, Type: pt})
	}
	sig := c.Types.Signature(ret, args)
	fn := &types.Function{Name: name, FQN: fqn, Signature: sig, Access: access, This: this, ImplicitArgCount: implicit}
	c.Functions.Register(fn)
	c.Module.AddFunction(fn)
	return fn
}

// compileFunctionDecl compiles a top-level or method function-decl node and
// returns the registered Function, or nil if compilation of its signature
// failed outright. className is used only to recognize constructors.
func (c *Compiler) compileFunctionDecl(n *ast.Node, this *types.DataType, className string) *types.Function {
	var nameStr string
	if n.Identifier != nil {
		nameStr = n.Identifier.StringValue
	} else {
		nameStr = n.StringValue // operator methods carry their name in StringValue
	}
	ret := c.primitives["void"]
	if n.DataType != nil {
		ret = c.resolveType(n.DataType)
	} else if this != nil && nameStr == className {
		ret = this // constructor implicitly returns its own type
	}
	access := types.AccessPublic
	if n.Modifier != nil && n.Modifier.StringValue == "private" {
		access = types.AccessPrivate
	}
	fqn := nameStr
	if this != nil {
		fqn = this.Name + "::" + nameStr
	}
	fn := c.newFunction(fqn, nameStr, ret, n.Arguments, this, access)
	c.compileFunctionBody(fn, n.Body, n.Arguments, this)
	return fn
}

// compileFunctionBody compiles body (a Block) into a fresh FunctionDef,
// binding fn's signature arguments against paramsNode's declared names by
// position, and records the result in c.Output.
func (c *Compiler) compileFunctionBody(fn *types.Function, body *ast.Node, paramsNode *ast.Node, this *types.DataType) {
	fd := ir.NewFunctionDef(fn)
	sm := NewScopeManager()

	argIdx := 0
	if this != nil {
		p := fd.BindParam(this)
		sm.Declare("this", p)
		argIdx++
	}
	for _, param := range ast.ToSlice(paramsNode) {
		pt := fn.Signature.Arguments[argIdx].Type
		p := fd.BindParam(pt)
		sm.Declare(param.StringValue, p)
		argIdx++
	}

	fc := &funcCompiler{c: c, fd: fd, sm: sm, fn: fn}
	loc := source.Location{}
	if body != nil {
		loc = body.Loc
		fc.compileBlock(body)
	}
	if !fc.terminated {
		fc.emitDtors(fc.sm.AllPending(nil), loc)
		fc.fd.Emit(ir.Ret(ir.Value{}, false, loc))
	}
	c.Output[fn] = fd
}
