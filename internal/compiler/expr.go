package compiler

import (
	"github.com/tsnlang/tsn/internal/ast"
	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/internal/ir"
	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/types"
)

// compileExpr is the single entry point for expression compilation; every
// case returns the ir.Value the expression evaluates to (a fresh register
// for anything computed, or the existing binding for a bare name), matching
// the one-pass tree-walk shape of statement compilation in stmt.go.
func (fc *funcCompiler) compileExpr(n *ast.Node) ir.Value {
	if n == nil {
		return ir.Poison(fc.c.primitives["i32"])
	}
	switch n.Kind {
	case ast.IntLiteral:
		return ir.ImmInt64(n.IntValue, fc.c.primitives["i32"])
	case ast.UintLiteral:
		return ir.ImmUint64(n.UintValue, fc.c.primitives["u32"])
	case ast.F32Literal:
		return ir.ImmFloat32(n.F32Value, fc.c.primitives["f32"])
	case ast.F64Literal:
		return ir.ImmFloat64(n.F64Value, fc.c.primitives["f64"])
	case ast.BoolLiteral:
		v := int64(0)
		if n.BoolValue {
			v = 1
		}
		return ir.ImmInt64(v, fc.c.primitives["bool"])
	case ast.NullLiteral:
		return ir.Null(fc.c.pointerTo(fc.c.primitives["void"]))
	case ast.StringLiteral, ast.TemplateLiteral:
		return fc.compileStringLiteral(n)
	case ast.Identifier:
		return fc.compileIdentifier(n)
	case ast.ThisExpr:
		if v, ok := fc.sm.Lookup("this"); ok {
			return v
		}
		fc.c.Log.Err(diag.CodeUnknownSymbol, &n.Loc, "'this' used outside a method body")
		return ir.Poison(fc.c.primitives["i32"])
	case ast.BinaryOp:
		return fc.compileBinary(n)
	case ast.UnaryOp:
		return fc.compileUnary(n)
	case ast.PostfixOp:
		return fc.compilePostfixIncDec(n)
	case ast.Assignment:
		return fc.compileAssignment(n)
	case ast.Conditional:
		return fc.compileConditional(n)
	case ast.Call:
		return fc.compileCall(n)
	case ast.New:
		return fc.compileNew(n)
	case ast.Index:
		return fc.compileIndex(n)
	case ast.Member:
		return fc.compileMember(n)
	case ast.ArrayLiteral:
		return fc.compileArrayLiteral(n)
	default:
		fc.c.Log.Err(diag.CodeUnexpectedToken, &n.Loc, "expression kind %s not supported here", n.Kind)
		return ir.Poison(fc.c.primitives["i32"])
	}
}

func (fc *funcCompiler) compileStringLiteral(n *ast.Node) ir.Value {
	slot := fc.c.internStringConstant(n.StringValue)
	dst := fc.fd.AllocReg(fc.c.primitives["string"])
	fc.fd.Emit(ir.ModuleDataInsn(dst, fc.c.Module.ID, slot.ID, n.Loc))
	return dst
}

func (fc *funcCompiler) compileIdentifier(n *ast.Node) ir.Value {
	if v, ok := fc.sm.Lookup(n.StringValue); ok {
		return v
	}
	fc.c.Log.Err(diag.CodeUnknownSymbol, &n.Loc, "undeclared identifier %q", n.StringValue)
	return ir.Poison(fc.c.primitives["i32"])
}

// sameClassContext reports whether the function currently being compiled is
// a member of owner, the declaring class of a private property/method being
// accessed (spec.md §6 access levels).
func (fc *funcCompiler) sameClassContext(owner *types.DataType) bool {
	return fc.fn.This != nil && owner != nil && fc.fn.This.ID == owner.ID
}

// coerce inserts a `cvt` when val's type and target differ but are both
// numeric, and turns a null literal into a typed null pointer; anything else
// (identical types, or a mismatch too wide to paper over) is returned as-is,
// leaving a real mismatch for the caller's own type checking to report.
func (fc *funcCompiler) coerce(val ir.Value, target *types.DataType, loc source.Location) ir.Value {
	if target == nil || val.Type == nil || val.Type == target {
		return val
	}
	if val.Kind == ir.VNull && target.IsPointer() {
		return ir.Null(target)
	}
	if (target.Meta.Integral || target.Meta.Floating) && (val.Type.Meta.Integral || val.Type.Meta.Floating) {
		dst := fc.fd.AllocReg(target)
		fc.fd.Emit(ir.Cvt(dst, val, loc))
		return dst
	}
	return val
}

func (fc *funcCompiler) oneValue(t *types.DataType) ir.Value {
	switch {
	case t.Meta.Floating && t.Meta.Size == 4:
		return ir.ImmFloat32(1, t)
	case t.Meta.Floating:
		return ir.ImmFloat64(1, t)
	case t.Meta.Unsigned:
		return ir.ImmUint64(1, t)
	default:
		return ir.ImmInt64(1, t)
	}
}

// compileBinary lowers BinaryOp through, in order: short-circuit logicals,
// the per-family arithmetic table, bitwise/shift, comparison, and finally
// `operator <symbol>` method resolution on the left operand's type
// (spec.md §4.3.4).
func (fc *funcCompiler) compileBinary(n *ast.Node) ir.Value {
	switch n.StringValue {
	case "&&":
		return fc.compileLogicalAnd(n)
	case "||":
		return fc.compileLogicalOr(n)
	}
	lhs := fc.compileExpr(n.LValue)
	rhs := fc.compileExpr(n.RValue)
	return fc.emitBinaryOp(n.StringValue, lhs, rhs, n.Loc)
}

func (fc *funcCompiler) emitBinaryOp(sym string, lhs, rhs ir.Value, loc source.Location) ir.Value {
	if op, ok := fc.c.arithOpFor(sym, lhs.Type); ok {
		dst := fc.fd.AllocReg(lhs.Type)
		fc.fd.Emit(ir.Binary(op, dst, lhs, rhs, loc))
		return dst
	}
	if op, ok := bitwiseOps[sym]; ok {
		dst := fc.fd.AllocReg(lhs.Type)
		fc.fd.Emit(ir.Binary(op, dst, lhs, rhs, loc))
		return dst
	}
	if op, ok := comparisonOps[sym]; ok {
		dst := fc.fd.AllocReg(fc.c.primitives["bool"])
		fc.fd.Emit(ir.Binary(op, dst, lhs, rhs, loc))
		return dst
	}
	return fc.compileOperatorMethodCall(sym, lhs, rhs, loc)
}

// compileOperatorMethodCall resolves `operator<sym>` on lhs's type, the
// fallback for any binary operator that isn't built in for lhs's type
// (spec.md §4.3.4: operator overload methods named "operator" + symbol).
func (fc *funcCompiler) compileOperatorMethodCall(sym string, lhs, rhs ir.Value, loc source.Location) ir.Value {
	owner := lhs.Type
	if owner != nil && owner.IsPointer() {
		owner = owner.PointeeType
	}
	if owner == nil {
		fc.c.Log.Err(diag.CodeTypeMismatch, &loc, "operator %q has no built-in meaning here", sym)
		return ir.Poison(fc.c.primitives["i32"])
	}
	methodName := "operator" + sym
	candidates := owner.FindMethods(methodName)
	fn := fc.c.resolveOverload(methodName, candidates, []*types.DataType{rhs.Type}, loc)
	if fn == nil {
		return ir.Poison(fc.c.primitives["i32"])
	}
	return fc.emitCall(fn, []ir.Value{lhs, rhs}, loc)
}

// compileLogicalAnd short-circuits through a stack-allocated bool temp: if
// the left operand is falsy, the right is never evaluated and the result is
// false; otherwise the result is the right operand's truthiness.
func (fc *funcCompiler) compileLogicalAnd(n *ast.Node) ir.Value {
	boolT := fc.c.primitives["bool"]
	result := fc.fd.AllocStack(boolT)
	lhs := fc.compileExpr(n.LValue)
	falseLabel := fc.fd.NewLabel()
	endLabel := fc.fd.NewLabel()
	fc.fd.Emit(ir.Branch(lhs, falseLabel, n.Loc))
	rhs := fc.compileExpr(n.RValue)
	fc.fd.Emit(ir.Store(result, rhs, 0, n.Loc))
	fc.fd.Emit(ir.Jump(endLabel, n.Loc))
	fc.fd.Emit(ir.Label(falseLabel, n.Loc))
	fc.fd.Emit(ir.Store(result, ir.ImmInt64(0, boolT), 0, n.Loc))
	fc.fd.Emit(ir.Label(endLabel, n.Loc))
	dst := fc.fd.AllocReg(boolT)
	fc.fd.Emit(ir.Load(dst, result, 0, n.Loc))
	return dst
}

// compileLogicalOr is compileLogicalAnd's mirror: a truthy left operand
// short-circuits to true without evaluating the right operand.
func (fc *funcCompiler) compileLogicalOr(n *ast.Node) ir.Value {
	boolT := fc.c.primitives["bool"]
	result := fc.fd.AllocStack(boolT)
	lhs := fc.compileExpr(n.LValue)
	trueLabel := fc.fd.NewLabel()
	endLabel := fc.fd.NewLabel()
	fc.emitBranchTrue(lhs, trueLabel, n.Loc)
	rhs := fc.compileExpr(n.RValue)
	fc.fd.Emit(ir.Store(result, rhs, 0, n.Loc))
	fc.fd.Emit(ir.Jump(endLabel, n.Loc))
	fc.fd.Emit(ir.Label(trueLabel, n.Loc))
	fc.fd.Emit(ir.Store(result, ir.ImmInt64(1, boolT), 0, n.Loc))
	fc.fd.Emit(ir.Label(endLabel, n.Loc))
	dst := fc.fd.AllocReg(boolT)
	fc.fd.Emit(ir.Load(dst, result, 0, n.Loc))
	return dst
}

func (fc *funcCompiler) compileUnary(n *ast.Node) ir.Value {
	switch n.StringValue {
	case "sizeof":
		t := fc.c.resolveType(n.DataType)
		return ir.ImmInt64(int64(t.Meta.Size), fc.c.primitives["i64"])
	case "++", "--":
		return fc.compilePrefixIncDec(n)
	case "+":
		return fc.compileExpr(n.Body)
	case "-":
		v := fc.compileExpr(n.Body)
		op, ok := fc.c.arithOpFor("-", v.Type)
		if !ok {
			fc.c.Log.Err(diag.CodeTypeMismatch, &n.Loc, "unary '-' is not defined for type %q", v.Type.Name)
			return ir.Poison(fc.c.primitives["i32"])
		}
		dst := fc.fd.AllocReg(v.Type)
		fc.fd.Emit(ir.Binary(op, dst, fc.zeroValue(v.Type, n.Loc), v, n.Loc))
		return dst
	case "!":
		v := fc.compileExpr(n.Body)
		dst := fc.fd.AllocReg(fc.c.primitives["bool"])
		fc.fd.Emit(ir.Unary(ir.OpNot, dst, v, n.Loc))
		return dst
	case "~":
		v := fc.compileExpr(n.Body)
		dst := fc.fd.AllocReg(v.Type)
		fc.fd.Emit(ir.Binary(ir.OpBXor, dst, v, ir.ImmInt64(-1, v.Type), n.Loc))
		return dst
	default:
		fc.c.Log.Err(diag.CodeUnexpectedToken, &n.Loc, "unsupported unary operator %q", n.StringValue)
		return ir.Poison(fc.c.primitives["i32"])
	}
}

// compilePrefixIncDec implements prefix ++/--, returning the updated value.
func (fc *funcCompiler) compilePrefixIncDec(n *ast.Node) ir.Value {
	cur := fc.compileExpr(n.Body)
	sym := "+"
	if n.StringValue == "--" {
		sym = "-"
	}
	op, ok := fc.c.arithOpFor(sym, cur.Type)
	if !ok {
		fc.c.Log.Err(diag.CodeTypeMismatch, &n.Loc, "%q is not defined for type %q", n.StringValue, cur.Type.Name)
		return ir.Poison(fc.c.primitives["i32"])
	}
	dst := fc.fd.AllocReg(cur.Type)
	fc.fd.Emit(ir.Binary(op, dst, cur, fc.oneValue(cur.Type), n.Loc))
	return fc.storeTo(n.Body, dst, n.Loc)
}

// compilePostfixIncDec implements postfix ++/--, returning the pre-update value.
func (fc *funcCompiler) compilePostfixIncDec(n *ast.Node) ir.Value {
	cur := fc.compileExpr(n.Body)
	sym := "+"
	if n.StringValue == "--" {
		sym = "-"
	}
	op, ok := fc.c.arithOpFor(sym, cur.Type)
	if !ok {
		fc.c.Log.Err(diag.CodeTypeMismatch, &n.Loc, "%q is not defined for type %q", n.StringValue, cur.Type.Name)
		return ir.Poison(fc.c.primitives["i32"])
	}
	dst := fc.fd.AllocReg(cur.Type)
	fc.fd.Emit(ir.Binary(op, dst, cur, fc.oneValue(cur.Type), n.Loc))
	fc.storeTo(n.Body, dst, n.Loc)
	return cur
}

// compileAssignment implements plain '=' and every compound assignment,
// which decomposes to its base operator followed by a store (spec.md
// §4.3.4).
func (fc *funcCompiler) compileAssignment(n *ast.Node) ir.Value {
	if n.StringValue == "=" {
		val := fc.compileExpr(n.RValue)
		return fc.storeTo(n.LValue, val, n.Loc)
	}
	base, _ := compoundBase(n.StringValue)
	cur := fc.compileExpr(n.LValue)
	rhs := fc.compileExpr(n.RValue)
	result := fc.emitBinaryOp(base, cur, rhs, n.Loc)
	return fc.storeTo(n.LValue, result, n.Loc)
}

// storeTo writes val to the storage target denotes (an Identifier rebinding,
// a property Store/setter-call, or an array element Store), coercing val to
// the target's declared type first, and returns the (possibly coerced)
// stored value so the caller can use an assignment as an expression.
func (fc *funcCompiler) storeTo(target *ast.Node, val ir.Value, loc source.Location) ir.Value {
	switch target.Kind {
	case ast.Identifier:
		fc.sm.Rebind(target.StringValue, val)
		return val
	case ast.Member:
		obj := fc.compileExpr(target.Callee)
		owner := obj.Type
		if owner != nil && owner.IsPointer() {
			owner = owner.PointeeType
		}
		prop, declaredOn := owner.FindProperty(target.StringValue)
		if prop == nil {
			fc.c.Log.Err(diag.CodeNoSuchProperty, &target.Loc, "type %q has no property %q", owner.Name, target.StringValue)
			return val
		}
		if prop.Access == types.AccessPrivate && !fc.sameClassContext(declaredOn) {
			fc.c.Log.Err(diag.CodeRestrictedProperty, &target.Loc, "%q is private", target.StringValue)
		}
		cv := fc.coerce(val, prop.Type, loc)
		if prop.Setter != nil {
			fc.emitCall(prop.Setter, []ir.Value{obj, cv}, loc)
			return cv
		}
		fc.fd.Emit(ir.Store(obj, cv, int64(prop.Offset), loc))
		return cv
	case ast.Index:
		addr := fc.compileIndexAddr(target, loc)
		cv := fc.coerce(val, addr.Type.PointeeType, loc)
		fc.fd.Emit(ir.Store(addr, cv, 0, loc))
		return cv
	default:
		fc.c.Log.Err(diag.CodeNotAssignable, &target.Loc, "expression is not assignable")
		return val
	}
}

func (fc *funcCompiler) compileConditional(n *ast.Node) ir.Value {
	cond := fc.compileExpr(n.Condition)
	elseLabel := fc.fd.NewLabel()
	endLabel := fc.fd.NewLabel()
	fc.fd.Emit(ir.Branch(cond, elseLabel, n.Loc))

	thenVal := fc.compileExpr(n.Body)
	temp := fc.fd.AllocStack(thenVal.Type)
	fc.fd.Emit(ir.Store(temp, thenVal, 0, n.Loc))
	fc.fd.Emit(ir.Jump(endLabel, n.Loc))

	fc.fd.Emit(ir.Label(elseLabel, n.Loc))
	elseVal := fc.coerce(fc.compileExpr(n.ElseBody), thenVal.Type, n.Loc)
	fc.fd.Emit(ir.Store(temp, elseVal, 0, n.Loc))
	fc.fd.Emit(ir.Label(endLabel, n.Loc))

	dst := fc.fd.AllocReg(thenVal.Type)
	fc.fd.Emit(ir.Load(dst, temp, 0, n.Loc))
	return dst
}

// compileArgs compiles a Next-linked argument list in order.
func (fc *funcCompiler) compileArgs(head *ast.Node) ([]ir.Value, []*types.DataType) {
	nodes := ast.ToSlice(head)
	vals := make([]ir.Value, len(nodes))
	argTypes := make([]*types.DataType, len(nodes))
	for i, a := range nodes {
		vals[i] = fc.compileExpr(a)
		argTypes[i] = vals[i].Type
	}
	return vals, argTypes
}

// compileCall resolves the callee — a free function name or a `.member(...)`
// method call — against its overload set and emits param/call instructions.
func (fc *funcCompiler) compileCall(n *ast.Node) ir.Value {
	switch n.Callee.Kind {
	case ast.Identifier:
		name := n.Callee.StringValue
		argVals, argTypes := fc.compileArgs(n.Arguments)
		var candidates []*types.Function
		for _, f := range fc.c.Functions.Overloads(name) {
			if f.This == nil {
				candidates = append(candidates, f)
			}
		}
		fn := fc.c.resolveOverload(name, candidates, argTypes, n.Loc)
		if fn == nil {
			return ir.Poison(fc.c.primitives["i32"])
		}
		return fc.emitCall(fn, argVals, n.Loc)
	case ast.Member:
		obj := fc.compileExpr(n.Callee.Callee)
		owner := obj.Type
		if owner != nil && owner.IsPointer() {
			owner = owner.PointeeType
		}
		if owner == nil {
			fc.c.Log.Err(diag.CodeNotCallable, &n.Loc, "cannot call a method on an unresolved type")
			return ir.Poison(fc.c.primitives["i32"])
		}
		methodName := n.Callee.StringValue
		argVals, argTypes := fc.compileArgs(n.Arguments)
		fn := fc.c.resolveOverload(methodName, owner.FindMethods(methodName), argTypes, n.Loc)
		if fn == nil {
			return ir.Poison(fc.c.primitives["i32"])
		}
		full := append([]ir.Value{obj}, argVals...)
		return fc.emitCall(fn, full, n.Loc)
	default:
		fc.c.Log.Err(diag.CodeNotCallable, &n.Loc, "expression is not callable")
		return ir.Poison(fc.c.primitives["i32"])
	}
}

// compileNew stack-allocates storage for the constructed type, runs its
// resolved constructor (a method named identically to the class, per
// spec.md §4.3.1), and returns a pointer Value over the same allocation,
// tracking its destructor for scope-exit teardown (spec.md §4.3.3).
func (fc *funcCompiler) compileNew(n *ast.Node) ir.Value {
	dt := fc.c.resolveType(n.DataType)
	alloc := fc.fd.AllocStack(dt)
	argVals, argTypes := fc.compileArgs(n.Arguments)

	ctors := dt.FindMethods(dt.Name)
	if len(ctors) > 0 {
		if fn := fc.c.resolveOverload(dt.Name, ctors, argTypes, n.Loc); fn != nil {
			full := append([]ir.Value{alloc}, argVals...)
			fc.emitCall(fn, full, n.Loc)
		}
	} else if len(argTypes) > 0 {
		fc.c.Log.Err(diag.CodeNoDefaultConstructor, &n.Loc, "type %q has no constructor accepting these arguments", dt.Name)
	}

	if dt.Destructor != nil {
		fc.sm.TrackDestructor(dt.Destructor, alloc)
	}
	return ir.NewStackAlloc(alloc.AllocID, fc.c.pointerTo(dt))
}

// compileIndexAddr computes the element address `base + index*elemSize`,
// since the IR's Load/Store offset operand is a compile-time immediate and
// can't express a dynamic index (spec.md §4.4).
func (fc *funcCompiler) compileIndexAddr(n *ast.Node, loc source.Location) ir.Value {
	base := fc.compileExpr(n.Callee)
	idx := fc.compileExpr(n.RValue)
	if base.Type == nil || !base.Type.IsPointer() {
		fc.c.Log.Err(diag.CodeTypeMismatch, &n.Loc, "cannot index a non-array value")
		return ir.Poison(fc.c.pointerTo(fc.c.primitives["i32"]))
	}
	elemType := base.Type.PointeeType
	size := ir.ImmInt64(int64(elemType.Meta.Size), fc.c.primitives["i64"])
	byteOff := fc.fd.AllocReg(fc.c.primitives["i64"])
	fc.fd.Emit(ir.Binary(ir.OpIMul, byteOff, idx, size, loc))
	addr := fc.fd.AllocReg(fc.c.pointerTo(elemType))
	fc.fd.Emit(ir.Binary(ir.OpIAdd, addr, base, byteOff, loc))
	return addr
}

func (fc *funcCompiler) compileIndex(n *ast.Node) ir.Value {
	addr := fc.compileIndexAddr(n, n.Loc)
	if addr.Type == nil || addr.Type.PointeeType == nil {
		return ir.Poison(fc.c.primitives["i32"])
	}
	dst := fc.fd.AllocReg(addr.Type.PointeeType)
	fc.fd.Emit(ir.Load(dst, addr, 0, n.Loc))
	return dst
}

// compileMember reads a property: a getter call if one is declared,
// otherwise a direct Load at the property's layout offset (spec.md §4.3.1).
func (fc *funcCompiler) compileMember(n *ast.Node) ir.Value {
	obj := fc.compileExpr(n.Callee)
	owner := obj.Type
	if owner != nil && owner.IsPointer() {
		owner = owner.PointeeType
	}
	if owner == nil {
		fc.c.Log.Err(diag.CodeNoSuchProperty, &n.Loc, "cannot access property %q on an unresolved type", n.StringValue)
		return ir.Poison(fc.c.primitives["i32"])
	}
	prop, declaredOn := owner.FindProperty(n.StringValue)
	if prop == nil {
		fc.c.Log.Err(diag.CodeNoSuchProperty, &n.Loc, "type %q has no property %q", owner.Name, n.StringValue)
		return ir.Poison(fc.c.primitives["i32"])
	}
	if prop.Access == types.AccessPrivate && !fc.sameClassContext(declaredOn) {
		fc.c.Log.Err(diag.CodeRestrictedProperty, &n.Loc, "%q is private", n.StringValue)
	}
	if prop.Getter != nil {
		return fc.emitCall(prop.Getter, []ir.Value{obj}, n.Loc)
	}
	dst := fc.fd.AllocReg(prop.Type)
	fc.fd.Emit(ir.Load(dst, obj, int64(prop.Offset), n.Loc))
	return dst
}

// compileArrayLiteral stack-allocates a buffer sized for its elements and
// stores each in turn, decaying to a pointer to the first element, the same
// shape `new` produces (SPEC_FULL.md array support supplemented from
// original_source).
func (fc *funcCompiler) compileArrayLiteral(n *ast.Node) ir.Value {
	elems := ast.ToSlice(n.Arguments)
	if len(elems) == 0 {
		fc.c.Log.Err(diag.CodeTypeMismatch, &n.Loc, "array literal must have at least one element to infer its type")
		return ir.Poison(fc.c.pointerTo(fc.c.primitives["i32"]))
	}
	vals := make([]ir.Value, len(elems))
	vals[0] = fc.compileExpr(elems[0])
	elemType := vals[0].Type
	for i := 1; i < len(elems); i++ {
		vals[i] = fc.coerce(fc.compileExpr(elems[i]), elemType, elems[i].Loc)
	}

	arrName := fc.c.Types.AnonymousName("array")
	arrType := fc.c.Types.Declare(arrName)
	fc.c.Types.Complete(arrType, types.Meta{
		Size: elemType.Meta.Size * len(elems), POD: true, TriviallyCopyable: true, TriviallyDestruct: true, Anonymous: true,
	}, nil, nil, nil, nil)
	alloc := fc.fd.AllocStack(arrType)
	for i, v := range vals {
		fc.fd.Emit(ir.Store(alloc, v, int64(i*elemType.Meta.Size), n.Loc))
	}
	return ir.NewStackAlloc(alloc.AllocID, fc.c.pointerTo(elemType))
}
