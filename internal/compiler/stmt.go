package compiler

import (
	"github.com/tsnlang/tsn/internal/ast"
	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/internal/ir"
	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/types"
)

// ctrlFrame is one entry of funcCompiler.ctrlStack: the break/continue
// targets and scope boundary of an enclosing loop or switch (spec.md §4.3.3:
// "On scope exit (normal flow, break, continue, return), emits a call to
// each pending destructor ... then stack_free"). continueLabel is -1 for a
// switch frame, since `continue` must skip over it to the nearest enclosing
// loop.
type ctrlFrame struct {
	continueLabel int
	breakLabel    int
	stop          *Scope
}

// funcCompiler holds the per-function state threaded through statement and
// expression compilation: the FunctionDef under construction, its scope
// stack, and whether the instruction stream so far always diverges (return/
// break/continue), which callers use to decide whether a fallthrough return
// or further code is reachable.
type funcCompiler struct {
	c  *Compiler
	fd *ir.FunctionDef
	sm *ScopeManager
	fn *types.Function

	terminated bool
	ctrlStack  []ctrlFrame
}

func (fc *funcCompiler) pushLoopFrame(continueLabel, breakLabel int) {
	fc.ctrlStack = append(fc.ctrlStack, ctrlFrame{continueLabel: continueLabel, breakLabel: breakLabel, stop: fc.sm.Current()})
}

func (fc *funcCompiler) pushSwitchFrame(breakLabel int) {
	fc.ctrlStack = append(fc.ctrlStack, ctrlFrame{continueLabel: -1, breakLabel: breakLabel, stop: fc.sm.Current()})
}

func (fc *funcCompiler) popCtrl() {
	fc.ctrlStack = fc.ctrlStack[:len(fc.ctrlStack)-1]
}

// emitBranchTrue jumps to target when cond is truthy, falling through
// otherwise — the mirror image of ir.Branch, which jumps when falsy.
func (fc *funcCompiler) emitBranchTrue(cond ir.Value, target int, loc source.Location) {
	skip := fc.fd.NewLabel()
	fc.fd.Emit(ir.Branch(cond, skip, loc))
	fc.fd.Emit(ir.Jump(target, loc))
	fc.fd.Emit(ir.Label(skip, loc))
}

// emitDtors emits each pending destructor call in the order given (the
// caller is responsible for supplying reverse-construction order, as
// ScopeManager.Pop/AllPending already do), followed by a stack_free for
// each allocation, per spec.md §4.3.3.
func (fc *funcCompiler) emitDtors(dtors []pendingDtor, loc source.Location) {
	for _, d := range dtors {
		if d.dtor != nil {
			fc.emitCall(d.dtor, []ir.Value{d.alloc}, loc)
		}
	}
	for _, d := range dtors {
		fc.fd.Emit(ir.StackFreeInsn(d.alloc, loc))
	}
}

// emitCall appends one `param` instruction per argument followed by the
// `call`, returning the result register when fn has a non-void return type.
func (fc *funcCompiler) emitCall(fn *types.Function, args []ir.Value, loc source.Location) ir.Value {
	for _, a := range args {
		fc.fd.Emit(ir.Param(a, loc))
	}
	ret := fn.Signature.ReturnType
	hasResult := ret != nil && ret != fc.c.primitives["void"]
	var result ir.Value
	if hasResult {
		result = fc.fd.AllocReg(ret)
	}
	fc.fd.Emit(ir.Call(fn, result, hasResult, loc))
	return result
}

// zeroValue builds the default-initializer Value for t, used for
// uninitialized locals and bare `return;` coercions.
func (fc *funcCompiler) zeroValue(t *types.DataType, loc source.Location) ir.Value {
	switch {
	case t.IsPointer():
		return ir.Null(t)
	case t.Meta.Floating && t.Meta.Size == 4:
		return ir.ImmFloat32(0, t)
	case t.Meta.Floating:
		return ir.ImmFloat64(0, t)
	case t.Meta.Integral && t.Meta.Unsigned:
		return ir.ImmUint64(0, t)
	case t.Meta.Integral:
		return ir.ImmInt64(0, t)
	default:
		return ir.Null(t)
	}
}

func (fc *funcCompiler) compileBlock(n *ast.Node) {
	fc.sm.Push()
	for _, stmt := range ast.ToSlice(n.Body) {
		if fc.terminated {
			break
		}
		fc.compileStmt(stmt)
	}
	dtors := fc.sm.Pop()
	if !fc.terminated {
		fc.emitDtors(dtors, n.Loc)
	}
}

func (fc *funcCompiler) compileStmt(n *ast.Node) {
	switch n.Kind {
	case ast.Block:
		fc.compileBlock(n)
	case ast.ExprStatement:
		if n.Body != nil {
			fc.compileExpr(n.Body)
		}
	case ast.VariableDecl:
		fc.compileLocalVar(n)
	case ast.If:
		fc.compileIf(n)
	case ast.While:
		fc.compileWhile(n)
	case ast.DoWhile:
		fc.compileDoWhile(n)
	case ast.For:
		fc.compileFor(n)
	case ast.Switch:
		fc.compileSwitch(n)
	case ast.Break:
		fc.compileBreak(n)
	case ast.Continue:
		fc.compileContinue(n)
	case ast.Return:
		fc.compileReturn(n)
	case ast.Delete:
		fc.compileDelete(n)
	default:
		fc.c.Log.Err(diag.CodeUnexpectedToken, &n.Loc, "statement kind %s not supported here", n.Kind)
	}
}

// compileLocalVar declares a `let`/`const` local, binding its name directly
// to whatever ir.Value its initializer produced (a register, immediate, or —
// for `new`-constructed objects — the pointer Value already tied to a
// tracked stack allocation); locals never get a compiler-introduced stack
// slot of their own on top of that.
func (fc *funcCompiler) compileLocalVar(n *ast.Node) {
	name := n.Identifier.StringValue
	var val ir.Value
	switch {
	case n.Initializer != nil:
		val = fc.compileExpr(n.Initializer)
		if n.DataType != nil {
			val = fc.coerce(val, fc.c.resolveType(n.DataType), n.Loc)
		}
	case n.DataType != nil:
		val = fc.zeroValue(fc.c.resolveType(n.DataType), n.Loc)
	default:
		fc.c.Log.Err(diag.CodeTypeMismatch, &n.Loc, "cannot determine type of %q without an initializer or declared type", name)
		val = ir.Poison(fc.c.primitives["i32"])
	}
	if !fc.sm.Declare(name, val) {
		fc.c.Log.Err(diag.CodeDuplicateDeclaration, &n.Loc, "%q already declared in this scope", name)
	}
}

func (fc *funcCompiler) compileIf(n *ast.Node) {
	cond := fc.compileExpr(n.Condition)
	elseLabel := fc.fd.NewLabel()
	fc.fd.Emit(ir.Branch(cond, elseLabel, n.Loc))
	fc.compileStmt(n.Body)
	thenTerminated := fc.terminated
	if n.ElseBody != nil {
		endLabel := fc.fd.NewLabel()
		fc.fd.Emit(ir.Jump(endLabel, n.Loc))
		fc.fd.Emit(ir.Label(elseLabel, n.Loc))
		fc.terminated = false
		fc.compileStmt(n.ElseBody)
		fc.fd.Emit(ir.Label(endLabel, n.Loc))
		fc.terminated = thenTerminated && fc.terminated
	} else {
		fc.fd.Emit(ir.Label(elseLabel, n.Loc))
		fc.terminated = false
	}
}

func (fc *funcCompiler) compileWhile(n *ast.Node) {
	headLabel := fc.fd.NewLabel()
	endLabel := fc.fd.NewLabel()
	fc.fd.Emit(ir.Label(headLabel, n.Loc))
	cond := fc.compileExpr(n.Condition)
	fc.fd.Emit(ir.Branch(cond, endLabel, n.Loc))
	fc.pushLoopFrame(headLabel, endLabel)
	fc.compileStmt(n.Body)
	fc.popCtrl()
	fc.fd.Emit(ir.Jump(headLabel, n.Loc))
	fc.fd.Emit(ir.Label(endLabel, n.Loc))
	fc.terminated = false
}

func (fc *funcCompiler) compileDoWhile(n *ast.Node) {
	headLabel := fc.fd.NewLabel()
	continueLabel := fc.fd.NewLabel()
	endLabel := fc.fd.NewLabel()
	fc.fd.Emit(ir.Label(headLabel, n.Loc))
	fc.pushLoopFrame(continueLabel, endLabel)
	fc.compileStmt(n.Body)
	fc.popCtrl()
	fc.fd.Emit(ir.Label(continueLabel, n.Loc))
	cond := fc.compileExpr(n.Condition)
	fc.emitBranchTrue(cond, headLabel, n.Loc)
	fc.fd.Emit(ir.Label(endLabel, n.Loc))
	fc.terminated = false
}

// compileFor implements the C-style three-clause for loop; the post
// expression is parsed into ElseBody (spec.md parser convention), not Body.
func (fc *funcCompiler) compileFor(n *ast.Node) {
	fc.sm.Push()
	if n.Initializer != nil {
		fc.compileStmt(n.Initializer)
	}
	headLabel := fc.fd.NewLabel()
	endLabel := fc.fd.NewLabel()
	continueLabel := fc.fd.NewLabel()
	fc.fd.Emit(ir.Label(headLabel, n.Loc))
	if n.Condition != nil {
		cond := fc.compileExpr(n.Condition)
		fc.fd.Emit(ir.Branch(cond, endLabel, n.Loc))
	}
	fc.pushLoopFrame(continueLabel, endLabel)
	fc.compileStmt(n.Body)
	fc.popCtrl()
	fc.terminated = false
	fc.fd.Emit(ir.Label(continueLabel, n.Loc))
	if n.ElseBody != nil {
		fc.compileExpr(n.ElseBody)
	}
	fc.fd.Emit(ir.Jump(headLabel, n.Loc))
	fc.fd.Emit(ir.Label(endLabel, n.Loc))
	dtors := fc.sm.Pop()
	fc.emitDtors(dtors, n.Loc)
}

// compileSwitch lowers to a chain of equality comparisons against the
// subject followed by C-style fallthrough case bodies: `break` is the only
// way out between cases, matching spec.md's "switch/case" grammar.
func (fc *funcCompiler) compileSwitch(n *ast.Node) {
	subj := fc.compileExpr(n.Condition)
	cases := ast.ToSlice(n.Body)
	endLabel := fc.fd.NewLabel()
	caseLabels := make([]int, len(cases))
	defaultIdx := -1
	for i := range cases {
		caseLabels[i] = fc.fd.NewLabel()
	}
	for i, cs := range cases {
		if cs.Condition == nil {
			defaultIdx = i
			continue
		}
		val := fc.compileExpr(cs.Condition)
		eq := fc.fd.AllocReg(fc.c.primitives["bool"])
		fc.fd.Emit(ir.Binary(ir.OpCmp, eq, subj, val, cs.Loc))
		fc.emitBranchTrue(eq, caseLabels[i], cs.Loc)
	}
	if defaultIdx >= 0 {
		fc.fd.Emit(ir.Jump(caseLabels[defaultIdx], n.Loc))
	} else {
		fc.fd.Emit(ir.Jump(endLabel, n.Loc))
	}

	fc.pushSwitchFrame(endLabel)
	for i, cs := range cases {
		fc.fd.Emit(ir.Label(caseLabels[i], cs.Loc))
		fc.terminated = false
		for _, stmt := range ast.ToSlice(cs.Body) {
			if fc.terminated {
				break
			}
			fc.compileStmt(stmt)
		}
	}
	fc.popCtrl()
	fc.fd.Emit(ir.Label(endLabel, n.Loc))
	fc.terminated = false
}

func (fc *funcCompiler) compileBreak(n *ast.Node) {
	if len(fc.ctrlStack) == 0 {
		fc.c.Log.Err(diag.CodeUnexpectedToken, &n.Loc, "'break' outside a loop or switch")
		return
	}
	frame := fc.ctrlStack[len(fc.ctrlStack)-1]
	fc.emitDtors(fc.sm.AllPending(frame.stop), n.Loc)
	fc.fd.Emit(ir.Jump(frame.breakLabel, n.Loc))
	fc.terminated = true
}

func (fc *funcCompiler) compileContinue(n *ast.Node) {
	for i := len(fc.ctrlStack) - 1; i >= 0; i-- {
		frame := fc.ctrlStack[i]
		if frame.continueLabel < 0 {
			continue // a switch frame: continue passes through to the enclosing loop
		}
		fc.emitDtors(fc.sm.AllPending(frame.stop), n.Loc)
		fc.fd.Emit(ir.Jump(frame.continueLabel, n.Loc))
		fc.terminated = true
		return
	}
	fc.c.Log.Err(diag.CodeUnexpectedToken, &n.Loc, "'continue' outside a loop")
}

// compileReturn implements spec.md §4.3.3's ownership-transfer exemption: a
// returned stack-local allocation is excluded from the scope-exit teardown
// that would otherwise destroy and free it out from under the caller.
func (fc *funcCompiler) compileReturn(n *ast.Node) {
	var val ir.Value
	hasVal := false
	if n.Body != nil {
		val = fc.compileExpr(n.Body)
		hasVal = true
	}
	dtors := fc.sm.AllPending(nil)
	if hasVal && val.Kind == ir.VStackAlloc {
		kept := dtors[:0]
		for _, d := range dtors {
			if d.alloc.Kind == ir.VStackAlloc && d.alloc.AllocID == val.AllocID {
				continue
			}
			kept = append(kept, d)
		}
		dtors = kept
	}
	fc.emitDtors(dtors, n.Loc)
	fc.fd.Emit(ir.Ret(val, hasVal, n.Loc))
	fc.terminated = true
}

// compileDelete frees a heap-lifetime pointer early: runs its destructor (if
// any), emits stack_free, and untracks it so the declaring scope's own exit
// doesn't double-free it.
func (fc *funcCompiler) compileDelete(n *ast.Node) {
	target := fc.compileExpr(n.Body)
	if target.Type == nil || !target.Type.IsPointer() {
		tn := "?"
		if target.Type != nil {
			tn = target.Type.Name
		}
		fc.c.Log.Err(diag.CodeIllegalDelete, &n.Loc, "cannot delete non-pointer value of type %q", tn)
		return
	}
	if target.Kind != ir.VStackAlloc {
		fc.c.Log.Err(diag.CodeIllegalDelete, &n.Loc, "cannot delete pointer of type %q: it was not allocated by new", target.Type.Name)
		return
	}
	pointee := target.Type.PointeeType
	if pointee.Destructor != nil {
		fc.emitCall(pointee.Destructor, []ir.Value{target}, n.Loc)
	}
	if target.Kind == ir.VStackAlloc {
		fc.fd.Emit(ir.StackFreeInsn(target, n.Loc))
		fc.sm.Untrack(target.AllocID)
	}
}
