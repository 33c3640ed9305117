package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsnlang/tsn/internal/ast"
	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/internal/source"
)

func parse(t *testing.T, text string) (*ast.Node, *diag.Logger) {
	t.Helper()
	src := source.New("t.tsn", text)
	log := diag.New(nil, false)
	root := Parse(src, log, nil)
	require.NotNil(t, root)
	return root, log
}

// TestParseAddFunction matches spec.md §8 scenario S1.
func TestParseAddFunction(t *testing.T) {
	root, log := parse(t, "function add(a: i32, b: i32): i32 { return a + b; }")
	require.False(t, log.HasErrors())
	items := ast.ToSlice(root.Body)
	require.Len(t, items, 1)
	fn := items[0]
	require.Equal(t, ast.FunctionDecl, fn.Kind)
	require.Equal(t, "add", fn.Identifier.StringValue)
	params := ast.ToSlice(fn.Arguments)
	require.Len(t, params, 2)
	require.Equal(t, "a", params[0].StringValue)
	require.Equal(t, "i32", params[0].DataType.StringValue)

	body := ast.ToSlice(fn.Body.Body)
	require.Len(t, body, 1)
	require.Equal(t, ast.Return, body[0].Kind)
	require.Equal(t, ast.BinaryOp, body[0].Body.Kind)
	require.Equal(t, "+", body[0].Body.StringValue)
}

func TestParsePrecedence(t *testing.T) {
	root, log := parse(t, "function f(): i32 { return 1 + 2 * 3; }")
	require.False(t, log.HasErrors())
	fn := ast.ToSlice(root.Body)[0]
	ret := ast.ToSlice(fn.Body.Body)[0]
	add := ret.Body
	require.Equal(t, "+", add.StringValue)
	require.Equal(t, ast.IntLiteral, add.LValue.Kind)
	require.Equal(t, "*", add.RValue.StringValue)
}

func TestParseIfElse(t *testing.T) {
	root, log := parse(t, `function f(a: i32): i32 {
		if (a > 0) { return 1; } else { return 0; }
	}`)
	require.False(t, log.HasErrors())
	fn := ast.ToSlice(root.Body)[0]
	ifStmt := ast.ToSlice(fn.Body.Body)[0]
	require.Equal(t, ast.If, ifStmt.Kind)
	require.NotNil(t, ifStmt.Condition)
	require.NotNil(t, ifStmt.ElseBody)
}

func TestParseClassWithCtorAndAccessor(t *testing.T) {
	root, log := parse(t, `
		class T {
			public x: i32;
			public T() { this.x = 0; }
			public get value(): i32 { return this.x; }
		}
	`)
	require.False(t, log.HasErrors())
	cls := ast.ToSlice(root.Body)[0]
	require.Equal(t, ast.ClassDecl, cls.Kind)
	members := ast.ToSlice(cls.Body)
	require.Len(t, members, 3)
	require.Equal(t, ast.Property, members[0].Kind)
	require.Equal(t, ast.FunctionDecl, members[1].Kind)
	require.Equal(t, ast.Accessor, members[2].Kind)
}

// TestParseRecoversFromError exercises spec.md §4.2's recovery policy: a
// malformed statement must not prevent collecting a diagnostic from a later,
// well-formed one.
func TestParseRecoversFromError(t *testing.T) {
	root, log := parse(t, `
		function f(): void {
			let x = ;
			let y = 1;
		}
	`)
	require.True(t, log.HasErrors())
	fn := ast.ToSlice(root.Body)[0]
	stmts := ast.ToSlice(fn.Body.Body)
	require.GreaterOrEqual(t, len(stmts), 1)
}

func TestParseNewExpression(t *testing.T) {
	root, log := parse(t, "function f(): void { let x = new Foo(1, 2); }")
	require.False(t, log.HasErrors())
	fn := ast.ToSlice(root.Body)[0]
	decl := ast.ToSlice(fn.Body.Body)[0]
	require.Equal(t, ast.New, decl.Initializer.Kind)
	require.Equal(t, "Foo", decl.Initializer.DataType.StringValue)
	require.Len(t, ast.ToSlice(decl.Initializer.Arguments), 2)
}

func TestAstToSliceFromSlice(t *testing.T) {
	nodes := []*ast.Node{{Kind: ast.IntLiteral, IntValue: 1}, {Kind: ast.IntLiteral, IntValue: 2}}
	head := ast.FromSlice(nodes)
	require.Equal(t, nodes, ast.ToSlice(head))
}
