package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/token"
)

// TestLexerAddFunction verifies that a small well-formed function tokenizes into
// the expected kind/text sequence, mirroring the teacher's table-driven lexer test.
func TestLexerAddFunction(t *testing.T) {
	src := source.New("add.tsn", "function add(a: i32, b: i32): i32 {\n\treturn a + b;\n}\n")
	toks := Lex(src)

	type want struct {
		kind token.Kind
		text string
	}
	exp := []want{
		{token.KwFunction, "function"}, {token.Identifier, "add"}, {token.LParen, "("},
		{token.Identifier, "a"}, {token.Colon, ":"}, {token.Identifier, "i32"}, {token.Comma, ","},
		{token.Identifier, "b"}, {token.Colon, ":"}, {token.Identifier, "i32"}, {token.RParen, ")"},
		{token.Colon, ":"}, {token.Identifier, "i32"}, {token.LBrace, "{"},
		{token.KwReturn, "return"}, {token.Identifier, "a"}, {token.Plus, "+"}, {token.Identifier, "b"},
		{token.Semicolon, ";"}, {token.RBrace, "}"}, {token.EOF, ""},
	}

	got := make([]want, 0, len(toks))
	for _, tk := range toks {
		got = append(got, want{tk.Kind, tk.Text})
	}
	require.Equal(t, exp, got)
}

func TestLexerStringEscapes(t *testing.T) {
	src := source.New("s.tsn", `"a\nb\tc\\\"d"`)
	toks := Lex(src)
	require.Len(t, toks, 2)
	require.Equal(t, token.StringLiteral, toks[0].Kind)
	require.Equal(t, "a\nb\tc\\\"d", toks[0].Text)
}

func TestLexerIntegerSuffixes(t *testing.T) {
	src := source.New("n.tsn", "12ub 7ll 3.5f 42")
	toks := Lex(src)
	require.Equal(t, token.SuffixUByte, toks[0].IntSuffix)
	require.Equal(t, token.SuffixLongLong, toks[1].IntSuffix)
	require.Equal(t, token.FloatLiteral, toks[2].Kind)
	require.Equal(t, token.NoSuffix, toks[3].IntSuffix)
}

func TestLexerUnknownByteRecovers(t *testing.T) {
	src := source.New("bad.tsn", "let x = 1 @ 2;")
	toks := Lex(src)
	found := false
	for _, tk := range toks {
		if tk.Kind == token.Unknown {
			found = true
		}
	}
	require.True(t, found, "expected an unknown token for '@'")
	// Lexing must continue past the unknown byte rather than aborting.
	require.Equal(t, token.IntLiteral, toks[len(toks)-3].Kind)
}

func TestLexerLineColumns(t *testing.T) {
	src := source.New("multi.tsn", "let a;\nlet b;\n")
	toks := Lex(src)
	// "b" is on line 2.
	for _, tk := range toks {
		if tk.Text == "b" {
			require.Equal(t, 2, tk.Loc.Line)
		}
	}
}
