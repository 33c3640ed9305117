// Package parser implements the recursive-descent parser described in
// spec.md §4.2. It consumes a token.Token stream (produced by internal/lexer)
// and produces an *ast.Node tree.
//
// The teacher compiler (go-vslc) generates its parser with goyacc from a
// grammar file; this spec calls instead for a hand-written recursive-descent
// parser with a restartable cursor, so the grammar below is new code, not an
// adaptation of the teacher's parser.y. The surrounding idiom — a top-level
// Parse(src) entry point, per-unit error recovery that accumulates
// diagnostics rather than aborting, and a debug tree-dump — follows the
// teacher's frontend.Parse/TokenStream shape (src/frontend/tree.go).
package parser

import (
	"github.com/tsnlang/tsn/internal/ast"
	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/internal/lexer"
	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/token"
)

// Parser holds the mutable parse state for one ModuleSource.
type Parser struct {
	c   *cursor
	src *source.ModuleSource
	log *diag.Logger

	// typeNames is the ParseContext.type-names set of spec.md §4.2: names
	// recognized as types, populated from forward declarations seen so far in
	// this parse plus anything the caller pre-registers (previously compiled
	// modules' exported types).
	typeNames map[string]bool
}

// New creates a Parser over already-lexed tokens. knownTypes seeds the
// type-name set with identifiers from types visible prior to this parse
// (imported modules, host-bound types).
func New(src *source.ModuleSource, toks []token.Token, log *diag.Logger, knownTypes []string) *Parser {
	p := &Parser{c: newCursor(toks), src: src, log: log, typeNames: map[string]bool{}}
	for _, n := range knownTypes {
		p.typeNames[n] = true
	}
	for _, n := range primitiveTypeNames {
		p.typeNames[n] = true
	}
	return p
}

var primitiveTypeNames = []string{
	"void", "bool", "i8", "u8", "i16", "u16", "i32", "u32", "i64", "u64", "f32", "f64", "string",
}

// Parse tokenizes src and parses it into a Root ast.Node. Parse errors are
// recovered from statement-by-statement (spec.md §4.2) and accumulated into
// log; Parse always returns a Root node, even if diagnostics were emitted,
// so that the compiler can still walk whatever was successfully parsed.
func Parse(src *source.ModuleSource, log *diag.Logger, knownTypes []string) *ast.Node {
	toks := lexer.Lex(src)
	p := New(src, toks, log, knownTypes)
	return p.ParseProgram()
}

// ParseProgram parses `program := (top-level)*` into a Root node whose Body
// is the Next-linked chain of top-level declarations/statements.
func (p *Parser) ParseProgram() *ast.Node {
	start := p.c.peek().Loc
	var items []*ast.Node
	for !p.c.at(token.EOF) {
		item := p.parseTopLevel()
		if item != nil {
			items = append(items, item)
		}
	}
	end := p.c.peek().Loc
	root := &ast.Node{Kind: ast.Root, Loc: span(start, end), Body: ast.FromSlice(items)}
	return root
}

// span combines a start and end Location into one covering both.
func span(start, end source.Location) source.Location {
	return source.Location{
		Src: start.Src, Offset: start.Offset, EndOffset: end.EndOffset,
		Line: start.Line, Column: start.Column, EndLine: end.EndLine, EndColumn: end.EndColumn,
	}
}

func (p *Parser) loc(from token.Token) source.Location {
	return span(from.Loc, p.c.peekAt(-1).Loc)
}

// parseTopLevel implements `top-level := import | export | type-decl |
// class-decl | enum-decl | function-decl | variable-decl | statement`.
func (p *Parser) parseTopLevel() *ast.Node {
	switch p.c.peek().Kind {
	case token.KwImport:
		return p.parseImport()
	case token.KwExport:
		return p.parseExport()
	case token.KwClass:
		return p.parseClassDecl()
	case token.KwEnum:
		return p.parseEnumDecl()
	case token.KwFunction:
		return p.parseFunctionDecl()
	case token.KwLet, token.KwConst:
		n := p.parseVariableDecl()
		p.expectSemi()
		return n
	default:
		return p.parseStatement()
	}
}

// expectSemi consumes a trailing ';' and reports a diagnostic if absent,
// without aborting the parse.
func (p *Parser) expectSemi() {
	if _, ok := p.c.accept(token.Semicolon); !ok {
		t := p.c.peek()
		p.log.Err(diag.CodeUnexpectedToken, &t.Loc, "expected ';', found %q", t.Text)
	}
}

// expect consumes a token of kind k, reporting a diagnostic and performing
// error recovery if the current token doesn't match.
func (p *Parser) expect(k token.Kind, code diag.Code, what string) token.Token {
	if t, ok := p.c.accept(k); ok {
		return t
	}
	t := p.c.peek()
	p.log.Err(code, &t.Loc, "expected %s, found %q", what, t.Text)
	return t
}

// recover skips tokens until the next statement terminator (';', '}', or the
// current brace-nesting level closes), per spec.md §4.2's recovery policy,
// so that a single malformed statement doesn't prevent collecting further
// diagnostics in the same parse.
func (p *Parser) recover() {
	depth := 0
	for {
		switch p.c.peek().Kind {
		case token.EOF:
			return
		case token.LBrace:
			depth++
			p.c.next()
		case token.RBrace:
			if depth == 0 {
				return
			}
			depth--
			p.c.next()
		case token.Semicolon:
			if depth == 0 {
				p.c.next()
				return
			}
			p.c.next()
		default:
			p.c.next()
		}
	}
}

// parseImport implements `import := 'import' importList 'from' path ';'`.
func (p *Parser) parseImport() *ast.Node {
	start := p.c.next() // 'import'
	var names []*ast.Node
	for {
		id := p.expect(token.Identifier, diag.CodeExpectedIdentifier, "identifier")
		names = append(names, &ast.Node{Kind: ast.Identifier, Loc: id.Loc, StringValue: id.Text})
		if _, ok := p.c.accept(token.Comma); !ok {
			break
		}
	}
	p.expect(token.KwFrom, diag.CodeMalformedImport, "'from'")
	path := p.expect(token.StringLiteral, diag.CodeMalformedImport, "module path string")
	p.expectSemi()
	return &ast.Node{
		Kind:       ast.Import,
		Loc:        p.loc(start),
		StringValue: path.Text,
		Arguments:  ast.FromSlice(names),
	}
}

// parseExport implements `export := 'export' (function-decl | class-decl | variable-decl ';' | enum-decl)`.
func (p *Parser) parseExport() *ast.Node {
	start := p.c.next() // 'export'
	var inner *ast.Node
	switch p.c.peek().Kind {
	case token.KwFunction:
		inner = p.parseFunctionDecl()
	case token.KwClass:
		inner = p.parseClassDecl()
	case token.KwEnum:
		inner = p.parseEnumDecl()
	case token.KwLet, token.KwConst:
		inner = p.parseVariableDecl()
		p.expectSemi()
	default:
		t := p.c.peek()
		p.log.Err(diag.CodeUnexpectedToken, &t.Loc, "expected a declaration after 'export', found %q", t.Text)
		p.recover()
	}
	return &ast.Node{Kind: ast.Export, Loc: p.loc(start), Body: inner}
}
