package parser

import (
	"github.com/tsnlang/tsn/internal/ast"
	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/internal/token"
)

// parseTypeIdentifier parses a (possibly generic) type name, e.g. `i32`,
// `Foo`, `Array<i32>`, `Foo*`. A typename is recognized per spec.md §4.2 by
// consulting typeNames; unknown identifiers are still parsed as
// TypeIdentifier nodes so the compiler can report "unknown symbol" with a
// precise location rather than the parser guessing and misparsing.
func (p *Parser) parseTypeIdentifier() *ast.Node {
	id := p.expect(token.Identifier, diag.CodeExpectedType, "type name")
	n := &ast.Node{Kind: ast.TypeIdentifier, Loc: id.Loc, StringValue: id.Text}
	if _, ok := p.c.accept(token.Lt); ok {
		arg := p.parseTypeIdentifier()
		p.expect(token.Gt, diag.CodeExpectedType, "'>' closing generic argument")
		n.Arguments = arg
	}
	for p.c.at(token.Star) {
		p.c.next()
		n = &ast.Node{Kind: ast.TypeIdentifier, Loc: n.Loc, StringValue: n.StringValue + "*", DataType: n}
	}
	return n
}

// parseVariableDecl implements `variable-decl := ('let'|'const') identifier (':' type)? ('=' expression)?`.
func (p *Parser) parseVariableDecl() *ast.Node {
	kw := p.c.next() // 'let' or 'const'
	id := p.expect(token.Identifier, diag.CodeExpectedIdentifier, "identifier")
	decl := &ast.Node{
		Kind:       ast.VariableDecl,
		Loc:        p.loc(kw),
		Identifier: &ast.Node{Kind: ast.Identifier, Loc: id.Loc, StringValue: id.Text},
		BoolValue:  kw.Kind == token.KwConst,
	}
	if _, ok := p.c.accept(token.Colon); ok {
		decl.DataType = p.parseTypeIdentifier()
	}
	if _, ok := p.c.accept(token.Assign); ok {
		decl.Initializer = p.parseAssignment()
	}
	decl.Loc = p.loc(kw)
	return decl
}

// parseFunctionDecl implements `function-decl := 'function' identifier '(' paramList? ')' (':' type)? block`.
func (p *Parser) parseFunctionDecl() *ast.Node {
	kw := p.c.next() // 'function'
	id := p.expect(token.Identifier, diag.CodeExpectedIdentifier, "function name")
	p.expect(token.LParen, diag.CodeExpectedOperator, "'('")
	params := p.parseParameterList()
	p.expect(token.RParen, diag.CodeExpectedOperator, "')'")

	fn := &ast.Node{
		Kind:       ast.FunctionDecl,
		Loc:        p.loc(kw),
		Identifier: &ast.Node{Kind: ast.Identifier, Loc: id.Loc, StringValue: id.Text},
		Arguments:  ast.FromSlice(params),
	}
	if _, ok := p.c.accept(token.Colon); ok {
		fn.DataType = p.parseTypeIdentifier()
	}
	fn.Body = p.parseBlock()
	fn.Loc = p.loc(kw)
	return fn
}

// parseParameterList implements `paramList := parameter (',' parameter)*`.
func (p *Parser) parseParameterList() []*ast.Node {
	var params []*ast.Node
	if p.c.at(token.RParen) {
		return params
	}
	for {
		params = append(params, p.parseParameter())
		if _, ok := p.c.accept(token.Comma); !ok {
			break
		}
	}
	return params
}

func (p *Parser) parseParameter() *ast.Node {
	id := p.expect(token.Identifier, diag.CodeExpectedIdentifier, "parameter name")
	param := &ast.Node{Kind: ast.Parameter, Loc: id.Loc, StringValue: id.Text}
	if _, ok := p.c.accept(token.Colon); ok {
		param.DataType = p.parseTypeIdentifier()
	}
	if _, ok := p.c.accept(token.Assign); ok {
		param.Initializer = p.parseAssignment()
	}
	return param
}

// parseClassDecl implements:
//
//	class-decl := 'class' identifier ('extends' type)? '{' classMember* '}'
//	classMember := access? 'static'? (property | method | ctor | operator)
//
// A 'const' member modifier is not accepted; it is reported as an
// unexpected token in the class body.
func (p *Parser) parseClassDecl() *ast.Node {
	kw := p.c.next() // 'class'
	id := p.expect(token.Identifier, diag.CodeExpectedIdentifier, "class name")
	decl := &ast.Node{Kind: ast.ClassDecl, Loc: p.loc(kw), Identifier: &ast.Node{Kind: ast.Identifier, Loc: id.Loc, StringValue: id.Text}}
	p.typeNames[id.Text] = true // forward declare so methods can self-reference (spec.md §9 cyclic types)

	if _, ok := p.c.accept(token.KwExtends); ok {
		decl.Modifier = p.parseTypeIdentifier()
	}

	p.expect(token.LBrace, diag.CodeExpectedOperator, "'{'")
	var members []*ast.Node
	for !p.c.at(token.RBrace) && !p.c.at(token.EOF) {
		members = append(members, p.parseClassMember(id.Text))
	}
	p.expect(token.RBrace, diag.CodeExpectedOperator, "'}'")
	decl.Body = ast.FromSlice(members)
	decl.Loc = p.loc(kw)
	return decl
}

func (p *Parser) parseClassMember(className string) *ast.Node {
	access := "public"
	if p.c.at(token.KwPublic) || p.c.at(token.KwPrivate) {
		access = p.c.next().Text
	}
	isStatic := false
	if _, ok := p.c.accept(token.KwStatic); ok {
		isStatic = true
	}

	switch p.c.peek().Kind {
	case token.KwGet, token.KwSet:
		return p.parseAccessor(access, isStatic)
	case token.KwOperator:
		return p.parseOperatorMethod(access)
	case token.Identifier:
		// Either `name(` (method/constructor) or `name: type` (property).
		if p.c.peekAt(1).Kind == token.LParen {
			return p.parseMethod(access, isStatic, className)
		}
		return p.parsePropertyField(access, isStatic)
	default:
		t := p.c.peek()
		p.log.Err(diag.CodeUnexpectedToken, &t.Loc, "unexpected token %q in class body", t.Text)
		p.recover()
		return &ast.Node{Kind: ast.Property, Loc: t.Loc}
	}
}

func (p *Parser) parsePropertyField(access string, isStatic bool) *ast.Node {
	id := p.c.next()
	prop := &ast.Node{Kind: ast.Property, Loc: id.Loc, StringValue: id.Text, BoolValue: isStatic,
		Modifier: &ast.Node{Kind: ast.Identifier, StringValue: access}}
	if _, ok := p.c.accept(token.Colon); ok {
		prop.DataType = p.parseTypeIdentifier()
	}
	if _, ok := p.c.accept(token.Assign); ok {
		prop.Initializer = p.parseAssignment()
	}
	p.expectSemi()
	return prop
}

// parseAccessor implements a property get/set accessor method, spec.md
// §4.3.1: "for property accessors with get/set functions".
func (p *Parser) parseAccessor(access string, isStatic bool) *ast.Node {
	kw := p.c.next() // 'get' or 'set'
	id := p.expect(token.Identifier, diag.CodeExpectedIdentifier, "property name")
	p.expect(token.LParen, diag.CodeExpectedOperator, "'('")
	params := p.parseParameterList()
	p.expect(token.RParen, diag.CodeExpectedOperator, "')'")
	acc := &ast.Node{
		Kind: ast.Accessor, Loc: p.loc(kw), StringValue: id.Text, BoolValue: isStatic,
		Modifier:  &ast.Node{Kind: ast.Identifier, StringValue: kw.Text + ":" + access},
		Arguments: ast.FromSlice(params),
	}
	if _, ok := p.c.accept(token.Colon); ok {
		acc.DataType = p.parseTypeIdentifier()
	}
	acc.Body = p.parseBlock()
	return acc
}

func (p *Parser) parseOperatorMethod(access string) *ast.Node {
	kw := p.c.next() // 'operator'
	sym := p.c.next() // the operator symbol token, e.g. '+'
	p.expect(token.LParen, diag.CodeExpectedOperator, "'('")
	params := p.parseParameterList()
	p.expect(token.RParen, diag.CodeExpectedOperator, "')'")
	m := &ast.Node{
		Kind: ast.FunctionDecl, Loc: p.loc(kw), StringValue: "operator" + sym.Text,
		Modifier:  &ast.Node{Kind: ast.Identifier, StringValue: access},
		Arguments: ast.FromSlice(params),
	}
	if _, ok := p.c.accept(token.Colon); ok {
		m.DataType = p.parseTypeIdentifier()
	}
	m.Body = p.parseBlock()
	return m
}

func (p *Parser) parseMethod(access string, isStatic bool, className string) *ast.Node {
	id := p.c.next()
	isCtor := id.Text == className
	p.expect(token.LParen, diag.CodeExpectedOperator, "'('")
	params := p.parseParameterList()
	p.expect(token.RParen, diag.CodeExpectedOperator, "')'")
	m := &ast.Node{
		Kind: ast.FunctionDecl, Loc: id.Loc, StringValue: id.Text, BoolValue: isStatic,
		Modifier:  &ast.Node{Kind: ast.Identifier, StringValue: access},
		Arguments: ast.FromSlice(params),
	}
	if _, ok := p.c.accept(token.Colon); ok {
		m.DataType = p.parseTypeIdentifier()
		if isCtor {
			t := m.DataType
			p.log.Err(diag.CodeVoidCtorDtorReturns, &t.Loc, "constructor %q must not declare a return type", className)
		}
	}
	m.Body = p.parseBlock()
	return m
}

// parseEnumDecl implements `enum-decl := 'enum' identifier '{' identifier ('=' expression)? (',' ...)* '}'`,
// a feature supplemented from original_source (SPEC_FULL.md §4).
func (p *Parser) parseEnumDecl() *ast.Node {
	kw := p.c.next() // 'enum'
	id := p.expect(token.Identifier, diag.CodeExpectedIdentifier, "enum name")
	p.typeNames[id.Text] = true
	decl := &ast.Node{Kind: ast.EnumDecl, Loc: p.loc(kw), Identifier: &ast.Node{Kind: ast.Identifier, Loc: id.Loc, StringValue: id.Text}}

	p.expect(token.LBrace, diag.CodeExpectedOperator, "'{'")
	var members []*ast.Node
	for !p.c.at(token.RBrace) && !p.c.at(token.EOF) {
		mid := p.expect(token.Identifier, diag.CodeExpectedIdentifier, "enum member name")
		m := &ast.Node{Kind: ast.Identifier, Loc: mid.Loc, StringValue: mid.Text}
		if _, ok := p.c.accept(token.Assign); ok {
			m.Initializer = p.parseAssignment()
		}
		members = append(members, m)
		if _, ok := p.c.accept(token.Comma); !ok {
			break
		}
	}
	p.expect(token.RBrace, diag.CodeExpectedOperator, "'}'")
	decl.Body = ast.FromSlice(members)
	decl.Loc = p.loc(kw)
	return decl
}
