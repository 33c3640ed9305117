package parser

import (
	"github.com/tsnlang/tsn/internal/ast"
	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/internal/token"
)

// parseStatement implements:
//
//	statement := if | for | while | do-while | return | delete | block | expression ';'
func (p *Parser) parseStatement() *ast.Node {
	switch p.c.peek().Kind {
	case token.LBrace:
		return p.parseBlock()
	case token.KwIf:
		return p.parseIf()
	case token.KwWhile:
		return p.parseWhile()
	case token.KwDo:
		return p.parseDoWhile()
	case token.KwFor:
		return p.parseFor()
	case token.KwSwitch:
		return p.parseSwitch()
	case token.KwReturn:
		return p.parseReturn()
	case token.KwBreak:
		kw := p.c.next()
		p.expectSemi()
		return &ast.Node{Kind: ast.Break, Loc: p.loc(kw)}
	case token.KwContinue:
		kw := p.c.next()
		p.expectSemi()
		return &ast.Node{Kind: ast.Continue, Loc: p.loc(kw)}
	case token.KwDelete:
		return p.parseDelete()
	case token.KwLet, token.KwConst:
		n := p.parseVariableDecl()
		p.expectSemi()
		return n
	case token.Semicolon:
		kw := p.c.next()
		return &ast.Node{Kind: ast.ExprStatement, Loc: kw.Loc}
	default:
		start := p.c.peek()
		expr := p.parseExpression()
		p.expectSemi()
		return &ast.Node{Kind: ast.ExprStatement, Loc: p.loc(start), Body: expr}
	}
}

// parseBlock implements `block := '{' statement* '}'`.
func (p *Parser) parseBlock() *ast.Node {
	open := p.expect(token.LBrace, diag.CodeExpectedOperator, "'{'")
	var stmts []*ast.Node
	for !p.c.at(token.RBrace) && !p.c.at(token.EOF) {
		stmts = append(stmts, p.parseTopLevel())
	}
	p.expect(token.RBrace, diag.CodeExpectedOperator, "'}'")
	return &ast.Node{Kind: ast.Block, Loc: p.loc(open), Body: ast.FromSlice(stmts)}
}

// parseIf implements `if := 'if' '(' expression ')' statement ('else' statement)?`.
func (p *Parser) parseIf() *ast.Node {
	kw := p.c.next()
	p.expect(token.LParen, diag.CodeExpectedOperator, "'('")
	cond := p.parseExpression()
	p.expect(token.RParen, diag.CodeExpectedOperator, "')'")
	body := p.parseStatement()
	n := &ast.Node{Kind: ast.If, Loc: p.loc(kw), Condition: cond, Body: body}
	if _, ok := p.c.accept(token.KwElse); ok {
		n.ElseBody = p.parseStatement()
	}
	n.Loc = p.loc(kw)
	return n
}

// parseWhile implements `while := 'while' '(' expression ')' statement`.
func (p *Parser) parseWhile() *ast.Node {
	kw := p.c.next()
	p.expect(token.LParen, diag.CodeExpectedOperator, "'('")
	cond := p.parseExpression()
	p.expect(token.RParen, diag.CodeExpectedOperator, "')'")
	body := p.parseStatement()
	return &ast.Node{Kind: ast.While, Loc: p.loc(kw), Condition: cond, Body: body}
}

// parseDoWhile implements `do-while := 'do' statement 'while' '(' expression ')' ';'`.
func (p *Parser) parseDoWhile() *ast.Node {
	kw := p.c.next()
	body := p.parseStatement()
	p.expect(token.KwWhile, diag.CodeExpectedKeyword, "'while'")
	p.expect(token.LParen, diag.CodeExpectedOperator, "'('")
	cond := p.parseExpression()
	p.expect(token.RParen, diag.CodeExpectedOperator, "')'")
	p.expectSemi()
	return &ast.Node{Kind: ast.DoWhile, Loc: p.loc(kw), Condition: cond, Body: body}
}

// parseFor implements `for := 'for' '(' (variable-decl|expression)? ';' expression? ';' expression? ')' statement`.
func (p *Parser) parseFor() *ast.Node {
	kw := p.c.next()
	p.expect(token.LParen, diag.CodeExpectedOperator, "'('")

	var init *ast.Node
	if p.c.at(token.KwLet) || p.c.at(token.KwConst) {
		init = p.parseVariableDecl()
	} else if !p.c.at(token.Semicolon) {
		init = &ast.Node{Kind: ast.ExprStatement, Body: p.parseExpression()}
	}
	p.expect(token.Semicolon, diag.CodeExpectedOperator, "';'")

	var cond *ast.Node
	if !p.c.at(token.Semicolon) {
		cond = p.parseExpression()
	}
	p.expect(token.Semicolon, diag.CodeExpectedOperator, "';'")

	var post *ast.Node
	if !p.c.at(token.RParen) {
		post = p.parseExpression()
	}
	p.expect(token.RParen, diag.CodeExpectedOperator, "')'")

	body := p.parseStatement()
	return &ast.Node{
		Kind: ast.For, Loc: p.loc(kw), Initializer: init, Condition: cond, ElseBody: post, Body: body,
	}
}

// parseSwitch implements `switch := 'switch' '(' expression ')' '{' case* '}'`.
func (p *Parser) parseSwitch() *ast.Node {
	kw := p.c.next()
	p.expect(token.LParen, diag.CodeExpectedOperator, "'('")
	cond := p.parseExpression()
	p.expect(token.RParen, diag.CodeExpectedOperator, "')'")
	p.expect(token.LBrace, diag.CodeExpectedOperator, "'{'")

	var cases []*ast.Node
	for !p.c.at(token.RBrace) && !p.c.at(token.EOF) {
		cases = append(cases, p.parseCase())
	}
	p.expect(token.RBrace, diag.CodeExpectedOperator, "'}'")
	return &ast.Node{Kind: ast.Switch, Loc: p.loc(kw), Condition: cond, Body: ast.FromSlice(cases)}
}

func (p *Parser) parseCase() *ast.Node {
	kw := p.c.peek()
	var label *ast.Node
	if _, ok := p.c.accept(token.KwCase); ok {
		label = p.parseExpression()
	} else {
		p.expect(token.KwDefault, diag.CodeExpectedKeyword, "'case' or 'default'")
	}
	p.expect(token.Colon, diag.CodeExpectedOperator, "':'")
	var stmts []*ast.Node
	for !p.c.at(token.KwCase) && !p.c.at(token.KwDefault) && !p.c.at(token.RBrace) && !p.c.at(token.EOF) {
		stmts = append(stmts, p.parseStatement())
	}
	return &ast.Node{Kind: ast.Case, Loc: p.loc(kw), Condition: label, Body: ast.FromSlice(stmts)}
}

// parseReturn implements `return := 'return' expression? ';'`.
func (p *Parser) parseReturn() *ast.Node {
	kw := p.c.next()
	var val *ast.Node
	if !p.c.at(token.Semicolon) {
		val = p.parseExpression()
	}
	p.expectSemi()
	return &ast.Node{Kind: ast.Return, Loc: p.loc(kw), Body: val}
}

// parseDelete implements `delete := 'delete' expression ';'` (spec.md §9:
// safe default is to reject deleting non-heap pointers; that check happens
// at compile time in internal/compiler, not here).
func (p *Parser) parseDelete() *ast.Node {
	kw := p.c.next()
	target := p.parseExpression()
	p.expectSemi()
	return &ast.Node{Kind: ast.Delete, Loc: p.loc(kw), Body: target}
}
