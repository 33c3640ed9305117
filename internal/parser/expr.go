package parser

import (
	"strconv"
	"strings"

	"github.com/tsnlang/tsn/internal/ast"
	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/internal/token"
)

// parseExpression is the entry point named `expression := assignment` in
// spec.md §4.2.
func (p *Parser) parseExpression() *ast.Node {
	return p.parseAssignment()
}

var assignOps = map[token.Kind]string{
	token.Assign: "=", token.PlusAssign: "+=", token.MinusAssign: "-=", token.StarAssign: "*=",
	token.SlashAssign: "/=", token.PercentAssign: "%=", token.AmpAssign: "&=", token.PipeAssign: "|=",
	token.CaretAssign: "^=", token.ShlAssign: "<<=", token.ShrAssign: ">>=",
}

// parseAssignment implements `assignment := conditional ( assign-op assignment )?`,
// right-associative per spec.md §4.2's precedence table.
func (p *Parser) parseAssignment() *ast.Node {
	lhs := p.parseConditional()
	if op, ok := assignOps[p.c.peek().Kind]; ok {
		p.c.next()
		rhs := p.parseAssignment()
		return &ast.Node{
			Kind: ast.Assignment, Loc: span(lhs.Loc, rhs.Loc), StringValue: op,
			LValue: lhs, RValue: rhs,
		}
	}
	return lhs
}

// parseConditional implements `conditional := logical-or ( '?' expression ':' assignment )?`,
// right-associative.
func (p *Parser) parseConditional() *ast.Node {
	cond := p.parseLogicalOr()
	if _, ok := p.c.accept(token.Question); ok {
		then := p.parseExpression()
		p.expect(token.Colon, diag.CodeExpectedOperator, "':'")
		els := p.parseAssignment()
		return &ast.Node{Kind: ast.Conditional, Loc: span(cond.Loc, els.Loc), Condition: cond, Body: then, ElseBody: els}
	}
	return cond
}

// binaryLevel describes one left-associative precedence level: the set of
// operator tokens recognized at this level and the next-tighter parser to
// call for operands, per spec.md §4.2's fixed table:
//
//	||, &&, |, ^, &, equality, relational, shift, additive, multiplicative
type binaryLevel struct {
	ops  map[token.Kind]string
	next func(p *Parser) *ast.Node
}

func (p *Parser) parseLeftAssoc(lvl binaryLevel) *ast.Node {
	lhs := lvl.next(p)
	for {
		op, ok := lvl.ops[p.c.peek().Kind]
		if !ok {
			return lhs
		}
		p.c.next()
		rhs := lvl.next(p)
		lhs = &ast.Node{Kind: ast.BinaryOp, Loc: span(lhs.Loc, rhs.Loc), StringValue: op, LValue: lhs, RValue: rhs}
	}
}

func (p *Parser) parseLogicalOr() *ast.Node {
	return p.parseLeftAssoc(binaryLevel{ops: map[token.Kind]string{token.LogOr: "||"}, next: (*Parser).parseLogicalAnd})
}
func (p *Parser) parseLogicalAnd() *ast.Node {
	return p.parseLeftAssoc(binaryLevel{ops: map[token.Kind]string{token.LogAnd: "&&"}, next: (*Parser).parseBitOr})
}
func (p *Parser) parseBitOr() *ast.Node {
	return p.parseLeftAssoc(binaryLevel{ops: map[token.Kind]string{token.Pipe: "|"}, next: (*Parser).parseBitXor})
}
func (p *Parser) parseBitXor() *ast.Node {
	return p.parseLeftAssoc(binaryLevel{ops: map[token.Kind]string{token.Caret: "^"}, next: (*Parser).parseBitAnd})
}
func (p *Parser) parseBitAnd() *ast.Node {
	return p.parseLeftAssoc(binaryLevel{ops: map[token.Kind]string{token.Amp: "&"}, next: (*Parser).parseEquality})
}
func (p *Parser) parseEquality() *ast.Node {
	return p.parseLeftAssoc(binaryLevel{
		ops:  map[token.Kind]string{token.Eq: "==", token.Neq: "!="},
		next: (*Parser).parseRelational,
	})
}
func (p *Parser) parseRelational() *ast.Node {
	return p.parseLeftAssoc(binaryLevel{
		ops: map[token.Kind]string{
			token.Lt: "<", token.Gt: ">", token.Lte: "<=", token.Gte: ">=",
		},
		next: (*Parser).parseShift,
	})
}
func (p *Parser) parseShift() *ast.Node {
	return p.parseLeftAssoc(binaryLevel{
		ops:  map[token.Kind]string{token.Shl: "<<", token.Shr: ">>"},
		next: (*Parser).parseAdditive,
	})
}
func (p *Parser) parseAdditive() *ast.Node {
	return p.parseLeftAssoc(binaryLevel{
		ops:  map[token.Kind]string{token.Plus: "+", token.Minus: "-"},
		next: (*Parser).parseMultiplicative,
	})
}
func (p *Parser) parseMultiplicative() *ast.Node {
	return p.parseLeftAssoc(binaryLevel{
		ops:  map[token.Kind]string{token.Star: "*", token.Slash: "/", token.Percent: "%"},
		next: (*Parser).parseUnary,
	})
}

var unaryOps = map[token.Kind]string{
	token.Plus: "+", token.Minus: "-", token.Not: "!", token.Tilde: "~",
	token.Inc: "++", token.Dec: "--",
}

// parseUnary implements unary prefix operators and 'sizeof'.
func (p *Parser) parseUnary() *ast.Node {
	if p.c.at(token.KwSizeof) {
		kw := p.c.next()
		p.expect(token.LParen, diag.CodeExpectedOperator, "'('")
		ty := p.parseTypeIdentifier()
		p.expect(token.RParen, diag.CodeExpectedOperator, "')'")
		return &ast.Node{Kind: ast.UnaryOp, Loc: p.loc(kw), StringValue: "sizeof", DataType: ty}
	}
	if op, ok := unaryOps[p.c.peek().Kind]; ok {
		start := p.c.next()
		operand := p.parseUnary()
		return &ast.Node{Kind: ast.UnaryOp, Loc: span(start.Loc, operand.Loc), StringValue: op, Body: operand}
	}
	return p.parsePostfix()
}

// parsePostfix implements postfix ++/--, call, index, and member access,
// chaining left-to-right (`primary (call-args | '[' expr ']' | '.' ident | '++' | '--')*`).
func (p *Parser) parsePostfix() *ast.Node {
	n := p.parsePrimary()
	for {
		switch p.c.peek().Kind {
		case token.LParen:
			n = p.parseCallTail(n)
		case token.LBracket:
			open := p.c.next()
			idx := p.parseExpression()
			end := p.expect(token.RBracket, diag.CodeExpectedOperator, "']'")
			n = &ast.Node{Kind: ast.Index, Loc: span(n.Loc, end.Loc), Callee: n, RValue: idx}
			_ = open
		case token.Dot:
			p.c.next()
			id := p.expect(token.Identifier, diag.CodeExpectedIdentifier, "member name")
			n = &ast.Node{Kind: ast.Member, Loc: span(n.Loc, id.Loc), Callee: n, StringValue: id.Text}
		case token.Inc, token.Dec:
			op := p.c.next()
			n = &ast.Node{Kind: ast.PostfixOp, Loc: span(n.Loc, op.Loc), StringValue: op.Text, Body: n}
		default:
			return n
		}
	}
}

// parseCallTail parses `'(' arguments? ')'` once callee has already been parsed.
func (p *Parser) parseCallTail(callee *ast.Node) *ast.Node {
	p.c.next() // '('
	var args []*ast.Node
	if !p.c.at(token.RParen) {
		for {
			args = append(args, p.parseAssignment())
			if _, ok := p.c.accept(token.Comma); !ok {
				break
			}
		}
	}
	end := p.expect(token.RParen, diag.CodeExpectedOperator, "')'")
	return &ast.Node{Kind: ast.Call, Loc: span(callee.Loc, end.Loc), Callee: callee, Arguments: ast.FromSlice(args)}
}

// parsePrimary implements:
//
//	primary := literal | identifier | '(' expression ')' | 'new' type-id call-args | 'this' | array-literal
func (p *Parser) parsePrimary() *ast.Node {
	t := p.c.peek()
	switch t.Kind {
	case token.IntLiteral:
		p.c.next()
		return p.parseIntLiteral(t)
	case token.FloatLiteral:
		p.c.next()
		return p.parseFloatLiteral(t)
	case token.StringLiteral:
		p.c.next()
		return &ast.Node{Kind: ast.StringLiteral, Loc: t.Loc, StringValue: t.Text}
	case token.TemplateLiteral:
		p.c.next()
		return &ast.Node{Kind: ast.TemplateLiteral, Loc: t.Loc, StringValue: t.Text}
	case token.KwTrue, token.KwFalse:
		p.c.next()
		return &ast.Node{Kind: ast.BoolLiteral, Loc: t.Loc, BoolValue: t.Kind == token.KwTrue}
	case token.KwNull:
		p.c.next()
		return &ast.Node{Kind: ast.NullLiteral, Loc: t.Loc}
	case token.KwThis:
		p.c.next()
		return &ast.Node{Kind: ast.ThisExpr, Loc: t.Loc}
	case token.Identifier:
		p.c.next()
		return &ast.Node{Kind: ast.Identifier, Loc: t.Loc, StringValue: t.Text}
	case token.LParen:
		p.c.next()
		inner := p.parseExpression()
		p.expect(token.RParen, diag.CodeExpectedOperator, "')'")
		return inner
	case token.KwNew:
		return p.parseNew()
	case token.LBracket:
		return p.parseArrayLiteral()
	default:
		p.log.Err(diag.CodeExpectedExpression, &t.Loc, "expected expression, found %q", t.Text)
		// Recovery: consume the offending token so the caller makes progress,
		// and return a poison identifier node rather than nil.
		if !p.c.at(token.EOF) {
			p.c.next()
		}
		return &ast.Node{Kind: ast.Identifier, Loc: t.Loc, StringValue: "<error>"}
	}
}

func (p *Parser) parseNew() *ast.Node {
	kw := p.c.next() // 'new'
	ty := p.parseTypeIdentifier()
	n := &ast.Node{Kind: ast.New, Loc: p.loc(kw), DataType: ty}
	if p.c.at(token.LParen) {
		call := p.parseCallTail(n)
		n.Arguments = call.Arguments
		n.Loc = call.Loc
	}
	return n
}

func (p *Parser) parseArrayLiteral() *ast.Node {
	open := p.c.next() // '['
	var elems []*ast.Node
	if !p.c.at(token.RBracket) {
		for {
			elems = append(elems, p.parseAssignment())
			if _, ok := p.c.accept(token.Comma); !ok {
				break
			}
		}
	}
	end := p.expect(token.RBracket, diag.CodeExpectedOperator, "']'")
	return &ast.Node{Kind: ast.ArrayLiteral, Loc: span(open.Loc, end.Loc), Arguments: ast.FromSlice(elems)}
}

func (p *Parser) parseIntLiteral(t token.Token) *ast.Node {
	text := strings.TrimRight(t.Text, "uUbBsSlL")
	switch t.IntSuffix {
	case token.SuffixUByte, token.SuffixUShort, token.SuffixULong, token.SuffixULongLong:
		v, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			p.log.Err(diag.CodeExpectedExpression, &t.Loc, "malformed integer literal %q", t.Text)
		}
		return &ast.Node{Kind: ast.UintLiteral, Loc: t.Loc, UintValue: v}
	default:
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			p.log.Err(diag.CodeExpectedExpression, &t.Loc, "malformed integer literal %q", t.Text)
		}
		return &ast.Node{Kind: ast.IntLiteral, Loc: t.Loc, IntValue: v}
	}
}

func (p *Parser) parseFloatLiteral(t token.Token) *ast.Node {
	text := strings.TrimRight(t.Text, "fF")
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		p.log.Err(diag.CodeExpectedExpression, &t.Loc, "malformed float literal %q", t.Text)
	}
	if strings.HasSuffix(strings.ToLower(t.Text), "f") {
		return &ast.Node{Kind: ast.F32Literal, Loc: t.Loc, F32Value: float32(v)}
	}
	return &ast.Node{Kind: ast.F64Literal, Loc: t.Loc, F64Value: v}
}
