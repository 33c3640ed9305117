// Package lexer turns ModuleSource text into a token stream.
//
// The state-function design is carried over from the teacher compiler's
// frontend lexer (itself based on Rob Pike's "Lexical Scanning in Go" talk):
// a stateFunc closure decides what to do with the next rune and returns the
// state to run next. Unlike the teacher, which streamed items over a channel
// to a concurrently-running goyacc parser, this lexer runs to completion and
// returns a slice, because internal/parser is a hand-written recursive-descent
// parser that needs random access (backup/restore) over the token stream.
package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/token"
)

const eof = 0

// stateFunc defines the lexer's current state; it consumes runes from l and
// returns the state to run next, or nil to stop.
type stateFunc func(*lexer) stateFunc

type lexer struct {
	src         *source.ModuleSource
	input       string
	start       int
	pos         int
	width       int
	out         []token.Token
}

// Lex tokenizes src in full and returns every token, including comment
// tokens (spec.md §4.1: "recorded as comment tokens so the parser can skip
// them uniformly"). It never fails fatally: unrecognized bytes become
// token.Unknown tokens so callers can report and keep scanning.
func Lex(src *source.ModuleSource) []token.Token {
	l := &lexer{src: src, input: src.Text(), out: make([]token.Token, 0, len(src.Text())/4+8)}
	for state := stateFunc(lexStart); state != nil; {
		state = state(l)
	}
	l.emit(token.EOF)
	return l.out
}

func (l *lexer) next() rune {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += w
	l.width = w
	return r
}

func (l *lexer) backup() {
	if l.pos > l.start {
		l.pos -= l.width
	}
}

func (l *lexer) peek() rune {
	r := l.next()
	l.backup()
	return r
}

func (l *lexer) peekAt(n int) rune {
	save := l.pos
	var r rune = eof
	for i := 0; i <= n; i++ {
		r = l.next()
	}
	l.pos = save
	return r
}

func (l *lexer) ignore() {
	l.start = l.pos
}

func (l *lexer) accept(valid string) bool {
	if strings.IndexRune(valid, l.next()) >= 0 {
		return true
	}
	l.backup()
	return false
}

func (l *lexer) acceptRun(valid string) {
	for strings.IndexRune(valid, l.next()) >= 0 {
	}
	l.backup()
}

func (l *lexer) acceptRunFunc(pred func(rune) bool) {
	for {
		r := l.next()
		if r == eof || !pred(r) {
			l.backup()
			return
		}
	}
}

// emit appends a token spanning [start, pos) and advances start past it.
func (l *lexer) emit(kind token.Kind) {
	loc := source.NewLocation(l.src, l.start, l.pos)
	l.out = append(l.out, token.Token{Kind: kind, Text: l.input[l.start:l.pos], Loc: loc})
	l.start = l.pos
}

func (l *lexer) emitText(kind token.Kind, text string) {
	loc := source.NewLocation(l.src, l.start, l.pos)
	l.out = append(l.out, token.Token{Kind: kind, Text: text, Loc: loc})
	l.start = l.pos
}

func (l *lexer) emitSuffixed(kind token.Kind, suffix token.IntSuffix) {
	loc := source.NewLocation(l.src, l.start, l.pos)
	l.out = append(l.out, token.Token{Kind: kind, Text: l.input[l.start:l.pos], Loc: loc, IntSuffix: suffix})
	l.start = l.pos
}

func isAlpha(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isAlnum(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

// lexStart is the top-level state: skip whitespace, dispatch on the next rune.
func lexStart(l *lexer) stateFunc {
	r := l.next()
	switch {
	case r == eof:
		return nil
	case r == ' ' || r == '\t' || r == '\r' || r == '\n':
		l.ignore()
		return lexStart
	case r == '/' && l.peek() == '/':
		return lexLineComment
	case r == '/' && l.peek() == '*':
		return lexBlockComment
	case isAlpha(r):
		l.backup()
		return lexIdentifier
	case unicode.IsDigit(r):
		l.backup()
		return lexNumber
	case r == '"' || r == '\'':
		l.backup()
		return lexString
	case r == '`':
		return lexTemplate
	default:
		l.backup()
		return lexOperator
	}
}

func lexLineComment(l *lexer) stateFunc {
	l.acceptRunFunc(func(r rune) bool { return r != '\n' })
	l.emit(token.Comment)
	return lexStart
}

func lexBlockComment(l *lexer) stateFunc {
	l.next() // consume the '*' following '/'
	for {
		r := l.next()
		if r == eof {
			// Unterminated comment: emit what we have as a comment token anyway;
			// no diagnostic is reported for it.
			l.emit(token.Comment)
			return nil
		}
		if r == '*' && l.peek() == '/' {
			l.next()
			l.emit(token.Comment)
			return lexStart
		}
	}
}

func lexIdentifier(l *lexer) stateFunc {
	l.acceptRunFunc(isAlnum)
	text := l.input[l.start:l.pos]
	if kw, ok := token.LookupKeyword(text); ok {
		l.emit(kw)
	} else {
		l.emit(token.Identifier)
	}
	return lexStart
}

var intSuffixes = []struct {
	text   string
	suffix token.IntSuffix
}{
	{"ull", token.SuffixULongLong}, {"ULL", token.SuffixULongLong},
	{"ll", token.SuffixLongLong}, {"LL", token.SuffixLongLong},
	{"ul", token.SuffixULong}, {"UL", token.SuffixULong},
	{"us", token.SuffixUShort}, {"US", token.SuffixUShort},
	{"ub", token.SuffixUByte}, {"UB", token.SuffixUByte},
	{"s", token.SuffixShort}, {"S", token.SuffixShort},
	{"b", token.SuffixByte}, {"B", token.SuffixByte},
	{"f", token.SuffixFloat}, {"F", token.SuffixFloat},
}

func lexNumber(l *lexer) stateFunc {
	l.acceptRun("0123456789")
	isFloat := false
	if l.accept(".") {
		isFloat = true
		l.acceptRun("0123456789")
	}
	if l.accept("eE") {
		isFloat = true
		l.accept("+-")
		l.acceptRun("0123456789")
	}
	// trailing type suffix, longest match first, case-insensitive per spec.md §4.1
	rest := l.input[l.pos:]
	for _, s := range intSuffixes {
		if strings.HasPrefix(strings.ToLower(rest), strings.ToLower(s.text)) {
			l.pos += len(s.text)
			if isFloat || s.suffix == token.SuffixFloat {
				l.emitSuffixed(token.FloatLiteral, token.SuffixFloat)
			} else {
				l.emitSuffixed(token.IntLiteral, s.suffix)
			}
			return lexStart
		}
	}
	if isFloat {
		l.emit(token.FloatLiteral)
	} else {
		l.emit(token.IntLiteral)
	}
	return lexStart
}

func lexString(l *lexer) stateFunc {
	quoteRune := l.next()
	var sb strings.Builder
	for {
		r := l.next()
		if r == eof {
			// Unterminated string literal: emit what's decoded so far.
			l.emitText(token.StringLiteral, sb.String())
			return nil
		}
		if r == quoteRune {
			l.emitText(token.StringLiteral, sb.String())
			return lexStart
		}
		if r == '\\' {
			esc := l.next()
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case '\\':
				sb.WriteByte('\\')
			case '\'':
				sb.WriteByte('\'')
			case '"':
				sb.WriteByte('"')
			case 'x':
				h := l.next()
				h2 := l.next()
				if v, ok := hexByte(h, h2); ok {
					sb.WriteByte(v)
				}
			default:
				sb.WriteRune(esc)
			}
			continue
		}
		sb.WriteRune(r)
	}
}

func hexByte(a, b rune) (byte, bool) {
	av, aok := hexDigit(a)
	bv, bok := hexDigit(b)
	if !aok || !bok {
		return 0, false
	}
	return byte(av<<4 | bv), true
}

func hexDigit(r rune) (int, bool) {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0'), true
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10, true
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10, true
	}
	return 0, false
}

// lexTemplate scans a backtick-delimited template string. The core performs
// no interpolation (spec.md §4.1); the literal text between backticks is
// taken verbatim.
func lexTemplate(l *lexer) stateFunc {
	for {
		r := l.next()
		if r == eof {
			l.emitText(token.TemplateLiteral, l.input[l.start+1:l.pos])
			return nil
		}
		if r == '`' {
			l.emitText(token.TemplateLiteral, l.input[l.start+1:l.pos-1])
			return lexStart
		}
	}
}

// operator table, longest-match-first.
var operators = []struct {
	text string
	kind token.Kind
}{
	{"<<=", token.ShlAssign}, {">>=", token.ShrAssign},
	{"=>", token.Arrow},
	{"==", token.Eq}, {"!=", token.Neq}, {"<=", token.Lte}, {">=", token.Gte},
	{"&&", token.LogAnd}, {"||", token.LogOr},
	{"++", token.Inc}, {"--", token.Dec},
	{"<<", token.Shl}, {">>", token.Shr},
	{"+=", token.PlusAssign}, {"-=", token.MinusAssign}, {"*=", token.StarAssign},
	{"/=", token.SlashAssign}, {"%=", token.PercentAssign},
	{"&=", token.AmpAssign}, {"|=", token.PipeAssign}, {"^=", token.CaretAssign},
	{"(", token.LParen}, {")", token.RParen}, {"{", token.LBrace}, {"}", token.RBrace},
	{"[", token.LBracket}, {"]", token.RBracket},
	{";", token.Semicolon}, {",", token.Comma}, {".", token.Dot}, {":", token.Colon},
	{"?", token.Question},
	{"=", token.Assign},
	{"+", token.Plus}, {"-", token.Minus}, {"*", token.Star}, {"/", token.Slash}, {"%", token.Percent},
	{"&", token.Amp}, {"|", token.Pipe}, {"^", token.Caret}, {"~", token.Tilde},
	{"<", token.Lt}, {">", token.Gt}, {"!", token.Not},
}

func lexOperator(l *lexer) stateFunc {
	rest := l.input[l.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			l.pos += len(op.text)
			l.emit(op.kind)
			return lexStart
		}
	}
	// Unknown byte: emit an Unknown token and continue (spec.md §4.1 error policy).
	l.next()
	l.emit(token.Unknown)
	return lexStart
}
