// Package token defines the lexical token kinds produced by internal/lexer and
// consumed by internal/parser, matching spec.md §4.1's fixed keyword and
// operator set.
package token

import "github.com/tsnlang/tsn/internal/source"

// Kind differentiates lexical tokens.
type Kind int

const (
	Unknown Kind = iota
	EOF
	Comment

	Identifier
	IntLiteral
	FloatLiteral
	StringLiteral
	TemplateLiteral

	// Keywords.
	KwIf
	KwElse
	KwDo
	KwWhile
	KwFor
	KwBreak
	KwContinue
	KwType
	KwEnum
	KwClass
	KwExtends
	KwPublic
	KwPrivate
	KwImport
	KwExport
	KwFrom
	KwAs
	KwOperator
	KwStatic
	KwConst
	KwGet
	KwSet
	KwNull
	KwReturn
	KwSwitch
	KwCase
	KwDefault
	KwTrue
	KwFalse
	KwThis
	KwFunction
	KwLet
	KwNew
	KwSizeof
	KwDelete

	// Punctuation / operators.
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Semicolon
	Comma
	Dot
	Colon
	Question
	Arrow // =>

	Assign
	PlusAssign
	MinusAssign
	StarAssign
	SlashAssign
	PercentAssign
	AmpAssign
	PipeAssign
	CaretAssign
	ShlAssign
	ShrAssign

	Plus
	Minus
	Star
	Slash
	Percent
	Amp
	Pipe
	Caret
	Tilde
	Shl
	Shr

	LogAnd
	LogOr
	Not

	Eq
	Neq
	Lt
	Gt
	Lte
	Gte

	Inc
	Dec
)

// IntSuffix classifies the optional trailing suffix on an integer literal.
type IntSuffix int

const (
	NoSuffix IntSuffix = iota
	SuffixByte
	SuffixUByte
	SuffixShort
	SuffixUShort
	SuffixULong
	SuffixLongLong
	SuffixULongLong
	SuffixFloat // trailing 'f' on a literal that is otherwise integer-shaped, e.g. "3f"
)

var keywords = map[string]Kind{
	"if": KwIf, "else": KwElse, "do": KwDo, "while": KwWhile, "for": KwFor,
	"break": KwBreak, "continue": KwContinue, "type": KwType, "enum": KwEnum,
	"class": KwClass, "extends": KwExtends, "public": KwPublic, "private": KwPrivate,
	"import": KwImport, "export": KwExport, "from": KwFrom, "as": KwAs,
	"operator": KwOperator, "static": KwStatic, "const": KwConst, "get": KwGet,
	"set": KwSet, "null": KwNull, "return": KwReturn, "switch": KwSwitch,
	"case": KwCase, "default": KwDefault, "true": KwTrue, "false": KwFalse,
	"this": KwThis, "function": KwFunction, "let": KwLet, "new": KwNew,
	"sizeof": KwSizeof, "delete": KwDelete,
}

// LookupKeyword returns the keyword Kind for ident, and ok=true if ident is a
// reserved word.
func LookupKeyword(ident string) (Kind, bool) {
	k, ok := keywords[ident]
	return k, ok
}

// Token is one lexeme with its source span. Text references into the owning
// ModuleSource for non-literal tokens; decoded string/template literals carry
// their own unescaped copy since the raw source text includes escape
// sequences and surrounding quotes.
type Token struct {
	Kind      Kind
	Text      string
	Loc       source.Location
	IntSuffix IntSuffix
}

// String renders a debug-friendly form of the token, as used by the token
// stream dump (spec.md §6 "Exit/diagnostics" / debug surfaces).
func (t Token) String() string {
	return t.Kind.String() + " " + quote(t.Text) + " @" + t.Loc.String()
}

func quote(s string) string {
	if len(s) > 20 {
		return "\"" + s[:17] + "...\""
	}
	return "\"" + s + "\""
}

//go:generate stringer -type=Kind
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Kind(?)"
}

var kindNames = map[Kind]string{
	Unknown: "unknown", EOF: "eof", Comment: "comment",
	Identifier: "identifier", IntLiteral: "int", FloatLiteral: "float",
	StringLiteral: "string", TemplateLiteral: "template",
	KwIf: "if", KwElse: "else", KwDo: "do", KwWhile: "while", KwFor: "for",
	KwBreak: "break", KwContinue: "continue", KwType: "type", KwEnum: "enum",
	KwClass: "class", KwExtends: "extends", KwPublic: "public", KwPrivate: "private",
	KwImport: "import", KwExport: "export", KwFrom: "from", KwAs: "as",
	KwOperator: "operator", KwStatic: "static", KwConst: "const", KwGet: "get",
	KwSet: "set", KwNull: "null", KwReturn: "return", KwSwitch: "switch",
	KwCase: "case", KwDefault: "default", KwTrue: "true", KwFalse: "false",
	KwThis: "this", KwFunction: "function", KwLet: "let", KwNew: "new",
	KwSizeof: "sizeof", KwDelete: "delete",
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}", LBracket: "[", RBracket: "]",
	Semicolon: ";", Comma: ",", Dot: ".", Colon: ":", Question: "?", Arrow: "=>",
	Assign: "=", PlusAssign: "+=", MinusAssign: "-=", StarAssign: "*=",
	SlashAssign: "/=", PercentAssign: "%=", AmpAssign: "&=", PipeAssign: "|=",
	CaretAssign: "^=", ShlAssign: "<<=", ShrAssign: ">>=",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%",
	Amp: "&", Pipe: "|", Caret: "^", Tilde: "~", Shl: "<<", Shr: ">>",
	LogAnd: "&&", LogOr: "||", Not: "!",
	Eq: "==", Neq: "!=", Lt: "<", Gt: ">", Lte: "<=", Gte: ">=",
	Inc: "++", Dec: "--",
}
