// Package ast defines ParseNode, the tagged AST produced by internal/parser.
//
// Modeled on the teacher's ir.Node (src/ir/nodetype.go): a single struct with
// a Kind discriminator, a debug String()/Print() pair, and spec.md §3's typed
// child slots plus a Next sibling pointer so that sequences (statement lists,
// argument lists, parameter lists) are intrusive singly-linked lists instead
// of a second container type.
package ast

import (
	"fmt"
	"strings"

	"github.com/tsnlang/tsn/internal/source"
)

// Kind differentiates nodes in the syntax tree.
type Kind int

const (
	Root Kind = iota
	Import
	Export

	VariableDecl
	FunctionDecl
	ClassDecl
	EnumDecl
	Parameter
	Property
	Accessor // get/set accessor body attached to a Property

	Block
	If
	While
	DoWhile
	For
	Switch
	Case
	Break
	Continue
	Return
	Delete
	ExprStatement

	Expression
	Assignment
	Conditional // a ? b : c
	BinaryOp
	UnaryOp
	PostfixOp
	Call
	New
	Index
	Member
	ArrayLiteral

	Identifier
	TypeIdentifier
	IntLiteral
	UintLiteral
	F32Literal
	F64Literal
	StringLiteral
	TemplateLiteral
	BoolLiteral
	NullLiteral
	ThisExpr
)

var kindNames = [...]string{
	"Root", "Import", "Export", "VariableDecl", "FunctionDecl", "ClassDecl", "EnumDecl",
	"Parameter", "Property", "Accessor", "Block", "If", "While", "DoWhile", "For", "Switch",
	"Case", "Break", "Continue", "Return", "Delete", "ExprStatement", "Expression", "Assignment",
	"Conditional", "BinaryOp", "UnaryOp", "PostfixOp", "Call", "New", "Index", "Member",
	"ArrayLiteral", "Identifier", "TypeIdentifier", "IntLiteral", "UintLiteral", "F32Literal",
	"F64Literal", "StringLiteral", "TemplateLiteral", "BoolLiteral", "NullLiteral", "ThisExpr",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Node is one element of the syntax tree. Only the slots relevant to Kind are
// populated; the rest remain nil. Sequences (statement lists, argument
// lists, parameter lists, case lists) are represented as a singly-linked
// list via Next starting from the slot that names the sequence (e.g. Body
// for a block's statements, Arguments for a call's argument list).
type Node struct {
	Kind Kind
	Loc  source.Location

	// Literal payloads; exactly one is meaningful, selected by Kind.
	IntValue    int64
	UintValue   uint64
	F32Value    float32
	F64Value    float64
	StringValue string
	BoolValue   bool

	// Typed child slots, per spec.md §3.
	Initializer *Node
	Condition   *Node
	Body        *Node
	ElseBody    *Node
	LValue      *Node
	RValue      *Node
	Callee      *Node
	Arguments   *Node
	Modifier    *Node
	DataType    *Node
	Identifier  *Node

	// Next chains this node to its sibling in whatever sequence it belongs to.
	Next *Node
}

// ToSlice walks the Next chain starting at head and returns every node in
// order, including head. A nil head yields an empty slice.
func ToSlice(head *Node) []*Node {
	var out []*Node
	for n := head; n != nil; n = n.Next {
		out = append(out, n)
	}
	return out
}

// FromSlice builds a Next-linked chain from nodes and returns its head, or
// nil if nodes is empty.
func FromSlice(nodes []*Node) *Node {
	for i := len(nodes) - 1; i > 0; i-- {
		nodes[i-1].Next = nodes[i]
	}
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// String renders a one-line, print-friendly summary of n, in the spirit of
// the teacher's ir.Node.String().
func (n *Node) String() string {
	if n == nil {
		return "---> [NIL NODE]"
	}
	switch n.Kind {
	case Identifier, TypeIdentifier:
		return fmt.Sprintf("%s [%s]", n.Kind, n.StringValue)
	case IntLiteral:
		return fmt.Sprintf("%s [%d]", n.Kind, n.IntValue)
	case UintLiteral:
		return fmt.Sprintf("%s [%d]", n.Kind, n.UintValue)
	case F32Literal:
		return fmt.Sprintf("%s [%g]", n.Kind, n.F32Value)
	case F64Literal:
		return fmt.Sprintf("%s [%g]", n.Kind, n.F64Value)
	case StringLiteral, TemplateLiteral:
		return fmt.Sprintf("%s [%q]", n.Kind, n.StringValue)
	case BoolLiteral:
		return fmt.Sprintf("%s [%t]", n.Kind, n.BoolValue)
	case BinaryOp, UnaryOp, PostfixOp, Assignment:
		return fmt.Sprintf("%s [%s]", n.Kind, n.StringValue)
	default:
		return n.Kind.String()
	}
}

// Print recursively prints n and its typed children, indenting one level per
// recursive call, mirroring the teacher's ir.Node.Print debug dump.
func (n *Node) Print(depth int) {
	if n == nil {
		fmt.Printf("%s--> NIL\n", strings.Repeat("  ", depth))
		return
	}
	fmt.Printf("%s%s @%s\n", strings.Repeat("  ", depth), n.String(), n.Loc)

	slots := []struct {
		name string
		n    *Node
	}{
		{"initializer", n.Initializer}, {"condition", n.Condition}, {"body", n.Body},
		{"elseBody", n.ElseBody}, {"lvalue", n.LValue}, {"rvalue", n.RValue},
		{"callee", n.Callee}, {"modifier", n.Modifier}, {"dataType", n.DataType},
		{"identifier", n.Identifier},
	}
	for _, s := range slots {
		if s.n != nil {
			fmt.Printf("%s.%s:\n", strings.Repeat("  ", depth+1), s.name)
			s.n.Print(depth + 2)
		}
	}
	if n.Arguments != nil {
		fmt.Printf("%s.arguments:\n", strings.Repeat("  ", depth+1))
		for _, a := range ToSlice(n.Arguments) {
			a.Print(depth + 2)
		}
	}
}
