package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeRegistryDeclareIsIdempotent(t *testing.T) {
	r := NewTypeRegistry()
	a := r.Declare("Foo")
	b := r.Declare("Foo")
	require.Same(t, a, b)
	require.False(t, a.IsComplete())
	r.Complete(a, Meta{Size: 4, Integral: true}, nil, nil, nil, nil)
	require.True(t, a.IsComplete())
}

func TestTypeRegistryCyclicSelfReference(t *testing.T) {
	// spec.md §9: a class whose method signature references the class itself
	// must not deadlock or require two passes over the registry.
	r := NewTypeRegistry()
	node := r.Declare("LinkedListNode")
	ptr := r.Declare("LinkedListNode*")
	r.Complete(ptr, Meta{Size: 8, Primitive: true}, nil, nil, nil, nil)
	ptr.AliasOf = node

	method := &Function{Name: "next", FQN: "LinkedListNode::next"}
	r.Complete(node, Meta{Size: 16}, nil, nil, []*Function{method}, nil)
	require.True(t, node.IsComplete())
	require.Equal(t, node, ptr.AliasOf)
}

func TestFunctionRegistryOverloadSet(t *testing.T) {
	r := NewFunctionRegistry()
	i32 := &DataType{Name: "i32"}
	f32 := &DataType{Name: "f32"}
	fi := &Function{Name: "f", FQN: "f", Signature: &DataType{Arguments: []Argument{{Type: i32}}}}
	ff := &Function{Name: "f", FQN: "f", Signature: &DataType{Arguments: []Argument{{Type: f32}}}}
	r.Register(fi)
	r.Register(ff)

	overloads := r.Overloads("f")
	require.Len(t, overloads, 2)
	require.NotEqual(t, fi.ID, ff.ID)
}

func TestDataTypeBaseOffsetMultipleInheritance(t *testing.T) {
	a := &DataType{Name: "A", Meta: Meta{Size: 8}}
	b := &DataType{Name: "B", Meta: Meta{Size: 16}}
	c := &DataType{Name: "C", Meta: Meta{Size: 4}, Bases: []*DataType{a, b}}

	require.Equal(t, 0, c.BaseOffset(a))
	require.Equal(t, 8, c.BaseOffset(b))
	require.Equal(t, -1, c.BaseOffset(&DataType{Name: "Unrelated"}))
}

func TestFunctionValidInvariant(t *testing.T) {
	scriptOnly := &Function{}
	require.True(t, scriptOnly.Valid())
	require.True(t, scriptOnly.IsScript())
}
