package compiler

import "github.com/tsnlang/tsn/internal/types"

// primitiveSpec describes one built-in scalar type's type_meta, per spec.md
// §3's DataType.Meta fields (size, floating, integral, unsigned).
type primitiveSpec struct {
	name     string
	size     int
	integral bool
	floating bool
	unsigned bool
	scalar   bool // false for "string", which is an interned pointer, not a POD scalar
}

var primitiveSpecs = []primitiveSpec{
	{name: "void", size: 0, scalar: true},
	{name: "bool", size: 1, integral: true, unsigned: true, scalar: true},
	{name: "i8", size: 1, integral: true, scalar: true},
	{name: "u8", size: 1, integral: true, unsigned: true, scalar: true},
	{name: "i16", size: 2, integral: true, scalar: true},
	{name: "u16", size: 2, integral: true, unsigned: true, scalar: true},
	{name: "i32", size: 4, integral: true, scalar: true},
	{name: "u32", size: 4, integral: true, unsigned: true, scalar: true},
	{name: "i64", size: 8, integral: true, scalar: true},
	{name: "u64", size: 8, integral: true, unsigned: true, scalar: true},
	{name: "f32", size: 4, floating: true, scalar: true},
	{name: "f64", size: 8, floating: true, scalar: true},
	{name: "string", size: 8, scalar: false},
}

// registerPrimitives declares and completes every built-in scalar type in
// reg, returning a lookup table by name for resolveType's fast path.
func registerPrimitives(reg *types.TypeRegistry) map[string]*types.DataType {
	out := make(map[string]*types.DataType, len(primitiveSpecs))
	for _, p := range primitiveSpecs {
		dt := reg.Declare(p.name)
		meta := types.Meta{
			Size: p.size, Primitive: p.scalar, Integral: p.integral, Floating: p.floating,
			Unsigned: p.unsigned, POD: true, TriviallyCopyable: true, TriviallyDefault: true,
			TriviallyDestruct: true,
		}
		reg.Complete(dt, meta, nil, nil, nil, nil)
		out[p.name] = dt
	}
	return out
}
