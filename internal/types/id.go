// Package types implements the global TypeRegistry/FunctionRegistry and the
// DataType/Function/Module data model from spec.md §3.
package types

import "github.com/cespare/xxhash/v2"

// TypeID uniquely identifies a DataType within a Context (spec.md §3
// invariants: "type_id uniquely identifies a type within a Context; equal
// ids imply structural identity").
type TypeID uint64

// FunctionID uniquely identifies a Function within a Context and maps 1:1 to
// an index in the FunctionRegistry.
type FunctionID uint64

// HashName derives a stable id from a fully-qualified name. xxhash replaces
// the original C++ project's unspecified hash (SPEC_FULL.md §2): fast,
// stable across runs within one Go version, and already the corpus's go-to
// choice for interning symbol names.
func HashName(fqn string) uint64 {
	return xxhash.Sum64String(fqn)
}
