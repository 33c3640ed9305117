package ffi

import (
	"math"
	"reflect"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/pkg/errors"

	"github.com/tsnlang/tsn/internal/types"
)

// ArgClass classifies a marshalled argument by its machine representation,
// per spec.md §4.10: "classify each arg as integer/float/pointer by type
// meta, place pointers for non-fundamental types".
type ArgClass int

const (
	ArgInteger ArgClass = iota
	ArgFloat
	ArgPointer
)

// ClassifyArg returns how a value of type dt crosses the FFI boundary.
// Primitives pass by value using the matching primitive FFI type (§4.10);
// "non-primitive arguments pass by pointer regardless of source surface
// syntax (value/ref)" — the compiler is responsible for having already
// materialized an address for those, so ClassifyArg only needs dt.Meta to
// decide, never the call site's own value/ref syntax.
func ClassifyArg(dt *types.DataType) ArgClass {
	if dt == nil || !dt.Meta.Primitive {
		return ArgPointer
	}
	if dt.Meta.Floating {
		return ArgFloat
	}
	return ArgInteger
}

// HostToHost invokes a dynamically loaded native function at sym (resolved
// via Library.Symbol), following original_source's call_hostToHost: build
// one flat argument-word buffer classified by type meta, then invoke.
// Unlike the original, no per-function C thunk is generated — purego's
// SyscallN calls the real symbol directly using the platform C calling
// convention, rather than through a hand-emitted `void wrap(call_ctx*,
// Args...)` wrapper.
//
// Floating-point arguments travel as their raw IEEE-754 bit pattern
// reinterpreted as an integer word — a documented simplification: several
// platforms' C ABIs pass floating arguments in a register class distinct
// from the one SyscallN's raw-word signature targets, so a binding whose
// signature mixes several floating arguments with integers should prefer a
// Go-native binding (host.go's Bind) over a raw dylib symbol until this is
// revisited.
func HostToHost(sym uintptr, words []uintptr) uintptr {
	return purego.SyscallN(sym, words...)
}

// BuildArgWords marshals already-reflected argument values into the flat
// uintptr buffer HostToHost expects, in argument order, using classes
// (typically built once per Function.Signature via ClassifyArg over each
// Argument.Type).
func BuildArgWords(values []reflect.Value, classes []ArgClass) ([]uintptr, error) {
	if len(values) != len(classes) {
		return nil, errors.Errorf("ffi: %d argument values for %d classified slots", len(values), len(classes))
	}
	words := make([]uintptr, len(values))
	for i, v := range values {
		switch classes[i] {
		case ArgInteger:
			switch v.Kind() {
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				words[i] = uintptr(v.Int())
			case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
				words[i] = uintptr(v.Uint())
			case reflect.Bool:
				if v.Bool() {
					words[i] = 1
				}
			default:
				return nil, errors.Errorf("ffi: argument %d classified integer but has kind %s", i, v.Kind())
			}
		case ArgFloat:
			words[i] = uintptr(math.Float64bits(v.Float()))
		case ArgPointer:
			words[i] = uintptr(v.Pointer())
		default:
			return nil, errors.Errorf("ffi: argument %d has unknown class %d", i, classes[i])
		}
	}
	return words, nil
}

// argWordToReflect converts one marshalled word back into a reflect.Value of
// the requested Go type, the inverse BuildArgWords needs when a
// script-to-host call is dispatched through a Go-native Binding (host.go)
// rather than a raw dylib symbol, and arguments arrive as register bits from
// internal/vm rather than as already-typed Go values.
func argWordToReflect(bits uint64, isFloat bool, want reflect.Type) reflect.Value {
	switch {
	case isFloat && want.Kind() == reflect.Float32:
		return reflect.ValueOf(float32(math.Float64frombits(bits))).Convert(want)
	case isFloat:
		return reflect.ValueOf(math.Float64frombits(bits)).Convert(want)
	case want.Kind() == reflect.UnsafePointer:
		return reflect.ValueOf(unsafe.Pointer(uintptr(bits)))
	case want.Kind() >= reflect.Uint && want.Kind() <= reflect.Uintptr:
		return reflect.ValueOf(bits).Convert(want)
	default:
		return reflect.ValueOf(int64(bits)).Convert(want)
	}
}
