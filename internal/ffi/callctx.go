// Package ffi implements spec.md §4.10's host<->script boundary: host-to-
// host calls through a dynamically loaded library, host-to-script calls by
// driving internal/vm directly, script-to-host calls dispatched as a
// vm.HostCall hook, and the reference-counted Closure (§3) captured
// functions are bound into.
//
// The teacher has no FFI layer of its own (go-vslc lowers straight to a
// native binary with no embedding surface), so this package is grounded
// directly on original_source/include/tsn/bind/call_host_to_host.hpp's
// call_context shape and original_source/include/gjs/builtin/script_dylib.h's
// dlopen/import surface, rewritten the way the rest of this module adapts
// the teacher's idiom: small single-purpose files, errors wrapped with
// github.com/pkg/errors at the package boundary. FFI failures are returned
// as errors; this package does no logging of its own.
package ffi

import (
	"unsafe"

	"github.com/mattn/go-pointer"

	"github.com/tsnlang/tsn/internal/exec"
)

// CallContext is the Go-side bookkeeping analogue of the original's
// call_context{ectx, funcPtr, retPtr, thisPtr, capturePtr}: unlike the C++
// original, this package never hand-generates a per-function C thunk with
// that exact hidden-struct calling convention (purego.SyscallN invokes the
// real bound symbol directly with its own argument list), so CallContext
// carries the same bookkeeping purely on the Go side, threaded alongside
// the argument marshalling in marshal.go rather than passed across the FFI
// boundary as a literal struct pointer.
type CallContext struct {
	Exec      *exec.ExecutionContext
	FuncPtr   unsafe.Pointer
	RetPtr    unsafe.Pointer
	ThisPtr   unsafe.Pointer
	CapturePtr unsafe.Pointer
}

// PinExecContext pins ec behind an opaque handle safe to hand to a bound
// host function expecting a context_ptr argument (types.ArgContextPtr,
// spec.md §3's ArgPassKind), the Go-safe analogue of the original's raw
// `tsn::Context*`/`call_ctx*` crossing the FFI boundary
// (original_source/include/tsn/bind/call_host_to_host.hpp). The caller must
// Unpin the returned handle once the call using it has returned; pinned
// values are not released automatically, since go-pointer has no GC finalizer
// hook into a value it merely holds a reference to.
func PinExecContext(ec *exec.ExecutionContext) unsafe.Pointer {
	return pointer.Save(ec)
}

// RestoreExecContext recovers the *exec.ExecutionContext a PinExecContext
// handle was created from. Panics (via a failed type assertion) if p was not
// produced by PinExecContext — the same contract go-pointer itself documents
// for Restore.
func RestoreExecContext(p unsafe.Pointer) *exec.ExecutionContext {
	return pointer.Restore(p).(*exec.ExecutionContext)
}

// Unpin releases a handle obtained from PinExecContext or from binding a Go
// value via pointer.Save elsewhere in this package (Binding registrations in
// host.go). Safe to call once per
// Save; calling it twice on the same handle double-frees go-pointer's
// internal registry entry.
func Unpin(p unsafe.Pointer) {
	pointer.Unref(p)
}
