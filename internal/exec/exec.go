// Package exec implements the ExecutionContext of spec.md §4.11: a
// per-thread stack of execution states the VM and host FFI wrapper push and
// pop around every script entry point, carrying exception state and a call
// stack for diagnostics raised while a script is running.
//
// The teacher has no runtime of its own (it only ever emits native assembly
// for ahead-of-time linking), so there is no direct teacher analog for this
// package; it is grounded on internal/diag's Logger instead — both are an
// accumulator of severity-tagged state threaded through a call chain — but
// where diag.Logger accumulates compile-time diagnostics across an entire
// module, ExecutionContext tracks the single live exception (if any) of one
// script call, matching spec.md's "raiseException .. unwinds" semantics
// rather than diag's "keep going, report everything at the end" policy.
package exec

import (
	"sync"

	"github.com/google/uuid"

	"github.com/tsnlang/tsn/internal/source"
)

// ExecutionContext is one entry in a thread's execution-context stack,
// spec.md §4.11. Every field is guarded by mu since a host function may
// read hasException/getMessage from a different goroutine than the one
// driving the VM loop that raised it (e.g. a logging sink).
type ExecutionContext struct {
	mu sync.Mutex

	id        uuid.UUID
	exception bool
	message   string
	callStack []source.Location
}

// New creates a fresh ExecutionContext with no exception and an empty call
// stack, tagged with a unique id for cross-referencing in logs and
// persistence dumps.
func New() *ExecutionContext {
	return &ExecutionContext{id: uuid.New()}
}

// ID returns ec's unique identifier.
func (ec *ExecutionContext) ID() uuid.UUID { return ec.id }

// RaiseException sets the exception bit and appends src to the call stack,
// per spec.md §4.11: "raiseException(msg, src) sets the exception bit on
// the top context, appends src to the call stack, and unwinds." Unwinding
// itself is the VM loop's job (it checks HasException after every
// instruction that can fail and exits on true); this method only records
// state.
func (ec *ExecutionContext) RaiseException(msg string, src source.Location) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.exception = true
	ec.message = msg
	ec.callStack = append(ec.callStack, src)
}

// PushFrame records a call-site location without raising an exception, used
// by the VM's call/return handling to keep an accurate call stack available
// if a later instruction does raise.
func (ec *ExecutionContext) PushFrame(src source.Location) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.callStack = append(ec.callStack, src)
}

// PopFrame removes the most recently pushed call-site location, mirroring a
// script function's return.
func (ec *ExecutionContext) PopFrame() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if n := len(ec.callStack); n > 0 {
		ec.callStack = ec.callStack[:n-1]
	}
}

// HasException reports whether this context currently carries a live,
// unhandled exception.
func (ec *ExecutionContext) HasException() bool {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.exception
}

// Message returns the raised exception's message, or "" if none.
func (ec *ExecutionContext) Message() string {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.message
}

// CallStack returns a copy of the accumulated call-site locations, deepest
// call last.
func (ec *ExecutionContext) CallStack() []source.Location {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return append([]source.Location(nil), ec.callStack...)
}

// Clear resets the exception bit and message, e.g. once the host has
// observed and handled an exception and wants to reuse the context for a
// further call on the same thread.
func (ec *ExecutionContext) Clear() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.exception = false
	ec.message = ""
}
