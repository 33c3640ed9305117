package exec

import "context"

// ctxKey is the unexported context.Context key an ExecutionContext is
// stored under, following the standard library's own key-type idiom to
// avoid collisions with other packages' context values.
type ctxKey struct{}

// WithContext returns a copy of parent carrying ec as the current
// ExecutionContext. Nesting calls (a script call triggers a host callback
// which calls back into script on the same goroutine) naturally forms the
// "stack of execution contexts" spec.md §4.11 describes: each reentrant
// call wraps the previous context.Context, and FromContext always resolves
// to the innermost one in scope, with the outer one automatically back in
// scope once the inner call returns — context.Context's own parent chain
// does the push/pop bookkeeping a manual stack would otherwise need.
func WithContext(parent context.Context, ec *ExecutionContext) context.Context {
	return context.WithValue(parent, ctxKey{}, ec)
}

// FromContext retrieves the current ExecutionContext, if ctx (or one of its
// ancestors) was built with WithContext.
func FromContext(ctx context.Context) (*ExecutionContext, bool) {
	ec, ok := ctx.Value(ctxKey{}).(*ExecutionContext)
	return ec, ok
}
