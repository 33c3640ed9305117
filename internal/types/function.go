package types

import "unsafe"

// Function is the registry's description of one script or host function,
// matching spec.md §3 verbatim: "{id, name, fully-qualified-name,
// FunctionType*, access, host-address, host-wrapper-address}".
type Function struct {
	ID         FunctionID
	Name       string
	FQN        string
	Signature  *DataType // Meta.Function == true
	Access     Access

	// HostAddress is non-nil for functions bound from the host; HostWrapper
	// is the generated thunk address used for script-to-host calls (spec.md
	// §4.10). A script-only function has both nil; a bound host function
	// must have both set, since a wrapper is how the VM invokes it.
	HostAddress unsafe.Pointer
	HostWrapper unsafe.Pointer

	// BaseOffset is the `this` adjustment applied when this method is called
	// through a base-class reference (spec.md §3).
	BaseOffset int

	// This distinguishes methods from free functions; it is nil for free
	// functions.
	This *DataType

	// Implicit argument count: number of leading Signature.Arguments entries
	// that are elided from user-visible call sites (context pointer, `this`).
	ImplicitArgCount int
}

// IsScript reports whether f has script-emitted IR (no host address).
func (f *Function) IsScript() bool { return f.HostAddress == nil }

// IsHost reports whether f is implemented by the host.
func (f *Function) IsHost() bool { return f.HostAddress != nil }

// Valid reports whether f's host fields are consistent: a function with no
// host address is a script function and is valid with or without a wrapper;
// a function with a host address is valid only if it also has a wrapper.
func (f *Function) Valid() bool {
	if f.HostAddress == nil {
		return true // pure script function, wrapper optional
	}
	return f.HostWrapper != nil
}
