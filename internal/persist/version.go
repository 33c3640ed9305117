// Package persist implements spec.md §4.12/§6's module (de)serialization:
// "compiled modules can be written to a byte buffer and restored: types,
// functions (with IR code), source maps ... all implement a serialize/
// deserialize contract. On deserialize, type_id and function_id references
// are fixed up via a map from serialized id to the live object in the
// current registry. A mismatch in the host-API version invalidates the
// cache."
//
// The teacher (go-vslc) never persists anything — it lowers straight to a
// native binary — so this package is grounded on the original's own
// motivation for a custom wire format (`original_source/_deps/utils/
// include/utils/Buffer.h`'s raw serialize/deserialize byte buffer), adopting
// msgpack as the idiomatic Go replacement for that hand-rolled format
// (SPEC_FULL.md §2).
package persist

// APIVersion is bumped whenever this package's wire format changes
// incompatibly. ModuleHeader.APIVersion is compared against it on load;
// a mismatch means "recompile from source" (spec.md §4.12).
const APIVersion = 1

// ContextBuiltinAPIVersion is bumped whenever the set of builtin-bound
// types/functions a host Context registers before compiling user scripts
// changes incompatibly (spec.md §6 module header: "context-builtin-api-
// version"). A persisted module compiled against an older builtin surface
// is invalidated even if APIVersion itself still matches, since type/
// function ids computed from builtin names may have shifted meaning.
const ContextBuiltinAPIVersion = 1

// VersionError reports that a persisted module's header doesn't match this
// build's API versions, per spec.md §4.12: "A mismatch in the host-API
// version invalidates the cache" (the caller's documented response is to
// recompile from source, not to attempt a partial/best-effort load).
type VersionError struct {
	GotAPIVersion, WantAPIVersion                 int
	GotBuiltinVersion, WantBuiltinVersion int
}

func (e *VersionError) Error() string {
	return "persist: version mismatch (recompile from source required)"
}

func checkVersion(h *ModuleHeader) error {
	if h.APIVersion != APIVersion || h.ContextBuiltinAPIVersion != ContextBuiltinAPIVersion {
		return &VersionError{
			GotAPIVersion: h.APIVersion, WantAPIVersion: APIVersion,
			GotBuiltinVersion: h.ContextBuiltinAPIVersion, WantBuiltinVersion: ContextBuiltinAPIVersion,
		}
	}
	return nil
}
