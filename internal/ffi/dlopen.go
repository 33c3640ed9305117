package ffi

import (
	"github.com/ebitengine/purego"
	"github.com/pkg/errors"
)

// Library is a dynamically loaded native library bound functions can be
// resolved from, grounded on original_source/include/gjs/builtin/
// script_dylib.h's script_dylib::try_load/try_import surface — the original
// rolls its own per-platform LoadLibrary/dlopen split, which purego already
// abstracts uniformly across platforms.
type Library struct {
	path   string
	handle uintptr
}

// Open loads the native library at path. Failure here is the "dynamic
// library load" runtime error category of spec.md §7.
func Open(path string) (*Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, errors.Wrapf(err, "ffi: opening library %q", path)
	}
	return &Library{path: path, handle: handle}, nil
}

// Symbol resolves a single exported function's address, the "function
// lookup failure" half of spec.md §7's dynamic-library error category
// (script_dylib::try_import's analogue).
func (l *Library) Symbol(name string) (uintptr, error) {
	addr, err := purego.Dlsym(l.handle, name)
	if err != nil {
		return 0, errors.Wrapf(err, "ffi: resolving symbol %q in %q", name, l.path)
	}
	return addr, nil
}
