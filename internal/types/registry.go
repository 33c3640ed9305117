package types

import (
	"fmt"
	"sync"
)

// TypeRegistry is the global, per-Context registry of DataTypes named in
// spec.md §2 row 3. Types are looked up by fully-qualified name or by id;
// both assignments are stable once made, and reads during execution see a
// stable snapshot because the registry is only appended to during
// compilation (spec.md §5 "Shared resources").
type TypeRegistry struct {
	mu      sync.RWMutex
	byID    map[TypeID]*DataType
	byName  map[string]*DataType
	nextAux uint64 // disambiguates anonymous/template-instantiation collisions
}

// NewTypeRegistry creates an empty TypeRegistry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{byID: map[TypeID]*DataType{}, byName: map[string]*DataType{}}
}

// Declare inserts an incomplete placeholder DataType identified by name,
// breaking cyclic references per spec.md §9: "types are first inserted into
// the registry as incomplete placeholders identified by type_id, then filled
// in." If name is already registered, the existing (possibly still
// incomplete) DataType is returned instead of a duplicate.
func (r *TypeRegistry) Declare(name string) *DataType {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dt, ok := r.byName[name]; ok {
		return dt
	}
	id := TypeID(HashName(name))
	dt := &DataType{ID: id, Name: name}
	r.byID[id] = dt
	r.byName[name] = dt
	return dt
}

// Complete fills in a previously Declared placeholder's definition in place,
// preserving its ID and any pointers other code already holds to it (the
// indirection spec.md §9 relies on to break type cycles).
func (r *TypeRegistry) Complete(dt *DataType, meta Meta, properties []Property, bases []*DataType, methods []*Function, dtor *Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dt.Meta = meta
	dt.Properties = properties
	dt.Bases = bases
	dt.Methods = methods
	dt.Destructor = dtor
	dt.complete = true
}

// ByName looks up a DataType by its fully-qualified name.
func (r *TypeRegistry) ByName(name string) (*DataType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dt, ok := r.byName[name]
	return dt, ok
}

// ByID looks up a DataType by id.
func (r *TypeRegistry) ByID(id TypeID) (*DataType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dt, ok := r.byID[id]
	return dt, ok
}

// AnonymousName mints a unique anonymous type name, e.g. for inline function
// signature types created on the fly (spec.md §3 DataType Meta.Anonymous).
func (r *TypeRegistry) AnonymousName(prefix string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextAux++
	return fmt.Sprintf("$%s$%d", prefix, r.nextAux)
}

// Signature registers (or reuses) the anonymous function-signature DataType
// for the given return type and arguments, per spec.md §3: "for function
// signatures: return type, argument list {arg_type, DataType*}".
func (r *TypeRegistry) Signature(ret *DataType, args []Argument) *DataType {
	name := signatureName(ret, args)
	r.mu.Lock()
	if dt, ok := r.byName[name]; ok {
		r.mu.Unlock()
		return dt
	}
	r.mu.Unlock()
	dt := r.Declare(name)
	r.Complete(dt, Meta{Function: true, Size: int(unsafeSizePointer)}, nil, nil, nil, nil)
	dt.ReturnType = ret
	dt.Arguments = args
	return dt
}

const unsafeSizePointer = 8

func signatureName(ret *DataType, args []Argument) string {
	s := "(" + ret.Name + ")("
	for i, a := range args {
		if i > 0 {
			s += ","
		}
		s += a.Type.Name
	}
	return s + ")"
}

// All returns every registered DataType, for persistence (spec.md §4.12).
func (r *TypeRegistry) All() []*DataType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*DataType, 0, len(r.byID))
	for _, dt := range r.byID {
		out = append(out, dt)
	}
	return out
}

// FunctionRegistry is the global, per-Context registry of Functions, named
// in spec.md §2 row 3; function_id maps 1:1 to an index here (spec.md §3
// invariants).
type FunctionRegistry struct {
	mu   sync.RWMutex
	byID map[FunctionID]*Function
	byFQ map[string][]*Function // overload set per fully-qualified name
	list []*Function            // insertion order == index, for persistence fixups
}

// NewFunctionRegistry creates an empty FunctionRegistry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{byID: map[FunctionID]*Function{}, byFQ: map[string][]*Function{}}
}

// Register assigns f a stable id (if it doesn't have one) and inserts it.
func (r *FunctionRegistry) Register(f *Function) FunctionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f.ID == 0 {
		f.ID = FunctionID(HashName(f.FQN)) ^ FunctionID(len(r.list))<<48
	}
	r.byID[f.ID] = f
	r.byFQ[f.FQN] = append(r.byFQ[f.FQN], f)
	r.list = append(r.list, f)
	return f.ID
}

// ByID looks up a Function by id.
func (r *FunctionRegistry) ByID(id FunctionID) (*Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byID[id]
	return f, ok
}

// Overloads returns every Function registered under fqn, in registration order.
func (r *FunctionRegistry) Overloads(fqn string) []*Function {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Function, len(r.byFQ[fqn]))
	copy(out, r.byFQ[fqn])
	return out
}

// Index returns f's position in registration order, used to rebuild the 1:1
// function_id<->index mapping on persistence restore (spec.md §4.12).
func (r *FunctionRegistry) Index(f *Function) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, g := range r.list {
		if g == f {
			return i
		}
	}
	return -1
}

// All returns every registered Function in registration order.
func (r *FunctionRegistry) All() []*Function {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Function, len(r.list))
	copy(out, r.list)
	return out
}
