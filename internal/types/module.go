package types

import "sync"

// DataSlot is a module-global storage cell (spec.md §3 Module: "Data slots
// are {pointer, size, type, access, name} and represent module-global
// storage; lifetime = module lifetime").
type DataSlot struct {
	ID     int
	Name   string
	Size   int
	Type   *DataType
	Access Access
	Data   []byte // raw backing storage, owned by the Module

	ctor *Function // constructor run when the slot is initialized, if any
}

// Module is the scoped container named in spec.md §2 row 4 / §3: "{id=hash(path),
// name, path, script-metadata, data-slots[], functions[], types[]}".
type Module struct {
	mu sync.Mutex

	ID            uint64
	Name          string
	Path          string
	ModifiedOn    int64
	DataSlots     []*DataSlot
	Functions     []*Function
	Types         []*DataType

	destroyed bool
}

// NewModule creates a Module whose ID is derived from path per spec.md §3
// ("id=hash(path)").
func NewModule(name, path string) *Module {
	return &Module{ID: HashName(path), Name: name, Path: path}
}

// AddDataSlot appends a new module-global storage cell and returns it.
func (m *Module) AddDataSlot(name string, dt *DataType, access Access, ctor *Function) *DataSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot := &DataSlot{
		ID: len(m.DataSlots), Name: name, Size: dt.Meta.Size, Type: dt, Access: access,
		Data: make([]byte, dt.Meta.Size), ctor: ctor,
	}
	m.DataSlots = append(m.DataSlots, slot)
	return slot
}

// Slot returns the data slot at index i, or nil if out of range.
func (m *Module) Slot(i int) *DataSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.DataSlots) {
		return nil
	}
	return m.DataSlots[i]
}

// AddFunction registers a function as belonging to this module.
func (m *Module) AddFunction(f *Function) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Functions = append(m.Functions, f)
}

// AddType registers a type as belonging to this module.
func (m *Module) AddType(t *DataType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Types = append(m.Types, t)
}

// Destroy runs each data slot's destructor in reverse declaration order and
// marks the module destroyed (spec.md §3: "destructors run on module
// destruction in reverse order"; §5 ownership policy). runDtor is supplied
// by the VM/FFI layer since Module itself has no execution capability.
func (m *Module) Destroy(runDtor func(fn *Function, addr []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}
	for i := len(m.DataSlots) - 1; i >= 0; i-- {
		slot := m.DataSlots[i]
		if slot.ctor != nil && slot.Type.Destructor != nil {
			runDtor(slot.Type.Destructor, slot.Data)
		}
	}
	m.destroyed = true
}

// Destroyed reports whether Destroy has already run.
func (m *Module) Destroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}
