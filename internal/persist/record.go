package persist

// ModuleHeader is spec.md §6's "Persisted module layout: module header
// {api-version, context-builtin-api-version, module-id, name, path,
// modified-on}".
type ModuleHeader struct {
	APIVersion               int
	ContextBuiltinAPIVersion int
	ModuleID                 uint64
	Name                     string
	Path                     string
	ModifiedOn               int64
}

// ModuleRecord is the top-level persisted form of one Module plus every
// type/function/IR it owns, msgpack-encoded as a single buffer (spec.md
// §4.12/§6).
type ModuleRecord struct {
	Header ModuleHeader

	Types     []TypeRecord
	Functions []FunctionRecord
	DataSlots []DataSlotRecord
	FuncDefs  []FuncDefRecord

	// ModuleTypeIDs/ModuleFunctionIDs list this module's own Types/Functions by id, in
	// Module.Types/Module.Functions order, distinct from Types/Functions
	// above (which is every type/function the *registry* knows about,
	// since cross-module type sharing means not everything a function
	// signature references necessarily belongs to this module).
	ModuleTypeIDs     []uint64
	ModuleFunctionIDs []uint64

	SourceMap SourceMapRecord
}

// ArgumentRecord mirrors types.Argument, with Type resolved to a TypeID.
type ArgumentRecord struct {
	PassKind int
	TypeID   uint64
}

// PropertyRecord mirrors types.Property, with Type/Getter/Setter resolved
// to ids.
type PropertyRecord struct {
	Name       string
	TypeID     uint64
	Offset     int
	Access     int
	Static     bool
	ReadOnly   bool
	WriteOnly  bool
	GetterID   uint64
	SetterID   uint64
}

// EnumValueRecord mirrors types.EnumValue verbatim (no reference fields).
type EnumValueRecord struct {
	Name  string
	Value int64
}

// TypeRecord is the persisted form of one types.DataType. Every
// *DataType-valued field becomes a TypeID (0 meaning nil); every
// *Function-valued field becomes a FunctionID (0 meaning nil).
type TypeRecord struct {
	ID   uint64
	Name string

	Size              int
	POD               bool
	TriviallyCopyable bool
	TriviallyDefault  bool
	TriviallyDestruct bool
	Primitive         bool
	Floating          bool
	Integral          bool
	Unsigned          bool
	Function          bool
	Template          bool
	Alias             bool
	Host              bool
	Anonymous         bool
	HostTypeHash      uint64

	Properties []PropertyRecord
	BaseIDs    []uint64
	MethodIDs  []uint64
	DtorID     uint64

	ReturnTypeID uint64
	Arguments    []ArgumentRecord

	EnumValues []EnumValueRecord

	AliasOfID uint64

	PointeeTypeID uint64
}

// FunctionRecord is the persisted form of one types.Function. HostAddress/
// HostWrapper are deliberately not persisted: those are live-process
// pointers a host re-establishes by calling ffi.Host.Bind again after
// load, not data that survives a byte buffer (spec.md §4.12 only names
// "types, functions (with IR code), source maps" as persisted — host
// bindings are a runtime concern, reattached by whichever Context restores
// the module).
type FunctionRecord struct {
	ID               uint64
	Name             string
	FQN              string
	SignatureTypeID  uint64
	Access           int
	BaseOffset       int
	ThisTypeID       uint64
	ImplicitArgCount int
}

// DataSlotRecord is the persisted form of one types.DataSlot.
type DataSlotRecord struct {
	ID         int
	Name       string
	Size       int
	TypeID     uint64
	Access     int
	Data       []byte
	CtorID     uint64
}

// ValueRecord is the persisted form of one ir.Value.
type ValueRecord struct {
	Kind   int
	TypeID uint64

	Reg int

	ImmKind  int
	ImmInt   int64
	ImmUint  uint64
	ImmF32   float32
	ImmF64   float64
	ImmFuncID uint64
	ImmMod   uint64

	AllocID int

	ModuleID uint64
	SlotID   int

	Flags        int
	StackAllocID int
	SourceLabel  string

	Loc LocationRecord
}

// LocationRecord is the persisted form of one source.Location. Src is not
// persisted per location: Unmarshal rebuilds one ModuleSource from
// SourceMapRecord.SourcePath/SourceText (present when the module was
// persisted with its source) and points every restored Location at it.
// Offset/Line/Column survive either way, so a restored call stack entry can
// still report where in the original text an instruction came from.
type LocationRecord struct {
	Offset, EndOffset   int
	Line, Column        int
	EndLine, EndColumn  int
}

// InstructionRecord is the persisted form of one ir.Instruction.
type InstructionRecord struct {
	Op         int
	Operands   []ValueRecord
	Labels     []int
	Loc        LocationRecord
	CallTargetFunctionID uint64
}

// FuncDefRecord is the persisted form of one ir.FunctionDef: the owning
// function plus its already-register-allocated parameter list, local
// stack slots, and instruction stream (spec.md §6: "function table (with
// IR buffers)"). Persisted IR is post-regalloc — Value.Reg is already a
// physical register index — so reload only needs internal/vm.Assemble, not
// a full re-optimize/re-allocate pass, to reach a runnable Program.
type FuncDefRecord struct {
	FunctionID   uint64
	Params       []ValueRecord
	Locals       []ValueRecord
	Instructions []InstructionRecord
}

// SourceMapRecord is the persisted form of SourceMap (spec.md §4.12's
// "source maps"; SPEC_FULL.md §4 names it concretely as
// internal/persist.SourceMap).
type SourceMapRecord struct {
	SourcePath string
	SourceText string
	Entries    []SourceMapEntryRecord
}

// SourceMapEntryRecord ties one instruction (identified by owning function
// and its index within that function's FuncDefRecord.Instructions) back to
// the Location it was compiled from.
type SourceMapEntryRecord struct {
	FunctionID  uint64
	InstrIndex  int
	Loc         LocationRecord
}
