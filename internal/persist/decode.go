package persist

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tsnlang/tsn/internal/ir"
	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/types"
)

// Restored is everything Unmarshal rebuilds from a persisted buffer: a
// live Module plus the TypeRegistry/FunctionRegistry entries it references
// and the register-allocated FunctionDefs ready for internal/vm.Assemble.
type Restored struct {
	Module    *types.Module
	TypeReg   *types.TypeRegistry
	FuncReg   *types.FunctionRegistry
	FuncDefs  map[*types.Function]*ir.FunctionDef // ready for internal/vm.Assemble
	SourceMap *SourceMap
}

// Unmarshal restores a module from data previously produced by Marshal,
// into the given (possibly already-populated, e.g. by host bindings
// registered ahead of time) registries. type_id/function_id references
// embedded in data are fixed up against reg/funcs by first inserting every
// persisted type/function as a placeholder keyed by its persisted id, then
// resolving every cross-reference against that map — the "map from
// serialized id to the live object in the current registry" spec.md §4.12
// calls for.
//
// Returns *VersionError (see version.go) if data's header doesn't match
// this build's APIVersion/ContextBuiltinAPIVersion; the caller's documented
// response is to recompile from source, not attempt a partial load.
func Unmarshal(data []byte, reg *types.TypeRegistry, funcs *types.FunctionRegistry) (*Restored, error) {
	var rec ModuleRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, "persist: decoding module")
	}
	if err := checkVersion(&rec.Header); err != nil {
		return nil, err
	}

	typesByID := map[uint64]*types.DataType{}
	// Pass 1: declare every type by its persisted name so TypeID (derived
	// deterministically from the name via types.HashName) lines up with
	// what was serialized, then index it by its *persisted* id too, in
	// case a host-bound or anonymous type's id doesn't simply equal
	// HashName(Name) in this registry's current state.
	for _, tr := range rec.Types {
		dt := reg.Declare(tr.Name)
		typesByID[tr.ID] = dt
	}
	funcsByID := map[uint64]*types.Function{}
	for _, fr := range rec.Functions {
		fn := &types.Function{ID: types.FunctionID(fr.ID), Name: fr.Name, FQN: fr.FQN}
		funcsByID[fr.ID] = fn
	}

	// Pass 2: fill in every type's definition now that both tables are
	// fully populated and can resolve each other's cross-references.
	for _, tr := range rec.Types {
		dt := typesByID[tr.ID]
		meta := types.Meta{
			Size: tr.Size, POD: tr.POD, TriviallyCopyable: tr.TriviallyCopyable,
			TriviallyDefault: tr.TriviallyDefault, TriviallyDestruct: tr.TriviallyDestruct,
			Primitive: tr.Primitive, Floating: tr.Floating, Integral: tr.Integral, Unsigned: tr.Unsigned,
			Function: tr.Function, Template: tr.Template, Alias: tr.Alias, Host: tr.Host,
			Anonymous: tr.Anonymous, HostTypeHash: tr.HostTypeHash,
		}
		var props []types.Property
		for _, pr := range tr.Properties {
			props = append(props, types.Property{
				Name: pr.Name, Type: typesByID[pr.TypeID], Offset: pr.Offset,
				Access: types.Access(pr.Access), Static: pr.Static, ReadOnly: pr.ReadOnly, WriteOnly: pr.WriteOnly,
				Getter: funcsByID[pr.GetterID], Setter: funcsByID[pr.SetterID],
			})
		}
		var bases []*types.DataType
		for _, id := range tr.BaseIDs {
			bases = append(bases, typesByID[id])
		}
		var methods []*types.Function
		for _, id := range tr.MethodIDs {
			methods = append(methods, funcsByID[id])
		}
		reg.Complete(dt, meta, props, bases, methods, funcsByID[tr.DtorID])
		dt.ReturnType = typesByID[tr.ReturnTypeID]
		dt.AliasOf = typesByID[tr.AliasOfID]
		dt.PointeeType = typesByID[tr.PointeeTypeID]
		for _, ar := range tr.Arguments {
			dt.Arguments = append(dt.Arguments, types.Argument{PassKind: types.ArgPassKind(ar.PassKind), Type: typesByID[ar.TypeID]})
		}
		for _, evr := range tr.EnumValues {
			dt.EnumValues = append(dt.EnumValues, types.EnumValue{Name: evr.Name, Value: evr.Value})
		}
	}

	// Pass 3: fill in every function's signature/this-type and register it.
	for _, fr := range rec.Functions {
		fn := funcsByID[fr.ID]
		fn.Signature = typesByID[fr.SignatureTypeID]
		fn.Access = types.Access(fr.Access)
		fn.BaseOffset = fr.BaseOffset
		fn.This = typesByID[fr.ThisTypeID]
		fn.ImplicitArgCount = fr.ImplicitArgCount
		funcs.Register(fn)
	}

	mod := types.NewModule(rec.Header.Name, rec.Header.Path)
	mod.ID = rec.Header.ModuleID
	mod.ModifiedOn = rec.Header.ModifiedOn
	for _, id := range rec.ModuleTypeIDs {
		if dt := typesByID[id]; dt != nil {
			mod.AddType(dt)
		}
	}
	for _, id := range rec.ModuleFunctionIDs {
		if fn := funcsByID[id]; fn != nil {
			mod.AddFunction(fn)
		}
	}
	for _, sr := range rec.DataSlots {
		slot := mod.AddDataSlot(sr.Name, typesByID[sr.TypeID], types.Access(sr.Access), funcsByID[sr.CtorID])
		copy(slot.Data, sr.Data)
	}

	var src *source.ModuleSource
	if rec.SourceMap.SourcePath != "" || rec.SourceMap.SourceText != "" {
		src = source.New(rec.SourceMap.SourcePath, rec.SourceMap.SourceText)
	}
	sm := NewSourceMap(src)
	for _, e := range rec.SourceMap.Entries {
		sm.Record(e.FunctionID, e.InstrIndex, recordToLocation(src, e.Loc))
	}

	defs := map[*types.Function]*ir.FunctionDef{}
	for _, fdr := range rec.FuncDefs {
		fn := funcsByID[fdr.FunctionID]
		if fn == nil {
			return nil, errors.Errorf("persist: FuncDefRecord references unknown function id %d", fdr.FunctionID)
		}
		fd := ir.NewFunctionDef(fn)
		for _, pr := range fdr.Params {
			fd.Params = append(fd.Params, recordToValue(pr, typesByID, funcsByID, src))
		}
		for _, lr := range fdr.Locals {
			fd.Locals = append(fd.Locals, recordToValue(lr, typesByID, funcsByID, src))
		}
		for _, insr := range fdr.Instructions {
			fd.Emit(recordToInstruction(insr, typesByID, funcsByID, src))
		}
		defs[fn] = fd
	}

	return &Restored{Module: mod, TypeReg: reg, FuncReg: funcs, FuncDefs: defs, SourceMap: sm}, nil
}

func recordToValue(r ValueRecord, typesByID map[uint64]*types.DataType, funcsByID map[uint64]*types.Function, src *source.ModuleSource) ir.Value {
	return ir.Value{
		Kind: ir.ValueKind(r.Kind), Type: typesByID[r.TypeID],
		Reg:          r.Reg,
		ImmKind:      ir.ImmediateKind(r.ImmKind),
		ImmInt:       r.ImmInt,
		ImmUint:      r.ImmUint,
		ImmF32:       r.ImmF32,
		ImmF64:       r.ImmF64,
		ImmFunc:      funcsByID[r.ImmFuncID],
		ImmMod:       r.ImmMod,
		AllocID:      r.AllocID,
		ModuleID:     r.ModuleID,
		SlotID:       r.SlotID,
		Flags:        ir.ValueFlags(r.Flags),
		StackAllocID: r.StackAllocID,
		SourceLabel:  r.SourceLabel,
		Loc:          recordToLocation(src, r.Loc),
	}
}

func recordToInstruction(r InstructionRecord, typesByID map[uint64]*types.DataType, funcsByID map[uint64]*types.Function, src *source.ModuleSource) ir.Instruction {
	ins := ir.Instruction{
		Op:  ir.Op(r.Op),
		Loc: recordToLocation(src, r.Loc),
	}
	for i, opr := range r.Operands {
		if i >= 3 {
			break
		}
		ins.Operands[i] = recordToValue(opr, typesByID, funcsByID, src)
	}
	ins.NumOps = len(r.Operands)
	for i, l := range r.Labels {
		if i >= 3 {
			break
		}
		ins.Labels[i] = l
	}
	ins.NumLabels = len(r.Labels)
	if r.CallTargetFunctionID != 0 {
		ins.CallTarget = funcsByID[r.CallTargetFunctionID]
	}
	return ins
}
