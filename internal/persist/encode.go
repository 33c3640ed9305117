package persist

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tsnlang/tsn/internal/ir"
	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/types"
)

// Marshal serializes mod's own types/functions/data-slots plus the
// register-allocated IR in defs (one *ir.FunctionDef per script function
// mod owns) into a single msgpack-encoded buffer, per spec.md §4.12/§6.
// src, if non-nil, is embedded so a restored module's SourceMap can still
// report line/column text (Src.Line/Text helpers); pass nil when the
// source text itself shouldn't be bundled into the persisted artifact.
func Marshal(mod *types.Module, reg *types.TypeRegistry, funcs *types.FunctionRegistry, defs map[*types.Function]*ir.FunctionDef, src *source.ModuleSource) ([]byte, error) {
	rec := ModuleRecord{
		Header: ModuleHeader{
			APIVersion:               APIVersion,
			ContextBuiltinAPIVersion: ContextBuiltinAPIVersion,
			ModuleID:                 mod.ID,
			Name:                     mod.Name,
			Path:                     mod.Path,
			ModifiedOn:               mod.ModifiedOn,
		},
	}

	for _, dt := range reg.All() {
		rec.Types = append(rec.Types, typeToRecord(dt))
	}
	for _, fn := range funcs.All() {
		rec.Functions = append(rec.Functions, functionToRecord(fn))
	}
	for _, slot := range mod.DataSlots {
		rec.DataSlots = append(rec.DataSlots, dataSlotToRecord(slot))
	}
	for _, t := range mod.Types {
		rec.ModuleTypeIDs = append(rec.ModuleTypeIDs, uint64(t.ID))
	}
	for _, f := range mod.Functions {
		rec.ModuleFunctionIDs = append(rec.ModuleFunctionIDs, uint64(f.ID))
	}

	rec.SourceMap.Entries = nil
	if src != nil {
		rec.SourceMap.SourcePath = src.Path()
		rec.SourceMap.SourceText = src.Text()
	}
	for fn, fd := range defs {
		fnID := uint64(fn.ID)
		fdr := FuncDefRecord{FunctionID: fnID}
		for _, p := range fd.Params {
			fdr.Params = append(fdr.Params, valueToRecord(p))
		}
		for _, l := range fd.Locals {
			fdr.Locals = append(fdr.Locals, valueToRecord(l))
		}
		for i, ins := range fd.Code.Instructions {
			fdr.Instructions = append(fdr.Instructions, instructionToRecord(ins))
			if ins.Loc.Src != nil {
				rec.SourceMap.Entries = append(rec.SourceMap.Entries, SourceMapEntryRecord{
					FunctionID: fnID, InstrIndex: i, Loc: locationToRecord(ins.Loc),
				})
			}
		}
		rec.FuncDefs = append(rec.FuncDefs, fdr)
	}

	data, err := msgpack.Marshal(&rec)
	if err != nil {
		return nil, errors.Wrap(err, "persist: encoding module")
	}
	return data, nil
}

func typeToRecord(dt *types.DataType) TypeRecord {
	r := TypeRecord{
		ID: uint64(dt.ID), Name: dt.Name,
		Size: dt.Meta.Size, POD: dt.Meta.POD,
		TriviallyCopyable: dt.Meta.TriviallyCopyable,
		TriviallyDefault:  dt.Meta.TriviallyDefault,
		TriviallyDestruct: dt.Meta.TriviallyDestruct,
		Primitive:         dt.Meta.Primitive,
		Floating:          dt.Meta.Floating,
		Integral:          dt.Meta.Integral,
		Unsigned:          dt.Meta.Unsigned,
		Function:          dt.Meta.Function,
		Template:          dt.Meta.Template,
		Alias:             dt.Meta.Alias,
		Host:              dt.Meta.Host,
		Anonymous:         dt.Meta.Anonymous,
		HostTypeHash:      dt.Meta.HostTypeHash,
		DtorID:            functionIDOf(dt.Destructor),
		ReturnTypeID:      typeIDOf(dt.ReturnType),
		AliasOfID:         typeIDOf(dt.AliasOf),
		PointeeTypeID:     typeIDOf(dt.PointeeType),
	}
	for _, p := range dt.Properties {
		r.Properties = append(r.Properties, PropertyRecord{
			Name: p.Name, TypeID: typeIDOf(p.Type), Offset: p.Offset,
			Access: int(p.Access), Static: p.Static, ReadOnly: p.ReadOnly, WriteOnly: p.WriteOnly,
			GetterID: functionIDOf(p.Getter), SetterID: functionIDOf(p.Setter),
		})
	}
	for _, b := range dt.Bases {
		r.BaseIDs = append(r.BaseIDs, uint64(b.ID))
	}
	for _, m := range dt.Methods {
		r.MethodIDs = append(r.MethodIDs, uint64(m.ID))
	}
	for _, a := range dt.Arguments {
		r.Arguments = append(r.Arguments, ArgumentRecord{PassKind: int(a.PassKind), TypeID: typeIDOf(a.Type)})
	}
	for _, ev := range dt.EnumValues {
		r.EnumValues = append(r.EnumValues, EnumValueRecord{Name: ev.Name, Value: ev.Value})
	}
	return r
}

func functionToRecord(fn *types.Function) FunctionRecord {
	return FunctionRecord{
		ID: uint64(fn.ID), Name: fn.Name, FQN: fn.FQN,
		SignatureTypeID:  typeIDOf(fn.Signature),
		Access:           int(fn.Access),
		BaseOffset:       fn.BaseOffset,
		ThisTypeID:       typeIDOf(fn.This),
		ImplicitArgCount: fn.ImplicitArgCount,
	}
}

func dataSlotToRecord(slot *types.DataSlot) DataSlotRecord {
	return DataSlotRecord{
		ID: slot.ID, Name: slot.Name, Size: slot.Size,
		TypeID: typeIDOf(slot.Type), Access: int(slot.Access),
		Data: append([]byte(nil), slot.Data...),
	}
}

func valueToRecord(v ir.Value) ValueRecord {
	return ValueRecord{
		Kind: int(v.Kind), TypeID: typeIDOf(v.Type),
		Reg:          v.Reg,
		ImmKind:      int(v.ImmKind),
		ImmInt:       v.ImmInt,
		ImmUint:      v.ImmUint,
		ImmF32:       v.ImmF32,
		ImmF64:       v.ImmF64,
		ImmFuncID:    functionIDOf(v.ImmFunc),
		ImmMod:       v.ImmMod,
		AllocID:      v.AllocID,
		ModuleID:     v.ModuleID,
		SlotID:       v.SlotID,
		Flags:        int(v.Flags),
		StackAllocID: v.StackAllocID,
		SourceLabel:  v.SourceLabel,
		Loc:          locationToRecord(v.Loc),
	}
}

func instructionToRecord(ins ir.Instruction) InstructionRecord {
	r := InstructionRecord{
		Op:   int(ins.Op),
		Loc:  locationToRecord(ins.Loc),
	}
	for i := 0; i < ins.NumOps; i++ {
		r.Operands = append(r.Operands, valueToRecord(ins.Operands[i]))
	}
	for i := 0; i < ins.NumLabels; i++ {
		r.Labels = append(r.Labels, ins.Labels[i])
	}
	if fn, ok := ins.CallTarget.(*types.Function); ok && fn != nil {
		r.CallTargetFunctionID = uint64(fn.ID)
	}
	return r
}

func typeIDOf(dt *types.DataType) uint64 {
	if dt == nil {
		return 0
	}
	return uint64(dt.ID)
}

func functionIDOf(fn *types.Function) uint64 {
	if fn == nil {
		return 0
	}
	return uint64(fn.ID)
}
