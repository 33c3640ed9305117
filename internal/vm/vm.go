package vm

import (
	"context"
	"fmt"
	"math"

	"github.com/tsnlang/tsn/internal/exec"
	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/types"
)

// HostCall is the extension point internal/ffi installs to dispatch a host
// function: by the time it's invoked, the callee's arguments already sit in
// a0..a7/fa0..fa7 exactly as a script callee would find them (spec.md
// §4.10: "marshal each host argument into the VM's argument registers").
// The hook returns the raw result bits and whether they're floating; the VM
// places them into v0/vf0 itself, so HostCall never touches the calling
// convention directly.
type HostCall func(ctx context.Context, v *VM, fn *types.Function) (result uint64, isFloat bool, err error)

// frame is one entry of the VM's call stack: enough to resume the caller
// when the callee returns.
type frame struct {
	returnIP   int
	callerBase int
	frameSize  int64
	isEntry    bool // true for the synthetic frame CallScript pushes (host->script entry)
}

// VM is one single-threaded execution state over an assembled Program
// (spec.md §4.9: "Single-threaded execution per VM state; multiple VM
// states may share one assembled Program"). A VM is not safe for concurrent
// use; embed one per script-execution thread.
type VM struct {
	Regs  RegisterFile
	Stack []byte

	prog *Program
	ip   int
	base int // byte offset of the currently-executing function's entry

	callStack []frame

	stageGP []uint64
	stageFP []uint64

	HostCall HostCall

	halted bool
}

// New creates a VM over prog with a stackSize-byte memory, sp initialized to
// the top of that memory (the stack grows down, per the teacher's own
// native backends' convention for ARM/RISC-V stack frames).
func New(prog *Program, stackSize int) *VM {
	v := &VM{prog: prog, Stack: make([]byte, stackSize)}
	v.Regs.SetInt64(RegSP, int64(stackSize))
	return v
}

// trap raises a runtime exception on ctx's ExecutionContext, if one is
// present, and halts this VM. Per spec.md §7: "Runtime errors set the
// exception bit on the current ExecutionContext and unwind the VM to the
// nearest host boundary." Source locations aren't threaded through assembly
// (see assemble.go's encWord, which drops ir.Instruction.Loc), and trap does
// not consult internal/persist.SourceMap, so traps report a zero-value
// Location.
func (v *VM) trap(ctx context.Context, msg string) {
	v.halted = true
	if ec, ok := exec.FromContext(ctx); ok {
		ec.RaiseException(msg, source.Location{})
	}
}

// CallScript invokes a script function directly from host Go code (spec.md
// §4.10 "host-to-script calls"): marshal args into a0..a7/fa0..fa7 (the
// caller is responsible for having placed them there via ArgReg before
// calling), set ip to fn's entry, and run until the synthetic entry frame
// is popped by a matching ret ("set ra to a sentinel that halts execution
// on return"). Returns the raw result bits and whether they are floating.
func (v *VM) CallScript(ctx context.Context, fn *types.Function) (result uint64, isFloat bool, err error) {
	if fn.IsHost() {
		return 0, false, fmt.Errorf("vm: CallScript target %q is a host function", fn.FQN)
	}
	base, ok := v.prog.FuncBase[fn]
	if !ok {
		return 0, false, fmt.Errorf("vm: %q not assembled into this Program", fn.FQN)
	}
	size := int64(0)
	if fl := v.prog.Frames[fn]; fl != nil {
		size = fl.Size()
	}

	// A single sentinel frame: the callee's ret pops exactly this frame and,
	// seeing isEntry, halts instead of resuming a caller (spec.md §4.10:
	// "set ra to a sentinel that halts execution on return").
	v.callStack = append(v.callStack, frame{isEntry: true, frameSize: size})
	v.base = base
	v.ip = base
	v.Regs.SetInt64(RegSP, v.Regs.Int64(RegSP)-size)
	v.halted = false

	if err := v.Run(ctx); err != nil {
		return 0, false, err
	}

	floating := fn.Signature != nil && fn.Signature.ReturnType != nil && fn.Signature.ReturnType.Meta.Floating
	if floating {
		return v.Regs.Uint64(RegVF0), true, nil
	}
	return v.Regs.Uint64(RegV0), false, nil
}

// Run executes instructions until the VM halts (ret unwinds past the
// outermost frame, term, or halt), or ctx is cancelled.
func (v *VM) Run(ctx context.Context) error {
	for !v.halted {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := v.step(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (v *VM) fetch() (DecodedWord, uint64, bool) {
	word := getWord(v.prog.Code[v.ip:])
	d := DecodeWord(word)
	v.ip += wordSize
	var imm uint64
	hasImm := d.HasImmediate()
	if hasImm {
		imm = getImm(v.prog.Code[v.ip:])
		v.ip += immSize
	}
	return d, imm, hasImm
}

func (v *VM) step(ctx context.Context) error {
	d, imm, _ := v.fetch()

	switch d.Op {
	case OpTerm:
		v.trap(ctx, "term")
		return nil

	case OpHalt:
		v.halted = true
		return nil

	case OpJump:
		v.ip = v.base + int(int64(imm))
		return nil

	case OpBranch:
		if v.Regs.Int64(d.R1) != 0 {
			// fallthrough: cond truthy means do NOT take the branch, per
			// ir.Branch's doc comment ("falls through... if cond is truthy,
			// else jumps to label").
			return nil
		}
		v.ip = v.base + int(int64(imm))
		return nil

	case OpRet:
		return v.doRet(ctx)

	case OpCall:
		return v.doCall(ctx, d, imm)

	case OpParam:
		if d.Flags&FlagOp1Reg != 0 {
			bits := v.Regs.Uint64(d.R1)
			if isFPReg(d.R1) {
				v.stageFP = append(v.stageFP, bits)
			} else {
				v.stageGP = append(v.stageGP, bits)
			}
		} else if d.Flags&FlagOp3Float != 0 {
			v.stageFP = append(v.stageFP, imm)
		} else {
			v.stageGP = append(v.stageGP, imm)
		}
		return nil

	case OpStackAlloc:
		size := int64(imm)
		sp := v.Regs.Int64(RegSP) - size
		v.Regs.SetInt64(RegSP, sp)
		v.Regs.SetInt64(d.R1, sp)
		return nil

	case OpStackFree:
		// Teardown-ordering marker only: every local this compiler emits
		// already lives in the function's one static frame (see frame.go),
		// released in bulk on ret. Nothing to do at the VM layer.
		return nil

	case OpLoad:
		addr := v.Regs.Int64(d.R2) + int64(imm)
		v.Regs.SetUint64(d.R1, v.readMem(ctx, addr))
		return nil

	case OpStore:
		addr := v.Regs.Int64(d.R1) + int64(imm)
		v.writeMem(ctx, addr, v.Regs.Uint64(d.R2))
		return nil

	case OpModuleData:
		slot := v.prog.Module.Slot(int(imm))
		if slot == nil {
			v.trap(ctx, fmt.Sprintf("module data slot %d out of range", imm))
			return nil
		}
		v.Regs.SetUint64(d.R1, slotBits(slot))
		return nil

	case OpCvt:
		return v.doCvt(d, imm)

	case OpNot:
		a := v.operandBits(d.R2, imm, d.Flags&FlagOp2Reg != 0)
		if a == 0 {
			v.Regs.SetInt64(d.R1, 1)
		} else {
			v.Regs.SetInt64(d.R1, 0)
		}
		return nil

	default:
		return v.doBinary(ctx, d, imm)
	}
}

func (v *VM) doRet(ctx context.Context) error {
	if len(v.callStack) == 0 {
		v.halted = true
		return nil
	}
	top := v.callStack[len(v.callStack)-1]
	v.callStack = v.callStack[:len(v.callStack)-1]

	// Release the callee's static frame (reserved by CallScript/doCall).
	v.Regs.SetInt64(RegSP, v.Regs.Int64(RegSP)+top.frameSize)

	if top.isEntry {
		v.halted = true
		return nil
	}
	v.ip = top.returnIP
	v.base = top.callerBase
	return nil
}

func (v *VM) doCall(ctx context.Context, d DecodedWord, imm uint64) error {
	idx := int(imm)
	if idx < 0 || idx >= len(v.prog.Funcs) {
		return fmt.Errorf("vm: call target index %d out of range", idx)
	}
	fn := v.prog.Funcs[idx]
	v.assignArgs()

	if d.IsHostCall() {
		if v.HostCall == nil {
			return fmt.Errorf("vm: call to host function %q with no HostCall installed", fn.FQN)
		}
		result, isFloat, err := v.HostCall(ctx, v, fn)
		if err != nil {
			v.trap(ctx, err.Error())
			return nil
		}
		if isFloat {
			v.Regs.SetUint64(RegVF0, result)
		} else {
			v.Regs.SetUint64(RegV0, result)
		}
		return nil
	}

	base, ok := v.prog.FuncBase[fn]
	if !ok {
		return fmt.Errorf("vm: script function %q not assembled", fn.FQN)
	}
	fl := v.prog.Frames[fn]
	size := int64(0)
	if fl != nil {
		size = fl.Size()
	}
	v.callStack = append(v.callStack, frame{returnIP: v.ip, callerBase: v.base, frameSize: size})
	v.base = base
	v.ip = base
	v.Regs.SetInt64(RegSP, v.Regs.Int64(RegSP)-size)
	return nil
}

// isFPReg reports whether physical register r belongs to the floating f*
// bank (f0..f15) rather than the integral s*/a*/v* banks.
func isFPReg(r int) bool { return r >= FPBase && r < FPBase+NumFPRegisters }

// assignArgs consumes the param-staged values (in push order) into
// a0..a7/fa0..fa7, per ArgReg's "i'th argument of its own kind" convention.
// Each OpParam dispatch already routed its value into stageGP or stageFP by
// the source register's bank (or the immediate's float flag), so this step
// is a plain positional handoff.
func (v *VM) assignArgs() {
	gpi, fpi := 0, 0
	for _, bits := range v.stageGP {
		if reg, ok := ArgReg(gpi, false); ok {
			v.Regs.SetUint64(reg, bits)
		}
		gpi++
	}
	for _, bits := range v.stageFP {
		if reg, ok := ArgReg(fpi, true); ok {
			v.Regs.SetUint64(reg, bits)
		}
		fpi++
	}
	v.stageGP = v.stageGP[:0]
	v.stageFP = v.stageFP[:0]
}

func (v *VM) operandBits(reg int, imm uint64, isReg bool) uint64 {
	if isReg {
		return v.Regs.Uint64(reg)
	}
	return imm
}

func (v *VM) doCvt(d DecodedWord, imm uint64) error {
	srcIsReg := d.Flags&FlagOp2Reg != 0
	srcIsFloat := d.Flags&FlagOp3Float != 0
	if srcIsReg {
		// Register-to-register cvt: the assembler only ever emits this for
		// same-kind moves (shuttling a value into/out of v0/vf0 around
		// ret/call), so a plain bit copy is correct.
		v.Regs.SetUint64(d.R1, v.Regs.Uint64(d.R2))
		return nil
	}
	if srcIsFloat {
		v.Regs.SetFloat64(d.R1, math.Float64frombits(imm))
	} else {
		v.Regs.SetUint64(d.R1, imm)
	}
	return nil
}

// readMem/writeMem access the VM's byte-addressable stack memory at a
// sp-relative-or-otherwise absolute address. Every slot is treated as a
// full 8-byte word: sub-word types are not independently truncated today (a
// documented simplification — see DESIGN.md).
func (v *VM) readMem(ctx context.Context, addr int64) uint64 {
	if addr < 0 || addr+8 > int64(len(v.Stack)) {
		v.trap(ctx, "out-of-range memory access")
		return 0
	}
	return getImm(v.Stack[addr:])
}

func (v *VM) writeMem(ctx context.Context, addr int64, bits uint64) {
	if addr < 0 || addr+8 > int64(len(v.Stack)) {
		v.trap(ctx, "out-of-range memory access")
		return
	}
	putImm(v.Stack[addr:], bits)
}

// slotBits reads a module data slot's current value as a raw 64-bit
// pattern, zero-extended if the slot is narrower than 8 bytes.
func slotBits(slot *types.DataSlot) uint64 {
	var buf [8]byte
	copy(buf[:], slot.Data)
	return getImm(buf[:])
}

func (v *VM) doBinary(ctx context.Context, d DecodedWord, imm uint64) error {
	a := v.Regs.Uint64(d.R2)
	bIsReg := d.Flags&FlagOp3Reg != 0
	var b uint64
	if bIsReg {
		b = v.Regs.Uint64(d.R3)
	} else {
		b = imm
	}

	switch d.Op {
	case OpIAdd:
		v.Regs.SetInt64(d.R1, int64(a)+int64(b))
	case OpISub:
		v.Regs.SetInt64(d.R1, int64(a)-int64(b))
	case OpIMul:
		v.Regs.SetInt64(d.R1, int64(a)*int64(b))
	case OpIDiv:
		if b == 0 {
			v.trap(ctx, "integer division by zero")
			return nil
		}
		v.Regs.SetInt64(d.R1, int64(a)/int64(b))
	case OpIMod:
		if b == 0 {
			v.trap(ctx, "integer modulo by zero")
			return nil
		}
		v.Regs.SetInt64(d.R1, int64(a)%int64(b))

	case OpUAdd:
		v.Regs.SetUint64(d.R1, a+b)
	case OpUSub:
		v.Regs.SetUint64(d.R1, a-b)
	case OpUMul:
		v.Regs.SetUint64(d.R1, a*b)
	case OpUDiv:
		if b == 0 {
			v.trap(ctx, "unsigned division by zero")
			return nil
		}
		v.Regs.SetUint64(d.R1, a/b)
	case OpUMod:
		if b == 0 {
			v.trap(ctx, "unsigned modulo by zero")
			return nil
		}
		v.Regs.SetUint64(d.R1, a%b)

	case OpFAdd, OpDAdd:
		v.Regs.SetFloat64(d.R1, math.Float64frombits(a)+math.Float64frombits(b))
	case OpFSub, OpDSub:
		v.Regs.SetFloat64(d.R1, math.Float64frombits(a)-math.Float64frombits(b))
	case OpFMul, OpDMul:
		v.Regs.SetFloat64(d.R1, math.Float64frombits(a)*math.Float64frombits(b))
	case OpFDiv, OpDDiv:
		v.Regs.SetFloat64(d.R1, math.Float64frombits(a)/math.Float64frombits(b))
	case OpFMod, OpDMod:
		// IEEE-754 Mod semantics per the decided Open Question (SPEC_FULL.md §5.2).
		v.Regs.SetFloat64(d.R1, math.Mod(math.Float64frombits(a), math.Float64frombits(b)))

	case OpBAnd:
		v.Regs.SetUint64(d.R1, a&b)
	case OpBOr:
		v.Regs.SetUint64(d.R1, a|b)
	case OpBXor:
		v.Regs.SetUint64(d.R1, a^b)
	case OpSL:
		v.Regs.SetInt64(d.R1, int64(a)<<uint(b))
	case OpSR:
		v.Regs.SetInt64(d.R1, int64(a)>>uint(b))

	case OpLAnd:
		v.Regs.SetInt64(d.R1, boolInt(a != 0 && b != 0))
	case OpLOr:
		v.Regs.SetInt64(d.R1, boolInt(a != 0 || b != 0))

	case OpLT, OpGT, OpLTE, OpGTE, OpCmp, OpNCmp:
		v.doCompare(d, a, b)

	default:
		return fmt.Errorf("vm: unhandled opcode %d", d.Op)
	}
	return nil
}

// doCompare implements the family-polymorphic comparison opcodes.
// FlagOp3Float (set by the assembler off the comparison's static operand
// type, not just a trailing-immediate's kind — see assemble.go's
// isComparison handling) selects float64 comparison; otherwise both signed
// and unsigned integers compare as signed int64, a documented simplification
// (see DESIGN.md).
func (v *VM) doCompare(d DecodedWord, a, b uint64) {
	floating := d.Flags&FlagOp3Float != 0
	var lt, eq bool
	if floating {
		fa, fb := math.Float64frombits(a), math.Float64frombits(b)
		lt, eq = fa < fb, fa == fb
	} else {
		ia, ib := int64(a), int64(b)
		lt, eq = ia < ib, ia == ib
	}
	var result bool
	switch d.Op {
	case OpLT:
		result = lt
	case OpGT:
		result = !lt && !eq
	case OpLTE:
		result = lt || eq
	case OpGTE:
		result = !lt
	case OpCmp:
		result = eq
	case OpNCmp:
		result = !eq
	}
	v.Regs.SetInt64(d.R1, boolInt(result))
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
