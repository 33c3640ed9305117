// Package llvmdump renders CodeHolder IR as an LLVM-IR-like text dump,
// purely a diagnostic/debugging surface (`tsnc disasm --llvm`).
//
// The teacher's src/ir/llvm/transform.go links against tinygo.org/x/go-llvm
// to build a real llvm.Module and hand it to the system LLVM toolchain for
// codegen; that dependency cannot be wired here without violating the
// non-goal excluding native codegen (see DESIGN.md's "Dropped teacher
// dependency" entry). This package keeps transform.go's *shape* — walk
// every function, translate each instruction into its LLVM-ish mnemonic,
// one `define` block per function — but targets text/template output
// instead of go-llvm's IR builder, since nothing here is ever fed to an
// actual LLVM backend.
package llvmdump

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/tsnlang/tsn/internal/ir"
)

var llvmOpNames = map[ir.Op]string{
	ir.OpIAdd: "add", ir.OpISub: "sub", ir.OpIMul: "mul", ir.OpIDiv: "sdiv", ir.OpIMod: "srem",
	ir.OpUAdd: "add", ir.OpUSub: "sub", ir.OpUMul: "mul", ir.OpUDiv: "udiv", ir.OpUMod: "urem",
	ir.OpFAdd: "fadd", ir.OpFSub: "fsub", ir.OpFMul: "fmul", ir.OpFDiv: "fdiv", ir.OpFMod: "frem",
	ir.OpDAdd: "fadd", ir.OpDSub: "fsub", ir.OpDMul: "fmul", ir.OpDDiv: "fdiv", ir.OpDMod: "frem",
	ir.OpBAnd: "and", ir.OpBOr: "or", ir.OpBXor: "xor", ir.OpSL: "shl", ir.OpSR: "ashr",
	ir.OpLoad: "load", ir.OpStore: "store", ir.OpRet: "ret", ir.OpCall: "call",
	ir.OpJump: "br", ir.OpBranch: "br",
}

func llvmOp(o ir.Op) string {
	if s, ok := llvmOpNames[o]; ok {
		return s
	}
	return strings.ReplaceAll(o.String(), ".", "_")
}

const funcTemplate = `define {{.RetType}} @{{.Name}}({{.Params}}) {
entry:
{{- range .Lines}}
  {{.}}
{{- end}}
}
`

type templateData struct {
	Name     string
	RetType  string
	Params   string
	Lines    []string
}

// Dump renders fd as one LLVM-IR-like `define` block.
func Dump(w io.Writer, fd *ir.FunctionDef) error {
	data := templateData{Name: fd.Func.Name, RetType: "i64"}

	params := make([]string, len(fd.Params))
	for i, p := range fd.Params {
		params[i] = fmt.Sprintf("i64 %%%s", valueName(p))
	}
	data.Params = strings.Join(params, ", ")

	for _, ins := range fd.Code.Instructions {
		data.Lines = append(data.Lines, instructionLine(ins))
	}

	tmpl, err := template.New("function").Parse(funcTemplate)
	if err != nil {
		return err
	}
	return tmpl.Execute(w, data)
}

// DumpAll renders every FunctionDef in defs, separated by a blank line, the
// same per-function granularity transform.go's GenLLVM walks syntax-tree
// functions at.
func DumpAll(w io.Writer, defs []*ir.FunctionDef) error {
	for i, fd := range defs {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if err := Dump(w, fd); err != nil {
			return err
		}
	}
	return nil
}

func valueName(v ir.Value) string {
	if v.SourceLabel != "" {
		return v.SourceLabel
	}
	return fmt.Sprintf("r%d", v.Reg)
}

func instructionLine(ins ir.Instruction) string {
	op := llvmOp(ins.Op)
	switch ins.Op {
	case ir.OpLabel:
		return fmt.Sprintf("L%d:", ins.Labels[0])
	case ir.OpJump:
		return fmt.Sprintf("br label %%L%d", ins.Labels[0])
	case ir.OpBranch:
		return fmt.Sprintf("br i1 %%%s, label %%L%d, label %%fallthrough", valueName(ins.Operands[0]), ins.Labels[0])
	case ir.OpRet:
		if ins.NumOps > 0 {
			return fmt.Sprintf("ret i64 %%%s", valueName(ins.Operands[0]))
		}
		return "ret void"
	default:
		if ins.NumOps == 0 {
			return op
		}
		dst := valueName(ins.Operands[0])
		args := make([]string, 0, ins.NumOps-1)
		for i := 1; i < ins.NumOps; i++ {
			args = append(args, "%"+valueName(ins.Operands[i]))
		}
		if len(args) == 0 {
			return fmt.Sprintf("%%%s = %s", dst, op)
		}
		return fmt.Sprintf("%%%s = %s %s", dst, op, strings.Join(args, ", "))
	}
}
