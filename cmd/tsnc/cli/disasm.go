package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tsnlang/tsn/internal/compiler"
	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/internal/ir"
	"github.com/tsnlang/tsn/internal/ir/llvmdump"
	"github.com/tsnlang/tsn/internal/optimize"
	"github.com/tsnlang/tsn/internal/parser"
	"github.com/tsnlang/tsn/internal/regalloc"
	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/internal/types"
	"github.com/tsnlang/tsn/internal/vm"
)

// newDisasmCmd replaces the teacher's main.go `-ll` flag (generate LLVM IR
// and exit before symbol table/validation/assembler stages) with a
// subcommand that prints the register-allocated IR either in its own plain
// text.FunctionDef.String() form or, with --llvm, through internal/ir/llvmdump.
func newDisasmCmd() *cobra.Command {
	var llvm bool

	cmd := &cobra.Command{
		Use:   "disasm <file>",
		Short: "compile a script and print its register-allocated IR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			text, err := readSource(args[0])
			if err != nil {
				return err
			}

			log := diag.New(nil, cfg.DebugLogging)
			src := source.New(args[0], text)
			root := parser.Parse(src, log, nil)
			if log.HasErrors() {
				printDiagnostics(log)
				return errors.Errorf("tsnc: %q failed to parse", args[0])
			}

			reg := types.NewTypeRegistry()
			funcs := types.NewFunctionRegistry()
			mod := types.NewModule(filepath.Base(args[0]), args[0])
			comp := compiler.New(reg, funcs, mod, log)
			comp.CompileProgram(root)
			if log.HasErrors() {
				printDiagnostics(log)
				return errors.Errorf("tsnc: %q failed to compile", args[0])
			}

			if !cfg.DisableOptimizations {
				optimize.Run(comp.Output, optimize.Options{Threads: cfg.Threads}, log)
			}
			opts := regalloc.Options{NumGP: vm.NumGPRegisters, NumFP: vm.NumFPRegisters}
			for _, fd := range comp.Output {
				regalloc.Allocate(fd, opts, reg)
			}

			if llvm {
				defs := make([]*ir.FunctionDef, 0, len(comp.Output))
				for _, fd := range comp.Output {
					defs = append(defs, fd)
				}
				return llvmdump.DumpAll(os.Stdout, defs)
			}
			for _, fd := range comp.Output {
				fmt.Println(fd.String())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&llvm, "llvm", false, "print an LLVM-IR-like dump instead of the plain IR text form")
	return cmd
}
