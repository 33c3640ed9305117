package cli

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/internal/source"
	"github.com/tsnlang/tsn/pkg/tsn"
)

// newPersistCmd compiles a script and serializes it to a msgpack module
// artifact, mirroring the output-file-writer goroutine in the teacher's
// main.go (which wrote an assembled binary instead of a persisted module).
func newPersistCmd() *cobra.Command {
	var out string
	var embedSource bool

	cmd := &cobra.Command{
		Use:   "persist <file>",
		Short: "compile a script and write its persisted module artifact",
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
			c := tsn.New(cfg, log)
			m, err := c.Compile(args[0], text)
			if err != nil {
				printDiagnostics(log)
				return err
			}

			var src *source.ModuleSource
			if embedSource {
				src = source.New(args[0], text)
			}
			data, err := c.Persist(m, src)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				_, err := os.Stdout.Write(data)
				return errors.Wrap(err, "tsnc: writing persisted module to stdout")
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return errors.Wrapf(err, "tsnc: writing persisted module to %q", out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "output path for the persisted module (default: stdout)")
	cmd.Flags().BoolVar(&embedSource, "embed-source", false, "embed the original source text so restored source locations remain meaningful")
	return cmd
}
