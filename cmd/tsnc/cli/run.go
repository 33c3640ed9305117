package cli

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tsnlang/tsn/internal/diag"
	"github.com/tsnlang/tsn/pkg/tsn"
)

func newRunCmd() *cobra.Command {
	var entry string
	var argStrs []string

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "compile a script and call one of its functions",
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

			if entry == "" {
				entry = "main"
			}
			callArgs, err := parseCallArgs(argStrs)
			if err != nil {
				return err
			}

			result, isFloat, err := c.Call(context.Background(), m, entry, callArgs...)
			if err != nil {
				return err
			}
			if isFloat {
				fmt.Println(math.Float64frombits(result))
			} else {
				fmt.Println(int64(result))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&entry, "entry", "main", "fully-qualified name of the function to call")
	cmd.Flags().StringSliceVar(&argStrs, "arg", nil, "argument to pass to the entry function (repeatable); ints unless suffixed with f for float64")
	return cmd
}

// parseCallArgs turns the --arg flag's raw strings into Go values
// pkg/tsn.Context.Call can classify: "12" becomes int32(12), "12f" becomes
// float64(12).
func parseCallArgs(raw []string) ([]interface{}, error) {
	out := make([]interface{}, 0, len(raw))
	for _, s := range raw {
		if strings.HasSuffix(s, "f") {
			f, err := strconv.ParseFloat(strings.TrimSuffix(s, "f"), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "tsnc: parsing float argument %q", s)
			}
			out = append(out, f)
			continue
		}
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "tsnc: parsing integer argument %q", s)
		}
		out = append(out, int32(n))
	}
	return out, nil
}
