// Package cli wires the tsnc subcommands onto a github.com/spf13/cobra root
// command, replacing the teacher's hand-rolled src/util/args.go flag scanner
// with cobra flags bound into a github.com/spf13/viper instance that
// internal/config.Load then turns into a config.Config, per SPEC_FULL.md §1.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tsnlang/tsn/internal/config"
	"github.com/tsnlang/tsn/internal/diag"
)

var (
	cfgFile string
	v       = viper.New()
)

// Execute builds the root command tree and runs it against os.Args.
func Execute() error {
	root := newRootCmd()
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tsnc",
		Short:         "tsnc compiles, runs, and inspects tsn scripts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (toml/yaml/json)")
	root.PersistentFlags().Int("threads", 0, "worker threads for optimization and register allocation (0 = config default)")
	root.PersistentFlags().Bool("verbose", false, "enable verbose diagnostics")
	root.PersistentFlags().Bool("debug-logging", false, "emit debug-severity diagnostics")
	root.PersistentFlags().Bool("no-optimize", false, "skip the optimizer pipeline")
	root.PersistentFlags().Bool("no-exec", false, "compile and assemble but never execute script code")
	root.PersistentFlags().String("arch", "", "target architecture identifier (x86_64, x86_32, aarch64, riscv64, riscv32)")

	_ = v.BindPFlag("threads", root.PersistentFlags().Lookup("threads"))
	_ = v.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))
	_ = v.BindPFlag("debugLogging", root.PersistentFlags().Lookup("debug-logging"))
	_ = v.BindPFlag("disableOptimizations", root.PersistentFlags().Lookup("no-optimize"))
	_ = v.BindPFlag("disableExecution", root.PersistentFlags().Lookup("no-exec"))

	config.BindDefaults(v)

	root.AddCommand(newRunCmd())
	root.AddCommand(newTokensCmd())
	root.AddCommand(newDisasmCmd())
	root.AddCommand(newPersistCmd())
	return root
}

// loadConfig reads cfgFile (if set) into v, folds in the -arch flag via
// config.ParseArch, and returns the resulting config.Config.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return config.Config{}, errors.Wrapf(err, "tsnc: reading config file %q", cfgFile)
		}
	}

	if archFlag, _ := cmd.Flags().GetString("arch"); archFlag != "" {
		arch, err := config.ParseArch(archFlag)
		if err != nil {
			return config.Config{}, err
		}
		v.Set("targetArch", arch)
	}

	return config.Load(v)
}

// readSource reads path, or stdin when path is "-".
func readSource(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", errors.Wrap(err, "tsnc: reading stdin")
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "tsnc: reading %q", path)
	}
	return string(data), nil
}

// printDiagnostics writes every accumulated record to stderr, one per line,
// the way the teacher's util.Perror dump surfaces accumulated parse/compile
// failures instead of stopping at the first one.
func printDiagnostics(log *diag.Logger) {
	for _, r := range log.Records() {
		fmt.Fprintln(os.Stderr, r.String())
	}
}
