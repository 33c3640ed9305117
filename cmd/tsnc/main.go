// Command tsnc is the CLI entry point for the tsn toolchain, replacing the
// teacher's src/main.go (a single `run(opt util.Options)` plus a hand-rolled
// flag scanner) with a github.com/spf13/cobra root command and
// github.com/spf13/viper-bound configuration, per SPEC_FULL.md §1.
package main

import (
	"fmt"
	"os"

	"github.com/tsnlang/tsn/cmd/tsnc/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
