package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsnlang/tsn/internal/lexer"
	"github.com/tsnlang/tsn/internal/source"
)

// newTokensCmd replaces the teacher's main.go `-ts` flag (dump the token
// stream and exit) with its own subcommand.
func newTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens <file>",
		Short: "lex a script and print its token stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readSource(args[0])
			if err != nil {
				return err
			}
			src := source.New(args[0], text)
			for _, tok := range lexer.Lex(src) {
				fmt.Println(tok.String())
			}
			return nil
		},
	}
}
