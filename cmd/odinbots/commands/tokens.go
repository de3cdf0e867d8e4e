package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func tokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Look up tradable tokens",
	}
	cmd.AddCommand(tokensResolveCmd())
	return cmd
}

func tokensResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <id|name|ticker>",
		Short: "Resolve a token reference to its record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureApp(); err != nil {
				return err
			}
			t, err := appCtx.Tokens.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("id: %s\nname: %s\nticker: %s\nmarketcap: %d\nbonded: %v\n",
				t.ID, t.Name, t.Ticker, t.Marketcap, t.Bonded)
			return nil
		},
	}
}
