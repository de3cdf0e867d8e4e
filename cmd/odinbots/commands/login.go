package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"odinbots/internal/batch"
)

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate the selected bots, reusing cached sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureApp(); err != nil {
				return err
			}
			bots, err := selectedBots()
			if err != nil {
				return err
			}

			results := appCtx.LoginAll(cmd.Context(), bots)
			for bot, out := range results {
				if out.Err != nil {
					continue
				}
				fmt.Printf("%s: session valid until %s (principal %s)\n",
					bot, out.Value.ExpiresAt.Local().Format("2006-01-02 15:04:05"), out.Value.Principal)
			}
			return reportFailures("login", batch.Errs(results), len(bots))
		},
	}
}
