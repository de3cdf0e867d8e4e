package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"odinbots/internal/batch"
)

func fundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fund",
		Short: "Show deposit addresses for funding the selected bots",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureApp(); err != nil {
				return err
			}
			bots, err := selectedBots()
			if err != nil {
				return err
			}

			results := appCtx.DepositAddressAll(cmd.Context(), bots)
			for bot, out := range results {
				if out.Err != nil {
					continue
				}
				fmt.Printf("%s: %s\n", bot, out.Value)
			}
			return reportFailures("fund", batch.Errs(results), len(bots))
		},
	}
}
