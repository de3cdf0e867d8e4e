package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"odinbots/internal/batch"
)

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show asset balances for the selected bots",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureApp(); err != nil {
				return err
			}
			bots, err := selectedBots()
			if err != nil {
				return err
			}

			results := appCtx.BalancesAll(cmd.Context(), bots)
			for bot, out := range results {
				if out.Err != nil {
					continue
				}
				if len(out.Value) == 0 {
					fmt.Printf("%s: no balances\n", bot)
					continue
				}
				for _, b := range out.Value {
					fmt.Printf("%s: %s %d\n", bot, b.Ticker, b.Amount)
				}
			}
			return reportFailures("balance", batch.Errs(results), len(bots))
		},
	}
}
