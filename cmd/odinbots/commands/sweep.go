package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"odinbots/internal/batch"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep <address>",
		Short: "Withdraw every selected bot's full BTC balance to one address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureApp(); err != nil {
				return err
			}
			bots, err := selectedBots()
			if err != nil {
				return err
			}

			results := appCtx.Sweep(cmd.Context(), bots, args[0])
			var total uint64
			for bot, out := range results {
				if out.Err != nil {
					continue
				}
				if out.Value == 0 {
					fmt.Printf("%s: nothing to sweep\n", bot)
					continue
				}
				total += out.Value
				fmt.Printf("%s: swept %d\n", bot, out.Value)
			}
			fmt.Printf("Total swept: %d sats\n", total)
			return reportFailures("sweep", batch.Errs(results), len(bots))
		},
	}
}
