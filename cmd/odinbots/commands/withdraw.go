package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"odinbots/internal/batch"
	"odinbots/internal/domain"
)

func withdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <address> <sats>",
		Short: "Withdraw the given amount from every selected bot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureApp(); err != nil {
				return err
			}
			bots, err := selectedBots()
			if err != nil {
				return err
			}
			address := args[0]
			amount, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil || amount == 0 {
				return fmt.Errorf("amount must be a positive integer, got %q", args[1])
			}

			results := batch.Run(cmd.Context(), bots, appCtx.Cfg.MaxConcurrency,
				func(ctx context.Context, bot domain.BotName) (struct{}, error) {
					return struct{}{}, appCtx.Withdraw(ctx, bot, address, amount)
				})
			for bot, out := range results {
				if out.Err == nil {
					fmt.Printf("%s: withdrew %d to %s\n", bot, amount, address)
				}
			}
			return reportFailures("withdraw", batch.Errs(results), len(bots))
		},
	}
}
