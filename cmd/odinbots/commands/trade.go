package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"odinbots/internal/batch"
	"odinbots/internal/domain"
)

func tradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trade",
		Short: "Submit the same order from every selected bot",
	}
	cmd.AddCommand(
		tradeSideCmd(domain.TradeBuy, "buy <token> <sats>", "Buy a token, spending the given amount of sats"),
		tradeSideCmd(domain.TradeSell, "sell <token> <tokens>", "Sell the given amount of a token"),
	)
	return cmd
}

func tradeSideCmd(side domain.TradeSide, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureApp(); err != nil {
				return err
			}
			bots, err := selectedBots()
			if err != nil {
				return err
			}
			amount, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil || amount == 0 {
				return fmt.Errorf("amount must be a positive integer, got %q", args[1])
			}

			results := appCtx.TradeAll(cmd.Context(), bots, args[0], side, amount)
			for bot, out := range results {
				if out.Err == nil {
					fmt.Printf("%s: %s %s %d ok\n", bot, side, args[0], amount)
				}
			}
			return reportFailures(string(side), batch.Errs(results), len(bots))
		},
	}
}
