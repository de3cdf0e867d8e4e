package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage cached sessions",
	}
	cmd.AddCommand(sessionsClearCmd())
	return cmd
}

func sessionsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Discard cached sessions for the selected bots",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureApp(); err != nil {
				return err
			}
			bots, err := selectedBots()
			if err != nil {
				return err
			}
			if err := appCtx.ClearSessions(bots); err != nil {
				return err
			}
			fmt.Printf("Cleared sessions for %d bots.\n", len(bots))
			return nil
		},
	}
}
