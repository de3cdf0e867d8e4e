package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"odinbots/internal/keyring"
)

func walletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the local root key",
	}
	cmd.AddCommand(walletCreateCmd(), walletShowCmd())
	return cmd
}

func walletCreateCmd() *cobra.Command {
	var (
		force    bool
		mnemonic string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Generate (or restore) the root key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if mnemonic != "" {
				kr, err := keyring.FromMnemonic(home, mnemonic, force)
				if err != nil {
					return err
				}
				defer kr.Close()
				fmt.Printf("Root key restored.\nPublic key: %s\n", hex.EncodeToString(kr.PublicKey()))
				return nil
			}

			kr, phrase, err := keyring.Generate(home, force)
			if err != nil {
				return err
			}
			defer kr.Close()
			fmt.Printf("Root key created at %s\n\n", keyring.Path(home))
			fmt.Printf("Recovery phrase (write this down, it is shown once):\n\n  %s\n\n", phrase)
			fmt.Printf("Public key: %s\n", hex.EncodeToString(kr.PublicKey()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing root key")
	cmd.Flags().StringVar(&mnemonic, "mnemonic", "", "restore from an existing recovery phrase")
	return cmd
}

func walletShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the root public key",
		RunE: func(cmd *cobra.Command, args []string) error {
			kr, err := keyring.Open(home)
			if err != nil {
				return err
			}
			defer kr.Close()
			fmt.Printf("Public key: %s\n", hex.EncodeToString(kr.PublicKey()))
			return nil
		},
	}
}
