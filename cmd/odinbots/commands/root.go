package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"odinbots/internal/app"
	"odinbots/internal/certverify/thresholded25519"
	"odinbots/internal/config"
	"odinbots/internal/domain"
	"odinbots/internal/identity"
	"odinbots/internal/logging"
)

var (
	home        string
	networkFlag string
	verbose     bool
	noCache     bool
	verifyCerts bool
	botsFlag    []string

	cfg    config.Config
	appCtx *app.App
)

func Execute() error {
	root := &cobra.Command{
		Use:           "odinbots",
		Short:         "Credential lifecycle and batch operations for trading bots",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".odinbots")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			loaded, err := config.Load(home)
			if err != nil {
				return err
			}
			cfg = loaded
			if cmd.Flags().Changed("network") {
				cfg.Network = config.Network(networkFlag)
			}
			if noCache {
				cfg.CacheSessions = false
			}
			if cmd.Flags().Changed("verify-certificates") {
				cfg.VerifyCertificates = verifyCerts
			}
			cfg.Verbose = verbose
			return cfg.Validate()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if appCtx != nil {
				appCtx.LogSessionStats()
				appCtx.Close()
			}
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.odinbots)")
	root.PersistentFlags().StringVar(&networkFlag, "network", string(config.NetworkPrd), "target network (prd, testing, development)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&noCache, "no-cache", false, "disable session caching, re-authenticate every call")
	root.PersistentFlags().BoolVar(&verifyCerts, "verify-certificates", false, "verify certified authority responses")
	root.PersistentFlags().StringSliceVar(&botsFlag, "bots", nil, "bot names to operate on (default: config bots)")

	root.AddCommand(
		walletCmd(),
		loginCmd(),
		sessionsCmd(),
		balanceCmd(),
		fundCmd(),
		tradeCmd(),
		withdrawCmd(),
		sweepCmd(),
		tokensCmd(),
	)
	return root.Execute()
}

// ensureApp wires the object graph on first use. Wallet commands skip it
// so they can run before a root key exists.
func ensureApp() error {
	if appCtx != nil {
		return nil
	}
	if cfg.VerifyCertificates {
		thresholded25519.Register()
	}
	log := logging.New(os.Stderr, cfg.Verbose)
	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	appCtx = a
	return nil
}

// selectedBots resolves the target set: --bots beats the config file.
// Every name is validated before any work starts.
func selectedBots() ([]domain.BotName, error) {
	raw := botsFlag
	if len(raw) == 0 {
		raw = cfg.Bots
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("no bots selected: pass --bots or set bots in config.yaml")
	}
	names := make([]domain.BotName, 0, len(raw))
	for _, r := range raw {
		name := domain.BotName(strings.TrimSpace(r))
		if err := identity.ValidateName(name); err != nil {
			return nil, fmt.Errorf("bot %q: %w", r, err)
		}
		names = append(names, name)
	}
	return names, nil
}

// reportFailures prints one line per failed bot and returns an error so
// the exit code reflects partial failure.
func reportFailures(verb string, errs map[domain.BotName]error, total int) error {
	for bot, err := range errs {
		fmt.Fprintf(os.Stderr, "%s: %s failed: %v\n", bot, verb, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s failed for %d of %d bots", verb, len(errs), total)
	}
	return nil
}
