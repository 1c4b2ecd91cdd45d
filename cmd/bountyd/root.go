package main

import (
	"github.com/spf13/cobra"

	"bounty-backend/config"
)

// loadConfig reads BOUNTY_* variables and applies the log level.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	cfg.ConfigureLogging()
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bountyd",
		Short:         "Task bounty escrow ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newMCPCmd(),
		newDeriveCmd(),
		newKeygenCmd(),
		newSignCmd(),
		newUnitsCmd(),
	)
	return root
}
