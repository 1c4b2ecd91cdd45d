package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bounty-backend/container"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := container.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			log.WithField("store", cfg.StoreDriver).Info("bounty MCP server starting on stdio")
			return c.MCP().ServeStdio()
		},
	}
}
