package main

import (
	"context"
	"log"
	"os"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/internal/cli"
	"github.com/aretw0/tendril/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes every automation command as an MCP tool over Standard Input/Output,
so an AI client can drive devices on this machine directly. Each tool accepts an
optional _run_test_id to address a session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		rt, err := cli.NewRuntime(context.Background(), cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()
		defer rt.Agent.Shutdown(context.Background())

		// Ensure logs don't corrupt JSON-RPC on Stdout
		log.SetOutput(os.Stderr)
		logger.Info("starting MCP server (stdio)", "tools", len(rt.Agent.Describe())-1)

		srv := mcp.NewServer(rt.Agent.Dispatcher(), tendril.Version, logger)
		return srv.ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
