package main

import (
	"context"
	"os"

	"github.com/aretw0/tendril/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the backend and serve commands",
	Long: `Opens the WebSocket to the backend and answers requests until interrupted.
The connection is re-established after every drop.

The backend URL is backend.url, TENDRIL_BACKEND_URL, or the client id from
BACKEND_WS_URI appended to backend.base_url.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		quiet, _ := cmd.Flags().GetBool("quiet")

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		err = cli.Run(ctx, cli.RunOptions{
			Config: cfg,
			Quiet:  quiet,
			Out:    os.Stdout,
			Logger: logger,
		})
		if sig := ctx.Signal(); sig != nil {
			logger.Info("agent stopped", "signal", sig.String())
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("url", "", "Full backend WebSocket URL")
	runCmd.Flags().String("client-id", "", "Client id appended to the backend base URL")
	runCmd.Flags().String("pipe-scope", "", "Implicit value scope: session or global")
	runCmd.Flags().String("status-addr", "", "Address of the local status server, e.g. :9090")
	runCmd.Flags().Bool("no-record", false, "Do not record calls")
	runCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner or system messages")

	// 'run' is the default when no command is provided.
	rootCmd.Flags().AddFlagSet(runCmd.Flags())
	rootCmd.RunE = runCmd.RunE
}
