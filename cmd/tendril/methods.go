package main

import (
	"context"
	"os"

	"github.com/aretw0/tendril/internal/cli"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var methodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "Print the commands the agent exposes",
	Long: `Prints the same command surface list_available_methods returns to the backend.
Output is rendered Markdown on a terminal and plain Markdown otherwise.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg.Recorder.Disabled = true
		rt, err := cli.NewRuntime(context.Background(), cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		format, _ := cmd.Flags().GetString("format")
		if format == "" {
			format = cli.FormatMarkdown
			if term.IsTerminal(int(os.Stdout.Fd())) {
				format = cli.FormatText
			}
		}
		return cli.PrintMethods(cmd.OutOrStdout(), rt.Agent.Describe(), format)
	},
}

func init() {
	rootCmd.AddCommand(methodsCmd)
	methodsCmd.Flags().StringP("format", "f", "", "Output format: text, markdown or json (default depends on the terminal)")
}
