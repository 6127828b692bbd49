package main

import (
	"context"

	"github.com/aretw0/tendril/internal/cli"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/spf13/cobra"
)

var recordingsCmd = &cobra.Command{
	Use:     "recordings",
	Aliases: []string{"rec"},
	Short:   "Inspect recorded sessions",
}

var recordingsListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the sessions that have recordings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRecordings(cmd, func(ctx context.Context, sink ports.RecordSink) error {
			return cli.ListRecordings(ctx, cmd.OutOrStdout(), sink)
		})
	},
}

var recordingsShowCmd = &cobra.Command{
	Use:   "show <session>",
	Short: "Print the replay script of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRecordings(cmd, func(ctx context.Context, sink ports.RecordSink) error {
			return cli.ShowRecording(ctx, cmd.OutOrStdout(), sink, args[0])
		})
	},
}

func withRecordings(cmd *cobra.Command, fn func(context.Context, ports.RecordSink) error) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fromRedis, _ := cmd.Flags().GetBool("redis")

	ctx := context.Background()
	sink, closer, err := cli.OpenRecordings(ctx, cfg.Recorder, fromRedis)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	return fn(ctx, sink)
}

func init() {
	rootCmd.AddCommand(recordingsCmd)
	recordingsCmd.AddCommand(recordingsListCmd, recordingsShowCmd)
	recordingsCmd.PersistentFlags().Bool("redis", false, "Read recordings from Redis instead of the replay directory")
}
