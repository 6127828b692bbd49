package main

import (
	"context"

	"github.com/aretw0/tendril/internal/cli"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <script|session>",
	Short: "Replay a recording against a fresh driver session",
	Long: `Runs a replay script statement by statement and stops at the first failing call.
With --redis the argument is a session id looked up in the Redis recordings,
otherwise it is the path of a script file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		fromRedis, _ := cmd.Flags().GetBool("redis")
		sessionID, _ := cmd.Flags().GetString("session")
		delay, _ := cmd.Flags().GetDuration("delay")
		keep, _ := cmd.Flags().GetBool("keep-open")

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		opts := cli.ReplayOptions{
			Source:    args[0],
			SessionID: sessionID,
			Delay:     delay,
			KeepOpen:  keep,
			Out:       cmd.OutOrStdout(),
		}
		if fromRedis {
			sink, closer, err := cli.OpenRecordings(ctx, cfg.Recorder, true)
			if err != nil {
				return err
			}
			defer closer.Close()
			opts.Sink = sink
		}

		// Replaying must not append to the recordings it reads.
		cfg.Recorder.Disabled = true
		rt, err := cli.NewRuntime(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()
		return cli.Replay(ctx, rt, opts)
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Bool("redis", false, "Read the recording of a session from Redis")
	replayCmd.Flags().String("session", "", "Session id to replay under (default \"1\")")
	replayCmd.Flags().Duration("delay", 0, "Pause between calls")
	replayCmd.Flags().Bool("keep-open", false, "Leave the driver session open when done")
}
