package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/tendril/internal/cli"
	"github.com/aretw0/tendril/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tendril",
	Short: "Tendril is a remote command-execution agent for device automation",
	Long: `Tendril connects out to a backend over a WebSocket and executes the automation
commands it receives against an Appium / WebDriver endpoint on this machine.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	f := rootCmd.PersistentFlags()
	f.StringP("config", "c", "", "Path to a YAML configuration file")
	f.String("log-level", "", "Log level: debug, info, warn or error")
	f.Bool("log-json", false, "Write logs as JSON")
	f.String("driver", "", "Driver kind: webdriver or memory")
	f.String("appium-url", "", "Appium / WebDriver endpoint")
	f.String("replay-dir", "", "Directory of replay scripts")
	f.String("redis-url", "", "Redis URL for recordings")
}

// loadConfig resolves the configuration in order: defaults, file,
// environment, then explicitly set flags.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}

	overrides := map[string]*string{
		"log-level":   &cfg.Log.Level,
		"driver":      &cfg.Driver.Kind,
		"appium-url":  &cfg.Driver.URL,
		"replay-dir":  &cfg.Recorder.Dir,
		"redis-url":   &cfg.Recorder.Redis.URL,
		"url":         &cfg.Backend.URL,
		"client-id":   &cfg.Backend.ClientID,
		"pipe-scope":  &cfg.Pipe.Scope,
		"status-addr": &cfg.Status.Addr,
	}
	for name, dst := range overrides {
		if flag := cmd.Flags().Lookup(name); flag != nil && flag.Changed {
			*dst = flag.Value.String()
		}
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON, _ = cmd.Flags().GetBool("log-json")
	}
	if cmd.Flags().Changed("no-record") {
		disabled, _ := cmd.Flags().GetBool("no-record")
		cfg.Recorder.Disabled = disabled
	}

	logger, err := cli.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}
