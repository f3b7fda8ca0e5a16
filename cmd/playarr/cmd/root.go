// Package cmd implements the CLI commands for playarr.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jmylchreest/playarr/internal/config"
	"github.com/jmylchreest/playarr/internal/observability"
	"github.com/jmylchreest/playarr/internal/version"
)

var (
	// cfgFile holds the config file path from CLI flag.
	cfgFile string

	// cfg is loaded once per invocation by the root pre-run hook.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:     "playarr",
	Short:   "Live stream playback with ad filtering",
	Version: version.Short(),
	Long: `playarr resolves a live channel or recorded video to an HLS variant,
keeps its access token fresh and strips server-side ad breaks from the
media playlist before it reaches the player.

Use "playarr play" to hand a stream to a local player, or "playarr serve"
to run a local gateway that players can point at directly.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initConfig(rootCmd.PersistentFlags())
	}

	// Log flags are not bound to viper. They override the file and the
	// environment only when given explicitly.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml, /etc/playarr or $HOME/.playarr)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
}

// initConfig loads the configuration and installs the default logger.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-format) when explicitly provided
//  2. Environment variables (PLAYARR_LOGGING_LEVEL, PLAYARR_LOGGING_FORMAT)
//  3. Config file values
//  4. Built-in defaults
func initConfig(flags *pflag.FlagSet) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyLogFlags(flags, &loaded.Logging)
	cfg = loaded

	logger := observability.NewLoggerWithWriter(cfg.Logging, os.Stderr)
	observability.SetDefault(logger)
	return nil
}

func applyLogFlags(flags *pflag.FlagSet, logCfg *config.LoggingConfig) {
	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		logCfg.Level = strings.ToLower(level)
		if logCfg.Level == "warning" {
			logCfg.Level = "warn"
		}
	}
	if flags.Changed("log-format") {
		format, _ := flags.GetString("log-format")
		logCfg.Format = strings.ToLower(format)
	}
}

// overrideString copies a flag value into dst when the flag was set.
func overrideString(flags *pflag.FlagSet, name string, dst *string) {
	if flags.Changed(name) {
		*dst, _ = flags.GetString(name)
	}
}

func logger() *slog.Logger {
	return slog.Default()
}
