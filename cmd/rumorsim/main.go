// Command rumorsim generates rumour networks and runs the spread simulation,
// headless or behind the HTTP API.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talgya/damage-control/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rumorsim",
		Short: "Rumour propagation simulation",
		Long: `rumorsim builds a town of people linked by phone lines, pigeons,
drums and gossip, lets a rumour loose and shows how fast it spreads.

Actions (muggings, storms, cut phone lines...) disable communication
methods for a while and slow the rumour down.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "YAML config file overlaid on the defaults")
	rootCmd.PersistentFlags().Int64("seed", 0, "World seed (0 = config value, or random)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn (default from config)")

	rootCmd.AddCommand(
		newGenerateCmd(),
		newRunCmd(),
		newServeCmd(),
	)
	return rootCmd
}

// loadConfig reads the global flags, builds the config and installs the
// default logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	seed, _ := cmd.Flags().GetInt64("seed")
	level, _ := cmd.Flags().GetString("log-level")

	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if seed != 0 {
		cfg.Gen.Seed = seed
	}
	if level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	slog.SetDefault(newLogger(cfg.Logging.Level, cmd.ErrOrStderr()))
	return cfg, nil
}

// parseLevel maps a level name to a slog.Level. Unknown names mean info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
}
