// Package commands provides the CLI commands for actionbridge.
package commands

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Jason-Cooke/nylas-mail/internal/config"
	"github.com/Jason-Cooke/nylas-mail/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	logLevel   string
	logPretty  bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "actionbridge",
	Short: "actionbridge - scoped action dispatch across windows",
	Long: `actionbridge routes named actions between the windows of a multi-window
application. Window-scoped actions stay local, main-scoped actions are
forwarded to the main window, and global actions fan out everywhere.

Run 'actionbridge serve' to start the relay hub, then join window
processes with 'actionbridge window'. 'actionbridge demo' simulates a
whole multi-window session in a single process.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand, show help
		cmd.Help()
	},
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "pretty", false, "Human-readable console logs")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	// Version template
	rootCmd.SetVersionTemplate(fmt.Sprintf("actionbridge %s (%s)\n", Version, BuildTime))

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(windowCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(actionsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves configuration and initializes logging from it.
// Explicit CLI flags win over both file and environment values.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logPretty {
		cfg.Log.Pretty = true
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	return cfg, nil
}

// watchConfig applies log-level changes live while a long-running command
// holds the process. A missing config file simply means nothing to watch.
func watchConfig(ctx context.Context) {
	path := config.FindFile(configPath)
	if path == "" {
		return
	}

	err := config.Watch(ctx, path, func(cfg *config.Config) {
		logging.SetLevel(logging.ParseLevel(cfg.Log.Level))
		logging.Info().Str("level", cfg.Log.Level).Msg("log level updated")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("config watch unavailable")
	}
}
