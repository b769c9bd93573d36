package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jason-Cooke/nylas-mail/internal/action"
	"github.com/Jason-Cooke/nylas-mail/internal/logging"
	"github.com/Jason-Cooke/nylas-mail/internal/server"
	"github.com/Jason-Cooke/nylas-mail/internal/transport/wsbridge"
)

var (
	windowID    string
	windowMain  bool
	windowHub   string
	windowDebug string
)

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Join the hub as one window process",
	Long: `Join a running hub as a single window of the application.

The window registers the built-in demo catalog, logs every action
delivered to it, and keeps running until interrupted. With a debug
address set it also serves the diagnostics API (/health, /actions,
/events).

Examples:
  actionbridge window --id main --main
  actionbridge window --id composer --debug-addr 127.0.0.1:8711`,
	RunE: runWindow,
}

func init() {
	windowCmd.Flags().StringVar(&windowID, "id", "", "Window ID (defaults to config or a generated one)")
	windowCmd.Flags().BoolVar(&windowMain, "main", false, "Claim the main window role")
	windowCmd.Flags().StringVar(&windowHub, "hub", "", "Hub address to dial (overrides config)")
	windowCmd.Flags().StringVar(&windowDebug, "debug-addr", "", "Diagnostics listen address (overrides config)")
}

func runWindow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if windowID != "" {
		cfg.Window.ID = windowID
	}
	if windowMain {
		cfg.Window.Main = true
	}
	if windowHub != "" {
		cfg.Hub.Addr = windowHub
	}
	if windowDebug != "" {
		cfg.Debug.Addr = windowDebug
	}

	log := logging.Component("window").With().Str("window", cfg.Window.ID).Logger()

	registry := action.NewRegistry()
	if err := registerCatalog(registry, log, nil); err != nil {
		return err
	}

	dialCtx, cancelDial := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancelDial()
	client, err := wsbridge.Dial(dialCtx, hubURL(cfg.Hub.Addr), cfg.Window.ID, cfg.Window.Main)
	if err != nil {
		return err
	}
	defer client.Close()

	router := action.NewRouter(registry, cfg.Window.ID, cfg.Window.Main, action.WithTransport(client))
	defer router.Close()

	log.Info().
		Str("hub", cfg.Hub.Addr).
		Bool("main", cfg.Window.Main).
		Msg("window joined hub")

	var diag *server.Server
	if cfg.Debug.Addr != "" {
		diagCfg := server.DefaultConfig()
		diagCfg.Addr = cfg.Debug.Addr
		diag = server.New(diagCfg, registry, cfg.Window.ID, cfg.Window.Main)
		go func() {
			if err := diag.Start(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("diagnostics server error")
			}
		}()
	}

	watchConfig(cmd.Context())

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("window shutting down")

	if diag != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := diag.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("diagnostics shutdown error")
		}
	}
	return nil
}
