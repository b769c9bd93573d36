package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jason-Cooke/nylas-mail/internal/logging"
	"github.com/Jason-Cooke/nylas-mail/internal/transport/wsbridge"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cross-window relay hub",
	Long: `Run the WebSocket hub that relays envelopes between window processes.

Window processes join with 'actionbridge window'. The hub also serves
GET /windows listing the connected windows on the same address.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Hub.Addr = serveAddr
	}

	hub := wsbridge.NewHub()
	defer hub.Close()

	srv := &http.Server{
		Addr:        cfg.Hub.Addr,
		Handler:     hub.Handler(),
		ReadTimeout: 0, // WebSocket connections stay open indefinitely
	}

	go func() {
		logging.Info().Str("addr", cfg.Hub.Addr).Msg("hub listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("hub server error")
		}
	}()

	watchConfig(cmd.Context())

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down hub")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("hub shutdown error")
	}

	logging.Info().Msg("hub stopped")
	return nil
}
