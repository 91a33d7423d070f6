package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	"wisgen/internal/config"
	"wisgen/internal/logger"
	"wisgen/internal/server"
	"wisgen/internal/store"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port     int
		host     string
		readOnly bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API over the data directory",
		Long: `Start the wisgen HTTP API.

The server provides:
  • Saved newsletters and their processed versions
  • Daily insight batches, the latest trend report and weekly digests
  • Triggers to pull newsletters, analyze trends and process newsletters
  • Recent runs from the run ledger

When the mail source or Gemini cannot be opened the server still starts and
serves the stored data; triggers then answer 503.

Examples:
  # Start server on default port 8080
  wisgen serve

  # Start on custom port without triggers
  wisgen serve --port 3000 --read-only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host, readOnly)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 127.0.0.1)")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "serve stored data only, without pipeline triggers")

	return cmd
}

func runServe(ctx context.Context, port int, host string, readOnly bool) error {
	log := logger.Get()
	cfg := config.Get()

	serverCfg := cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	layout := store.NewLayout(cfg.App.DataDir)
	if err := layout.Ensure(); err != nil {
		return err
	}

	var srv *server.Server
	if s, err := openServeSession(ctx, readOnly); s != nil {
		defer s.Close()
		srv = server.New(layout, s.runner, s.ledger, serverCfg, log)
	} else {
		if err != nil {
			log.Warn("Pipeline unavailable, serving stored data only", "error", err)
		}
		ledger, lerr := store.OpenLedger(layout)
		if lerr != nil {
			log.Warn("Run ledger unavailable", "error", lerr)
			srv = server.New(layout, nil, nil, serverCfg, log)
		} else {
			defer ledger.Close()
			srv = server.New(layout, nil, ledger, serverCfg, log)
		}
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		log.Info("Press Ctrl+C to stop")
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info("Server shutdown initiated", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed, forcing close", "error", err)
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		log.Info("Server stopped successfully")
	}

	return nil
}

func openServeSession(ctx context.Context, readOnly bool) (*session, error) {
	if readOnly {
		return nil, nil
	}
	return openSession(ctx)
}
