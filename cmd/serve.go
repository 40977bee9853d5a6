package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/scandock/scandock/internal/handlers"
	"github.com/scandock/scandock/internal/logging"
	"github.com/spf13/cobra"
)

func newServeCmd(settingsPath *string) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scan bridge HTTP API",
		Long: `Starts the Scandock API on the specified port.

The API exposes scanner discovery and diagnostics, scan triggering,
session page management, document combination, and upstream upload.`,
		Example: `  # Start server on default port 8090
  scandock serve

  # Start server on custom port
  scandock serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Mirror log records into the live-stream broadcaster.
			logs := logging.NewBroadcaster(200)
			base := slog.NewTextHandler(os.Stderr, nil)
			slog.SetDefault(slog.New(logging.NewFanoutHandler(base, logs)))

			handler, err := handlers.New(*settingsPath, logs)
			if err != nil {
				return err
			}

			mux := http.NewServeMux()
			mux.HandleFunc("/api/scanners", handler.HandleScanners)
			mux.HandleFunc("/api/scanners/diagnose", handler.HandleDiagnose)
			mux.HandleFunc("/api/scanners/fix", handler.HandleFix)
			mux.HandleFunc("/api/scan", handler.HandleScan)
			mux.HandleFunc("/api/sessions", handler.HandleSessions)
			mux.HandleFunc("/api/sessions/", handler.HandleSessionDetail)
			mux.HandleFunc("/api/settings", handler.HandleSettings)
			mux.HandleFunc("/api/logs/stream", handler.HandleLogStream)
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Scandock API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8090", "Port to listen on")

	return cmd
}
