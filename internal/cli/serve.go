package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/crdash/internal/api"
	"github.com/sprite-ai/crdash/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local review dashboard server",
	Long: `Start an HTTP server holding one review session.

Endpoints:
  GET    /health                   Health check
  GET    /api/state                Current session snapshot
  POST   /api/actions              Dispatch an action {type, payload}
  POST   /api/files/{kind}         Upload code or srs files (multipart "files")
  DELETE /api/files/{id}           Remove an uploaded file
  POST   /api/diff                 Import a unified diff as suggested changes
  POST   /api/analyze              Run the offline analyzer
  POST   /api/review/toggle        Accept/reject one line
  POST   /api/review/accept-file   Accept every change of a file
  POST   /api/review/reject-file   Reject every change of a file
  GET    /api/review/findings      Check suggested changes against the code
  GET    /api/progress             Review and upload progress
  GET    /api/report?format=       Session report (json, md, html, xlsx)
  GET    /api/ws                   WebSocket stream of session snapshots
  GET    /metrics                  Prometheus metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", "", "address to listen on (default from config)")
	serveCmd.Flags().IntP("port", "p", 0, "port to listen on (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	sc := cfg.Server
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		sc.Addr = addr
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		sc.Port = port
	}

	store := session.NewStore(logger)
	store.Dispatch(session.SetSelectedModel{Model: cfg.Model})

	srv := api.New(sc.Address(), store,
		api.WithLogger(logger),
		api.WithReadConcurrency(cfg.Upload.ReadConcurrency),
		api.WithUploadProgress(cfg.Upload.ProgressStep, cfg.Upload.ProgressInterval),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		srv.Close()
		if err != nil {
			return fmt.Errorf("serving on %s: %w", sc.Address(), err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", slog.Any("error", err))
	}
	return <-errc
}
