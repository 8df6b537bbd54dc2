package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/hakim/scandash/internal/dashboard"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard HTTP API",
	Long: `Run the JSON HTTP API used by the dashboard front end.

  POST   /api/scans              start a scan {"url": "..."}
  GET    /api/scans              recorded scans, newest first
  GET    /api/scans/:id          one recorded scan
  POST   /api/scans/:id/select   view a recorded scan
  GET    /api/view               active view, summary, chart series, selection
  PUT    /api/view/finding       select a finding {"index": n}
  DELETE /api/view/finding       clear the selected finding
  DELETE /api/live               stop polling the live scan
  GET    /metrics                Prometheus metrics (metrics.enabled)
  GET    /healthz                liveness`,
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")

		if err := requireConfig(); err != nil {
			return err
		}
		if listen == "" {
			listen = cfg.Server.Listen
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if !verbose {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := &http.Server{
			Addr:              listen,
			Handler:           dashboard.NewRouter(a.svc, a.metrics, slog.Default()),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()
		fmt.Printf("[*] Serving on %s (scanner: %s)\n", listen, cfg.Scanner.BaseURL)

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		fmt.Println("[*] Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "Listen address (default: server.listen)")
	rootCmd.AddCommand(serveCmd)
}
