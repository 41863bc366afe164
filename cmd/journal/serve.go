package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"trading-journal-go/internal/api"
	"trading-journal-go/internal/quotes"
	"trading-journal-go/internal/refresher"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the journal HTTP API, plus the scheduled price refresher when
refresher.enabled is set.

Endpoints:
  GET    /health
  GET    /api/trades              POST /api/trades
  GET    /api/trades/{id}         PUT  /api/trades/{id}   DELETE /api/trades/{id}
  POST   /api/trades/{id}/exits   POST /api/trades/{id}/stops
  PUT    /api/trades/{id}/price
  GET    /api/tickers
  GET    /api/statistics?status=&ticker=&start=&end=`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	if servePort > 0 {
		a.cfg.Server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.Refresher.Enabled {
		r := refresher.New(a.journal, quotes.NewClient(a.cfg.Quotes, a.log), a.cfg.Refresher, a.log)
		if err := r.Start(); err != nil {
			return err
		}
		defer r.Stop()
	}

	router := api.NewRouter(api.NewHandler(a.journal, a.log), a.log)
	server := api.NewServer(a.cfg.Server, router, a.log)
	errc, err := server.Start()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		a.log.Info("Shutdown signal received, gracefully shutting down...")
	case err := <-errc:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		a.log.Error("API server shutdown failed", zap.Error(err))
		return err
	}
	a.log.Info("Journal has been shut down.")
	return nil
}
