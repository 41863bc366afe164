package main

import (
	"context"
	"fmt"
	"time"

	"trading-journal-go/internal/config"
	"trading-journal-go/internal/database"
	"trading-journal-go/internal/journal"
	"trading-journal-go/internal/logger"
	"trading-journal-go/internal/rollup"
	"trading-journal-go/internal/service"
	"trading-journal-go/internal/tracing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	configDir string
	dsn       string
)

var rootCmd = &cobra.Command{
	Use:   "journal",
	Short: "Trading journal: trade metrics, portfolio statistics and ticker rollups",
	Long: `Trading journal service and tools.

Examples:
  journal serve
  journal stats --status closed-only --start 2024-01-01 --output yaml
  journal refresh
  journal rollup`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "./configs", "directory holding config.yml")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "database DSN (overrides database.dsn)")
}

// app is the wired journal stack shared by every command.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	db      *gorm.DB
	trades  *database.TradeRepository
	tickers *database.TickerRepository
	rollup  *rollup.Service
	journal *service.Journal
}

func bootstrap() (*app, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	if dsn != "" {
		cfg.Database.DSN = dsn
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("could not initialize logger: %w", err)
	}

	if err := tracing.Init(cfg.Tracing, nil); err != nil {
		return nil, fmt.Errorf("could not initialize tracing: %w", err)
	}

	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	log.Debug("Database connection successful and schema migrated", zap.String("dsn", cfg.Database.DSN))

	trades := database.NewTradeRepository(db)
	tickers := database.NewTickerRepository(db)
	roll := rollup.NewService(trades, tickers, log.Named("rollup"))

	return &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		trades:  trades,
		tickers: tickers,
		rollup:  roll,
		journal: service.NewJournal(trades, tickers, roll, journal.NewCalculator(), cfg.Journal, log),
	}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.Shutdown(ctx); err != nil {
		a.log.Warn("Failed to flush traces", zap.Error(err))
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.log.Sync()
}
