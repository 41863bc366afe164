package refresher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trading-journal-go/internal/config"
	"trading-journal-go/internal/database"
	"trading-journal-go/internal/models"
	"trading-journal-go/internal/quotes"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Journal is the part of the trade journal the refresher drives.
type Journal interface {
	ListTrades(ctx context.Context, f database.TradeFilter) ([]models.Trade, error)
	UpdateCurrentPrice(ctx context.Context, id string, price float64) (*models.Trade, error)
}

// Result summarizes one refresh run.
type Result struct {
	Trades  int
	Updated int
	Missing int
	Failed  int
}

// Refresher marks live trades to market on a cron schedule.
type Refresher struct {
	journal  Journal
	quotes   quotes.PriceSource
	schedule string
	timeout  time.Duration
	logger   *zap.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

func New(j Journal, q quotes.PriceSource, cfg config.Refresher, logger *zap.Logger) *Refresher {
	return &Refresher{
		journal:  j,
		quotes:   q,
		schedule: cfg.Schedule,
		timeout:  5 * time.Minute,
		logger:   logger.Named("refresher"),
	}
}

// Start schedules the refresh. A run still in progress when the next one is
// due makes the next one skip.
func (r *Refresher) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return fmt.Errorf("refresher already started")
	}

	log := cronLogger{r.logger.Sugar()}
	c := cron.New(cron.WithLogger(log), cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)))
	if _, err := c.AddFunc(r.schedule, r.run); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", r.schedule, err)
	}
	c.Start()
	r.cron = c

	r.logger.Info("Refresher started", zap.String("schedule", r.schedule))
	return nil
}

// Stop halts scheduling and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	r.logger.Info("Refresher stopped")
}

func (r *Refresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if _, err := r.RefreshOnce(ctx); err != nil {
		r.logger.Error("Scheduled refresh failed", zap.Error(err))
	}
}

// RefreshOnce fetches prices for every open or partial trade and updates
// their current metrics. A trade that fails to update is logged and counted.
func (r *Refresher) RefreshOnce(ctx context.Context) (Result, error) {
	trades, err := r.journal.ListTrades(ctx, database.TradeFilter{
		Statuses: []models.TradeStatus{models.StatusOpen, models.StatusPartial},
	})
	if err != nil {
		return Result{}, fmt.Errorf("could not list live trades: %w", err)
	}

	res := Result{Trades: len(trades)}
	if len(trades) == 0 {
		return res, nil
	}

	symbols := make([]string, 0, len(trades))
	for _, t := range trades {
		if t.Ticker != nil {
			symbols = append(symbols, t.Ticker.Symbol)
		}
	}
	prices, err := r.quotes.GetPrices(ctx, symbols)
	if err != nil {
		return res, fmt.Errorf("could not fetch prices: %w", err)
	}

	for _, t := range trades {
		if t.Ticker == nil {
			res.Missing++
			continue
		}
		price, ok := prices[t.Ticker.Symbol]
		if !ok {
			res.Missing++
			continue
		}
		if _, err := r.journal.UpdateCurrentPrice(ctx, t.ID, price); err != nil {
			res.Failed++
			r.logger.Error("Failed to update current price",
				zap.String("trade_id", t.ID), zap.String("symbol", t.Ticker.Symbol), zap.Error(err))
			continue
		}
		res.Updated++
	}

	r.logger.Info("Current prices refreshed",
		zap.Int("trades", res.Trades),
		zap.Int("updated", res.Updated),
		zap.Int("missing", res.Missing),
		zap.Int("failed", res.Failed))
	return res, nil
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
