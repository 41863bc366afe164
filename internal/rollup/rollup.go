package rollup

import (
	"context"
	"fmt"
	"sync"

	"trading-journal-go/internal/database"
	"trading-journal-go/internal/models"

	"go.uber.org/zap"
)

// TradeTotals reads the aggregate counters of one ticker from the trade store.
type TradeTotals interface {
	Totals(ctx context.Context, tickerID string) (database.TickerTotals, error)
}

// TickerStore persists the rolled-up counters.
type TickerStore interface {
	SetTotals(ctx context.Context, id string, totals database.TickerTotals) error
	List(ctx context.Context) ([]models.Ticker, error)
}

// Service keeps the per-ticker counters in step with the trade table.
// Every recomputation reads the full trade set of the ticker, so running it
// twice is harmless; runs for the same ticker never overlap.
type Service struct {
	trades  TradeTotals
	tickers TickerStore
	logger  *zap.Logger
	locks   *keyedMutex
}

func NewService(trades TradeTotals, tickers TickerStore, logger *zap.Logger) *Service {
	return &Service{
		trades:  trades,
		tickers: tickers,
		logger:  logger,
		locks:   newKeyedMutex(),
	}
}

// Recompute refreshes the counters of one ticker.
func (s *Service) Recompute(ctx context.Context, tickerID string) error {
	if tickerID == "" {
		return nil
	}

	unlock := s.locks.Lock(tickerID)
	defer unlock()

	totals, err := s.trades.Totals(ctx, tickerID)
	if err != nil {
		return err
	}
	if err := s.tickers.SetTotals(ctx, tickerID, totals); err != nil {
		return err
	}

	s.logger.Debug("Ticker rollup recomputed",
		zap.String("ticker_id", tickerID),
		zap.Int64("trades", totals.TradeCount),
		zap.Int64("open", totals.OpenTradeCount),
		zap.Float64("profit_loss", totals.TotalProfitLoss))
	return nil
}

// RecomputeAll refreshes every ticker and reports how many were updated.
// A failing ticker is logged and skipped.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	tickers, err := s.tickers.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not list tickers for rollup: %w", err)
	}

	updated := 0
	for _, t := range tickers {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if err := s.Recompute(ctx, t.ID); err != nil {
			s.logger.Error("Ticker rollup failed", zap.String("symbol", t.Symbol), zap.Error(err))
			continue
		}
		updated++
	}
	return updated, nil
}

// keyedMutex serializes work per key. Entries are dropped once no holder or
// waiter remains.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
