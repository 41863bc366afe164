package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trading-journal-go/internal/config"
	"trading-journal-go/internal/database"
	"trading-journal-go/internal/journal"
	"trading-journal-go/internal/models"
	"trading-journal-go/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrExitExceedsShares = errors.New("exit exceeds remaining shares")
)

// TradeStore is the persistence the journal needs for trades.
type TradeStore interface {
	Create(ctx context.Context, t *models.Trade) error
	Update(ctx context.Context, t *models.Trade) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Trade, error)
	List(ctx context.Context, f database.TradeFilter) ([]models.Trade, error)
}

type TickerStore interface {
	FindOrCreateBySymbol(ctx context.Context, symbol string) (*models.Ticker, error)
	Get(ctx context.Context, id string) (*models.Ticker, error)
	List(ctx context.Context) ([]models.Ticker, error)
}

// Rollup is told about every ticker whose trades changed.
type Rollup interface {
	Recompute(ctx context.Context, tickerID string) error
}

// Journal is the write and read path over trades. Every write re-derives
// status and metrics before persisting, then notifies the rollup.
type Journal struct {
	trades  TradeStore
	tickers TickerStore
	rollup  Rollup
	calc    journal.Calculator
	cfg     config.Journal
	logger  *zap.Logger
}

func NewJournal(trades TradeStore, tickers TickerStore, rollup Rollup, calc journal.Calculator, cfg config.Journal, logger *zap.Logger) *Journal {
	return &Journal{
		trades:  trades,
		tickers: tickers,
		rollup:  rollup,
		calc:    calc,
		cfg:     cfg,
		logger:  logger.Named("journal"),
	}
}

// CreateTrade validates and derives a new trade, then stores it. The ticker
// is taken from TickerID, or found or created from Symbol. A trade submitted
// without a target position size gets the configured default.
func (j *Journal) CreateTrade(ctx context.Context, in journal.TradeInput) (_ *models.Trade, err error) {
	ctx, span := tracing.StartSpan(ctx, "journal.CreateTrade")
	defer func() { tracing.End(span, err) }()

	if !in.TargetPositionSize.Set || in.TargetPositionSize.Value <= 0 {
		in.TargetPositionSize = journal.Num(j.cfg.TargetPositionSize)
	}

	trade, err := j.calc.DeriveTradeFields(in)
	if err != nil {
		return nil, err
	}

	ticker, err := j.resolveTicker(ctx, in)
	if err != nil {
		return nil, err
	}
	if ticker == nil {
		return nil, &journal.ValidationError{Field: "ticker", Reason: "ticker_id or symbol is required"}
	}
	trade.TickerID = ticker.ID

	if err := j.trades.Create(ctx, trade); err != nil {
		return nil, err
	}
	trade.Ticker = ticker
	span.SetAttributes(attribute.String("trade.id", trade.ID), attribute.String("trade.status", string(trade.Status)))

	j.logger.Info("Trade created",
		zap.String("id", trade.ID),
		zap.String("symbol", ticker.Symbol),
		zap.String("status", string(trade.Status)))
	j.notify(ctx, trade.TickerID)
	return trade, nil
}

// UpdateTrade replaces the user inputs of a trade and re-derives everything.
// Exits, stop modifications and current price left out of in keep their
// stored values; an empty list clears them. The target position size
// captured at creation never changes.
func (j *Journal) UpdateTrade(ctx context.Context, id string, in journal.TradeInput) (_ *models.Trade, err error) {
	ctx, span := tracing.StartSpan(ctx, "journal.UpdateTrade", trace.WithAttributes(attribute.String("trade.id", id)))
	defer func() { tracing.End(span, err) }()

	existing, err := j.load(ctx, id)
	if err != nil {
		return nil, err
	}

	in.TargetPositionSize = journal.Num(existing.TargetPositionSize)
	trade, err := journal.ParseTrade(in)
	if err != nil {
		return nil, err
	}
	if in.Exits == nil {
		trade.Exits = existing.Exits
	}
	if in.StopModifications == nil {
		trade.StopModifications = existing.StopModifications
	}
	if !in.CurrentPrice.Set {
		trade.CurrentPrice = existing.CurrentPrice
	}

	trade.ID = existing.ID
	trade.CreatedAt = existing.CreatedAt
	trade.TickerID = existing.TickerID
	trade.Ticker = existing.Ticker
	ticker, err := j.resolveTicker(ctx, in)
	if err != nil {
		return nil, err
	}
	if ticker != nil {
		trade.TickerID, trade.Ticker = ticker.ID, ticker
	}

	j.calc.Derive(trade)
	if err := j.save(ctx, trade); err != nil {
		return nil, err
	}

	j.logger.Info("Trade updated", zap.String("id", trade.ID), zap.String("status", string(trade.Status)))
	j.notify(ctx, trade.TickerID)
	if existing.TickerID != trade.TickerID {
		j.notify(ctx, existing.TickerID)
	}
	return trade, nil
}

// AddExit records a sale of some of the remaining shares. An exit without a
// date is dated now. Selling more than is still held fails with
// ErrExitExceedsShares.
func (j *Journal) AddExit(ctx context.Context, id string, in journal.ExitInput) (_ *models.Trade, err error) {
	ctx, span := tracing.StartSpan(ctx, "journal.AddExit", trace.WithAttributes(attribute.String("trade.id", id)))
	defer func() { tracing.End(span, err) }()

	trade, err := j.load(ctx, id)
	if err != nil {
		return nil, err
	}

	exit := journal.ParseExit(in, j.now())
	if exit.Price <= 0 {
		return nil, &journal.ValidationError{Field: "price", Reason: "must be greater than zero"}
	}
	if exit.Shares <= 0 {
		return nil, &journal.ValidationError{Field: "shares", Reason: "must be greater than zero"}
	}
	remaining := journal.ResolveLedger(trade.Exits).Remaining(trade.Shares)
	if exit.Shares > remaining+1e-9 {
		return nil, fmt.Errorf("%w: %g requested, %g held", ErrExitExceedsShares, exit.Shares, remaining)
	}

	trade.Exits = append(trade.Exits, exit)
	j.calc.Derive(trade)
	if err := j.save(ctx, trade); err != nil {
		return nil, err
	}

	j.logger.Info("Exit recorded",
		zap.String("id", trade.ID),
		zap.Float64("shares", exit.Shares),
		zap.Float64("price", exit.Price),
		zap.String("status", string(trade.Status)))
	j.notify(ctx, trade.TickerID)
	return trade, nil
}

// AddStopModification records a new stop price. It moves the active stop
// used by current metrics; realized risk stays on the initial stop.
func (j *Journal) AddStopModification(ctx context.Context, id string, in journal.StopInput) (_ *models.Trade, err error) {
	ctx, span := tracing.StartSpan(ctx, "journal.AddStopModification", trace.WithAttributes(attribute.String("trade.id", id)))
	defer func() { tracing.End(span, err) }()

	trade, err := j.load(ctx, id)
	if err != nil {
		return nil, err
	}

	stop := journal.ParseStop(in, j.now())
	if stop.Price <= 0 {
		return nil, &journal.ValidationError{Field: "price", Reason: "must be greater than zero"}
	}

	trade.StopModifications = append(trade.StopModifications, stop)
	j.calc.Derive(trade)
	if err := j.save(ctx, trade); err != nil {
		return nil, err
	}

	j.logger.Info("Stop modified", zap.String("id", trade.ID), zap.Float64("price", stop.Price))
	return trade, nil
}

// UpdateCurrentPrice marks a trade to market and refreshes its current metrics.
func (j *Journal) UpdateCurrentPrice(ctx context.Context, id string, price float64) (_ *models.Trade, err error) {
	ctx, span := tracing.StartSpan(ctx, "journal.UpdateCurrentPrice", trace.WithAttributes(attribute.String("trade.id", id)))
	defer func() { tracing.End(span, err) }()

	if price <= 0 {
		return nil, &journal.ValidationError{Field: "current_price", Reason: "must be greater than zero"}
	}

	trade, err := j.load(ctx, id)
	if err != nil {
		return nil, err
	}

	trade.CurrentPrice = price
	j.calc.Derive(trade)
	if err := j.save(ctx, trade); err != nil {
		return nil, err
	}

	j.logger.Debug("Current price updated", zap.String("id", trade.ID), zap.Float64("price", price))
	return trade, nil
}

func (j *Journal) DeleteTrade(ctx context.Context, id string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "journal.DeleteTrade", trace.WithAttributes(attribute.String("trade.id", id)))
	defer func() { tracing.End(span, err) }()

	trade, err := j.load(ctx, id)
	if err != nil {
		return err
	}
	if err := j.trades.Delete(ctx, id); err != nil {
		return notFound(err)
	}

	j.logger.Info("Trade deleted", zap.String("id", id))
	j.notify(ctx, trade.TickerID)
	return nil
}

func (j *Journal) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	return j.load(ctx, id)
}

func (j *Journal) ListTrades(ctx context.Context, f database.TradeFilter) ([]models.Trade, error) {
	return j.trades.List(ctx, f)
}

func (j *Journal) ListTickers(ctx context.Context) ([]models.Ticker, error) {
	return j.tickers.List(ctx)
}

// Statistics aggregates the trades selected by opts. The date range is applied
// in the query, then at most MaxStatisticsTrades of the most recently
// completed trades in it are considered.
func (j *Journal) Statistics(ctx context.Context, opts journal.StatisticsOptions) (_ journal.Snapshot, err error) {
	ctx, span := tracing.StartSpan(ctx, "journal.Statistics")
	defer func() { tracing.End(span, err) }()

	if opts.Status == "" {
		opts.Status = journal.ClosedAndPartial
	}
	filter := database.TradeFilter{
		Statuses: opts.Status.Statuses(),
		TickerID: opts.TickerID,
		Limit:    j.cfg.MaxStatisticsTrades,
	}
	if opts.DateRange != nil {
		filter.CompletedFrom, filter.CompletedTo = opts.DateRange.Bounds()
	}
	trades, err := j.trades.List(ctx, filter)
	if err != nil {
		return journal.Snapshot{}, err
	}

	snapshot := journal.ComputeStatistics(trades, opts)
	span.SetAttributes(attribute.Int("statistics.fetched", len(trades)), attribute.Int("statistics.total", snapshot.TotalTrades))
	return snapshot, nil
}

func (j *Journal) resolveTicker(ctx context.Context, in journal.TradeInput) (*models.Ticker, error) {
	switch {
	case in.TickerID != "":
		ticker, err := j.tickers.Get(ctx, in.TickerID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &journal.ValidationError{Field: "ticker_id", Reason: "does not exist"}
		}
		return ticker, err
	case in.Symbol != "":
		return j.tickers.FindOrCreateBySymbol(ctx, in.Symbol)
	}
	return nil, nil
}

func (j *Journal) load(ctx context.Context, id string) (*models.Trade, error) {
	trade, err := j.trades.Get(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return trade, nil
}

func (j *Journal) save(ctx context.Context, t *models.Trade) error {
	return notFound(j.trades.Update(ctx, t))
}

// notify recomputes a ticker's rollup. The trade write has already
// succeeded, so a failure here is only logged.
func (j *Journal) notify(ctx context.Context, tickerID string) {
	if j.rollup == nil || tickerID == "" {
		return
	}
	if err := j.rollup.Recompute(ctx, tickerID); err != nil {
		j.logger.Error("Ticker rollup failed", zap.String("ticker_id", tickerID), zap.Error(err))
	}
}

func (j *Journal) now() time.Time {
	if j.calc.Now != nil {
		return j.calc.Now()
	}
	return time.Now()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
