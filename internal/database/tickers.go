package database

import (
	"context"
	"fmt"
	"strings"

	"trading-journal-go/internal/models"

	"gorm.io/gorm"
)

type TickerRepository struct {
	db *gorm.DB
}

func NewTickerRepository(db *gorm.DB) *TickerRepository {
	return &TickerRepository{db: db}
}

// FindOrCreateBySymbol returns the ticker for symbol, creating it on first use.
// Symbols are stored upper-case.
func (r *TickerRepository) FindOrCreateBySymbol(ctx context.Context, symbol string) (*models.Ticker, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("empty ticker symbol")
	}

	ticker := models.Ticker{Symbol: symbol}
	if err := r.db.WithContext(ctx).Where(models.Ticker{Symbol: symbol}).FirstOrCreate(&ticker).Error; err != nil {
		return nil, fmt.Errorf("failed to find or create ticker %s: %w", symbol, err)
	}
	return &ticker, nil
}

func (r *TickerRepository) Get(ctx context.Context, id string) (*models.Ticker, error) {
	var ticker models.Ticker
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ticker).Error; err != nil {
		return nil, fmt.Errorf("failed to load ticker %s: %w", id, err)
	}
	return &ticker, nil
}

func (r *TickerRepository) List(ctx context.Context) ([]models.Ticker, error) {
	var tickers []models.Ticker
	if err := r.db.WithContext(ctx).Order("symbol").Find(&tickers).Error; err != nil {
		return nil, fmt.Errorf("failed to list tickers: %w", err)
	}
	return tickers, nil
}

// SetTotals overwrites the rollup counters of a ticker.
func (r *TickerRepository) SetTotals(ctx context.Context, id string, totals TickerTotals) error {
	res := r.db.WithContext(ctx).Model(&models.Ticker{}).Where("id = ?", id).Updates(map[string]any{
		"trade_count":       totals.TradeCount,
		"open_trade_count":  totals.OpenTradeCount,
		"total_profit_loss": totals.TotalProfitLoss,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update totals of ticker %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("ticker %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}
