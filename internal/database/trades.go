package database

import (
	"context"
	"fmt"
	"time"

	"trading-journal-go/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TradeFilter narrows List. Zero values match everything.
// CompletedTo is exclusive.
type TradeFilter struct {
	Statuses      []models.TradeStatus
	TickerID      string
	CompletedFrom time.Time
	CompletedTo   time.Time
	Limit         int
}

// TickerTotals are the per-ticker counters kept on models.Ticker.
type TickerTotals struct {
	TradeCount      int64
	OpenTradeCount  int64
	TotalProfitLoss float64
}

// TradeRepository persists trades together with their exits and stop changes.
type TradeRepository struct {
	db *gorm.DB
}

func NewTradeRepository(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create inserts t and its children. The ticker association is never written.
func (r *TradeRepository) Create(ctx context.Context, t *models.Trade) error {
	if err := r.db.WithContext(ctx).Omit("Ticker").Create(t).Error; err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}
	return nil
}

// Update overwrites the trade row and replaces its exits and stop changes
// with the ones on t, atomically.
func (r *TradeRepository) Update(ctx context.Context, t *models.Trade) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("trade_id = ?", t.ID).Delete(&models.Exit{}).Error; err != nil {
			return fmt.Errorf("failed to clear exits of trade %s: %w", t.ID, err)
		}
		if err := tx.Where("trade_id = ?", t.ID).Delete(&models.StopModification{}).Error; err != nil {
			return fmt.Errorf("failed to clear stop modifications of trade %s: %w", t.ID, err)
		}
		if err := tx.Omit(clause.Associations).Save(t).Error; err != nil {
			return fmt.Errorf("failed to save trade %s: %w", t.ID, err)
		}

		for i := range t.Exits {
			t.Exits[i].ID = 0
			t.Exits[i].TradeID = t.ID
		}
		if len(t.Exits) > 0 {
			if err := tx.Create(&t.Exits).Error; err != nil {
				return fmt.Errorf("failed to save exits of trade %s: %w", t.ID, err)
			}
		}
		for i := range t.StopModifications {
			t.StopModifications[i].ID = 0
			t.StopModifications[i].TradeID = t.ID
		}
		if len(t.StopModifications) > 0 {
			if err := tx.Create(&t.StopModifications).Error; err != nil {
				return fmt.Errorf("failed to save stop modifications of trade %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// Delete removes a trade and its children. It returns gorm.ErrRecordNotFound
// when no trade has the given id.
func (r *TradeRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("trade_id = ?", id).Delete(&models.Exit{}).Error; err != nil {
			return fmt.Errorf("failed to delete exits of trade %s: %w", id, err)
		}
		if err := tx.Where("trade_id = ?", id).Delete(&models.StopModification{}).Error; err != nil {
			return fmt.Errorf("failed to delete stop modifications of trade %s: %w", id, err)
		}
		res := tx.Where("id = ?", id).Delete(&models.Trade{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete trade %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("trade %s: %w", id, gorm.ErrRecordNotFound)
		}
		return nil
	})
}

// Get loads one trade with its ticker and children.
func (r *TradeRepository) Get(ctx context.Context, id string) (*models.Trade, error) {
	var t models.Trade
	err := withChildren(r.db.WithContext(ctx)).Preload("Ticker").Where("id = ?", id).First(&t).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load trade %s: %w", id, err)
	}
	return &t, nil
}

// List returns trades matching f, most recently completed first.
func (r *TradeRepository) List(ctx context.Context, f TradeFilter) ([]models.Trade, error) {
	q := withChildren(r.db.WithContext(ctx)).Preload("Ticker")
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.TickerID != "" {
		q = q.Where("ticker_id = ?", f.TickerID)
	}
	if !f.CompletedFrom.IsZero() {
		q = q.Where("completion_date >= ?", f.CompletedFrom.UTC())
	}
	if !f.CompletedTo.IsZero() {
		q = q.Where("completion_date < ?", f.CompletedTo.UTC())
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var trades []models.Trade
	if err := q.Order("completion_date DESC").Order("id").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

// Totals sums the rollup counters of one ticker straight from the trade table.
func (r *TradeRepository) Totals(ctx context.Context, tickerID string) (TickerTotals, error) {
	var totals TickerTotals
	err := r.db.WithContext(ctx).Model(&models.Trade{}).
		Select("COUNT(*) AS trade_count, "+
			"COALESCE(SUM(CASE WHEN status <> ? THEN 1 ELSE 0 END), 0) AS open_trade_count, "+
			"COALESCE(SUM(profit_loss_amount), 0) AS total_profit_loss", models.StatusClosed).
		Where("ticker_id = ?", tickerID).
		Scan(&totals).Error
	if err != nil {
		return TickerTotals{}, fmt.Errorf("failed to total trades of ticker %s: %w", tickerID, err)
	}
	return totals, nil
}

func withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Exits", func(db *gorm.DB) *gorm.DB { return db.Order("date, id") }).
		Preload("StopModifications", func(db *gorm.DB) *gorm.DB { return db.Order("date, id") })
}
