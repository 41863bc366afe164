package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ticker is an instrument trades are logged against.
// The counters are denormalized and maintained by the rollup service.
type Ticker struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	Symbol          string    `gorm:"uniqueIndex;size:16;not null" json:"symbol"`
	Name            string    `json:"name,omitempty"`
	TradeCount      int64     `json:"trade_count"`
	OpenTradeCount  int64     `json:"open_trade_count"`
	TotalProfitLoss float64   `json:"total_profit_loss"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (t *Ticker) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}
