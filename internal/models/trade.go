package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Direction is the side a trade was entered on.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// TradeStatus is the lifecycle state of a trade, derived from its exit ledger.
type TradeStatus string

const (
	StatusOpen    TradeStatus = "open"
	StatusPartial TradeStatus = "partial"
	StatusClosed  TradeStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TradeStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusPartial, StatusClosed:
		return true
	}
	return false
}

// Trade is one tracked position in the journal.
// Fields below the "derived" marker are owned by the metrics calculator and
// are never taken from user input.
type Trade struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id"`
	TickerID           string    `gorm:"size:36;index;not null" json:"ticker_id"`
	Ticker             *Ticker   `gorm:"foreignKey:TickerID" json:"ticker,omitempty"`
	Direction          Direction `gorm:"size:8;not null;default:long" json:"direction"`
	EntryDate          time.Time `gorm:"not null" json:"entry_date"`
	EntryPrice         float64   `gorm:"not null" json:"entry_price"`
	Shares             float64   `gorm:"not null" json:"shares"`
	InitialStopLoss    float64   `json:"initial_stop_loss"`
	TargetPositionSize float64   `json:"target_position_size"`
	CurrentPrice       float64   `json:"current_price,omitempty"`
	Notes              string    `gorm:"type:text" json:"notes,omitempty"`

	Exits             []Exit             `gorm:"constraint:OnDelete:CASCADE" json:"exits"`
	StopModifications []StopModification `gorm:"constraint:OnDelete:CASCADE" json:"stop_modifications"`

	// derived
	Status              TradeStatus       `gorm:"size:8;index;not null;default:open" json:"status"`
	CompletionDate      time.Time         `gorm:"index" json:"completion_date"`
	PositionSize        float64           `json:"position_size"`
	RiskAmount          float64           `json:"risk_amount"`
	RiskPercent         float64           `json:"risk_percent"`
	DaysHeld            int               `json:"days_held"`
	ProfitLossAmount    float64           `json:"profit_loss_amount"`
	ProfitLossPercent   float64           `json:"profit_loss_percent"`
	RRatio              float64           `gorm:"column:r_ratio" json:"r_ratio"`
	NormalizationFactor float64           `json:"normalization_factor"`
	Normalized          NormalizedMetrics `gorm:"embedded;embeddedPrefix:normalized_" json:"normalized_metrics"`
	Current             CurrentMetrics    `gorm:"embedded;embeddedPrefix:current_" json:"current_metrics"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizedMetrics rescales realized results to the trade's target position size.
type NormalizedMetrics struct {
	ProfitLossAmount  float64 `json:"profit_loss_amount"`
	ProfitLossPercent float64 `json:"profit_loss_percent"`
	RRatio            float64 `gorm:"column:r_ratio" json:"r_ratio"`
}

// CurrentMetrics holds unrealized figures for a trade that is still open or partial.
type CurrentMetrics struct {
	ProfitLossAmount  float64    `json:"profit_loss_amount"`
	ProfitLossPercent float64    `json:"profit_loss_percent"`
	RRatio            float64    `gorm:"column:r_ratio" json:"r_ratio"`
	RiskAmount        float64    `json:"risk_amount"`
	RiskPercent       float64    `json:"risk_percent"`
	BreakEvenShares   float64    `json:"break_even_shares"`
	LastUpdated       *time.Time `json:"last_updated,omitempty"`
}

// BeforeCreate assigns an id to trades created without one.
func (t *Trade) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// BeforeSave stores the completion date in UTC so range queries compare
// like with like.
func (t *Trade) BeforeSave(tx *gorm.DB) error {
	t.CompletionDate = t.CompletionDate.UTC()
	return nil
}

// HasNormalization reports whether the trade carries normalized metrics.
func (t *Trade) HasNormalization() bool {
	return t.NormalizationFactor > 0
}
