package models

import (
	"strings"
	"time"
)

// ExitReason explains why shares were sold.
type ExitReason string

const (
	ExitReasonStrength    ExitReason = "strength"
	ExitReasonStopHit     ExitReason = "stop-hit"
	ExitReasonBackstop    ExitReason = "backstop"
	ExitReasonViolation   ExitReason = "violation"
	ExitReasonTechnical   ExitReason = "technical"
	ExitReasonFundamental ExitReason = "fundamental"
	ExitReasonOther       ExitReason = "other"
)

// ParseExitReason normalizes free-form input; unknown values become "other".
func ParseExitReason(s string) ExitReason {
	switch r := ExitReason(strings.ToLower(strings.TrimSpace(s))); r {
	case ExitReasonStrength, ExitReasonStopHit, ExitReasonBackstop, ExitReasonViolation,
		ExitReasonTechnical, ExitReasonFundamental:
		return r
	case "target":
		return ExitReasonStrength
	case "stop", "stop_hit", "stophit":
		return ExitReasonStopHit
	}
	return ExitReasonOther
}

// Exit is a (possibly partial) sale of a trade's shares.
type Exit struct {
	ID      uint       `gorm:"primaryKey" json:"id"`
	TradeID string     `gorm:"size:36;index;not null" json:"trade_id"`
	Price   float64    `gorm:"not null" json:"price"`
	Shares  float64    `gorm:"not null" json:"shares"`
	Date    time.Time  `gorm:"not null" json:"date"`
	Reason  ExitReason `gorm:"size:16;not null;default:other" json:"reason"`
	Notes   string     `gorm:"type:text" json:"notes,omitempty"`
}

// StopModification records a stop-loss change. It is history only; risk stays
// anchored to the trade's initial stop.
type StopModification struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	TradeID string    `gorm:"size:36;index;not null" json:"trade_id"`
	Price   float64   `gorm:"not null" json:"price"`
	Date    time.Time `gorm:"not null" json:"date"`
	Notes   string    `gorm:"type:text" json:"notes,omitempty"`
}
