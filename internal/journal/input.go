package journal

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"

	"trading-journal-go/internal/models"
)

// Number is a numeric input that may arrive as a JSON number or a numeric string.
// Malformed values decode without error and are reported as not Set.
type Number struct {
	Value float64
	Set   bool
}

// Num wraps an already-typed value.
func Num(v float64) Number {
	return Number{Value: v, Set: true}
}

// Or returns the value when set, otherwise def.
func (n Number) Or(def float64) float64 {
	if n.Set {
		return n.Value
	}
	return def
}

func (n *Number) UnmarshalJSON(b []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		*n = Number{}
		return nil
	}
	n.Value, n.Set = coerceFloat(raw)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Set {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func coerceFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case nil, bool:
		return 0, false
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, false
		}
		raw = v
	case json.Number:
		raw = v.String()
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Date accepts RFC3339 timestamps, plain calendar dates and unix seconds.
type Date struct {
	Time time.Time
	Set  bool
}

// On wraps an already-typed time.
func On(t time.Time) Date {
	return Date{Time: t, Set: !t.IsZero()}
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil || raw == nil {
		*d = Date{}
		return nil
	}
	if s, ok := raw.(string); ok {
		if s = strings.TrimSpace(s); s == "" {
			*d = Date{}
			return nil
		}
		raw = s
	}
	t, err := cast.ToTimeE(raw)
	if err != nil || t.IsZero() {
		*d = Date{}
		return nil
	}
	*d = Date{Time: t.UTC(), Set: true}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Set {
		return []byte("null"), nil
	}
	return json.Marshal(d.Time)
}

// TradeInput is the write-side shape of a trade as submitted by a client.
type TradeInput struct {
	TickerID           string      `json:"ticker_id"`
	Symbol             string      `json:"symbol"`
	Direction          string      `json:"direction"`
	Status             string      `json:"status"`
	EntryDate          Date        `json:"entry_date"`
	EntryPrice         Number      `json:"entry_price"`
	Shares             Number      `json:"shares"`
	InitialStopLoss    Number      `json:"initial_stop_loss"`
	TargetPositionSize Number      `json:"target_position_size"`
	CurrentPrice       Number      `json:"current_price"`
	Notes              string      `json:"notes"`
	Exits              []ExitInput `json:"exits"`
	StopModifications  []StopInput `json:"stop_modifications"`
}

type ExitInput struct {
	Price  Number `json:"price"`
	Shares Number `json:"shares"`
	Date   Date   `json:"date"`
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

type StopInput struct {
	Price Number `json:"price"`
	Date  Date   `json:"date"`
	Notes string `json:"notes"`
}

// ParseTrade validates the structurally required inputs and builds a trade
// carrying only user-owned fields. Secondary numeric inputs that are missing
// or malformed are normalized to 0; exits and stop changes without a date
// are dated at entry.
func ParseTrade(in TradeInput) (*models.Trade, error) {
	if !in.EntryPrice.Set {
		return nil, invalid("entry_price", "is required and must be numeric")
	}
	if in.EntryPrice.Value <= 0 {
		return nil, invalid("entry_price", "must be greater than zero")
	}
	if !in.Shares.Set {
		return nil, invalid("shares", "is required and must be numeric")
	}
	if in.Shares.Value <= 0 {
		return nil, invalid("shares", "must be greater than zero")
	}
	if !in.EntryDate.Set {
		return nil, invalid("entry_date", "is required")
	}

	t := &models.Trade{
		TickerID:           in.TickerID,
		Direction:          ParseDirection(in.Direction),
		Status:             models.TradeStatus(strings.ToLower(strings.TrimSpace(in.Status))),
		EntryDate:          in.EntryDate.Time,
		EntryPrice:         in.EntryPrice.Value,
		Shares:             in.Shares.Value,
		InitialStopLoss:    nonNegative(in.InitialStopLoss),
		TargetPositionSize: nonNegative(in.TargetPositionSize),
		CurrentPrice:       nonNegative(in.CurrentPrice),
		Notes:              in.Notes,
	}

	t.Exits = make([]models.Exit, 0, len(in.Exits))
	for _, e := range in.Exits {
		t.Exits = append(t.Exits, ParseExit(e, t.EntryDate))
	}
	t.StopModifications = make([]models.StopModification, 0, len(in.StopModifications))
	for _, s := range in.StopModifications {
		t.StopModifications = append(t.StopModifications, ParseStop(s, t.EntryDate))
	}
	return t, nil
}

// ParseExit converts a submitted exit, dating it at fallback when no date was given.
func ParseExit(in ExitInput, fallback time.Time) models.Exit {
	date := fallback
	if in.Date.Set {
		date = in.Date.Time
	}
	return models.Exit{
		Price:  nonNegative(in.Price),
		Shares: nonNegative(in.Shares),
		Date:   date,
		Reason: models.ParseExitReason(in.Reason),
		Notes:  in.Notes,
	}
}

func ParseStop(in StopInput, fallback time.Time) models.StopModification {
	date := fallback
	if in.Date.Set {
		date = in.Date.Time
	}
	return models.StopModification{
		Price: nonNegative(in.Price),
		Date:  date,
		Notes: in.Notes,
	}
}

// ParseDirection maps anything other than "short" to long.
func ParseDirection(s string) models.Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(models.DirectionShort)) {
		return models.DirectionShort
	}
	return models.DirectionLong
}

func nonNegative(n Number) float64 {
	if !n.Set || n.Value < 0 {
		return 0
	}
	return n.Value
}
