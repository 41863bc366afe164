package journal

import (
	"fmt"
	"math"
	"strings"
	"time"

	"trading-journal-go/internal/models"
)

// Statistics is the battery of performance figures computed over a trade set.
type Statistics struct {
	TotalTrades            int     `json:"total_trades" yaml:"total_trades"`
	WinningTrades          int     `json:"winning_trades" yaml:"winning_trades"`
	LosingTrades           int     `json:"losing_trades" yaml:"losing_trades"`
	BreakEvenTrades        int     `json:"break_even_trades" yaml:"break_even_trades"`
	BattingAverage         float64 `json:"batting_average" yaml:"batting_average"`
	AverageWinPercent      float64 `json:"average_win_percent" yaml:"average_win_percent"`
	AverageLossPercent     float64 `json:"average_loss_percent" yaml:"average_loss_percent"`
	WinLossRatio           float64 `json:"win_loss_ratio" yaml:"win_loss_ratio"`
	AdjustedWinLossRatio   float64 `json:"adjusted_win_loss_ratio" yaml:"adjusted_win_loss_ratio"`
	AverageRRatio          float64 `json:"average_r_ratio" yaml:"average_r_ratio"`
	ProfitFactor           float64 `json:"profit_factor" yaml:"profit_factor"`
	Expectancy             float64 `json:"expectancy" yaml:"expectancy"`
	AverageDaysHeldWinners float64 `json:"average_days_held_winners" yaml:"average_days_held_winners"`
	AverageDaysHeldLosers  float64 `json:"average_days_held_losers" yaml:"average_days_held_losers"`
	MaxGainPercent         float64 `json:"max_gain_percent" yaml:"max_gain_percent"`
	MaxLossPercent         float64 `json:"max_loss_percent" yaml:"max_loss_percent"`
	MaxGainLossRatio       float64 `json:"max_gain_loss_ratio" yaml:"max_gain_loss_ratio"`
	TotalProfitLoss        float64 `json:"total_profit_loss" yaml:"total_profit_loss"`
	TotalProfitLossPercent float64 `json:"total_profit_loss_percent" yaml:"total_profit_loss_percent"`
}

// NormalizedStatistics mirrors Statistics over position-size-normalized results.
type NormalizedStatistics struct {
	Statistics                    `yaml:",inline"`
	EstimatedNormalizedInvestment float64 `json:"estimated_normalized_investment" yaml:"estimated_normalized_investment"`
}

// Snapshot is a transient statistics result; it is never persisted.
type Snapshot struct {
	Statistics `yaml:",inline"`
	Normalized NormalizedStatistics `json:"normalized" yaml:"normalized"`
}

// sample is one trade's contribution to a statistics section.
type sample struct {
	percent float64
	amount  float64
	rRatio  float64
	days    float64
	capital float64
}

// Aggregate reduces trades into a snapshot. It is a pure function of the set:
// input order does not matter and the slice is not modified. An empty set
// yields an all-zero snapshot.
func Aggregate(trades []models.Trade) Snapshot {
	raw := make([]sample, 0, len(trades))
	normalized := make([]sample, 0, len(trades))
	var investment float64

	for i := range trades {
		t := &trades[i]
		raw = append(raw, sample{
			percent: finite(t.ProfitLossPercent),
			amount:  finite(t.ProfitLossAmount),
			rRatio:  finite(t.RRatio),
			days:    float64(t.DaysHeld),
			capital: finite(t.EntryPrice * t.Shares),
		})
		if !t.HasNormalization() {
			continue
		}
		capital := finite(ratio(t.PositionSize, t.NormalizationFactor))
		investment += capital
		normalized = append(normalized, sample{
			percent: finite(t.Normalized.ProfitLossPercent),
			amount:  finite(t.Normalized.ProfitLossAmount),
			rRatio:  finite(t.Normalized.RRatio),
			days:    float64(t.DaysHeld),
			capital: capital,
		})
	}

	return Snapshot{
		Statistics: reduce(raw),
		Normalized: NormalizedStatistics{
			Statistics:                    reduce(normalized),
			EstimatedNormalizedInvestment: round2(investment),
		},
	}
}

func reduce(samples []sample) Statistics {
	var s Statistics
	var winPct, lossPct, winAmt, lossAmt, winDays, lossDays float64
	var rSum, total, capital float64
	s.TotalTrades = len(samples)
	for _, x := range samples {
		switch {
		case x.percent > 0:
			s.WinningTrades++
			winPct += x.percent
			winAmt += x.amount
			winDays += x.days
			s.MaxGainPercent = math.Max(s.MaxGainPercent, x.percent)
		case x.percent < 0:
			s.LosingTrades++
			lossPct += x.percent
			lossAmt += x.amount
			lossDays += x.days
			s.MaxLossPercent = math.Min(s.MaxLossPercent, x.percent)
		default:
			s.BreakEvenTrades++
		}
		rSum += x.rRatio
		total += x.amount
		capital += x.capital
	}

	n := float64(s.TotalTrades)
	s.BattingAverage = ratio(float64(s.WinningTrades), n) * 100
	s.AverageWinPercent = ratio(winPct, float64(s.WinningTrades))
	s.AverageLossPercent = ratio(lossPct, float64(s.LosingTrades))
	s.WinLossRatio = math.Abs(ratio(s.AverageWinPercent, s.AverageLossPercent))

	winRate := s.BattingAverage / 100
	if s.BattingAverage < 100 && s.AverageLossPercent != 0 {
		s.AdjustedWinLossRatio = ratio(winRate*s.AverageWinPercent, (1-winRate)*math.Abs(s.AverageLossPercent))
	}
	s.AverageRRatio = ratio(rSum, n)
	s.ProfitFactor = ratio(winAmt, math.Abs(lossAmt))
	if n > 0 {
		s.Expectancy = winRate*s.AverageWinPercent + (1-winRate)*s.AverageLossPercent
	}
	s.AverageDaysHeldWinners = ratio(winDays, float64(s.WinningTrades))
	s.AverageDaysHeldLosers = ratio(lossDays, float64(s.LosingTrades))
	s.MaxGainLossRatio = math.Abs(ratio(s.MaxGainPercent, s.MaxLossPercent))
	s.TotalProfitLoss = total
	s.TotalProfitLossPercent = ratio(total, capital) * 100

	return s.rounded()
}

func (s Statistics) rounded() Statistics {
	for _, f := range []*float64{
		&s.BattingAverage, &s.AverageWinPercent, &s.AverageLossPercent, &s.WinLossRatio,
		&s.AdjustedWinLossRatio, &s.AverageRRatio, &s.ProfitFactor, &s.Expectancy,
		&s.AverageDaysHeldWinners, &s.AverageDaysHeldLosers, &s.MaxGainPercent,
		&s.MaxLossPercent, &s.MaxGainLossRatio, &s.TotalProfitLoss, &s.TotalProfitLossPercent,
	} {
		if *f = round2(*f); *f == 0 {
			*f = 0
		}
	}
	return s
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// StatusFilter selects which lifecycle states take part in statistics.
type StatusFilter string

const (
	ClosedOnly       StatusFilter = "closed-only"
	ClosedAndPartial StatusFilter = "closed-and-partial"
)

// ParseStatusFilter accepts the two filter names; empty means closed-and-partial.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch f := StatusFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return ClosedAndPartial, nil
	case ClosedOnly, ClosedAndPartial:
		return f, nil
	default:
		return "", invalid("status", fmt.Sprintf("must be %q or %q", ClosedOnly, ClosedAndPartial))
	}
}

// Statuses lists the trade states the filter admits.
func (f StatusFilter) Statuses() []models.TradeStatus {
	if f == ClosedOnly {
		return []models.TradeStatus{models.StatusClosed}
	}
	return []models.TradeStatus{models.StatusClosed, models.StatusPartial}
}

func (f StatusFilter) admits(s models.TradeStatus) bool {
	for _, st := range f.Statuses() {
		if st == s {
			return true
		}
	}
	return false
}

// DateRange bounds completion dates by calendar day, both ends inclusive.
// A zero bound is open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Bounds returns the half-open interval [from, until) covered by the range.
// until is midnight after End; open ends stay zero.
func (r DateRange) Bounds() (from, until time.Time) {
	from = r.Start
	if !r.End.IsZero() {
		y, m, d := r.End.Date()
		until = time.Date(y, m, d+1, 0, 0, 0, 0, r.End.Location())
	}
	return from, until
}

// Contains reports whether t falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	from, until := r.Bounds()
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !until.IsZero() && !t.Before(until) {
		return false
	}
	return true
}

// StatisticsOptions narrows the trade set before aggregation.
type StatisticsOptions struct {
	Status    StatusFilter
	TickerID  string
	DateRange *DateRange
}

// Matches reports whether t belongs to the filtered set. Date filtering uses
// the completion date, answering which trades finished in the window.
func (o StatisticsOptions) Matches(t *models.Trade) bool {
	status := o.Status
	if status == "" {
		status = ClosedAndPartial
	}
	if !status.admits(t.Status) {
		return false
	}
	if o.TickerID != "" && t.TickerID != o.TickerID {
		return false
	}
	if o.DateRange != nil && !o.DateRange.Contains(CompletionDate(t)) {
		return false
	}
	return true
}

// ComputeStatistics filters trades by opts and aggregates the remainder.
// It is read-only over its input.
func ComputeStatistics(trades []models.Trade, opts StatisticsOptions) Snapshot {
	selected := make([]models.Trade, 0, len(trades))
	for i := range trades {
		if opts.Matches(&trades[i]) {
			selected = append(selected, trades[i])
		}
	}
	return Aggregate(selected)
}
