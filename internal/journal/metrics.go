package journal

import (
	"math"
	"time"

	"trading-journal-go/internal/models"
)

// Calculator derives every calculator-owned field of a trade from its inputs.
type Calculator struct {
	// Now is the clock used for days held of live trades and the current
	// metrics timestamp. Defaults to time.Now.
	Now func() time.Time
}

// NewCalculator returns a calculator on the wall clock.
func NewCalculator() Calculator {
	return Calculator{Now: time.Now}
}

func (c Calculator) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Derive populates the derived fields of t in place. It never fails: any
// figure whose denominator is zero or whose input is missing comes out as 0.
// Running it twice over the same inputs and clock gives the same result.
func (c Calculator) Derive(t *models.Trade) {
	if !t.Direction.Valid() {
		t.Direction = models.DirectionLong
	}
	exits := exitsByDate(t.Exits)
	ledger := ResolveLedger(exits)

	t.Status = DeriveStatus(t.Shares, ledger.ExitedShares, t.Status)
	t.CompletionDate = t.EntryDate
	if ledger.CompletionDate != nil {
		t.CompletionDate = *ledger.CompletionDate
	}

	t.PositionSize = round2(t.EntryPrice * t.Shares)
	t.RiskAmount = 0
	if t.InitialStopLoss > 0 {
		t.RiskAmount = round2(math.Abs(t.EntryPrice-t.InitialStopLoss) * t.Shares)
	}
	t.RiskPercent = ratio(t.RiskAmount, t.PositionSize) * 100

	var realized float64
	for _, e := range exits {
		if e.Price <= 0 {
			continue
		}
		realized += perShare(t, e.Price) * shareCount(e.Shares)
	}
	t.ProfitLossAmount = round2(realized)
	t.ProfitLossPercent = ratio(t.ProfitLossAmount, t.PositionSize) * 100
	t.RRatio = ratio(t.ProfitLossAmount, t.RiskAmount)

	end := c.now()
	if t.Status == models.StatusClosed && ledger.CompletionDate != nil {
		end = *ledger.CompletionDate
	}
	t.DaysHeld = daysBetween(t.EntryDate, end)

	c.normalize(t)
	c.current(t, ledger)
}

// normalize rescales realized results to the target position size captured
// at creation. Percent return and R-multiple do not depend on size.
func (c Calculator) normalize(t *models.Trade) {
	if t.TargetPositionSize <= 0 || t.PositionSize <= 0 {
		t.NormalizationFactor = 0
		t.Normalized = models.NormalizedMetrics{}
		return
	}
	t.NormalizationFactor = t.PositionSize / t.TargetPositionSize
	t.Normalized = models.NormalizedMetrics{
		ProfitLossAmount:  round2(t.ProfitLossAmount / t.NormalizationFactor),
		ProfitLossPercent: t.ProfitLossPercent,
		RRatio:            t.RRatio,
	}
}

// current fills the unrealized group for live trades priced by the market.
func (c Calculator) current(t *models.Trade, ledger Ledger) {
	if t.Status == models.StatusClosed || t.CurrentPrice <= 0 {
		t.Current = models.CurrentMetrics{}
		return
	}
	remaining := ledger.Remaining(t.Shares)
	basis := t.EntryPrice * remaining
	stop := activeStop(t)

	amount := round2(perShare(t, t.CurrentPrice) * remaining)
	// Exposure left if the remainder stops out; a stop at or past entry locks it at 0.
	var risk float64
	if stop > 0 {
		risk = round2(math.Max(0, -perShare(t, stop)) * remaining)
	}
	now := c.now()
	t.Current = models.CurrentMetrics{
		ProfitLossAmount:  amount,
		ProfitLossPercent: ratio(amount, basis) * 100,
		RRatio:            ratio(amount, t.RiskAmount),
		RiskAmount:        risk,
		RiskPercent:       ratio(risk, basis) * 100,
		BreakEvenShares:   breakEvenShares(t, ledger, stop),
		LastUpdated:       &now,
	}
}

// breakEvenShares is the number of remaining shares to sell at the current
// price so that realized P/L plus the rest stopped out at the active stop
// nets to zero: R + x*g(P) + (q-x)*g(S) = 0, rounded up to a whole share
// and clamped to [0, q].
func breakEvenShares(t *models.Trade, ledger Ledger, stop float64) float64 {
	q := ledger.Remaining(t.Shares)
	if q == 0 || stop <= 0 {
		return 0
	}
	base := t.ProfitLossAmount + q*perShare(t, stop)
	if base >= 0 {
		return 0
	}
	edge := perShare(t, t.CurrentPrice) - perShare(t, stop)
	if edge <= 0 {
		return q
	}
	x := math.Ceil(-base/edge - 1e-9)
	return math.Min(q, math.Max(0, x))
}

// perShare is the signed result of closing one share at price.
func perShare(t *models.Trade, price float64) float64 {
	if t.Direction == models.DirectionShort {
		return t.EntryPrice - price
	}
	return price - t.EntryPrice
}

func daysBetween(from, to time.Time) int {
	if from.IsZero() || to.IsZero() {
		return 0
	}
	days := math.Ceil(math.Abs(to.Sub(from).Hours()) / 24)
	return int(math.Max(0, days))
}

// ratio divides, resolving a zero or non-finite result to 0.
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	r := num / den
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
