package journal

import (
	"math"
	"slices"
	"time"

	"trading-journal-go/internal/models"
)

// Ledger is the resolved view of a trade's exits.
type Ledger struct {
	ExitedShares   float64
	CompletionDate *time.Time
}

// ResolveLedger sums exited shares and finds the latest exit date.
// Shares that are negative or not finite contribute nothing.
func ResolveLedger(exits []models.Exit) Ledger {
	var l Ledger
	for i := range exits {
		l.ExitedShares += shareCount(exits[i].Shares)
		if d := exits[i].Date; l.CompletionDate == nil || d.After(*l.CompletionDate) {
			l.CompletionDate = &d
		}
	}
	return l
}

// Remaining returns the shares still held, never negative.
func (l Ledger) Remaining(total float64) float64 {
	return math.Max(0, total-l.ExitedShares)
}

// CompletionDate is the latest exit date of t, falling back to its entry date.
func CompletionDate(t *models.Trade) time.Time {
	if len(t.Exits) > 0 {
		if d := ResolveLedger(t.Exits).CompletionDate; d != nil {
			return *d
		}
	}
	if !t.CompletionDate.IsZero() {
		return t.CompletionDate
	}
	return t.EntryDate
}

// exitsByDate returns a date-ordered copy; ties keep insertion order.
func exitsByDate(exits []models.Exit) []models.Exit {
	sorted := slices.Clone(exits)
	slices.SortStableFunc(sorted, func(a, b models.Exit) int {
		return a.Date.Compare(b.Date)
	})
	return sorted
}

// activeStop is the latest stop modification price, else the initial stop.
func activeStop(t *models.Trade) float64 {
	stop := t.InitialStopLoss
	var latest time.Time
	found := false
	for _, m := range t.StopModifications {
		if m.Price <= 0 {
			continue
		}
		if !found || !m.Date.Before(latest) {
			latest, stop, found = m.Date, m.Price, true
		}
	}
	return stop
}

func shareCount(v float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
