package journal

import "trading-journal-go/internal/models"

// DeriveStatus maps the exit ledger onto the trade lifecycle. It is always
// evaluated from the full ledger, so removing exits reopens a trade.
// Over-exited trades clamp to closed. With no exits the prior status is kept
// when it is valid, otherwise the trade is open.
func DeriveStatus(totalShares, exitedShares float64, prior models.TradeStatus) models.TradeStatus {
	switch {
	case exitedShares > 0 && exitedShares >= totalShares:
		return models.StatusClosed
	case exitedShares > 0:
		return models.StatusPartial
	case prior.Valid():
		return prior
	default:
		return models.StatusOpen
	}
}
