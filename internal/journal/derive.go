package journal

import "trading-journal-go/internal/models"

// DeriveTradeFields is the write-path entry point: it validates the input,
// then derives status and every metric. Only missing or non-numeric entry
// price, shares or entry date make it fail.
func (c Calculator) DeriveTradeFields(in TradeInput) (*models.Trade, error) {
	t, err := ParseTrade(in)
	if err != nil {
		return nil, err
	}
	c.Derive(t)
	return t, nil
}
