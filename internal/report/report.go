package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"trading-journal-go/internal/journal"
	"trading-journal-go/internal/models"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Format selects how a report is written.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// Statistics writes snap to w.
func Statistics(w io.Writer, snap journal.Snapshot, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, snap)
	case FormatYAML:
		return writeYAML(w, snap)
	}

	raw, norm := snap.Statistics, snap.Normalized.Statistics
	rows := []struct {
		label string
		value func(journal.Statistics) string
	}{
		{"Total trades", func(s journal.Statistics) string { return fmt.Sprintf("%d", s.TotalTrades) }},
		{"Winners", func(s journal.Statistics) string { return fmt.Sprintf("%d", s.WinningTrades) }},
		{"Losers", func(s journal.Statistics) string { return fmt.Sprintf("%d", s.LosingTrades) }},
		{"Break-even", func(s journal.Statistics) string { return fmt.Sprintf("%d", s.BreakEvenTrades) }},
		{"Batting average", func(s journal.Statistics) string { return pct(s.BattingAverage) }},
		{"Average win", func(s journal.Statistics) string { return pct(s.AverageWinPercent) }},
		{"Average loss", func(s journal.Statistics) string { return pct(s.AverageLossPercent) }},
		{"Win/loss ratio", func(s journal.Statistics) string { return num(s.WinLossRatio) }},
		{"Adjusted win/loss ratio", func(s journal.Statistics) string { return num(s.AdjustedWinLossRatio) }},
		{"Average R", func(s journal.Statistics) string { return num(s.AverageRRatio) }},
		{"Profit factor", func(s journal.Statistics) string { return num(s.ProfitFactor) }},
		{"Expectancy", func(s journal.Statistics) string { return pct(s.Expectancy) }},
		{"Avg days held (winners)", func(s journal.Statistics) string { return num(s.AverageDaysHeldWinners) }},
		{"Avg days held (losers)", func(s journal.Statistics) string { return num(s.AverageDaysHeldLosers) }},
		{"Max gain", func(s journal.Statistics) string { return pct(s.MaxGainPercent) }},
		{"Max loss", func(s journal.Statistics) string { return pct(s.MaxLossPercent) }},
		{"Max gain/loss ratio", func(s journal.Statistics) string { return num(s.MaxGainLossRatio) }},
		{"Total P/L", func(s journal.Statistics) string { return money(s.TotalProfitLoss) }},
		{"Total P/L %", func(s journal.Statistics) string { return pct(s.TotalProfitLossPercent) }},
	}

	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Raw", "Normalized")
	for _, r := range rows {
		if err := table.Append(r.label, r.value(raw), r.value(norm)); err != nil {
			return err
		}
	}
	if err := table.Append("Est. normalized investment", "", money(snap.Normalized.EstimatedNormalizedInvestment)); err != nil {
		return err
	}
	return table.Render()
}

// Tickers writes the per-ticker rollup counters.
func Tickers(w io.Writer, tickers []models.Ticker, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, tickers)
	case FormatYAML:
		type row struct {
			Symbol          string  `yaml:"symbol"`
			TradeCount      int64   `yaml:"trade_count"`
			OpenTradeCount  int64   `yaml:"open_trade_count"`
			TotalProfitLoss float64 `yaml:"total_profit_loss"`
		}
		out := make([]row, 0, len(tickers))
		for _, t := range tickers {
			out = append(out, row{t.Symbol, t.TradeCount, t.OpenTradeCount, t.TotalProfitLoss})
		}
		return writeYAML(w, out)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Symbol", "Trades", "Open", "Total P/L")
	for _, t := range tickers {
		if err := table.Append(t.Symbol, fmt.Sprintf("%d", t.TradeCount), fmt.Sprintf("%d", t.OpenTradeCount), money(t.TotalProfitLoss)); err != nil {
			return err
		}
	}
	return table.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func pct(v float64) string   { return fmt.Sprintf("%.2f%%", v) }
func num(v float64) string   { return fmt.Sprintf("%.2f", v) }
func money(v float64) string { return fmt.Sprintf("$%.2f", v) }
