package main

import (
	"fmt"
	"strings"
	"time"

	"trading-journal-go/internal/api"
	"trading-journal-go/internal/report"

	"github.com/spf13/cobra"
)

var statsFlags struct {
	status string
	ticker string
	symbol string
	start  string
	end    string
	output string
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print portfolio statistics",
	Long: `Compute the statistics snapshot, raw and normalized, over closed (and by
default partial) trades. Dates filter on the completion date, both ends
inclusive.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	f := statsCmd.Flags()
	f.StringVar(&statsFlags.status, "status", "", "closed-only or closed-and-partial (default)")
	f.StringVar(&statsFlags.ticker, "ticker", "", "ticker id")
	f.StringVar(&statsFlags.symbol, "symbol", "", "ticker symbol")
	f.StringVar(&statsFlags.start, "start", "", "first completion date, e.g. 2024-01-01")
	f.StringVar(&statsFlags.end, "end", "", "last completion date")
	f.StringVarP(&statsFlags.output, "output", "o", "table", "table, json or yaml")
}

func runStats(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(statsFlags.output)
	if err != nil {
		return err
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	ticker := statsFlags.ticker
	if ticker == "" && statsFlags.symbol != "" {
		tickers, err := a.tickers.List(ctx)
		if err != nil {
			return err
		}
		for _, t := range tickers {
			if strings.EqualFold(t.Symbol, statsFlags.symbol) {
				ticker = t.ID
			}
		}
		if ticker == "" {
			return fmt.Errorf("no trades logged for symbol %s", statsFlags.symbol)
		}
	}

	values := map[string]string{
		"status": statsFlags.status,
		"ticker": ticker,
		"start":  statsFlags.start,
		"end":    statsFlags.end,
	}
	opts, err := api.StatisticsOptionsFromQuery(func(k string) string { return values[k] }, time.Local)
	if err != nil {
		return err
	}

	snap, err := a.journal.Statistics(ctx, opts)
	if err != nil {
		return err
	}
	return report.Statistics(cmd.OutOrStdout(), snap, format)
}
