package main

import (
	"fmt"

	"trading-journal-go/internal/quotes"
	"trading-journal-go/internal/refresher"
	"trading-journal-go/internal/report"

	"github.com/spf13/cobra"
)

var rollupOutput string

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch current prices once and update live trade metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		r := refresher.New(a.journal, quotes.NewClient(a.cfg.Quotes, a.log), a.cfg.Refresher, a.log)
		res, err := r.RefreshOnce(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "live trades: %d, updated: %d, no quote: %d, failed: %d\n",
			res.Trades, res.Updated, res.Missing, res.Failed)
		return nil
	},
}

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Recompute the per-ticker counters from the trade table",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(rollupOutput)
		if err != nil {
			return err
		}

		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		if _, err := a.rollup.RecomputeAll(cmd.Context()); err != nil {
			return err
		}
		tickers, err := a.tickers.List(cmd.Context())
		if err != nil {
			return err
		}
		return report.Tickers(cmd.OutOrStdout(), tickers, format)
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd, rollupCmd)
	rollupCmd.Flags().StringVarP(&rollupOutput, "output", "o", "table", "table, json or yaml")
}
