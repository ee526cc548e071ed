package main

import (
	"fmt"

	"github.com/gregtusar/carry/pkg/backtest"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newCostsCmd() *cobra.Command {
	var (
		entrySpot    float64
		exitSpot     float64
		entryFutures float64
		exitFutures  float64
		size         float64
		holdingDays  int
		directSpot   bool
	)

	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Itemize the all-in costs and net P&L of a hypothetical trade",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()

			params := backtest.DefaultCostParams()
			params.UseETF = !directSpot
			params.FundingRateAnnual = cfg.Backtest.FundingCostAnnual

			b := backtest.NetPnL(entrySpot, exitSpot, entryFutures, exitFutures, size, holdingDays, params)

			logger.WithFields(logrus.Fields{
				"spot_pnl":      fmt.Sprintf("%.2f", b.SpotPnL),
				"futures_pnl":   fmt.Sprintf("%.2f", b.FuturesPnL),
				"gross_pnl":     fmt.Sprintf("%.2f", b.GrossPnL),
				"entry_costs":   fmt.Sprintf("%.2f", b.Costs.TotalEntryCosts()),
				"exit_costs":    fmt.Sprintf("%.2f", b.Costs.TotalExitCosts()),
				"holding_costs": fmt.Sprintf("%.2f", b.Costs.TotalHoldingCosts()),
				"net_pnl":       fmt.Sprintf("%.2f", b.NetPnL),
				"net_return":    fmt.Sprintf("%.3f%%", b.NetReturnPct),
				"annualized":    fmt.Sprintf("%.2f%%", b.AnnualizedReturn),
			}).Info("Cost breakdown")
		},
	}

	cmd.Flags().Float64Var(&entrySpot, "entry-spot", 90000, "spot price at entry")
	cmd.Flags().Float64Var(&exitSpot, "exit-spot", 90000, "spot price at exit")
	cmd.Flags().Float64Var(&entryFutures, "entry-futures", 91000, "futures price at entry")
	cmd.Flags().Float64Var(&exitFutures, "exit-futures", 90000, "futures price at exit")
	cmd.Flags().Float64Var(&size, "size", 1.0, "position size in BTC")
	cmd.Flags().IntVar(&holdingDays, "days", 30, "holding period in days")
	cmd.Flags().BoolVar(&directSpot, "direct-spot", false, "hold direct spot instead of an ETF proxy")

	return cmd
}
