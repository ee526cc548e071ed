package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/gregtusar/carry/internal/config"
	"github.com/gregtusar/carry/pkg/accumulate"
	"github.com/gregtusar/carry/pkg/backtest"
	"github.com/gregtusar/carry/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newBacktestCmd() *cobra.Command {
	var (
		dataPath  string
		useSample bool
		startStr  string
		endStr    string
		holdDays  int
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a basis trade backtest over daily observations",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()

			observations := loadObservations(cfg, dataPath, useSample, startStr, endStr)
			if holdDays <= 0 {
				holdDays = cfg.Backtest.HoldingDays
			}

			bt := backtest.New(cfg.Backtest.AccountSize, cfg.Backtest.FundingCostAnnual, cfg.Backtest.Thresholds(), logger)
			result := bt.Run(observations, holdDays)

			summary := result.Summary()
			logger.WithFields(logrus.Fields{
				"trades":       summary.TotalTrades,
				"total_return": fmt.Sprintf("%.2f%%", summary.TotalReturn),
				"win_rate":     fmt.Sprintf("%.1f%%", summary.WinRate),
				"sharpe":       fmt.Sprintf("%.2f", summary.SharpeRatio),
				"max_drawdown": fmt.Sprintf("%.2f%%", summary.MaxDrawdown),
			}).Info("Backtest complete")

			writeResults(cfg, result)
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "observation CSV produced by the accumulate command")
	cmd.Flags().BoolVar(&useSample, "sample", false, "run on a generated synthetic series")
	cmd.Flags().StringVar(&startStr, "start", "2024-01-01", "sample start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endStr, "end", "2024-12-31", "sample end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&holdDays, "holding-days", 0, "max holding days before forced exit (default from config)")

	return cmd
}

func newOptimizeCmd() *cobra.Command {
	var (
		dataPath  string
		useSample bool
		startStr  string
		endStr    string
		workers   int
		topN      int
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Grid-search entry/stop/exit thresholds and holding periods",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()

			observations := loadObservations(cfg, dataPath, useSample, startStr, endStr)

			opt := backtest.NewOptimizer(cfg.Backtest.AccountSize, cfg.Backtest.FundingCostAnnual, workers, logger)
			report := opt.Run(observations)

			best := report.Best()
			if best == nil {
				logger.Warn("No parameter combination produced a trade")
			} else {
				logger.WithFields(logrus.Fields{
					"entry":        best.Entry,
					"stop":         best.Stop,
					"exit":         best.Exit,
					"hold":         best.Hold,
					"total_return": fmt.Sprintf("%.2f%%", best.TotalReturn*100),
					"trades":       best.Trades,
				}).Info("Best combination")
			}
			logger.WithFields(logrus.Fields{
				"total_return": fmt.Sprintf("%.2f%%", report.Baseline.TotalReturn*100),
				"trades":       report.Baseline.Trades,
			}).Info("Baseline (default thresholds)")

			top := report.Top(topN)
			path := filepath.Join(cfg.Backtest.OutputDir, "optimization.json")
			if err := writeJSONFile(path, map[string]interface{}{
				"top":      top,
				"baseline": report.Baseline,
			}); err != nil {
				logger.WithError(err).Fatal("Failed to write optimization report")
			}
			logger.WithField("path", path).Info("Wrote optimization report")
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "observation CSV produced by the accumulate command")
	cmd.Flags().BoolVar(&useSample, "sample", false, "run on a generated synthetic series")
	cmd.Flags().StringVar(&startStr, "start", "2024-01-01", "sample start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endStr, "end", "2024-12-31", "sample end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (default one per CPU)")
	cmd.Flags().IntVar(&topN, "top", 20, "number of top combinations to report")

	return cmd
}

// loadObservations reads the CSV when --data is given, otherwise generates a
// synthetic series when --sample is set.
func loadObservations(cfg *config.Config, dataPath string, useSample bool, startStr, endStr string) []models.Observation {
	switch {
	case dataPath != "":
		observations, err := accumulate.LoadObservations(dataPath)
		if err != nil {
			logger.WithError(err).Fatal("Failed to load observations")
		}
		logger.WithFields(logrus.Fields{
			"path":   dataPath,
			"points": len(observations),
		}).Info("Loaded observations")
		return observations
	case useSample:
		start := parseDate(startStr)
		end := parseDate(endStr)
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		observations := accumulate.GenerateSample(start, end, 90000, rng)
		logger.WithField("points", len(observations)).Info("Generated synthetic observations")
		return observations
	default:
		logger.Fatal("Either --data or --sample is required")
		return nil
	}
}

// writeResults exports the summary and per-trade records next to each other
// in the configured output directory.
func writeResults(cfg *config.Config, result *models.BacktestResult) {
	summaryPath := filepath.Join(cfg.Backtest.OutputDir, "backtest_summary.json")
	if err := writeJSONFile(summaryPath, result.Summary()); err != nil {
		logger.WithError(err).Fatal("Failed to write summary")
	}
	tradesPath := filepath.Join(cfg.Backtest.OutputDir, "backtest_trades.json")
	if err := writeJSONFile(tradesPath, result.TradeRecords()); err != nil {
		logger.WithError(err).Fatal("Failed to write trades")
	}
	logger.WithFields(logrus.Fields{
		"summary": summaryPath,
		"trades":  tradesPath,
	}).Info("Wrote backtest results")
}

func writeJSONFile(path string, data interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
