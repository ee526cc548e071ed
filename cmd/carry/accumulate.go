package main

import (
	"context"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/gregtusar/carry/pkg/accumulate"
	"github.com/gregtusar/carry/pkg/fetch/binance"
	"github.com/gregtusar/carry/pkg/fetch/databento"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newAccumulateCmd() *cobra.Command {
	var (
		startStr   string
		endStr     string
		expiryCode string
		continuous bool
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "accumulate",
		Short: "Merge spot and futures history into an observation CSV",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()

			start := parseDate(startStr)
			end := parseDate(endStr)
			if outPath == "" {
				outPath = filepath.Join(cfg.Backtest.OutputDir, "observations.csv")
			}

			spot := binance.NewClient(logger)
			futures := databento.NewFetcher(cfg.Sources.Databento.DataDir, logger)
			acc := accumulate.New(spot, futures, logger)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			var rows []accumulate.Row
			if continuous {
				var err error
				rows, err = acc.AccumulateContinuous(ctx, start, end,
					cfg.Sources.Databento.FuturesSymbol, cfg.Sources.Binance.SpotSymbol, futures)
				if err != nil {
					logger.WithError(err).Fatal("Failed to accumulate continuous data")
				}
			} else {
				observations, err := acc.Accumulate(ctx, start, end,
					cfg.Sources.Databento.FuturesSymbol, expiryCode, cfg.Sources.Binance.SpotSymbol)
				if err != nil {
					logger.WithError(err).Fatal("Failed to accumulate data")
				}
				rows = accumulate.ObservationRows(observations)
			}

			if err := accumulate.WriteCSV(rows, outPath); err != nil {
				logger.WithError(err).Fatal("Failed to write CSV")
			}
			logger.WithFields(logrus.Fields{
				"path":   outPath,
				"points": len(rows),
			}).Info("Wrote observation CSV")
		},
	}

	cmd.Flags().StringVar(&startStr, "start", "2024-01-01", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endStr, "end", time.Now().UTC().Format("2006-01-02"), "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&expiryCode, "expiry", "", "futures contract expiry YYYYMM (default: front month at start)")
	cmd.Flags().BoolVar(&continuous, "continuous", false, "include a rolling front-month reference column")
	cmd.Flags().StringVar(&outPath, "out", "", "output CSV path (default <output_dir>/observations.csv)")

	return cmd
}

func newSampleCmd() *cobra.Command {
	var (
		startStr  string
		endStr    string
		basePrice float64
		seed      int64
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Generate a synthetic observation CSV for offline testing",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()

			start := parseDate(startStr)
			end := parseDate(endStr)
			if outPath == "" {
				outPath = filepath.Join(cfg.Backtest.OutputDir, "sample.csv")
			}

			var rng *rand.Rand
			if seed != 0 {
				rng = rand.New(rand.NewSource(seed))
			}
			observations := accumulate.GenerateSample(start, end, basePrice, rng)

			if err := accumulate.WriteCSV(accumulate.ObservationRows(observations), outPath); err != nil {
				logger.WithError(err).Fatal("Failed to write CSV")
			}
			logger.WithFields(logrus.Fields{
				"path":   outPath,
				"points": len(observations),
			}).Info("Wrote synthetic observation CSV")
		},
	}

	cmd.Flags().StringVar(&startStr, "start", "2024-01-01", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endStr, "end", "2024-12-31", "end date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&basePrice, "base-price", 90000, "starting spot price")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 = time-based)")
	cmd.Flags().StringVar(&outPath, "out", "", "output CSV path (default <output_dir>/sample.csv)")

	return cmd
}
