package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gregtusar/carry/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	logger  *logrus.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "carry",
		Short: "Cash-and-carry basis trade research toolkit",
		Long:  `Backtests, optimizes and monitors the cash-and-carry basis trade between spot crypto and CME futures`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(newBacktestCmd())
	rootCmd.AddCommand(newOptimizeCmd())
	rootCmd.AddCommand(newAccumulateCmd())
	rootCmd.AddCommand(newSampleCmd())
	rootCmd.AddCommand(newCostsCmd())
	rootCmd.AddCommand(newMonitorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig initializes the global logger and loads configuration. Every
// subcommand calls it first.
func loadConfig() *config.Config {
	logger = logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(cfgFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logger.WithError(err).Error("Invalid log level, using INFO")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return cfg
}

func parseDate(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		logger.WithError(err).WithField("date", value).Fatal("Invalid date, expected YYYY-MM-DD")
	}
	return t
}
