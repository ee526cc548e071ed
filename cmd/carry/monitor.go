package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gregtusar/carry/api"
	"github.com/gregtusar/carry/internal/config"
	"github.com/gregtusar/carry/pkg/expiry"
	"github.com/gregtusar/carry/pkg/fetch/coinbase"
	"github.com/gregtusar/carry/pkg/monitor"
	"github.com/spf13/cobra"
)

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch live basis levels and serve snapshots over HTTP",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			runMonitor(cfg)
		},
	}
	return cmd
}

func runMonitor(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auth := buildAuthenticator(cfg)
	client := coinbase.NewClient(auth, cfg.Sources.Coinbase.Sandbox)

	pairs := buildPairs(cfg)
	if len(pairs) == 0 {
		logger.Fatal("No monitor pairs configured")
	}

	m := monitor.New(client, pairs, cfg.Backtest.Thresholds(), cfg.Monitor.Interval(), logger)

	// The websocket feed pushes spot ticks; futures quotes arrive the same
	// way when the venue carries the product.
	feed := coinbase.NewFeed(cfg.Sources.Coinbase.WebSocket.URL, logger)
	feed.OnTicker(func(t coinbase.Ticker) {
		m.SetPrice(t.ProductID, t.Price)
	})
	if err := feed.Connect(ctx); err != nil {
		logger.WithError(err).Warn("Websocket feed unavailable, falling back to polling")
	} else {
		var products []string
		for _, p := range pairs {
			products = append(products, p.SpotSymbol, p.FuturesSymbol)
		}
		if err := feed.Subscribe(products); err != nil {
			logger.WithError(err).Warn("Failed to subscribe to feed")
		}
		defer feed.Close()
	}

	go m.Start(ctx)

	apiServer := api.NewServer(m, logger, fmt.Sprintf("%d", cfg.Server.Port))
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.WithError(err).Fatal("Failed to start API server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Basis monitor is running. Press Ctrl+C to stop.")
	<-sigChan
	logger.Info("Received shutdown signal")

	m.Stop()
	cancel()
	logger.Info("Basis monitor stopped")
}

// buildAuthenticator constructs the configured Coinbase authenticator, nil
// when no credentials are present. Public market data works unauthenticated.
func buildAuthenticator(cfg *config.Config) coinbase.Authenticator {
	cb := cfg.Sources.Coinbase
	switch {
	case cb.AuthType == "jwt" && cb.APIKeyName != "" && cb.PrivateKeyPEM != "":
		auth, err := coinbase.NewJWTAuthenticator(cb.APIKeyName, cb.PrivateKeyPEM)
		if err != nil {
			logger.WithError(err).Fatal("Failed to build JWT authenticator")
		}
		return auth
	case cb.APIKey != "":
		return coinbase.NewLegacyAuthenticator(cb.APIKey, cb.APISecret, cb.Passphrase)
	default:
		return nil
	}
}

// buildPairs resolves the configured pairs, defaulting expiry to the current
// front month when unset.
func buildPairs(cfg *config.Config) []monitor.Pair {
	now := time.Now().UTC()
	schedule := expiry.BuildSchedule(now, now)

	var pairs []monitor.Pair
	for _, pc := range cfg.Monitor.Pairs {
		exp := expiry.FrontMonth(now, schedule)
		if pc.FuturesExpiry != "" {
			parsed, err := time.Parse("2006-01-02", pc.FuturesExpiry)
			if err != nil {
				logger.WithError(err).WithField("pair", pc.Name).Fatal("Invalid futures_expiry, expected YYYY-MM-DD")
			}
			exp = parsed
		}
		pairs = append(pairs, monitor.Pair{
			Name:          pc.Name,
			SpotSymbol:    pc.SpotSymbol,
			FuturesSymbol: pc.FuturesSymbol,
			FuturesExpiry: exp,
		})
	}
	return pairs
}
