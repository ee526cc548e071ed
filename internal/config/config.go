// Package config loads application configuration from YAML, environment
// variables and, optionally, GCP Secret Manager.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gregtusar/carry/pkg/backtest"
	"github.com/gregtusar/carry/pkg/secrets"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	GCP      GCPConfig      `mapstructure:"gcp"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type BacktestConfig struct {
	AccountSize       float64 `mapstructure:"account_size"`
	FundingCostAnnual float64 `mapstructure:"funding_cost_annual"`
	EntryThreshold    float64 `mapstructure:"entry_threshold"`
	StrongEntry       float64 `mapstructure:"strong_entry_threshold"`
	StopLoss          float64 `mapstructure:"stop_loss_threshold"`
	ExitThreshold     float64 `mapstructure:"exit_threshold"`
	HoldingDays       int     `mapstructure:"holding_days"`
	OutputDir         string  `mapstructure:"output_dir"`
}

// Thresholds converts the configured levels to the signal generator's form.
func (b BacktestConfig) Thresholds() backtest.Thresholds {
	return backtest.Thresholds{
		Entry:       b.EntryThreshold,
		StrongEntry: b.StrongEntry,
		StopLoss:    b.StopLoss,
		Exit:        b.ExitThreshold,
	}
}

type SourcesConfig struct {
	Binance   BinanceConfig   `mapstructure:"binance"`
	Coinbase  CoinbaseConfig  `mapstructure:"coinbase"`
	Databento DatabentoConfig `mapstructure:"databento"`
}

type BinanceConfig struct {
	SpotSymbol string `mapstructure:"spot_symbol"`
}

type CoinbaseConfig struct {
	SpotPair string `mapstructure:"spot_pair"`
	Sandbox  bool   `mapstructure:"sandbox"`

	// Legacy authentication (deprecated but still supported)
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	Passphrase string `mapstructure:"passphrase"`

	// JWT authentication
	AuthType      string `mapstructure:"auth_type"` // "legacy" or "jwt"
	APIKeyName    string `mapstructure:"api_key_name"`
	PrivateKeyPEM string `mapstructure:"private_key_pem"`

	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

type WebSocketConfig struct {
	URL            string `mapstructure:"url"`
	ReconnectDelay int    `mapstructure:"reconnect_delay"`
	MaxReconnects  int    `mapstructure:"max_reconnects"`
}

type DatabentoConfig struct {
	DataDir       string `mapstructure:"data_dir"`
	FuturesSymbol string `mapstructure:"futures_symbol"`
}

type MonitorConfig struct {
	IntervalSeconds int          `mapstructure:"interval_seconds"`
	Pairs           []PairConfig `mapstructure:"pairs"`
}

func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalSeconds) * time.Second
}

type PairConfig struct {
	Name          string `mapstructure:"name"`
	SpotSymbol    string `mapstructure:"spot_symbol"`
	FuturesSymbol string `mapstructure:"futures_symbol"`
	FuturesExpiry string `mapstructure:"futures_expiry"` // YYYY-MM-DD
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type GCPConfig struct {
	ProjectID   string              `mapstructure:"project_id"`
	UseSecrets  bool                `mapstructure:"use_secrets"`
	SecretNames secrets.SecretNames `mapstructure:"secret_names"`
}

func Load(configPath string) (*Config, error) {
	// A local .env is optional; missing files are fine.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/carry")
	}

	v.SetEnvPrefix("CARRY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&config)

	if config.GCP.UseSecrets && config.GCP.ProjectID != "" {
		ctx := context.Background()
		logger := logrus.New()
		if err := loadSecretsFromGCP(ctx, &config, logger); err != nil {
			return nil, fmt.Errorf("error loading secrets from GCP: %w", err)
		}
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)

	// Backtest defaults match the production signal policy.
	v.SetDefault("backtest.account_size", 200000.0)
	v.SetDefault("backtest.funding_cost_annual", 0.05)
	v.SetDefault("backtest.entry_threshold", 0.005)
	v.SetDefault("backtest.strong_entry_threshold", 0.01)
	v.SetDefault("backtest.stop_loss_threshold", 0.002)
	v.SetDefault("backtest.exit_threshold", 0.035)
	v.SetDefault("backtest.holding_days", 30)
	v.SetDefault("backtest.output_dir", "./data")

	// Source defaults
	v.SetDefault("sources.binance.spot_symbol", "BTCUSDT")
	v.SetDefault("sources.coinbase.spot_pair", "BTC-USD")
	v.SetDefault("sources.coinbase.sandbox", false)
	v.SetDefault("sources.coinbase.auth_type", "legacy")
	v.SetDefault("sources.coinbase.websocket.url", "wss://ws-feed.exchange.coinbase.com")
	v.SetDefault("sources.coinbase.websocket.reconnect_delay", 5)
	v.SetDefault("sources.coinbase.websocket.max_reconnects", 10)
	v.SetDefault("sources.databento.data_dir", "./data/databento")
	v.SetDefault("sources.databento.futures_symbol", "MBT")

	// Monitor defaults
	v.SetDefault("monitor.interval_seconds", 30)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	// GCP defaults
	v.SetDefault("gcp.use_secrets", false)
	v.SetDefault("gcp.project_id", "")

	secretNames := secrets.DefaultSecretNames()
	v.SetDefault("gcp.secret_names.coinbase_api_key", secretNames.CoinbaseAPIKey)
	v.SetDefault("gcp.secret_names.coinbase_api_secret", secretNames.CoinbaseAPISecret)
	v.SetDefault("gcp.secret_names.coinbase_passphrase", secretNames.CoinbasePassphrase)
	v.SetDefault("gcp.secret_names.coinbase_api_key_name", secretNames.CoinbaseAPIKeyName)
	v.SetDefault("gcp.secret_names.coinbase_private_key", secretNames.CoinbasePrivateKey)
}

func overrideFromEnv(config *Config) {
	if apiKey := os.Getenv("COINBASE_API_KEY"); apiKey != "" {
		config.Sources.Coinbase.APIKey = apiKey
	}
	if apiSecret := os.Getenv("COINBASE_API_SECRET"); apiSecret != "" {
		config.Sources.Coinbase.APISecret = apiSecret
	}
	if passphrase := os.Getenv("COINBASE_PASSPHRASE"); passphrase != "" {
		config.Sources.Coinbase.Passphrase = passphrase
	}

	if authType := os.Getenv("COINBASE_AUTH_TYPE"); authType != "" {
		config.Sources.Coinbase.AuthType = authType
	}
	if apiKeyName := os.Getenv("COINBASE_API_KEY_NAME"); apiKeyName != "" {
		config.Sources.Coinbase.APIKeyName = apiKeyName
	}
	if privateKey := os.Getenv("COINBASE_PRIVATE_KEY"); privateKey != "" {
		config.Sources.Coinbase.PrivateKeyPEM = privateKey
	}

	if dataDir := os.Getenv("DATABENTO_DATA_DIR"); dataDir != "" {
		config.Sources.Databento.DataDir = dataDir
	}

	if projectID := os.Getenv("GCP_PROJECT_ID"); projectID != "" {
		config.GCP.ProjectID = projectID
	}
	if useSecrets := os.Getenv("GCP_USE_SECRETS"); useSecrets == "true" {
		config.GCP.UseSecrets = true
	}
}

func loadSecretsFromGCP(ctx context.Context, config *Config, logger *logrus.Logger) error {
	secretManager, err := secrets.NewGCPSecretManager(ctx, config.GCP.ProjectID, logger)
	if err != nil {
		return fmt.Errorf("failed to create secret manager: %w", err)
	}
	defer secretManager.Close()

	// Only load secrets that are not already set
	cb := &config.Sources.Coinbase
	if cb.APIKey == "" {
		cb.APIKey = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.CoinbaseAPIKey, "")
	}
	if cb.APISecret == "" {
		cb.APISecret = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.CoinbaseAPISecret, "")
	}
	if cb.Passphrase == "" {
		cb.Passphrase = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.CoinbasePassphrase, "")
	}
	if cb.APIKeyName == "" {
		cb.APIKeyName = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.CoinbaseAPIKeyName, "")
	}
	if cb.PrivateKeyPEM == "" {
		cb.PrivateKeyPEM = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.CoinbasePrivateKey, "")
	}

	logger.Info("Successfully loaded secrets from GCP Secret Manager")
	return nil
}
