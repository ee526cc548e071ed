// Package secrets hydrates API credentials from GCP Secret Manager so
// deployments never carry keys in config files.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

type GCPSecretManager struct {
	client    *secretmanager.Client
	projectID string
	logger    *logrus.Logger
}

// NewGCPSecretManager creates a client using application default credentials,
// or an explicit service account key when GOOGLE_APPLICATION_CREDENTIALS_FILE
// points at one.
func NewGCPSecretManager(ctx context.Context, projectID string, logger *logrus.Logger) (*GCPSecretManager, error) {
	var opts []option.ClientOption
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_FILE"); credsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credsFile))
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create secretmanager client: %w", err)
	}

	return &GCPSecretManager{
		client:    client,
		projectID: projectID,
		logger:    logger,
	}, nil
}

func (g *GCPSecretManager) GetSecret(ctx context.Context, secretName string) (string, error) {
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", g.projectID, secretName)

	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	}

	result, err := g.client.AccessSecretVersion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", secretName, err)
	}

	return string(result.Payload.Data), nil
}

func (g *GCPSecretManager) GetSecretWithDefault(ctx context.Context, secretName, defaultValue string) string {
	value, err := g.GetSecret(ctx, secretName)
	if err != nil {
		g.logger.WithError(err).WithField("secret", secretName).Debug("Failed to get secret, using default")
		return defaultValue
	}
	return strings.TrimSpace(value)
}

func (g *GCPSecretManager) Close() error {
	return g.client.Close()
}

// SecretNames maps config keys to Secret Manager secret IDs.
type SecretNames struct {
	CoinbaseAPIKey     string `mapstructure:"coinbase_api_key"`
	CoinbaseAPISecret  string `mapstructure:"coinbase_api_secret"`
	CoinbasePassphrase string `mapstructure:"coinbase_passphrase"`

	// JWT authentication for the Coinbase Advanced Trade API
	CoinbaseAPIKeyName string `mapstructure:"coinbase_api_key_name"`
	CoinbasePrivateKey string `mapstructure:"coinbase_private_key"`
}

func DefaultSecretNames() SecretNames {
	return SecretNames{
		CoinbaseAPIKey:     "carry-coinbase-api-key",
		CoinbaseAPISecret:  "carry-coinbase-api-secret",
		CoinbasePassphrase: "carry-coinbase-passphrase",
		CoinbaseAPIKeyName: "carry-coinbase-api-key-name",
		CoinbasePrivateKey: "carry-coinbase-private-key",
	}
}
