// Package coinbase fetches spot prices from the Coinbase REST API and
// streams tickers over its websocket feed.
package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Client is a read-only Coinbase market data client. The spot price endpoint
// is public; an Authenticator is only needed for authenticated endpoints and
// may be nil.
type Client struct {
	baseURL    string
	auth       Authenticator
	httpClient *http.Client
}

// NewClient creates a Client. auth may be nil for public market data.
func NewClient(auth Authenticator, sandbox bool) *Client {
	baseURL := "https://api.coinbase.com"
	if sandbox {
		baseURL = "https://api-public.sandbox.coinbase.com"
	}

	return &Client{
		baseURL:    baseURL,
		auth:       auth,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SpotPrice returns the current spot price for a currency pair like BTC-USD.
func (c *Client) SpotPrice(ctx context.Context, pair string) (float64, error) {
	path := fmt.Sprintf("/v2/prices/%s/spot", pair)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return 0, fmt.Errorf("coinbase spot %s: %w", pair, err)
	}

	var payload struct {
		Data struct {
			Amount   string `json:"amount"`
			Currency string `json:"currency"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("coinbase spot %s: %w", pair, err)
	}
	price, err := strconv.ParseFloat(payload.Data.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("coinbase spot %s: bad amount %q: %w", pair, payload.Data.Amount, err)
	}
	return price, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	if c.auth != nil {
		if err := c.auth.AddAuthHeaders(req, method, path, ""); err != nil {
			return nil, err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}
