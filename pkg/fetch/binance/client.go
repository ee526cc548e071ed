// Package binance fetches spot price history from the Binance public API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gregtusar/carry/pkg/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.binance.com/api/v3"
	klineLimit     = 1000
)

// Client is a read-only Binance spot market data client. Daily history
// responses are cached per (symbol, range); the cache lives for the lifetime
// of the client and is only invalidated by constructing a new one.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger

	mu    sync.Mutex
	cache map[string][]models.SpotBar
}

// NewClient creates a Client against the public Binance REST API. Requests
// are rate limited well under the public weight limits.
func NewClient(logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		logger:     logger,
		cache:      make(map[string][]models.SpotBar),
	}
}

// SpotPrice returns the current last price for a symbol like BTCUSDT.
func (c *Client) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	endpoint := fmt.Sprintf("%s/ticker/price?symbol=%s", c.baseURL, url.QueryEscape(symbol))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return 0, fmt.Errorf("binance ticker %s: %w", symbol, err)
	}

	var ticker struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &ticker); err != nil {
		return 0, fmt.Errorf("binance ticker %s: %w", symbol, err)
	}
	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("binance ticker %s: bad price %q: %w", symbol, ticker.Price, err)
	}
	return price, nil
}

// DailyHistory returns daily closes for the symbol between start and end,
// paginating through the klines endpoint in 1000-bar pages.
func (c *Client) DailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.SpotBar, error) {
	cacheKey := fmt.Sprintf("%s:%d:%d", symbol, start.Unix(), end.Unix())
	c.mu.Lock()
	if bars, ok := c.cache[cacheKey]; ok {
		c.mu.Unlock()
		return bars, nil
	}
	c.mu.Unlock()

	startMs := start.UnixMilli()
	endMs := end.UnixMilli()
	var bars []models.SpotBar

	for current := startMs; current < endMs; {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		params := url.Values{}
		params.Set("symbol", symbol)
		params.Set("interval", "1d")
		params.Set("startTime", strconv.FormatInt(current, 10))
		params.Set("endTime", strconv.FormatInt(endMs, 10))
		params.Set("limit", strconv.Itoa(klineLimit))

		body, err := c.get(ctx, c.baseURL+"/klines?"+params.Encode())
		if err != nil {
			return nil, fmt.Errorf("binance klines %s: %w", symbol, err)
		}

		// Klines come back as mixed-type arrays:
		// [openTime, open, high, low, close, volume, closeTime, ...].
		var klines [][]json.RawMessage
		if err := json.Unmarshal(body, &klines); err != nil {
			return nil, fmt.Errorf("binance klines %s: %w", symbol, err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			if len(k) < 7 {
				continue
			}
			openTime, err := parseMillis(k[0])
			if err != nil {
				continue
			}
			closePrice, err := parseQuotedFloat(k[4])
			if err != nil {
				continue
			}
			bars = append(bars, models.SpotBar{
				Date:  time.UnixMilli(openTime).UTC(),
				Price: closePrice,
			})
		}

		closeTime, err := parseMillis(klines[len(klines)-1][6])
		if err != nil {
			return nil, fmt.Errorf("binance klines %s: bad close time: %w", symbol, err)
		}
		current = closeTime + 1

		if len(klines) < klineLimit {
			break
		}
	}

	c.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"bars":   len(bars),
	}).Debug("Fetched Binance spot history")

	c.mu.Lock()
	c.cache[cacheKey] = bars
	c.mu.Unlock()
	return bars, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
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

func parseMillis(raw json.RawMessage) (int64, error) {
	var ms int64
	err := json.Unmarshal(raw, &ms)
	return ms, err
}

func parseQuotedFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}
