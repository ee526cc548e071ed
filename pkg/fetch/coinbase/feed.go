package coinbase

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// DefaultFeedURL is the public Coinbase exchange websocket feed.
const DefaultFeedURL = "wss://ws-feed.exchange.coinbase.com"

// TickerHandler receives decoded ticker messages from the feed.
type TickerHandler func(Ticker)

// Ticker is one ticker update from the websocket feed.
type Ticker struct {
	ProductID string
	Price     float64
	Time      time.Time
}

// Feed is a websocket market data feed. Ticker messages for subscribed
// products are dispatched to the registered handler; everything else is
// dropped.
type Feed struct {
	url       string
	conn      *websocket.Conn
	mu        sync.Mutex
	connected bool
	handler   TickerHandler
	logger    *logrus.Logger
}

type feedMessage struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Time      string `json:"time"`
	Message   string `json:"message"`
}

type subscribeMessage struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

func NewFeed(url string, logger *logrus.Logger) *Feed {
	if url == "" {
		url = DefaultFeedURL
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Feed{
		url:    url,
		logger: logger,
	}
}

// OnTicker registers the handler invoked for each ticker update. Must be
// called before Connect.
func (f *Feed) OnTicker(handler TickerHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
}

func (f *Feed) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.connected {
		return nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}

	f.conn = conn
	f.connected = true

	go f.readLoop(ctx)
	go f.keepAlive(ctx)

	return nil
}

// Subscribe subscribes to the ticker channel for the given products.
func (f *Feed) Subscribe(productIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.connected {
		return fmt.Errorf("websocket not connected")
	}

	sub := subscribeMessage{
		Type:       "subscribe",
		ProductIDs: productIDs,
		Channels:   []string{"ticker"},
	}
	return f.conn.WriteJSON(sub)
}

func (f *Feed) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			f.Close()
			return
		default:
			var msg feedMessage
			if err := f.conn.ReadJSON(&msg); err != nil {
				f.logger.WithError(err).Error("Failed to read websocket message")
				f.Close()
				return
			}

			switch msg.Type {
			case "ticker":
				f.dispatchTicker(msg)
			case "error":
				f.logger.WithField("message", msg.Message).Error("Feed error message")
			}
		}
	}
}

func (f *Feed) dispatchTicker(msg feedMessage) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler == nil {
		return
	}

	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil {
		f.logger.WithField("price", msg.Price).Debug("Dropping ticker with bad price")
		return
	}
	ts, err := time.Parse(time.RFC3339Nano, msg.Time)
	if err != nil {
		ts = time.Now().UTC()
	}

	handler(Ticker{ProductID: msg.ProductID, Price: price, Time: ts})
}

func (f *Feed) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.mu.Lock()
			if f.connected {
				if err := f.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.logger.WithError(err).Error("Failed to send ping")
					f.closeLocked()
				}
			}
			f.mu.Unlock()
		}
	}
}

func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeLocked()
}

func (f *Feed) closeLocked() {
	f.connected = false
	if f.conn != nil {
		f.conn.Close()
	}
}
