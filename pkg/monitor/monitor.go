// Package monitor evaluates live basis levels against the backtester's
// signal thresholds and logs entry and exit alerts.
package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gregtusar/carry/pkg/backtest"
	"github.com/gregtusar/carry/pkg/models"
	"github.com/sirupsen/logrus"
)

// SpotQuoter returns the latest spot price for a trading pair.
type SpotQuoter interface {
	SpotPrice(ctx context.Context, pair string) (float64, error)
}

// Pair is one spot/futures combination under watch.
type Pair struct {
	Name          string
	SpotSymbol    string
	FuturesSymbol string
	FuturesExpiry time.Time
}

// Snapshot is one evaluated basis reading.
type Snapshot struct {
	Pair         string          `json:"pair"`
	SpotPrice    float64         `json:"spot_price"`
	FuturesPrice float64         `json:"futures_price"`
	Basis        float64         `json:"basis"`
	BasisPercent float64         `json:"basis_percent"`
	MonthlyBasis float64         `json:"monthly_basis"`
	DaysToExpiry int             `json:"days_to_expiry"`
	Signal       backtest.Signal `json:"signal"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Monitor polls spot quotes, accepts pushed prices from streaming feeds, and
// re-evaluates each pair on a fixed interval.
type Monitor struct {
	spot       SpotQuoter
	pairs      []Pair
	thresholds backtest.Thresholds
	interval   time.Duration
	logger     *logrus.Logger

	mu        sync.RWMutex
	prices    map[string]float64
	snapshots map[string]Snapshot
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func New(spot SpotQuoter, pairs []Pair, thresholds backtest.Thresholds, interval time.Duration, logger *logrus.Logger) *Monitor {
	if logger == nil {
		logger = logrus.New()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		spot:       spot,
		pairs:      pairs,
		thresholds: thresholds,
		interval:   interval,
		logger:     logger,
		prices:     make(map[string]float64),
		snapshots:  make(map[string]Snapshot),
		stopCh:     make(chan struct{}),
	}
}

// SetPrice records a pushed price for a symbol, spot or futures. Streaming
// feeds call this from their ticker handlers.
func (m *Monitor) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	m.prices[symbol] = price
	m.mu.Unlock()
}

// Start runs the evaluation loop until ctx is done or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.logger.WithField("pairs", len(m.pairs)).Info("Starting basis monitor")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.EvaluateAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.EvaluateAll(ctx)
		}
	}
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.logger.Info("Stopping basis monitor")
		close(m.stopCh)
	})
}

// EvaluateAll refreshes every pair once. Pairs missing a futures price are
// skipped until a feed pushes one.
func (m *Monitor) EvaluateAll(ctx context.Context) {
	for _, pair := range m.pairs {
		if err := m.evaluate(ctx, pair); err != nil {
			m.logger.WithError(err).WithField("pair", pair.Name).Error("Failed to evaluate pair")
		}
	}
}

func (m *Monitor) evaluate(ctx context.Context, pair Pair) error {
	spotPrice, err := m.lookupSpot(ctx, pair)
	if err != nil {
		return err
	}

	m.mu.RLock()
	futuresPrice, ok := m.prices[pair.FuturesSymbol]
	m.mu.RUnlock()
	if !ok || futuresPrice <= 0 {
		m.logger.WithField("pair", pair.Name).Debug("No futures price yet")
		return nil
	}

	now := time.Now().UTC()
	obs := models.Observation{
		Date:          now,
		SpotPrice:     spotPrice,
		FuturesPrice:  futuresPrice,
		FuturesExpiry: pair.FuturesExpiry,
	}

	dte := obs.DaysToExpiry()
	if dte <= 0 {
		dte = 1
	}
	monthly := obs.BasisPercent() / 100 * 30 / float64(dte)

	signal := backtest.GenerateSignal(spotPrice, futuresPrice, obs.DaysToExpiry(), m.thresholds)
	snapshot := Snapshot{
		Pair:         pair.Name,
		SpotPrice:    spotPrice,
		FuturesPrice: futuresPrice,
		Basis:        obs.BasisAbsolute(),
		BasisPercent: obs.BasisPercent(),
		MonthlyBasis: monthly,
		DaysToExpiry: obs.DaysToExpiry(),
		Signal:       signal,
		Timestamp:    now,
	}

	m.mu.Lock()
	previous, had := m.snapshots[pair.Name]
	m.snapshots[pair.Name] = snapshot
	m.mu.Unlock()

	fields := logrus.Fields{
		"pair":          pair.Name,
		"basis_percent": snapshot.BasisPercent,
		"monthly_basis": snapshot.MonthlyBasis,
		"signal":        string(signal),
	}
	switch {
	case signal.IsEntry():
		m.logger.WithFields(fields).Info("Entry signal")
	case signal.IsExit():
		m.logger.WithFields(fields).Warn("Exit signal")
	case had && previous.Signal != signal:
		m.logger.WithFields(fields).Info("Signal changed")
	default:
		m.logger.WithFields(fields).Debug("Evaluated pair")
	}
	return nil
}

// lookupSpot prefers a pushed price and falls back to polling the quoter.
func (m *Monitor) lookupSpot(ctx context.Context, pair Pair) (float64, error) {
	m.mu.RLock()
	price, ok := m.prices[pair.SpotSymbol]
	m.mu.RUnlock()
	if ok && price > 0 {
		return price, nil
	}
	return m.spot.SpotPrice(ctx, pair.SpotSymbol)
}

// Snapshots returns the latest reading per pair, sorted by pair name.
func (m *Monitor) Snapshots() []Snapshot {
	m.mu.RLock()
	snapshots := make([]Snapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		snapshots = append(snapshots, s)
	}
	m.mu.RUnlock()

	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Pair < snapshots[j].Pair })
	return snapshots
}
