package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gregtusar/carry/pkg/backtest"
	"github.com/sirupsen/logrus"
)

type fakeQuoter struct {
	prices map[string]float64
	calls  int
}

func (f *fakeQuoter) SpotPrice(ctx context.Context, pair string) (float64, error) {
	f.calls++
	price, ok := f.prices[pair]
	if !ok {
		return 0, errors.New("unknown pair")
	}
	return price, nil
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testPair(expiry time.Time) Pair {
	return Pair{
		Name:          "BTC",
		SpotSymbol:    "BTC-USD",
		FuturesSymbol: "MBTG6",
		FuturesExpiry: expiry,
	}
}

func TestEvaluateAllProducesSnapshot(t *testing.T) {
	expiry := time.Now().UTC().AddDate(0, 0, 20)
	quoter := &fakeQuoter{prices: map[string]float64{"BTC-USD": 90000}}

	m := New(quoter, []Pair{testPair(expiry)}, backtest.DefaultThresholds(), time.Minute, quiet())
	m.SetPrice("MBTG6", 91000)
	m.EvaluateAll(context.Background())

	snapshots := m.Snapshots()
	if len(snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snapshots))
	}
	s := snapshots[0]
	if s.Pair != "BTC" || s.SpotPrice != 90000 || s.FuturesPrice != 91000 {
		t.Errorf("snapshot = %+v", s)
	}
	if s.Basis != 1000 {
		t.Errorf("basis = %v, want 1000", s.Basis)
	}
	// 1.11% basis over ~20 days is ~1.67%/month: strong entry.
	if s.Signal != backtest.SignalStrongEntry {
		t.Errorf("signal = %v, want strong_entry", s.Signal)
	}
}

func TestEvaluateSkipsPairWithoutFuturesPrice(t *testing.T) {
	expiry := time.Now().UTC().AddDate(0, 0, 20)
	quoter := &fakeQuoter{prices: map[string]float64{"BTC-USD": 90000}}

	m := New(quoter, []Pair{testPair(expiry)}, backtest.DefaultThresholds(), time.Minute, quiet())
	m.EvaluateAll(context.Background())

	if got := m.Snapshots(); len(got) != 0 {
		t.Errorf("expected no snapshots before a futures price arrives, got %d", len(got))
	}
}

func TestPushedSpotPriceAvoidsPolling(t *testing.T) {
	expiry := time.Now().UTC().AddDate(0, 0, 20)
	quoter := &fakeQuoter{prices: map[string]float64{}}

	m := New(quoter, []Pair{testPair(expiry)}, backtest.DefaultThresholds(), time.Minute, quiet())
	m.SetPrice("BTC-USD", 89000)
	m.SetPrice("MBTG6", 90500)
	m.EvaluateAll(context.Background())

	if quoter.calls != 0 {
		t.Errorf("quoter polled %d times despite pushed spot price", quoter.calls)
	}
	snapshots := m.Snapshots()
	if len(snapshots) != 1 || snapshots[0].SpotPrice != 89000 {
		t.Fatalf("snapshots = %+v", snapshots)
	}
}

func TestSnapshotsSortedByPair(t *testing.T) {
	expiry := time.Now().UTC().AddDate(0, 0, 20)
	quoter := &fakeQuoter{prices: map[string]float64{"BTC-USD": 90000, "ETH-USD": 3000}}
	pairs := []Pair{
		{Name: "ETH", SpotSymbol: "ETH-USD", FuturesSymbol: "METG6", FuturesExpiry: expiry},
		{Name: "BTC", SpotSymbol: "BTC-USD", FuturesSymbol: "MBTG6", FuturesExpiry: expiry},
	}

	m := New(quoter, pairs, backtest.DefaultThresholds(), time.Minute, quiet())
	m.SetPrice("MBTG6", 91000)
	m.SetPrice("METG6", 3030)
	m.EvaluateAll(context.Background())

	snapshots := m.Snapshots()
	if len(snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snapshots))
	}
	if snapshots[0].Pair != "BTC" || snapshots[1].Pair != "ETH" {
		t.Errorf("order = %s, %s; want BTC, ETH", snapshots[0].Pair, snapshots[1].Pair)
	}
}

func TestStartStops(t *testing.T) {
	expiry := time.Now().UTC().AddDate(0, 0, 20)
	quoter := &fakeQuoter{prices: map[string]float64{"BTC-USD": 90000}}

	m := New(quoter, []Pair{testPair(expiry)}, backtest.DefaultThresholds(), 10*time.Millisecond, quiet())
	m.SetPrice("MBTG6", 91000)

	done := make(chan struct{})
	go func() {
		m.Start(context.Background())
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	m.Stop()
	m.Stop() // second call must not panic

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
	if len(m.Snapshots()) != 1 {
		t.Error("expected a snapshot from the run loop")
	}
}
