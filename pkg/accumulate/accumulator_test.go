package accumulate

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/gregtusar/carry/pkg/models"
	"github.com/sirupsen/logrus"
)

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func date(d int) time.Time {
	return time.Date(2024, time.February, d, 0, 0, 0, 0, time.UTC)
}

type fakeSpot struct {
	bars []models.SpotBar
}

func (f *fakeSpot) DailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.SpotBar, error) {
	return f.bars, nil
}

type fakeFutures struct {
	byExpiry map[string][]models.FuturesBar
	probed   []string
}

func (f *fakeFutures) ContractHistory(symbol, expiryCode string, start, end time.Time) ([]models.FuturesBar, error) {
	f.probed = append(f.probed, expiryCode)
	return f.byExpiry[expiryCode], nil
}

type fakeContinuous struct {
	points []models.PricePoint
}

func (f *fakeContinuous) ContinuousHistory(symbol string, start, end time.Time) ([]models.PricePoint, error) {
	return f.points, nil
}

func TestAccumulateMergesByDateAndSkipsGaps(t *testing.T) {
	exp := date(23)
	spot := &fakeSpot{bars: []models.SpotBar{
		{Date: date(5), Price: 50000},
		{Date: date(6), Price: 50500},
		{Date: date(7), Price: 51000}, // no futures bar: dropped
	}}
	futures := &fakeFutures{byExpiry: map[string][]models.FuturesBar{
		"202402": {
			{Date: date(5), Price: 50800, Expiry: exp},
			{Date: date(6), Price: 51200, Expiry: exp},
			{Date: date(8), Price: 51500, Expiry: exp}, // no spot bar: dropped
		},
	}}

	acc := New(spot, futures, quiet())
	obs, err := acc.Accumulate(context.Background(), date(1), date(28), "MBT", "202402", "BTCUSDT")
	if err != nil {
		t.Fatalf("Accumulate: %v", err)
	}

	if len(obs) != 2 {
		t.Fatalf("expected 2 merged observations, got %d: %v", len(obs), obs)
	}
	if obs[0].SpotPrice != 50000 || obs[0].FuturesPrice != 50800 {
		t.Errorf("first observation = %+v", obs[0])
	}
	if !obs[0].FuturesExpiry.Equal(exp) {
		t.Errorf("expiry = %v, want %v", obs[0].FuturesExpiry, exp)
	}
	if obs[0].DaysToExpiry() != 18 {
		t.Errorf("days to expiry = %d, want 18", obs[0].DaysToExpiry())
	}
}

func TestAccumulateContinuousProbesContractsInOrder(t *testing.T) {
	// Front month at Feb 1 2024 is the February contract, but only the
	// March contract has data: the accumulator must fall through to it.
	spot := &fakeSpot{bars: []models.SpotBar{{Date: date(5), Price: 50000}}}
	futures := &fakeFutures{byExpiry: map[string][]models.FuturesBar{
		"202403": {{Date: date(5), Price: 50900}},
	}}
	cont := &fakeContinuous{points: []models.PricePoint{{Date: date(5), Price: 50850}}}

	acc := New(spot, futures, quiet())
	rows, err := acc.AccumulateContinuous(context.Background(), date(1), date(28), "MBT", "BTCUSDT", cont)
	if err != nil {
		t.Fatalf("AccumulateContinuous: %v", err)
	}

	if len(futures.probed) < 2 || futures.probed[0] != "202402" || futures.probed[1] != "202403" {
		t.Fatalf("probe order = %v, want 202402 then 202403", futures.probed)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Observation.FuturesPrice != 50900 {
		t.Errorf("futures price = %v, want 50900 (March contract)", rows[0].Observation.FuturesPrice)
	}
	if rows[0].Continuous == nil || *rows[0].Continuous != 50850 {
		t.Errorf("continuous = %v, want 50850", rows[0].Continuous)
	}
	// Empty expiry from the fake bar falls back to the probed contract's
	// calendar expiry: last Friday of March 2024.
	want := time.Date(2024, time.March, 29, 0, 0, 0, 0, time.UTC)
	if !rows[0].Observation.FuturesExpiry.Equal(want) {
		t.Errorf("expiry = %v, want %v", rows[0].Observation.FuturesExpiry, want)
	}
}

func TestAccumulateContinuousNoDataAnywhere(t *testing.T) {
	spot := &fakeSpot{bars: []models.SpotBar{{Date: date(5), Price: 50000}}}
	futures := &fakeFutures{byExpiry: map[string][]models.FuturesBar{}}

	acc := New(spot, futures, quiet())
	if _, err := acc.AccumulateContinuous(context.Background(), date(1), date(28), "MBT", "BTCUSDT", nil); err == nil {
		t.Error("expected error when no contract has data")
	}
}

func TestCSVRoundTrip(t *testing.T) {
	exp := date(23)
	rows := []Row{
		{Observation: models.Observation{Date: date(5), SpotPrice: 50000, FuturesPrice: 50800, FuturesExpiry: exp}},
		{Observation: models.Observation{Date: date(6), SpotPrice: 50500, FuturesPrice: 51200, FuturesExpiry: exp}},
	}
	cont := 50750.0
	rows[0].Continuous = &cont

	path := filepath.Join(t.TempDir(), "out", "basis.csv")
	if err := WriteCSV(rows, path); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	obs, err := LoadObservations(path)
	if err != nil {
		t.Fatalf("LoadObservations: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}
	if obs[0].SpotPrice != 50000 || obs[1].FuturesPrice != 51200 {
		t.Errorf("loaded observations = %+v", obs)
	}
	if !obs[0].FuturesExpiry.Equal(exp) {
		t.Errorf("expiry = %v, want %v", obs[0].FuturesExpiry, exp)
	}
}

func TestLoadObservationsMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	rows := []Row{}
	if err := WriteCSV(rows, path); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	// Valid header, empty body: loads zero observations without error.
	obs, err := LoadObservations(path)
	if err != nil {
		t.Fatalf("LoadObservations: %v", err)
	}
	if len(obs) != 0 {
		t.Errorf("expected no observations, got %d", len(obs))
	}
}

func TestGenerateSample(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)

	obs := GenerateSample(start, end, 50000, rng)
	if len(obs) != 91 {
		t.Fatalf("expected 91 days, got %d", len(obs))
	}
	for i, o := range obs {
		if o.SpotPrice < 10000 {
			t.Fatalf("day %d: spot below floor: %v", i, o.SpotPrice)
		}
		if o.FuturesExpiry.Before(o.Date) {
			t.Fatalf("day %d: expiry %v before date %v", i, o.FuturesExpiry, o.Date)
		}
		if i > 0 && !obs[i-1].Date.Before(o.Date) {
			t.Fatalf("dates not strictly increasing at %d", i)
		}
	}
}
