package series

import (
	"testing"
	"time"

	"github.com/gregtusar/carry/pkg/expiry"
	"github.com/gregtusar/carry/pkg/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func bar(d time.Time, code string, price float64) models.ContractBar {
	return models.ContractBar{Date: d, Symbol: "MBT" + code, Base: "MBT", Expiry: code, Price: price}
}

func TestBuildContinuousRollsAtExpiry(t *testing.T) {
	// Feb 2024 expiry is the 23rd; the series must switch to the March
	// contract from the 24th on.
	schedule := expiry.BuildSchedule(date(2024, time.February, 1), date(2024, time.March, 31))

	bars := []models.ContractBar{
		bar(date(2024, time.February, 22), "202402", 51000),
		bar(date(2024, time.February, 22), "202403", 51400),
		bar(date(2024, time.February, 23), "202402", 51100),
		bar(date(2024, time.February, 23), "202403", 51500),
		bar(date(2024, time.February, 26), "202402", 51200),
		bar(date(2024, time.February, 26), "202403", 51600),
	}

	points := BuildContinuous(bars, schedule)
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d: %v", len(points), points)
	}
	want := []float64{51000, 51100, 51600}
	for i, p := range points {
		if p.Price != want[i] {
			t.Errorf("point %d (%v): price %v, want %v", i, p.Date, p.Price, want[i])
		}
	}
}

func TestBuildContinuousDropsMissingFrontMonth(t *testing.T) {
	schedule := expiry.BuildSchedule(date(2024, time.February, 1), date(2024, time.March, 31))

	// Feb 26 only has the (expired) February contract: no front-month bar,
	// so the date is silently dropped.
	bars := []models.ContractBar{
		bar(date(2024, time.February, 22), "202402", 51000),
		bar(date(2024, time.February, 26), "202402", 51200),
		bar(date(2024, time.February, 27), "202403", 51700),
	}

	points := BuildContinuous(bars, schedule)
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d: %v", len(points), points)
	}
	if !points[0].Date.Equal(date(2024, time.February, 22)) || points[0].Price != 51000 {
		t.Errorf("first point = %+v", points[0])
	}
	if !points[1].Date.Equal(date(2024, time.February, 27)) || points[1].Price != 51700 {
		t.Errorf("second point = %+v", points[1])
	}
}

func TestBuildContinuousSorted(t *testing.T) {
	schedule := expiry.BuildSchedule(date(2024, time.February, 1), date(2024, time.February, 28))
	bars := []models.ContractBar{
		bar(date(2024, time.February, 21), "202402", 51200),
		bar(date(2024, time.February, 19), "202402", 51000),
		bar(date(2024, time.February, 20), "202402", 51100),
	}
	points := BuildContinuous(bars, schedule)
	for i := 1; i < len(points); i++ {
		if !points[i-1].Date.Before(points[i].Date) {
			t.Fatalf("series not sorted: %v", points)
		}
	}
}

func TestBuildContinuousEmptyInputs(t *testing.T) {
	schedule := expiry.BuildSchedule(date(2024, time.February, 1), date(2024, time.February, 28))
	if got := BuildContinuous(nil, schedule); got != nil {
		t.Errorf("nil bars: got %v", got)
	}
	if got := BuildContinuous([]models.ContractBar{bar(date(2024, time.February, 1), "202402", 50000)}, nil); got != nil {
		t.Errorf("nil schedule: got %v", got)
	}
}

func TestFrontMonthCandidates(t *testing.T) {
	schedule := expiry.BuildSchedule(date(2024, time.January, 1), date(2024, time.April, 30))

	candidates := FrontMonthCandidates(date(2024, time.March, 1), schedule)
	if len(candidates) == 0 {
		t.Fatal("no candidates")
	}
	if !candidates[0].Equal(date(2024, time.March, 29)) {
		t.Errorf("first candidate = %v, want the March expiry", candidates[0])
	}
	for i := 1; i < len(candidates); i++ {
		if !candidates[i-1].Before(candidates[i]) {
			t.Fatalf("candidates not ascending: %v", candidates)
		}
	}
}
