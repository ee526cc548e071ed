package databento

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestParseSymbol(t *testing.T) {
	cases := []struct {
		symbol     string
		base       string
		expiryCode string
		ok         bool
	}{
		{"MBTG6", "MBT", "202602", true},
		{"MBTF5", "MBT", "202501", true},
		{"BTCZ4", "BTC", "202412", true},
		{"METK6", "MET", "202605", true},
		{"MBT", "", "", false},    // too short
		{"MBTG?", "", "", false},  // year not a digit
		{"MBTA6", "", "", false},  // invalid month code
	}
	for _, c := range cases {
		base, code, ok := ParseSymbol(c.symbol)
		if ok != c.ok || base != c.base || code != c.expiryCode {
			t.Errorf("ParseSymbol(%q) = (%q, %q, %v), want (%q, %q, %v)",
				c.symbol, base, code, ok, c.base, c.expiryCode, c.ok)
		}
	}
}

func TestSymbolSuffix(t *testing.T) {
	got, err := SymbolSuffix("202602")
	if err != nil {
		t.Fatalf("SymbolSuffix: %v", err)
	}
	if got != "G6" {
		t.Errorf("SymbolSuffix(202602) = %q, want G6", got)
	}

	if _, err := SymbolSuffix("2026"); err == nil {
		t.Error("short code accepted")
	}
	if _, err := SymbolSuffix("202613"); err == nil {
		t.Error("month 13 accepted")
	}
}

func writeTestCSV(t *testing.T, dir string) {
	t.Helper()
	csv := `ts_event,rtype,open,high,low,close,volume,symbol
2024-02-20T00:00:00.000000000Z,33,51000,51500,50800,51200,1200,MBTG4
2024-02-20T00:00:00.000000000Z,33,51300,51800,51100,51500,300,MBTH4
2024-02-20T00:00:00.000000000Z,33,200,210,190,205,50,MBTG4-MBTH4
2024-02-26T00:00:00.000000000Z,33,52000,52400,51800,52100,900,MBTH4
2024-02-26T00:00:00.000000000Z,33,51600,52000,51500,51700,100,MBTG4
`
	if err := os.WriteFile(filepath.Join(dir, "glbx-mdp3.ohlcv-1d.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestContractHistory(t *testing.T) {
	dir := t.TempDir()
	writeTestCSV(t, dir)
	f := NewFetcher(dir, quiet())

	bars, err := f.ContractHistory("MBT", "202402", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ContractHistory: %v", err)
	}
	// Two MBTG4 rows; the spread row must be filtered out.
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d: %v", len(bars), bars)
	}
	if bars[0].Price != 51200 || bars[1].Price != 51700 {
		t.Errorf("prices = %v, %v; want 51200, 51700", bars[0].Price, bars[1].Price)
	}
	// Expiry resolves to the last trading Friday of February 2024.
	want := time.Date(2024, time.February, 23, 0, 0, 0, 0, time.UTC)
	if !bars[0].Expiry.Equal(want) {
		t.Errorf("expiry = %v, want %v", bars[0].Expiry, want)
	}
}

func TestContinuousHistoryRolls(t *testing.T) {
	dir := t.TempDir()
	writeTestCSV(t, dir)
	f := NewFetcher(dir, quiet())

	start := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.February, 28, 0, 0, 0, 0, time.UTC)
	points, err := f.ContinuousHistory("MBT", start, end)
	if err != nil {
		t.Fatalf("ContinuousHistory: %v", err)
	}

	// Feb 20 front month is the Feb contract (G4), Feb 26 is past the Feb 23
	// expiry so the March contract (H4) is front.
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d: %v", len(points), points)
	}
	if points[0].Price != 51200 {
		t.Errorf("feb 20 price = %v, want 51200 (G4)", points[0].Price)
	}
	if points[1].Price != 52100 {
		t.Errorf("feb 26 price = %v, want 52100 (H4)", points[1].Price)
	}
}

func TestContractHistoryMissingDir(t *testing.T) {
	f := NewFetcher(filepath.Join(t.TempDir(), "nope"), quiet())
	if _, err := f.ContractHistory("MBT", "202402", time.Time{}, time.Time{}); err == nil {
		t.Error("expected error for missing data dir")
	}
}
