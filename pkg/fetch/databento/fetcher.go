// Package databento reads pre-downloaded Databento OHLCV-1d CSV files and
// serves per-contract and continuous CME futures history from them.
package databento

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gregtusar/carry/pkg/expiry"
	"github.com/gregtusar/carry/pkg/models"
	"github.com/gregtusar/carry/pkg/series"
	"github.com/sirupsen/logrus"
)

// CME month codes, letter to month number.
var cmeMonthCodes = map[byte]time.Month{
	'F': time.January, 'G': time.February, 'H': time.March,
	'J': time.April, 'K': time.May, 'M': time.June,
	'N': time.July, 'Q': time.August, 'U': time.September,
	'V': time.October, 'X': time.November, 'Z': time.December,
}

var monthToCMECode = map[time.Month]byte{}

func init() {
	for code, month := range cmeMonthCodes {
		monthToCMECode[month] = code
	}
}

// yearDigitBase anchors the single-digit CME year code, which cycles every
// ten years: "1" = 2021, ..., "6" = 2026.
const yearDigitBase = 2020

// Fetcher reads futures bars from a local Databento data directory. The CSV
// is parsed once and cached for the lifetime of the fetcher; re-construct to
// pick up new files.
type Fetcher struct {
	dataDir string
	logger  *logrus.Logger

	mu   sync.Mutex
	rows []models.ContractBar
}

func NewFetcher(dataDir string, logger *logrus.Logger) *Fetcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Fetcher{dataDir: dataDir, logger: logger}
}

// ParseSymbol splits a Databento contract symbol like "MBTG6" into its base
// symbol and YYYYMM expiry code.
func ParseSymbol(symbol string) (base, expiryCode string, ok bool) {
	if len(symbol) < 4 {
		return "", "", false
	}
	yearDigit := symbol[len(symbol)-1]
	monthCode := symbol[len(symbol)-2]

	if yearDigit < '0' || yearDigit > '9' {
		return "", "", false
	}
	month, found := cmeMonthCodes[monthCode]
	if !found {
		return "", "", false
	}

	year := yearDigitBase + int(yearDigit-'0')
	return symbol[:len(symbol)-2], fmt.Sprintf("%04d%02d", year, int(month)), true
}

// SymbolSuffix converts a YYYYMM expiry code to the Databento symbol suffix,
// e.g. "202602" -> "G6".
func SymbolSuffix(expiryCode string) (string, error) {
	if len(expiryCode) != 6 {
		return "", fmt.Errorf("invalid expiry code %q", expiryCode)
	}
	year, err := strconv.Atoi(expiryCode[:4])
	if err != nil {
		return "", fmt.Errorf("invalid expiry code %q: %w", expiryCode, err)
	}
	month, err := strconv.Atoi(expiryCode[4:6])
	if err != nil || month < 1 || month > 12 {
		return "", fmt.Errorf("invalid expiry code %q", expiryCode)
	}
	return fmt.Sprintf("%c%d", monthToCMECode[time.Month(month)], year%10), nil
}

// ContractHistory returns the daily closes of one specific contract between
// start and end, sorted by date.
func (f *Fetcher) ContractHistory(symbol, expiryCode string, start, end time.Time) ([]models.FuturesBar, error) {
	rows, err := f.load()
	if err != nil {
		return nil, err
	}

	suffix, err := SymbolSuffix(expiryCode)
	if err != nil {
		return nil, err
	}
	target := symbol + suffix

	expiryDate, err := expiry.FromCode(expiryCode)
	if err != nil {
		return nil, err
	}

	var bars []models.FuturesBar
	for _, row := range rows {
		if row.Symbol != target {
			continue
		}
		if !start.IsZero() && row.Date.Before(start) {
			continue
		}
		if !end.IsZero() && row.Date.After(end) {
			continue
		}
		bars = append(bars, models.FuturesBar{Date: row.Date, Price: row.Price, Expiry: expiryDate})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	f.logger.WithFields(logrus.Fields{
		"contract": target,
		"bars":     len(bars),
	}).Debug("Filtered Databento contract history")
	return bars, nil
}

// ContinuousHistory builds a rolling front-month series for the base symbol.
func (f *Fetcher) ContinuousHistory(symbol string, start, end time.Time) ([]models.PricePoint, error) {
	rows, err := f.load()
	if err != nil {
		return nil, err
	}

	var filtered []models.ContractBar
	for _, row := range rows {
		if row.Base != symbol {
			continue
		}
		if !start.IsZero() && row.Date.Before(start) {
			continue
		}
		if !end.IsZero() && row.Date.After(end) {
			continue
		}
		filtered = append(filtered, row)
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("no databento data for %s between %s and %s",
			symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	schedule := expiry.BuildSchedule(start, end)
	return series.BuildContinuous(filtered, schedule), nil
}

// load parses the data directory's OHLCV CSV once, filtering out spread
// symbols. When several CSVs are present the largest wins.
func (f *Fetcher) load() ([]models.ContractBar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rows != nil {
		return f.rows, nil
	}

	path, err := f.findCSV()
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open databento csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read databento csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"ts_event", "symbol", "close"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("databento csv %s: missing column %q", path, required)
		}
	}

	var rows []models.ContractBar
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}

		symbol := record[col["symbol"]]
		if containsDash(symbol) {
			continue // spread symbol
		}
		base, expiryCode, ok := ParseSymbol(symbol)
		if !ok {
			continue
		}

		ts := record[col["ts_event"]]
		if len(ts) < 10 {
			continue
		}
		date, err := time.Parse("2006-01-02", ts[:10])
		if err != nil {
			continue
		}
		price, err := strconv.ParseFloat(record[col["close"]], 64)
		if err != nil {
			continue
		}

		var volume int64
		if vi, ok := col["volume"]; ok {
			volume, _ = strconv.ParseInt(record[vi], 10, 64)
		}

		rows = append(rows, models.ContractBar{
			Date:   date,
			Symbol: symbol,
			Base:   base,
			Expiry: expiryCode,
			Price:  price,
			Volume: volume,
		})
	}

	f.logger.WithFields(logrus.Fields{
		"file": path,
		"rows": len(rows),
	}).Info("Loaded Databento CSV")

	f.rows = rows
	return rows, nil
}

func (f *Fetcher) findCSV() (string, error) {
	matches, err := filepath.Glob(filepath.Join(f.dataDir, "*.ohlcv-1d.csv"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("no databento CSV found in %s", f.dataDir)
	}

	best := matches[0]
	var bestSize int64
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best = m
			bestSize = info.Size()
		}
	}
	return best, nil
}

func containsDash(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '-' {
			return true
		}
	}
	return false
}
