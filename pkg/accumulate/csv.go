package accumulate

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gregtusar/carry/pkg/models"
)

// csvFields is the accumulated-data CSV layout. Loaders only require the
// first four columns; the rest are derived for spreadsheet consumers.
var csvFields = []string{
	"date",
	"spot_price",
	"futures_price",
	"future_continuous",
	"futures_expiry",
	"basis_absolute",
	"basis_percent",
	"annualized_basis",
	"days_to_expiry",
}

// WriteCSV exports accumulated rows, creating parent directories as needed.
func WriteCSV(rows []Row, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write(csvFields); err != nil {
		return err
	}

	for _, row := range rows {
		obs := row.Observation
		cont := ""
		if row.Continuous != nil {
			cont = strconv.FormatFloat(*row.Continuous, 'f', 2, 64)
		}

		basisPct := obs.BasisPercent()
		dte := obs.DaysToExpiry()
		annualized := 0.0
		if dte > 0 {
			annualized = basisPct * 365 / float64(dte)
		}

		record := []string{
			obs.Date.Format("2006-01-02"),
			strconv.FormatFloat(obs.SpotPrice, 'f', 2, 64),
			strconv.FormatFloat(obs.FuturesPrice, 'f', 2, 64),
			cont,
			obs.FuturesExpiry.Format("2006-01-02"),
			strconv.FormatFloat(obs.BasisAbsolute(), 'f', 2, 64),
			strconv.FormatFloat(basisPct, 'f', 2, 64),
			strconv.FormatFloat(annualized, 'f', 2, 64),
			strconv.Itoa(dte),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// ObservationRows wraps plain observations for WriteCSV.
func ObservationRows(observations []models.Observation) []Row {
	rows := make([]Row, 0, len(observations))
	for _, obs := range observations {
		rows = append(rows, Row{Observation: obs})
	}
	return rows
}

// LoadObservations reads a CSV with at least date, spot_price, futures_price
// and futures_expiry columns, in any column order.
func LoadObservations(path string) ([]models.Observation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"date", "spot_price", "futures_price", "futures_expiry"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, required)
		}
	}

	var observations []models.Observation
	line := 1
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		line++

		date, err := time.Parse("2006-01-02", record[col["date"]])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad date: %w", path, line, err)
		}
		spot, err := strconv.ParseFloat(record[col["spot_price"]], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad spot_price: %w", path, line, err)
		}
		futures, err := strconv.ParseFloat(record[col["futures_price"]], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad futures_price: %w", path, line, err)
		}
		exp, err := time.Parse("2006-01-02", record[col["futures_expiry"]])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad futures_expiry: %w", path, line, err)
		}

		observations = append(observations, models.Observation{
			Date:          date,
			SpotPrice:     spot,
			FuturesPrice:  futures,
			FuturesExpiry: exp,
		})
	}
	return observations, nil
}
