// Package accumulate merges spot and futures price histories into the daily
// observation sequences consumed by the backtester.
package accumulate

import (
	"context"
	"fmt"
	"time"

	"github.com/gregtusar/carry/pkg/expiry"
	"github.com/gregtusar/carry/pkg/models"
	"github.com/gregtusar/carry/pkg/series"
	"github.com/sirupsen/logrus"
)

// SpotFetcher provides daily spot closes.
type SpotFetcher interface {
	DailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.SpotBar, error)
}

// FuturesFetcher provides daily closes for a specific futures contract.
type FuturesFetcher interface {
	ContractHistory(symbol, expiryCode string, start, end time.Time) ([]models.FuturesBar, error)
}

// ContinuousFetcher provides a rolling front-month reference series.
type ContinuousFetcher interface {
	ContinuousHistory(symbol string, start, end time.Time) ([]models.PricePoint, error)
}

// Row is one accumulated data point: the observation fed to the backtester
// plus an optional continuous-series reference price.
type Row struct {
	Observation models.Observation
	Continuous  *float64
}

// Accumulator joins spot and futures histories by calendar date. Dates
// present in one history but not the other are silently skipped; that is a
// coverage reduction, not an error.
type Accumulator struct {
	spot    SpotFetcher
	futures FuturesFetcher
	logger  *logrus.Logger
}

func New(spot SpotFetcher, futures FuturesFetcher, logger *logrus.Logger) *Accumulator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Accumulator{spot: spot, futures: futures, logger: logger}
}

// Accumulate merges one contract's history with spot closes over the date
// range. expiryCode is YYYYMM; empty means the front month at the start
// date.
func (a *Accumulator) Accumulate(ctx context.Context, start, end time.Time, futSymbol, expiryCode, spotSymbol string) ([]models.Observation, error) {
	if expiryCode == "" {
		expiryCode = expiry.FrontMonthCode(start)
	}

	a.logger.WithFields(logrus.Fields{
		"start":    start.Format("2006-01-02"),
		"end":      end.Format("2006-01-02"),
		"contract": futSymbol + " " + expiryCode,
		"spot":     spotSymbol,
	}).Info("Accumulating futures data")

	spotBars, err := a.spot.DailyHistory(ctx, spotSymbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("spot history: %w", err)
	}
	futuresBars, err := a.futures.ContractHistory(futSymbol, expiryCode, start, end)
	if err != nil {
		return nil, fmt.Errorf("futures history: %w", err)
	}

	expiryDate, err := expiry.FromCode(expiryCode)
	if err != nil {
		return nil, err
	}

	observations := merge(spotBars, futuresBars, expiryDate)
	a.logger.WithField("points", len(observations)).Info("Accumulated data points")
	return observations, nil
}

// AccumulateContinuous builds a tradable front-month history plus the
// continuous reference column. The contract is fixed to whichever expiry is
// front-month at start; contracts with no data are skipped in ascending
// expiry order and the first one that responds wins.
func (a *Accumulator) AccumulateContinuous(ctx context.Context, start, end time.Time, futSymbol, spotSymbol string, cont ContinuousFetcher) ([]Row, error) {
	schedule := expiry.BuildSchedule(start, end)
	candidates := series.FrontMonthCandidates(start, schedule)

	spotBars, err := a.spot.DailyHistory(ctx, spotSymbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("spot history: %w", err)
	}

	var futuresBars []models.FuturesBar
	var expiryDate time.Time
	for _, candidate := range candidates {
		code := expiry.Code(candidate)
		bars, err := a.futures.ContractHistory(futSymbol, code, start, end)
		if err != nil || len(bars) == 0 {
			a.logger.WithField("contract", futSymbol+" "+code).Debug("No data, trying next contract")
			continue
		}
		a.logger.WithField("contract", futSymbol+" "+code).Info("Using contract")
		futuresBars = bars
		expiryDate = candidate
		break
	}
	if len(futuresBars) == 0 {
		return nil, fmt.Errorf("no futures data for %s in any candidate contract", futSymbol)
	}

	var contByDate map[time.Time]float64
	if cont != nil {
		points, err := cont.ContinuousHistory(futSymbol, start, end)
		if err != nil {
			a.logger.WithError(err).Warn("Continuous series unavailable")
		} else {
			contByDate = make(map[time.Time]float64, len(points))
			for _, p := range points {
				contByDate[dateOnly(p.Date)] = p.Price
			}
		}
	}

	observations := merge(spotBars, futuresBars, expiryDate)
	rows := make([]Row, 0, len(observations))
	for _, obs := range observations {
		row := Row{Observation: obs}
		if price, ok := contByDate[dateOnly(obs.Date)]; ok {
			p := price
			row.Continuous = &p
		}
		rows = append(rows, row)
	}

	a.logger.WithField("points", len(rows)).Info("Accumulated continuous data points")
	return rows, nil
}

// merge joins spot and futures bars on calendar date, skipping dates missing
// from either side. Output follows the spot bar order, which sources return
// chronologically sorted.
func merge(spotBars []models.SpotBar, futuresBars []models.FuturesBar, fallbackExpiry time.Time) []models.Observation {
	futuresByDate := make(map[time.Time]models.FuturesBar, len(futuresBars))
	for _, bar := range futuresBars {
		futuresByDate[dateOnly(bar.Date)] = bar
	}

	var observations []models.Observation
	for _, spotBar := range spotBars {
		key := dateOnly(spotBar.Date)
		futuresBar, ok := futuresByDate[key]
		if !ok {
			continue
		}
		exp := futuresBar.Expiry
		if exp.IsZero() {
			exp = fallbackExpiry
		}
		observations = append(observations, models.Observation{
			Date:          key,
			SpotPrice:     spotBar.Price,
			FuturesPrice:  futuresBar.Price,
			FuturesExpiry: exp,
		})
	}
	return observations
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
