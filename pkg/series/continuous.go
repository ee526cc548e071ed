// Package series splices per-contract futures histories into continuous
// front-month price series.
package series

import (
	"sort"
	"time"

	"github.com/gregtusar/carry/pkg/expiry"
	"github.com/gregtusar/carry/pkg/models"
)

// BuildContinuous builds a continuous front-month series from per-contract
// daily bars. For each distinct date, the front-month contract is resolved
// against the schedule and that contract's bar is selected; dates where the
// front-month contract has no bar are dropped. No gap filling or
// interpolation is performed: consumers must handle missing dates.
func BuildContinuous(bars []models.ContractBar, schedule expiry.Schedule) []models.PricePoint {
	if len(bars) == 0 || len(schedule) == 0 {
		return nil
	}

	byDate := make(map[time.Time][]models.ContractBar)
	for _, bar := range bars {
		key := dateOnly(bar.Date)
		byDate[key] = append(byDate[key], bar)
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	var points []models.PricePoint
	for _, d := range dates {
		frontCode := expiry.Code(expiry.FrontMonth(d, schedule))
		for _, bar := range byDate[d] {
			if bar.Expiry == frontCode {
				points = append(points, models.PricePoint{Date: d, Price: bar.Price})
				break
			}
		}
	}
	return points
}

// FrontMonthCandidates lists contract expiries in ascending order starting
// from whichever contract is front-month at the given date. Used when
// fetching a tradable single-contract history: candidates are probed in
// order and the first contract that returns data wins.
func FrontMonthCandidates(start time.Time, schedule expiry.Schedule) []time.Time {
	front := expiry.FrontMonth(start, schedule)
	var candidates []time.Time
	for _, e := range schedule {
		if !e.Before(front) {
			candidates = append(candidates, e)
		}
	}
	return candidates
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
