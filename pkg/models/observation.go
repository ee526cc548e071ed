package models

import (
	"time"
)

// Observation is a single daily spot/futures data point. Sequences handed to
// the backtester must be sorted by Date in strictly increasing order; the
// engine does not sort.
type Observation struct {
	Date          time.Time
	SpotPrice     float64
	FuturesPrice  float64
	FuturesExpiry time.Time
}

// BasisAbsolute is the raw futures-over-spot spread.
func (o Observation) BasisAbsolute() float64 {
	return o.FuturesPrice - o.SpotPrice
}

// BasisPercent is the spread as a percentage of spot.
func (o Observation) BasisPercent() float64 {
	if o.SpotPrice == 0 {
		return 0
	}
	return (o.FuturesPrice - o.SpotPrice) / o.SpotPrice * 100
}

// DaysToExpiry is the whole days between the observation date and the
// contract expiry. Negative when the contract has already expired.
func (o Observation) DaysToExpiry() int {
	return int(o.FuturesExpiry.Sub(o.Date).Hours() / 24)
}

// SpotBar is one daily close from a spot price source.
type SpotBar struct {
	Date  time.Time
	Price float64
}

// FuturesBar is one daily close for a specific futures contract.
type FuturesBar struct {
	Date   time.Time
	Price  float64
	Expiry time.Time
}

// ContractBar is a daily close tagged with its contract identity, used when
// splicing per-contract histories into a continuous series.
type ContractBar struct {
	Date   time.Time
	Symbol string // full contract symbol, e.g. MBTG6
	Base   string // base symbol, e.g. MBT
	Expiry string // contract expiry in YYYYMM form
	Price  float64
	Volume int64
}

// PricePoint is a dated price in a continuous series.
type PricePoint struct {
	Date  time.Time
	Price float64
}
