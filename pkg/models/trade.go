package models

import (
	"time"
)

type TradeStatus string

const (
	TradeStatusOpen        TradeStatus = "open"
	TradeStatusClosed      TradeStatus = "closed"
	TradeStatusStoppedOut  TradeStatus = "stopped_out"
	TradeStatusForcedClose TradeStatus = "forced_close"
)

// Trade is one open-to-close basis position: long spot, short futures.
// A trade is created open, mutated exactly once when it closes, and never
// touched again. Exit fields are meaningful only once Status != open.
type Trade struct {
	EntryDate    time.Time
	EntrySpot    float64
	EntryFutures float64
	EntryBasis   float64

	ExitDate    time.Time
	ExitSpot    float64
	ExitFutures float64
	ExitBasis   float64

	PositionSize float64
	FundingCost  float64
	RealizedPnL  float64
	Status       TradeStatus
}

// HoldingDays is the whole days the trade was held, 0 while still open.
func (t *Trade) HoldingDays() int {
	if t.ExitDate.IsZero() {
		return 0
	}
	return int(t.ExitDate.Sub(t.EntryDate).Hours() / 24)
}

// ReturnPct is realized P&L relative to entry notional, 0 while open.
func (t *Trade) ReturnPct() float64 {
	if t.Status == TradeStatusOpen {
		return 0
	}
	notional := t.EntrySpot * t.PositionSize
	if notional == 0 {
		return 0
	}
	return t.RealizedPnL / notional
}

// AnnualizedReturn scales ReturnPct to a 365-day horizon. Zero when the
// holding period is zero days (same-day close).
func (t *Trade) AnnualizedReturn() float64 {
	days := t.HoldingDays()
	if days <= 0 {
		return 0
	}
	return t.ReturnPct() * 365 / float64(days)
}

// TradeRecord is the flat export form of a Trade.
type TradeRecord struct {
	EntryDate        string  `json:"entry_date"`
	ExitDate         string  `json:"exit_date,omitempty"`
	EntryBasis       float64 `json:"entry_basis"`
	ExitBasis        float64 `json:"exit_basis"`
	HoldingDays      int     `json:"holding_days"`
	ReturnPct        float64 `json:"return_pct"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Status           string  `json:"status"`
}

// Record converts the trade to its flat export form. Percentages are
// expressed in percent units.
func (t *Trade) Record() TradeRecord {
	rec := TradeRecord{
		EntryDate:        t.EntryDate.Format("2006-01-02"),
		EntryBasis:       t.EntryBasis,
		ExitBasis:        t.ExitBasis,
		HoldingDays:      t.HoldingDays(),
		ReturnPct:        t.ReturnPct() * 100,
		AnnualizedReturn: t.AnnualizedReturn() * 100,
		Status:           string(t.Status),
	}
	if !t.ExitDate.IsZero() {
		rec.ExitDate = t.ExitDate.Format("2006-01-02")
	}
	return rec
}
