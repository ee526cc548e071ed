package models

import (
	"math"
	"time"
)

// BacktestResult aggregates a full backtest run. It is fully computed before
// being returned and never mutated afterwards; it owns its trades.
type BacktestResult struct {
	Trades         []*Trade
	TotalReturn    float64
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	AvgWin         float64
	AvgLoss        float64
	MaxDrawdown    float64
	SharpeRatio    float64
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital float64
}

// WinRate is the fraction of trades that won, 0 when there were no trades.
func (r *BacktestResult) WinRate() float64 {
	if r.TotalTrades == 0 {
		return 0
	}
	return float64(r.WinningTrades) / float64(r.TotalTrades)
}

// ProfitFactor is |avg win / avg loss|, +Inf when the average loss is
// effectively zero.
func (r *BacktestResult) ProfitFactor() float64 {
	if math.Abs(r.AvgLoss) < 0.0001 {
		return math.Inf(1)
	}
	return math.Abs(r.AvgWin / r.AvgLoss)
}

// FinalCapital is initial capital compounded by the total return.
func (r *BacktestResult) FinalCapital() float64 {
	return r.InitialCapital * (1 + r.TotalReturn)
}

// ResultSummary is the flat export form of a BacktestResult. Percentages are
// expressed in percent units.
type ResultSummary struct {
	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`
	TotalReturn    float64 `json:"total_return"`
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	WinRate        float64 `json:"win_rate"`
	AvgWin         float64 `json:"avg_win"`
	AvgLoss        float64 `json:"avg_loss"`
	ProfitFactor   float64 `json:"profit_factor"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	StartDate      string  `json:"start_date,omitempty"`
	EndDate        string  `json:"end_date,omitempty"`
}

func (r *BacktestResult) Summary() ResultSummary {
	// encoding/json cannot carry +Inf; a run with no losses exports 0.
	profitFactor := r.ProfitFactor()
	if math.IsInf(profitFactor, 1) {
		profitFactor = 0
	}
	s := ResultSummary{
		InitialCapital: r.InitialCapital,
		FinalCapital:   r.FinalCapital(),
		TotalReturn:    r.TotalReturn * 100,
		TotalTrades:    r.TotalTrades,
		WinningTrades:  r.WinningTrades,
		LosingTrades:   r.LosingTrades,
		WinRate:        r.WinRate() * 100,
		AvgWin:         r.AvgWin * 100,
		AvgLoss:        r.AvgLoss * 100,
		ProfitFactor:   profitFactor,
		MaxDrawdown:    r.MaxDrawdown * 100,
		SharpeRatio:    r.SharpeRatio,
	}
	if !r.StartDate.IsZero() {
		s.StartDate = r.StartDate.Format("2006-01-02")
	}
	if !r.EndDate.IsZero() {
		s.EndDate = r.EndDate.Format("2006-01-02")
	}
	return s
}

// TradeRecords flattens every trade in the result.
func (r *BacktestResult) TradeRecords() []TradeRecord {
	records := make([]TradeRecord, 0, len(r.Trades))
	for _, t := range r.Trades {
		records = append(records, t.Record())
	}
	return records
}
