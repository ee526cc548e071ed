// Package backtest evaluates the cash-and-carry basis strategy on daily
// spot/futures observation sequences.
package backtest

import (
	"math"

	"github.com/gregtusar/carry/pkg/models"
	"github.com/sirupsen/logrus"
)

const defaultAccountSize = 200000

// Backtester runs the basis-trade state machine over an observation
// sequence. It holds at most one position at a time: flat until an entry
// signal fires, then in-position until an exit signal or the holding-day
// limit closes the trade.
type Backtester struct {
	accountSize       float64
	fundingCostAnnual float64
	thresholds        Thresholds
	logger            *logrus.Logger
}

// New creates a Backtester. Zero accountSize falls back to the default
// account; a nil logger gets a fresh one.
func New(accountSize, fundingCostAnnual float64, th Thresholds, logger *logrus.Logger) *Backtester {
	if accountSize == 0 {
		accountSize = defaultAccountSize
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Backtester{
		accountSize:       accountSize,
		fundingCostAnnual: fundingCostAnnual,
		thresholds:        th,
		logger:            logger,
	}
}

// Thresholds returns the signal thresholds the backtester runs with.
func (b *Backtester) Thresholds() Thresholds {
	return b.thresholds
}

// Run executes the backtest. The observation sequence must be sorted by date
// ascending. An empty sequence yields a zeroed result, never a panic; any
// trade still open at the end of the sequence is force-closed at the final
// observation's prices.
func (b *Backtester) Run(observations []models.Observation, holdingDaysLimit int) *models.BacktestResult {
	result := &models.BacktestResult{InitialCapital: b.accountSize}
	if len(observations) == 0 {
		return result
	}

	result.StartDate = observations[0].Date
	result.EndDate = observations[len(observations)-1].Date

	equityCurve := []float64{result.InitialCapital}
	var tradeReturns []float64
	var open *models.Trade

	for _, obs := range observations {
		signal := GenerateSignal(obs.SpotPrice, obs.FuturesPrice, obs.DaysToExpiry(), b.thresholds)

		if open != nil {
			heldDays := int(obs.Date.Sub(open.EntryDate).Hours() / 24)

			shouldExit := false
			switch {
			case signal == SignalStopLoss:
				shouldExit = true
				open.Status = models.TradeStatusStoppedOut
			case signal == SignalFullExit:
				shouldExit = true
				open.Status = models.TradeStatusClosed
			case heldDays >= holdingDaysLimit:
				shouldExit = true
				open.Status = models.TradeStatusClosed
			}

			if shouldExit {
				b.closeTrade(open, obs)

				equityCurve = append(equityCurve, equityCurve[len(equityCurve)-1]+open.RealizedPnL)
				n := len(equityCurve)
				tradeReturns = append(tradeReturns, (equityCurve[n-1]-equityCurve[n-2])/equityCurve[n-2])

				result.Trades = append(result.Trades, open)
				open = nil
			}
		}

		// Entry is checked from flat, including right after an exit on the
		// same observation.
		if open == nil && signal.IsEntry() {
			open = &models.Trade{
				EntryDate:    obs.Date,
				EntrySpot:    obs.SpotPrice,
				EntryFutures: obs.FuturesPrice,
				EntryBasis:   obs.BasisAbsolute(),
				PositionSize: 1.0,
				Status:       models.TradeStatusOpen,
			}
			b.logger.WithFields(logrus.Fields{
				"date":   obs.Date.Format("2006-01-02"),
				"signal": signal,
				"basis":  open.EntryBasis,
			}).Debug("Opened basis trade")
		}
	}

	if open != nil {
		last := observations[len(observations)-1]
		open.Status = models.TradeStatusForcedClose
		b.closeTrade(open, last)
		result.Trades = append(result.Trades, open)
	}

	b.computeStatistics(result, equityCurve, tradeReturns)
	return result
}

// closeTrade fills the exit fields and realized P&L of a trade at the given
// observation. The status must already be set by the caller.
func (b *Backtester) closeTrade(t *models.Trade, obs models.Observation) {
	t.ExitDate = obs.Date
	t.ExitSpot = obs.SpotPrice
	t.ExitFutures = obs.FuturesPrice
	t.ExitBasis = obs.BasisAbsolute()

	spotPnL := (t.ExitSpot - t.EntrySpot) * t.PositionSize
	futuresPnL := (t.EntryFutures - t.ExitFutures) * t.PositionSize

	heldDays := t.HoldingDays()
	t.FundingCost = b.fundingCostAnnual / 365 * float64(heldDays) * (t.EntrySpot * t.PositionSize)
	t.RealizedPnL = spotPnL + futuresPnL - t.FundingCost

	b.logger.WithFields(logrus.Fields{
		"date":         obs.Date.Format("2006-01-02"),
		"status":       t.Status,
		"holding_days": heldDays,
		"realized_pnl": t.RealizedPnL,
	}).Debug("Closed basis trade")
}

// computeStatistics fills the aggregate fields of the result from the closed
// trades and the equity curve.
func (b *Backtester) computeStatistics(result *models.BacktestResult, equityCurve, tradeReturns []float64) {
	result.TotalTrades = len(result.Trades)
	if result.TotalTrades == 0 {
		return
	}

	var winReturns, lossReturns []float64
	for _, t := range result.Trades {
		switch {
		case t.RealizedPnL > 0:
			result.WinningTrades++
			winReturns = append(winReturns, t.ReturnPct())
		case t.RealizedPnL < 0:
			result.LosingTrades++
			lossReturns = append(lossReturns, t.ReturnPct())
		}
	}
	result.AvgWin = mean(winReturns)
	result.AvgLoss = mean(lossReturns)

	result.TotalReturn = (equityCurve[len(equityCurve)-1] - equityCurve[0]) / equityCurve[0]
	result.MaxDrawdown = maxDrawdown(equityCurve)
	result.SharpeRatio = sharpe(tradeReturns)
}

// maxDrawdown tracks the running peak and reports the largest fractional
// decline from it.
func maxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	maxDD := 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if dd := (peak - e) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// sharpe annualizes the mean/stdev of per-trade equity returns with a
// 365-day factor. Zero with fewer than two samples or zero variance.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	m := mean(returns)
	sd := stdev(returns, m)
	if sd <= 0 {
		return 0
	}
	return m / sd * math.Sqrt(365)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdev is the sample standard deviation.
func stdev(xs []float64, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
