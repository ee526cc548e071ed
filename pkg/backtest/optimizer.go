package backtest

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/gregtusar/carry/pkg/models"
	"github.com/sirupsen/logrus"
)

// Default grid: entry 0.2%-2.0%, stop 0.1%-0.5%, exit 2.0%-6.0% monthly
// basis, holding limits from 10 to 60 days.
var (
	defaultEntryGrid   = frange(0.002, 0.020, 0.002)
	defaultStopGrid    = frange(0.001, 0.005, 0.001)
	defaultExitGrid    = frange(0.020, 0.060, 0.005)
	defaultHoldingGrid = []int{10, 20, 30, 40, 50, 60}
)

// GridPoint is one scored parameter combination.
type GridPoint struct {
	Entry       float64 `json:"entry"`
	Stop        float64 `json:"stop"`
	Exit        float64 `json:"exit"`
	Hold        int     `json:"hold"`
	TotalReturn float64 `json:"return"`
	Sharpe      float64 `json:"sharpe"`
	MaxDrawdown float64 `json:"max_dd"`
	Trades      int     `json:"trades"`
	WinRate     float64 `json:"win_rate"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
}

// OptimizeReport holds the full ranked grid plus the fixed-default baseline
// run for comparison.
type OptimizeReport struct {
	Results  []GridPoint
	Baseline GridPoint
}

// Best returns the top-ranked combination that actually traded, or nil when
// no combination produced a trade.
func (r *OptimizeReport) Best() *GridPoint {
	for i := range r.Results {
		if r.Results[i].Trades > 0 {
			return &r.Results[i]
		}
	}
	return nil
}

// Top returns up to n combinations that traded, ranked by total return.
func (r *OptimizeReport) Top(n int) []GridPoint {
	var top []GridPoint
	for _, p := range r.Results {
		if p.Trades == 0 {
			continue
		}
		top = append(top, p)
		if len(top) == n {
			break
		}
	}
	return top
}

// Optimizer sweeps the threshold/holding-period grid over a fixed
// observation sequence, scoring each combination with a full backtest.
type Optimizer struct {
	accountSize       float64
	fundingCostAnnual float64
	workers           int
	logger            *logrus.Logger
}

// NewOptimizer creates an Optimizer. workers <= 0 uses one worker per CPU.
func NewOptimizer(accountSize, fundingCostAnnual float64, workers int, logger *logrus.Logger) *Optimizer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Optimizer{
		accountSize:       accountSize,
		fundingCostAnnual: fundingCostAnnual,
		workers:           workers,
		logger:            logger,
	}
}

type gridCombo struct {
	entry, stop, exit float64
	hold              int
}

// Run enumerates the Cartesian grid, drops economically invalid orderings
// (entry <= stop, exit <= entry), and backtests every survivor. Combinations
// are independent pure computations over the shared read-only observation
// slice, so they fan out across a worker pool. Results are ranked by total
// return descending.
func (o *Optimizer) Run(observations []models.Observation) *OptimizeReport {
	var combos []gridCombo
	for _, entry := range defaultEntryGrid {
		for _, stop := range defaultStopGrid {
			if entry <= stop {
				continue
			}
			for _, exit := range defaultExitGrid {
				if exit <= entry {
					continue
				}
				for _, hold := range defaultHoldingGrid {
					combos = append(combos, gridCombo{entry, stop, exit, hold})
				}
			}
		}
	}

	o.logger.WithFields(logrus.Fields{
		"combinations": len(combos),
		"workers":      o.workers,
	}).Info("Starting grid search")

	jobs := make(chan gridCombo)
	out := make(chan GridPoint, len(combos))

	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				out <- o.score(observations, c)
			}
		}()
	}

	go func() {
		for _, c := range combos {
			jobs <- c
		}
		close(jobs)
		wg.Wait()
		close(out)
	}()

	results := make([]GridPoint, 0, len(combos))
	for p := range out {
		results = append(results, p)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].TotalReturn > results[j].TotalReturn
	})

	baseline := o.score(observations, gridCombo{
		entry: DefaultThresholds().Entry,
		stop:  DefaultThresholds().StopLoss,
		exit:  DefaultThresholds().Exit,
		hold:  30,
	})

	return &OptimizeReport{Results: results, Baseline: baseline}
}

func (o *Optimizer) score(observations []models.Observation, c gridCombo) GridPoint {
	th := Thresholds{
		Entry:       c.entry,
		StrongEntry: DefaultThresholds().StrongEntry,
		StopLoss:    c.stop,
		Exit:        c.exit,
	}
	// Each worker gets its own quiet Backtester; the shared logger would
	// interleave thousands of debug lines.
	quiet := logrus.New()
	quiet.SetLevel(logrus.WarnLevel)

	result := New(o.accountSize, o.fundingCostAnnual, th, quiet).Run(observations, c.hold)
	return GridPoint{
		Entry:       c.entry,
		Stop:        c.stop,
		Exit:        c.exit,
		Hold:        c.hold,
		TotalReturn: result.TotalReturn,
		Sharpe:      result.SharpeRatio,
		MaxDrawdown: result.MaxDrawdown,
		Trades:      result.TotalTrades,
		WinRate:     result.WinRate(),
		Wins:        result.WinningTrades,
		Losses:      result.LosingTrades,
	}
}

// frange builds an inclusive float grid, tolerating accumulation error at
// the upper bound.
func frange(start, stop, step float64) []float64 {
	var values []float64
	for v := start; v <= stop+step/10; v += step {
		values = append(values, math.Round(v*1e6)/1e6)
	}
	return values
}
