package backtest

import (
	"math"
	"testing"
)

func TestComputeCostsETF(t *testing.T) {
	p := DefaultCostParams()
	c := ComputeCosts(90000, 92000, 91000, 92500, 1.0, 10, p)

	// ETF leg: commission 0.05% of trade value, 1 bp slippage.
	if math.Abs(c.ETFEntryCommission-45) > 1e-9 {
		t.Errorf("etf entry commission = %v, want 45", c.ETFEntryCommission)
	}
	if math.Abs(c.ETFExitCommission-46) > 1e-9 {
		t.Errorf("etf exit commission = %v, want 46", c.ETFExitCommission)
	}
	if c.SpotEntryCommission != 0 || c.SpotExitCommission != 0 {
		t.Error("direct spot commissions must be zero with an ETF leg")
	}
	if math.Abs(c.SpotEntrySlippage-9) > 1e-9 {
		t.Errorf("etf entry slippage = %v, want 9", c.SpotEntrySlippage)
	}

	// Futures leg: 0.2 contracts at $2 each per side, 2 bp slippage.
	if math.Abs(c.FuturesEntryCommission-0.4) > 1e-9 {
		t.Errorf("futures entry commission = %v, want 0.4", c.FuturesEntryCommission)
	}
	if math.Abs(c.FuturesEntrySlippage-18.2) > 1e-9 {
		t.Errorf("futures entry slippage = %v, want 18.2", c.FuturesEntrySlippage)
	}

	// Holding: funding 5%/yr and expense ratio 0.25%/yr on entry notional.
	wantFunding := 0.05 / 365 * 10 * 90000
	if math.Abs(c.FundingCost-wantFunding) > 1e-9 {
		t.Errorf("funding = %v, want %v", c.FundingCost, wantFunding)
	}
	wantExpense := 0.0025 / 365 * 10 * 90000
	if math.Abs(c.ETFExpenseRatio-wantExpense) > 1e-9 {
		t.Errorf("expense ratio = %v, want %v", c.ETFExpenseRatio, wantExpense)
	}

	// Aggregate views must tie out.
	total := c.TotalEntryCosts() + c.TotalExitCosts() + c.TotalHoldingCosts()
	if math.Abs(c.TotalCosts()-total) > 1e-9 {
		t.Errorf("TotalCosts = %v, sum of views = %v", c.TotalCosts(), total)
	}
}

func TestComputeCostsETFCommissionFloor(t *testing.T) {
	// Tiny position: percentage commission falls below the $1 minimum.
	c := ComputeCosts(90000, 90000, 91000, 91000, 0.0001, 1, DefaultCostParams())
	if c.ETFEntryCommission != 1 || c.ETFExitCommission != 1 {
		t.Errorf("commissions = %v/%v, want the $1 floor", c.ETFEntryCommission, c.ETFExitCommission)
	}
}

func TestComputeCostsDirectSpot(t *testing.T) {
	p := DefaultCostParams()
	p.UseETF = false
	c := ComputeCosts(90000, 92000, 91000, 92500, 1.0, 10, p)

	if math.Abs(c.SpotEntryCommission-360) > 1e-9 {
		t.Errorf("spot entry commission = %v, want 360", c.SpotEntryCommission)
	}
	if c.ETFEntryCommission != 0 || c.ETFExitCommission != 0 {
		t.Error("etf commissions must be zero with a direct spot leg")
	}
	if c.ETFExpenseRatio != 0 {
		t.Errorf("expense ratio = %v, want 0 without an ETF", c.ETFExpenseRatio)
	}
	if math.Abs(c.SpotEntrySlippage-45) > 1e-9 {
		t.Errorf("spot entry slippage = %v, want 45", c.SpotEntrySlippage)
	}
}

func TestNetPnL(t *testing.T) {
	b := NetPnL(90000, 92000, 91000, 92500, 1.0, 10, DefaultCostParams())

	if b.SpotPnL != 2000 {
		t.Errorf("spot pnl = %v, want 2000", b.SpotPnL)
	}
	if b.FuturesPnL != -1500 {
		t.Errorf("futures pnl = %v, want -1500", b.FuturesPnL)
	}
	if b.GrossPnL != 500 {
		t.Errorf("gross pnl = %v, want 500", b.GrossPnL)
	}
	if math.Abs(b.NetPnL-(b.GrossPnL-b.TotalCosts)) > 1e-9 {
		t.Errorf("net pnl %v does not reconcile with gross %v - costs %v", b.NetPnL, b.GrossPnL, b.TotalCosts)
	}
	wantReturn := b.NetPnL / 90000 * 100
	if math.Abs(b.NetReturnPct-wantReturn) > 1e-9 {
		t.Errorf("net return = %v, want %v", b.NetReturnPct, wantReturn)
	}
	if math.Abs(b.AnnualizedReturn-wantReturn*36.5) > 1e-9 {
		t.Errorf("annualized = %v, want %v", b.AnnualizedReturn, wantReturn*36.5)
	}
}

func TestNetPnLZeroHoldingDays(t *testing.T) {
	b := NetPnL(90000, 90000, 91000, 91000, 1.0, 0, DefaultCostParams())
	if b.AnnualizedReturn != 0 {
		t.Errorf("annualized return = %v, want 0 for zero-day hold", b.AnnualizedReturn)
	}
	if b.Costs.FundingCost != 0 {
		t.Errorf("funding = %v, want 0", b.Costs.FundingCost)
	}
}
