package backtest

// Fee and slippage assumptions for the two ways of holding the long leg:
// a spot BTC ETF held at a broker, or direct spot on a crypto exchange.
// The short leg is always CME futures (5 BTC per contract).
const (
	etfCommissionRate  = 0.0005 // 0.05% of trade value
	etfCommissionMin   = 1.0    // $1 minimum per fill
	spotCommissionRate = 0.004  // 0.4% maker fee

	cmeContractSize              = 5.0
	futuresCommissionPerContract = 2.0

	etfSlippageRate     = 0.0001 // 1 bp, tight ETF spreads
	spotSlippageRate    = 0.0005 // 5 bp
	futuresSlippageRate = 0.0002 // 2 bp

	defaultFundingRateAnnual     = 0.05
	defaultETFExpenseRatioAnnual = 0.0025
)

// TradingCosts itemizes every cost of a basis trade. It is a derived,
// immutable snapshot computed for a single trade.
type TradingCosts struct {
	// One-time commissions.
	SpotEntryCommission    float64
	SpotExitCommission     float64
	FuturesEntryCommission float64
	FuturesExitCommission  float64
	ETFEntryCommission     float64
	ETFExitCommission      float64

	// One-time slippage.
	SpotEntrySlippage    float64
	SpotExitSlippage     float64
	FuturesEntrySlippage float64
	FuturesExitSlippage  float64

	// Ongoing holding costs.
	FundingCost     float64
	ETFExpenseRatio float64
}

// TotalEntryCosts sums every cost paid to open the position.
func (c TradingCosts) TotalEntryCosts() float64 {
	return c.SpotEntryCommission +
		c.FuturesEntryCommission +
		c.ETFEntryCommission +
		c.SpotEntrySlippage +
		c.FuturesEntrySlippage
}

// TotalExitCosts sums every cost paid to close the position.
func (c TradingCosts) TotalExitCosts() float64 {
	return c.SpotExitCommission +
		c.FuturesExitCommission +
		c.ETFExitCommission +
		c.SpotExitSlippage +
		c.FuturesExitSlippage
}

// TotalHoldingCosts sums the costs accrued over the holding period.
func (c TradingCosts) TotalHoldingCosts() float64 {
	return c.FundingCost + c.ETFExpenseRatio
}

// TotalCosts is entry + exit + holding.
func (c TradingCosts) TotalCosts() float64 {
	return c.TotalEntryCosts() + c.TotalExitCosts() + c.TotalHoldingCosts()
}

// CostParams parameterizes the cost model.
type CostParams struct {
	// UseETF selects an ETF proxy for the long leg instead of direct spot.
	UseETF                bool
	FundingRateAnnual     float64
	ETFExpenseRatioAnnual float64
}

// DefaultCostParams assumes an ETF long leg, 5%/yr funding and a 0.25%/yr
// expense ratio.
func DefaultCostParams() CostParams {
	return CostParams{
		UseETF:                true,
		FundingRateAnnual:     defaultFundingRateAnnual,
		ETFExpenseRatioAnnual: defaultETFExpenseRatioAnnual,
	}
}

// ComputeCosts itemizes all costs for a basis trade of the given size and
// holding period.
func ComputeCosts(entrySpot, exitSpot, entryFutures, exitFutures, positionSize float64, holdingDays int, p CostParams) TradingCosts {
	var c TradingCosts

	if p.UseETF {
		c.ETFEntryCommission = maxFloat(etfCommissionMin, entrySpot*positionSize*etfCommissionRate)
		c.ETFExitCommission = maxFloat(etfCommissionMin, exitSpot*positionSize*etfCommissionRate)
		c.SpotEntrySlippage = entrySpot * positionSize * etfSlippageRate
		c.SpotExitSlippage = exitSpot * positionSize * etfSlippageRate
	} else {
		c.SpotEntryCommission = entrySpot * positionSize * spotCommissionRate
		c.SpotExitCommission = exitSpot * positionSize * spotCommissionRate
		c.SpotEntrySlippage = entrySpot * positionSize * spotSlippageRate
		c.SpotExitSlippage = exitSpot * positionSize * spotSlippageRate
	}

	contracts := positionSize / cmeContractSize
	c.FuturesEntryCommission = contracts * futuresCommissionPerContract
	c.FuturesExitCommission = contracts * futuresCommissionPerContract

	c.FuturesEntrySlippage = entryFutures * positionSize * futuresSlippageRate
	c.FuturesExitSlippage = exitFutures * positionSize * futuresSlippageRate

	positionValue := entrySpot * positionSize
	c.FundingCost = p.FundingRateAnnual / 365 * float64(holdingDays) * positionValue
	if p.UseETF {
		c.ETFExpenseRatio = p.ETFExpenseRatioAnnual / 365 * float64(holdingDays) * positionValue
	}

	return c
}

// PnLBreakdown decomposes the net result of a basis trade.
type PnLBreakdown struct {
	SpotPnL          float64
	FuturesPnL       float64
	GrossPnL         float64
	TotalCosts       float64
	NetPnL           float64
	NetReturnPct     float64 // percent units
	AnnualizedReturn float64 // percent units
	Costs            TradingCosts
}

// NetPnL computes the all-in P&L of a long-spot/short-futures trade.
func NetPnL(entrySpot, exitSpot, entryFutures, exitFutures, positionSize float64, holdingDays int, p CostParams) PnLBreakdown {
	spotPnL := (exitSpot - entrySpot) * positionSize
	futuresPnL := (entryFutures - exitFutures) * positionSize

	costs := ComputeCosts(entrySpot, exitSpot, entryFutures, exitFutures, positionSize, holdingDays, p)

	b := PnLBreakdown{
		SpotPnL:    spotPnL,
		FuturesPnL: futuresPnL,
		GrossPnL:   spotPnL + futuresPnL,
		TotalCosts: costs.TotalCosts(),
		Costs:      costs,
	}
	b.NetPnL = b.GrossPnL - b.TotalCosts

	notional := entrySpot * positionSize
	if notional != 0 {
		b.NetReturnPct = b.NetPnL / notional * 100
	}
	if holdingDays > 0 {
		b.AnnualizedReturn = b.NetReturnPct * 365 / float64(holdingDays)
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
