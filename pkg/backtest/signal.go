package backtest

// Signal is a discrete trading signal derived from the current basis.
type Signal string

const (
	SignalStrongEntry     Signal = "strong_entry"
	SignalAcceptableEntry Signal = "acceptable_entry"
	SignalPartialExit     Signal = "partial_exit"
	SignalFullExit        Signal = "full_exit"
	SignalStopLoss        Signal = "stop_loss"
	SignalNoEntry         Signal = "no_entry"
)

// IsEntry reports whether the signal opens a position.
func (s Signal) IsEntry() bool {
	return s == SignalStrongEntry || s == SignalAcceptableEntry
}

// IsExit reports whether the signal closes a position outright.
func (s Signal) IsExit() bool {
	return s == SignalStopLoss || s == SignalFullExit
}

// partialExitThreshold sits between the strong-entry and full-exit bands and
// is not tunable, matching the production signal policy.
const partialExitThreshold = 0.025

// Thresholds are the monthly-basis levels driving signal generation. All
// values are fractions (0.005 = 0.5% per month).
type Thresholds struct {
	Entry       float64
	StrongEntry float64
	StopLoss    float64
	Exit        float64
}

// DefaultThresholds returns the production defaults: enter above 0.5%/month,
// stop out below 0.2%/month, take profit above 3.5%/month.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Entry:       0.005,
		StrongEntry: 0.01,
		StopLoss:    0.002,
		Exit:        0.035,
	}
}

// GenerateSignal classifies a single (spot, futures, days-to-expiry) triple.
// Pure and stateless; rules are evaluated in fixed order and the first match
// wins, so stop/exit conditions always take precedence over entries.
func GenerateSignal(spotPrice, futuresPrice float64, daysToExpiry int, th Thresholds) Signal {
	if daysToExpiry <= 0 {
		daysToExpiry = 1
	}

	var basisPct float64
	if spotPrice != 0 {
		basisPct = (futuresPrice - spotPrice) / spotPrice
	}
	monthlyBasis := basisPct * 30 / float64(daysToExpiry)

	switch {
	case basisPct < 0 || monthlyBasis < th.StopLoss:
		return SignalStopLoss
	case monthlyBasis > th.Exit:
		return SignalFullExit
	case monthlyBasis > partialExitThreshold:
		return SignalPartialExit
	case monthlyBasis > th.StrongEntry:
		return SignalStrongEntry
	case monthlyBasis > th.Entry:
		return SignalAcceptableEntry
	default:
		return SignalNoEntry
	}
}
