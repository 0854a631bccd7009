package dashboard

// Signal classifies a sector's relative strength.
type Signal string

const (
	SignalStrong  Signal = "STRONG"
	SignalNeutral Signal = "NEUTRAL"
	SignalWeak    Signal = "WEAK"
)

// Relative-strength cut-offs, in percentage points over the benchmark.
const (
	StrongAbove  = 1.0
	NeutralAbove = 0.5
)

// SignalFor returns STRONG above 1.0, NEUTRAL above 0.5, WEAK otherwise.
func SignalFor(rs float64) Signal {
	switch {
	case rs > StrongAbove:
		return SignalStrong
	case rs > NeutralAbove:
		return SignalNeutral
	default:
		return SignalWeak
	}
}

// Legend explains the signal thresholds.
const Legend = "Legend: STRONG (Relative Strength > 1.0%) | NEUTRAL (0.5% < RS <= 1.0%) | WEAK (RS <= 0.5%)"
