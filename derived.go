package corrstream

import (
	"fmt"
	"math"
)

// Lift is the ratio of the observed joint probability to the product of the
// independent probabilities. It returns NaN when either marginal is zero:
// lift is undefined there, and callers must treat it as insufficient data
// rather than low lift.
func Lift(pA, pB, pAB float64) float64 {
	if pA == 0 || pB == 0 {
		return math.NaN()
	}
	return pAB / (pA * pB)
}

// FormatLag renders a lag in seconds for display. Zero is "simultaneous";
// anything else is sign-prefixed minutes with one decimal.
func FormatLag(lagSeconds float64) string {
	if lagSeconds == 0 {
		return "simultaneous"
	}
	return fmt.Sprintf("%+.1fm", lagSeconds/60)
}

// DurationHours converts a millisecond duration to hours at full precision.
// Rounding to one decimal happens only at presentation time.
func DurationHours(ms int64) float64 {
	return float64(ms) / 3_600_000
}

// RoundHours rounds an hour value to one decimal for display.
func RoundHours(hours float64) float64 {
	return math.Round(hours*10) / 10
}

// RateRatio computes a rate such as processing efficiency (processed/raw).
// A zero denominator yields zero rather than infinity.
func RateRatio(numerator, denominator int64) float64 {
	if denominator <= 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}

// orientLag gives a lag magnitude the display sign implied by stored
// participant order: positive when participants[0] leads. The raw signed
// value in CoreStats stays untouched.
func orientLag(lagSeconds float64, leaderFirst bool) float64 {
	if leaderFirst {
		return math.Abs(lagSeconds)
	}
	return -math.Abs(lagSeconds)
}

// computeDerived fills the derived metrics for an insight from its core
// stats. leaderFirst reports whether participants[0] is the leading series
// after normalization reordering.
func computeDerived(kind InsightKind, stats CoreStats, leaderFirst bool) DerivedMetrics {
	var d DerivedMetrics
	switch kind {
	case KindPmiCooccurrence:
		d.Lift = Lift(stats.PA, stats.PB, stats.PAB)
	case KindLeadLag:
		d.LagDisplay = FormatLag(orientLag(stats.LagSeconds, leaderFirst))
	case KindChangeAttribution:
		d.LagDisplay = FormatLag(orientLag(float64(stats.LagMS)/1000, leaderFirst))
		d.DurationHours = DurationHours(stats.LagMS)
	}
	return d
}
