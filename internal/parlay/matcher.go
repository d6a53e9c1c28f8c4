package parlay

import (
	"math"

	"github.com/Vodeneev/parlaybet/internal/pkg/models"
)

// lineEpsilon absorbs float noise in line comparisons (-5.5 vs -6.0 must match at 0.5).
const lineEpsilon = 1e-9

// isFinitePositiveOdd checks if a value is a valid decimal odd (> 1.0).
func isFinitePositiveOdd(v float64) bool {
	return v > 1.000001 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// sameSelection reports whether an offer prices the leg's market and selection.
func sameSelection(leg models.ParlayLeg, offer models.MarketOffer) bool {
	return models.NormalizeKeyPart(leg.MarketType) == models.NormalizeKeyPart(offer.MarketType) &&
		models.NormalizeKeyPart(leg.SelectionName) == models.NormalizeKeyPart(offer.SelectionName)
}

// lineDistance returns |offer-leg| and whether it is within tolerance.
func lineDistance(leg, offer *float64, tolerance float64) (float64, bool) {
	if leg == nil || offer == nil {
		return 0, false
	}
	if math.IsNaN(*leg) || math.IsNaN(*offer) {
		return 0, false
	}
	d := math.Abs(*offer - *leg)
	return d, d <= tolerance+lineEpsilon
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
