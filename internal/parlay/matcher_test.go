package parlay

import (
	"math"
	"testing"

	"github.com/Vodeneev/parlaybet/internal/pkg/models"
)

func TestIsFinitePositiveOdd(t *testing.T) {
	tests := []struct {
		in   float64
		want bool
	}{
		{1.85, true},
		{1.01, true},
		{1.0, false},
		{0.5, false},
		{-2, false},
		{math.NaN(), false},
		{math.Inf(1), false},
	}
	for _, tt := range tests {
		if got := isFinitePositiveOdd(tt.in); got != tt.want {
			t.Errorf("isFinitePositiveOdd(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLineDistance(t *testing.T) {
	tests := []struct {
		leg, offer *float64
		want       bool
	}{
		{models.Float(-5.5), models.Float(-5.0), true},
		{models.Float(-5.5), models.Float(-6.0), true},
		{models.Float(-5.5), models.Float(-6.1), false},
		{models.Float(220.5), models.Float(220.5), true},
		{nil, models.Float(1), false},
		{models.Float(1), nil, false},
		{models.Float(math.NaN()), models.Float(1), false},
	}
	for _, tt := range tests {
		if _, got := lineDistance(tt.leg, tt.offer, 0.5); got != tt.want {
			t.Errorf("lineDistance(%v, %v) = %v, want %v", deref(tt.leg), deref(tt.offer), got, tt.want)
		}
	}
}

func TestSameSelection(t *testing.T) {
	leg := models.ParlayLeg{MarketType: "Player_Points", SelectionName: "  LeBron   James Over "}
	if !sameSelection(leg, models.MarketOffer{MarketType: "player_points", SelectionName: "lebron james over"}) {
		t.Error("expected normalized selections to match")
	}
	if sameSelection(leg, models.MarketOffer{MarketType: "player_points", SelectionName: "LeBron James Under"}) {
		t.Error("over must not match under")
	}
}

func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
