package parlay

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/parlaybet/internal/pkg/models"
	"github.com/Vodeneev/parlaybet/internal/pkg/rules"
)

func newCompat() *CompatibilityValidator {
	return NewCompatibilityValidator(rules.Default(), testEngineConfig())
}

func TestCompatibility_MoneylineSpreadSameTeam(t *testing.T) {
	legs := []models.ParlayLeg{
		mkLeg("g1", "h2h", "TeamA", "BookX", 1.85),
		mkLineLeg("g1", "spreads", "TeamA", "BookX", 1.90, -5.5),
	}

	tests := []struct {
		book      string
		wantValid bool
	}{
		{"draftkings", false}, // prohibits moneyline_spread_same_team
		{"caesars", true},
	}
	for _, tt := range tests {
		t.Run(tt.book, func(t *testing.T) {
			res := newCompat().Validate(legs, tt.book)
			require.Len(t, res.Violations, 1)
			v := res.Violations[0]
			assert.Equal(t, SeveritySoftBlock, v.Severity)
			assert.Equal(t, "moneyline_spread_same_team", v.RuleType)
			assert.Equal(t, !tt.wantValid, v.Prohibited)
			assert.Equal(t, tt.wantValid, res.IsValid)
			assert.InDelta(t, 1.0, res.CorrelationTaxMultiplier, 1e-12)
			if tt.wantValid {
				require.Len(t, res.Warnings, 1)
				assert.Contains(t, res.Warnings[0], "moneyline_spread_same_team")
			}
		})
	}
}

func TestCompatibility_SoftCorrelationTax(t *testing.T) {
	legs := []models.ParlayLeg{
		mkLineLeg("G1", "player_points", "LeBron James Over", "draftkings", 1.8, 25.5),
		mkLeg("G1", "h2h", "Lakers", "draftkings", 1.85),
		mkLineLeg("G1", "totals", "Over", "draftkings", 1.95, 220.5),
	}
	res := newCompat().Validate(legs, "draftkings")

	assert.True(t, res.IsValid)
	require.Len(t, res.Violations, 2)
	scores := map[string]float64{}
	for _, v := range res.Violations {
		assert.Equal(t, SeverityWarning, v.Severity)
		require.NotNil(t, v.CorrelationScore)
		scores[v.RuleType] = *v.CorrelationScore
	}
	assert.InDelta(t, 0.3, scores["star_points_team_moneyline"], 1e-12)
	assert.InDelta(t, 0.4, scores["player_points_game_total_over"], 1e-12)
	// (1.1 + 0.2*0.3) * (1.1 + 0.2*0.4)
	assert.InDelta(t, 1.3688, res.CorrelationTaxMultiplier, 1e-9)
}

func TestCompatibility_TaxMonotone(t *testing.T) {
	v := newCompat()
	legs := []models.ParlayLeg{
		mkLineLeg("G1", "player_points", "LeBron James Over", "draftkings", 1.8, 25.5),
		mkLeg("G1", "h2h", "Lakers", "draftkings", 1.85),
	}
	prev := 1.0
	for _, extra := range []models.ParlayLeg{
		mkLineLeg("G1", "totals", "Over", "draftkings", 1.95, 220.5),
		mkLineLeg("G1", "player_assists", "Austin Reaves Over", "draftkings", 1.9, 5.5),
	} {
		res := v.Validate(legs, "draftkings")
		assert.GreaterOrEqual(t, res.CorrelationTaxMultiplier, 1.0)
		assert.Greater(t, res.CorrelationTaxMultiplier, prev-1e-12)
		prev = res.CorrelationTaxMultiplier
		legs = append(legs, extra)
	}
	final := v.Validate(legs, "draftkings")
	assert.Greater(t, final.CorrelationTaxMultiplier, prev)
}

func TestCompatibility_MutuallyExclusiveIsSymmetric(t *testing.T) {
	over := mkLineLeg("G1", "totals", "Over", "draftkings", 1.9, 220.5)
	under := mkLineLeg("G1", "totals", "Under", "draftkings", 1.9, 220.5)
	v := newCompat()

	for _, legs := range [][]models.ParlayLeg{{over, under}, {under, over}} {
		res := v.Validate(legs, "caesars")
		assert.False(t, res.IsValid)
		require.Len(t, res.Violations, 1)
		assert.Equal(t, SeverityHardBlock, res.Violations[0].Severity)
		assert.Equal(t, "over_under_same_total", res.Violations[0].RuleType)
	}
}

func TestCompatibility_OrderIndependent(t *testing.T) {
	legs := []models.ParlayLeg{
		mkLineLeg("G1", "player_points", "LeBron James Over", "draftkings", 1.8, 25.5),
		mkLeg("G1", "h2h", "Lakers", "draftkings", 1.85),
		mkLineLeg("G1", "spreads", "Lakers", "draftkings", 1.9, -5.5),
		mkLineLeg("G1", "totals", "Over", "draftkings", 1.95, 220.5),
	}
	v := newCompat()
	base := v.Validate(legs, "caesars")

	perms := [][]int{{3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}}
	for _, p := range perms {
		shuffled := make([]models.ParlayLeg, len(legs))
		for i, idx := range p {
			shuffled[i] = legs[idx]
		}
		got := v.Validate(shuffled, "caesars")
		assert.Equal(t, base.Violations, got.Violations, "perm %v", p)
		assert.Equal(t, base.CorrelationTaxMultiplier, got.CorrelationTaxMultiplier)
		assert.Equal(t, base.IsValid, got.IsValid)
	}
}

func TestCompatibility_DuplicateSelection(t *testing.T) {
	legs := []models.ParlayLeg{
		mkLeg("G1", "h2h", "Lakers", "draftkings", 1.85),
		mkLeg("g1", "H2H", " lakers ", "fanduel", 1.87),
	}
	res := newCompat().Validate(legs, "caesars")
	assert.False(t, res.IsValid)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, RuleDuplicateSelection, res.Violations[0].RuleType)
	assert.Equal(t, SeverityHardBlock, res.Violations[0].Severity)
}

func TestCompatibility_TrivialParlays(t *testing.T) {
	v := newCompat()
	for _, legs := range [][]models.ParlayLeg{nil, {mkLeg("G1", "h2h", "Lakers", "draftkings", 1.85)}} {
		res := v.Validate(legs, "draftkings")
		assert.True(t, res.IsValid)
		assert.Empty(t, res.Violations)
		assert.Equal(t, 1.0, res.CorrelationTaxMultiplier)
	}
}

func TestCompatibility_UnknownSportsbookUsesStrictest(t *testing.T) {
	legs := []models.ParlayLeg{
		mkLeg("G1", "player_double_double", "Nikola Jokic Yes", "newbook", 2.5),
		mkLineLeg("G1", "player_rebounds", "Nikola Jokic Over", "newbook", 1.9, 11.5),
	}
	res := newCompat().Validate(legs, "newbook")
	assert.True(t, res.PolicyFallback)
	assert.Equal(t, "pinnacle", res.PolicyID)
	assert.Equal(t, "newbook", res.SportsbookID)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "unknown sportsbook")

	// pinnacle prohibits double_double_rebounds_over
	assert.False(t, res.IsValid)
	require.Len(t, res.Violations, 1)
	assert.True(t, res.Violations[0].Prohibited)
}

func TestCompatibility_PolicyLimitsAreWarnings(t *testing.T) {
	var legs []models.ParlayLeg
	for i := 0; i < 11; i++ {
		legs = append(legs, mkLeg(fmt.Sprintf("G%d", i), "h2h", "Home", "pinnacle", 1.05))
	}
	res := newCompat().Validate(legs, "pinnacle")
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Violations)

	var maxLegs, minOdds int
	for _, w := range res.Warnings {
		switch {
		case strings.Contains(w, "max_legs"):
			maxLegs++
		case strings.Contains(w, "min_odds_per_leg"):
			minOdds++
		}
	}
	assert.Equal(t, 1, maxLegs)
	assert.Equal(t, 11, minOdds)
}

func TestCompatibility_DifferentGamesNeverConflict(t *testing.T) {
	legs := []models.ParlayLeg{
		mkLineLeg("G1", "totals", "Over", "draftkings", 1.9, 220.5),
		mkLineLeg("G2", "totals", "Under", "draftkings", 1.9, 210.5),
	}
	res := newCompat().Validate(legs, "draftkings")
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Violations)
}
