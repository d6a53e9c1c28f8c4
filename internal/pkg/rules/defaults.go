package rules

import "sync"

// Player stat families that have an over/under market.
var playerStats = []string{"points", "rebounds", "assists", "threes", "pra"}

// DefaultFile returns the built-in catalogs and sportsbook policies.
func DefaultFile() File {
	f := File{
		MutuallyExclusive: []Rule{
			{
				ID:              "opposing_moneylines",
				Tokens:          []string{"h2h", "h2h"},
				Scope:           ScopeSameGame,
				Description:     "both sides of the same moneyline cannot win together",
				SuggestedAction: "keep one side of the moneyline",
			},
			{
				ID:              "over_under_same_total",
				Tokens:          []string{"totals_over", "totals_under"},
				Scope:           ScopeSameGame,
				Description:     "over and under of the same game total",
				SuggestedAction: "keep either the over or the under",
			},
			{
				ID:              "yes_no_same_prop",
				Tokens:          []string{"player_double_double_yes", "player_double_double_no"},
				Scope:           ScopeSameSubject,
				Description:     "yes and no on the same player prop",
				SuggestedAction: "keep one side of the prop",
			},
			{
				ID:              "yes_no_same_prop",
				Tokens:          []string{"player_triple_double_yes", "player_triple_double_no"},
				Scope:           ScopeSameSubject,
				Description:     "yes and no on the same player prop",
				SuggestedAction: "keep one side of the prop",
			},
		},
		StronglyCorrelated: []Rule{
			{
				ID:              "moneyline_spread_same_team",
				Tokens:          []string{"h2h", "spreads"},
				Scope:           ScopeSameSubject,
				Description:     "moneyline and spread on the same team move together",
				SuggestedAction: "drop the spread or the moneyline",
			},
			{
				ID:              "double_double_points_over",
				Tokens:          []string{"player_double_double_yes", "player_points_over"},
				Scope:           ScopeSameSubject,
				Description:     "a double-double largely implies the points over",
				SuggestedAction: "keep only the double-double",
			},
			{
				ID:              "double_double_rebounds_over",
				Tokens:          []string{"player_double_double_yes", "player_rebounds_over"},
				Scope:           ScopeSameSubject,
				Description:     "a double-double largely implies the rebounds over",
				SuggestedAction: "keep only the double-double",
			},
			{
				ID:              "triple_double_assists_over",
				Tokens:          []string{"player_triple_double_yes", "player_assists_over"},
				Scope:           ScopeSameSubject,
				Description:     "a triple-double largely implies the assists over",
				SuggestedAction: "keep only the triple-double",
			},
		},
		SoftlyCorrelated: []Rule{
			{
				ID:          "star_points_team_moneyline",
				Tokens:      []string{"player_points_over", "h2h"},
				Scope:       ScopeSameGame,
				Score:       0.3,
				Description: "a big scoring night tends to come with a team win",
			},
			{
				ID:          "player_points_game_total_over",
				Tokens:      []string{"player_points_over", "totals_over"},
				Scope:       ScopeSameGame,
				Score:       0.4,
				Description: "player points over feeds the game total over",
			},
			{
				ID:          "teammate_points_assists",
				Tokens:      []string{"player_assists_over", "player_points_over"},
				Scope:       ScopeDifferentSubject,
				Score:       0.25,
				Description: "one player's assists are often a teammate's points",
			},
			{
				ID:          "spread_total_over",
				Tokens:      []string{"spreads", "totals_over"},
				Scope:       ScopeSameGame,
				Score:       0.15,
				Description: "a blowout cover often pushes the total over",
			},
			{
				ID:          "rebounds_game_total_under",
				Tokens:      []string{"player_rebounds_over", "totals_under"},
				Scope:       ScopeSameGame,
				Score:       0.1,
				Description: "missed shots mean rebounds and a lower total",
			},
		},
		Sportsbooks: []Policy{
			{
				ID:                     "draftkings",
				ProhibitedCombinations: []string{"moneyline_spread_same_team"},
				MaxLegs:                20,
				MinOddsPerLeg:          1.01,
				SGPSettlement:          "void_leg_reprices",
			},
			{
				ID:                     "fanduel",
				ProhibitedCombinations: []string{"moneyline_spread_same_team", "double_double_points_over"},
				MaxLegs:                25,
				MinOddsPerLeg:          1.01,
				SGPSettlement:          "void_leg_reprices",
			},
			{
				ID: "betmgm",
				ProhibitedCombinations: []string{
					"moneyline_spread_same_team",
					"double_double_points_over",
					"double_double_rebounds_over",
				},
				MaxLegs:       15,
				MinOddsPerLeg: 1.05,
				SGPSettlement: "void_whole_parlay",
			},
			{
				ID:            "caesars",
				MaxLegs:       15,
				MinOddsPerLeg: 1.10,
				SGPSettlement: "void_leg_reprices",
			},
			{
				ID: "pinnacle",
				ProhibitedCombinations: []string{
					"moneyline_spread_same_team",
					"double_double_points_over",
					"double_double_rebounds_over",
					"triple_double_assists_over",
				},
				MaxLegs:       10,
				MinOddsPerLeg: 1.10,
				SGPSettlement: "no_sgp",
			},
		},
	}

	for _, stat := range playerStats {
		f.MutuallyExclusive = append(f.MutuallyExclusive, Rule{
			ID:              "over_under_same_player_stat",
			Tokens:          []string{"player_" + stat + "_over", "player_" + stat + "_under"},
			Scope:           ScopeSameSubject,
			Description:     "over and under of the same player " + stat + " line",
			SuggestedAction: "keep either the over or the under",
		})
	}
	return f
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the shared built-in table.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := New(DefaultFile())
		if err != nil {
			panic("rules: built-in table is invalid: " + err.Error())
		}
		defaultTable = t
	})
	return defaultTable
}
