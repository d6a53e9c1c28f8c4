package rules

import (
	"strconv"
	"strings"

	"github.com/Vodeneev/parlaybet/internal/pkg/models"
)

// Selection sides recognised at the end of a selection name.
const (
	SideOver  = "over"
	SideUnder = "under"
	SideYes   = "yes"
	SideNo    = "no"
)

// LegDescriptor is the canonical view of a leg used for rule lookups.
//
// "LeBron James Over" on player_points becomes Subject "lebron james", Side "over",
// Token "player_points_over". "Lakers" on spreads becomes Subject "lakers", Token "spreads".
type LegDescriptor struct {
	GameID  string
	Market  string
	Side    string
	Subject string
	Token   string
}

// Describe reduces a leg to its descriptor.
func Describe(leg models.ParlayLeg) LegDescriptor {
	market := models.NormalizeKeyPart(leg.MarketType)
	words := strings.Fields(models.NormalizeKeyPart(leg.SelectionName))

	// "Lakers -5.5" / "Over 220.5": a trailing number is the line, not part of the subject.
	if n := len(words); n > 0 && isNumber(words[n-1]) {
		words = words[:n-1]
	}

	side := ""
	if n := len(words); n > 0 {
		switch words[n-1] {
		case SideOver, SideUnder, SideYes, SideNo:
			side = words[n-1]
			words = words[:n-1]
		}
	}

	token := market
	if side != "" {
		token = market + "_" + side
	}

	return LegDescriptor{
		GameID:  models.NormalizeKeyPart(leg.GameID),
		Market:  market,
		Side:    side,
		Subject: strings.Join(words, " "),
		Token:   token,
	}
}

// IsOverUnder reports whether the leg is one side of an over/under market.
func (d LegDescriptor) IsOverUnder() bool {
	return d.Side == SideOver || d.Side == SideUnder
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
