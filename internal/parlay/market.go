package parlay

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Vodeneev/parlaybet/internal/pkg/config"
	"github.com/Vodeneev/parlaybet/internal/pkg/models"
	"github.com/Vodeneev/parlaybet/internal/pkg/rules"
)

// Per-leg invalid reasons.
const (
	ReasonInvalidOdds      = "invalid leg odds"
	ReasonNoGames          = "no games available"
	ReasonGameNotFound     = "game not found"
	ReasonLineRequired     = "line required"
	ReasonOtherBookmaker   = "not available at specified bookmaker"
	ReasonNotAvailable     = "selection not available"
	ReasonInsufficientLegs = "insufficient tradeable legs"
)

const moneylineMarket = "h2h"

// MarketValidator checks legs against a market snapshot. It never reads the clock
// and never substitutes a bookmaker.
type MarketValidator struct {
	tolerance    float64
	driftPercent float64
	minLegs      int
	lineMarkets  map[string]struct{}
}

func NewMarketValidator(cfg config.EngineConfig) *MarketValidator {
	lm := make(map[string]struct{}, len(cfg.LineMarkets))
	for _, m := range cfg.LineMarkets {
		lm[models.NormalizeKeyPart(m)] = struct{}{}
	}
	minLegs := cfg.MinLegs
	if minLegs < 1 {
		minLegs = 1
	}
	return &MarketValidator{
		tolerance:    cfg.LineTolerance,
		driftPercent: cfg.OddsDriftPercent,
		minLegs:      minLegs,
		lineMarkets:  lm,
	}
}

// MinLegs is the configured number of valid legs required for success.
func (v *MarketValidator) MinLegs() int {
	return v.minLegs
}

// Validate checks every leg against snap. Legs keep their input order in the outcome.
// minLegs is the caller's minimum of valid legs; 0 or less means the configured one.
func (v *MarketValidator) Validate(legs []models.ParlayLeg, snap *models.MarketSnapshot, minLegs int) MarketValidationOutcome {
	if minLegs <= 0 {
		minLegs = v.minLegs
	}
	out := MarketValidationOutcome{
		Legs:        make([]LegAvailability, 0, len(legs)),
		ValidLegs:   []models.ParlayLeg{},
		InvalidLegs: []LegAvailability{},
	}

	empty := snap.IsEmpty()
	for _, leg := range legs {
		var la LegAvailability
		if empty {
			la = LegAvailability{Leg: leg, Reason: ReasonNoGames}
		} else {
			la = v.checkLeg(leg, snap)
		}
		out.Legs = append(out.Legs, la)
		if la.IsValid {
			out.ValidLegs = append(out.ValidLegs, leg)
		} else {
			out.InvalidLegs = append(out.InvalidLegs, la)
		}
	}

	if len(out.ValidLegs) > 0 {
		total := decimal.NewFromInt(1)
		for _, l := range out.ValidLegs {
			total = total.Mul(decimal.NewFromFloat(l.OddsDecimal))
		}
		out.TotalOdds = total.Round(6).InexactFloat64()
	}

	out.Success = len(out.ValidLegs) >= minLegs
	switch {
	case empty:
		out.Reason = ReasonNoGames
	case !out.Success:
		out.Reason = fmt.Sprintf("%s: %d of %d valid, need %d", ReasonInsufficientLegs, len(out.ValidLegs), len(legs), minLegs)
	}
	return out
}

func (v *MarketValidator) checkLeg(leg models.ParlayLeg, snap *models.MarketSnapshot) LegAvailability {
	la := LegAvailability{Leg: leg}
	if !isFinitePositiveOdd(leg.OddsDecimal) {
		la.Reason = ReasonInvalidOdds
		return la
	}
	game, ok := snap.Games[models.NormalizeKeyPart(leg.GameID)]
	if !ok {
		la.Reason = ReasonGameNotFound
		return la
	}
	needsLine := v.requiresLine(leg)
	if needsLine && leg.Line == nil {
		la.Reason = ReasonLineRequired
		return la
	}

	book := models.NormalizeKeyPart(leg.Bookmaker)
	if offer, ok := v.findOffer(game.Bookmakers[book], leg, needsLine); ok {
		la.IsValid = true
		if needsLine {
			line := *offer.Line
			la.MatchedLine = &line
		}
		drift := (offer.OddsDecimal - leg.OddsDecimal) / leg.OddsDecimal * 100
		if math.Abs(drift) > v.driftPercent {
			current := offer.OddsDecimal
			la.CurrentOdds = &current
			la.OddsDriftPercent = math.Round(drift*100) / 100
		}
		return la
	}

	books := make([]string, 0, len(game.Bookmakers))
	for b := range game.Bookmakers {
		if b != book {
			books = append(books, b)
		}
	}
	sort.Strings(books)
	for _, b := range books {
		if _, ok := v.findOffer(game.Bookmakers[b], leg, needsLine); ok {
			la.AlternativeBookmakers = append(la.AlternativeBookmakers, b)
		}
	}
	if len(la.AlternativeBookmakers) > 0 {
		la.Reason = ReasonOtherBookmaker
	} else {
		la.Reason = ReasonNotAvailable
	}
	return la
}

// requiresLine: configured line markets plus any over/under prop. Moneylines never do.
func (v *MarketValidator) requiresLine(leg models.ParlayLeg) bool {
	market := models.NormalizeKeyPart(leg.MarketType)
	if market == moneylineMarket {
		return false
	}
	if _, ok := v.lineMarkets[market]; ok {
		return true
	}
	return rules.Describe(leg).IsOverUnder()
}

// findOffer returns the priced offer closest to the leg's line.
func (v *MarketValidator) findOffer(offers []models.MarketOffer, leg models.ParlayLeg, needsLine bool) (models.MarketOffer, bool) {
	var (
		best     models.MarketOffer
		bestDist = math.Inf(1)
		found    bool
	)
	for _, o := range offers {
		if !sameSelection(leg, o) || !isFinitePositiveOdd(o.OddsDecimal) {
			continue
		}
		if !needsLine {
			return o, true
		}
		d, ok := lineDistance(leg.Line, o.Line, v.tolerance)
		if ok && d < bestDist {
			best, bestDist, found = o, d, true
		}
	}
	return best, found
}
