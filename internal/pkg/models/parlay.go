package models

import "fmt"

// ParlayLeg is one wagered outcome of a candidate parlay, as produced by the recommender.
// The engine never mutates a leg.
type ParlayLeg struct {
	GameID        string   `json:"game_id" yaml:"game_id"`
	MarketType    string   `json:"market_type" yaml:"market_type"`       // h2h, spreads, totals, player_points, ...
	SelectionName string   `json:"selection_name" yaml:"selection_name"` // "Lakers", "Over", "LeBron James Over"
	Bookmaker     string   `json:"bookmaker" yaml:"bookmaker"`
	OddsDecimal   float64  `json:"odds_decimal" yaml:"odds_decimal"`
	Line          *float64 `json:"line,omitempty" yaml:"line,omitempty"` // spreads/totals/props only
}

// LegKey is the identity of a leg: (game, market, selection, bookmaker), normalized.
type LegKey struct {
	GameID        string
	MarketType    string
	SelectionName string
	Bookmaker     string
}

// Key returns the normalized identity of the leg.
func (l ParlayLeg) Key() LegKey {
	return LegKey{
		GameID:        NormalizeKeyPart(l.GameID),
		MarketType:    NormalizeKeyPart(l.MarketType),
		SelectionName: NormalizeKeyPart(l.SelectionName),
		Bookmaker:     NormalizeKeyPart(l.Bookmaker),
	}
}

// Equal reports whether two legs share the same identity. Odds and line are not part of it.
func (l ParlayLeg) Equal(other ParlayLeg) bool {
	return l.Key() == other.Key()
}

// String formats the key as game|market|selection|bookmaker.
func (k LegKey) String() string {
	return k.GameID + "|" + k.MarketType + "|" + k.SelectionName + "|" + k.Bookmaker
}

// Less orders keys lexicographically; used to emit pairs in a stable orientation.
func (k LegKey) Less(other LegKey) bool {
	return k.String() < other.String()
}

// HasLine reports whether the leg carries a line value.
func (l ParlayLeg) HasLine() bool {
	return l.Line != nil
}

func (l ParlayLeg) String() string {
	if l.Line != nil {
		return fmt.Sprintf("%s %s %s (%+.1f) @ %s %.2f", l.GameID, l.MarketType, l.SelectionName, *l.Line, l.Bookmaker, l.OddsDecimal)
	}
	return fmt.Sprintf("%s %s %s @ %s %.2f", l.GameID, l.MarketType, l.SelectionName, l.Bookmaker, l.OddsDecimal)
}

// Float returns a pointer to v. Handy for building legs and offers with lines.
func Float(v float64) *float64 {
	return &v
}
