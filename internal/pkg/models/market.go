package models

import "time"

// MarketSnapshot is a point-in-time view of the offers per game and bookmaker.
// It is fetched fresh for every validation session and treated as read-only.
type MarketSnapshot struct {
	FetchedAt time.Time              `json:"fetched_at"`
	Source    string                 `json:"source,omitempty"`
	Games     map[string]GameMarkets `json:"games"`
}

// GameMarkets holds offers for one game keyed by bookmaker.
type GameMarkets struct {
	GameID     string                   `json:"game_id"`
	HomeTeam   string                   `json:"home_team,omitempty"`
	AwayTeam   string                   `json:"away_team,omitempty"`
	StartTime  time.Time                `json:"start_time,omitempty"`
	Bookmakers map[string][]MarketOffer `json:"bookmakers"`
}

// MarketOffer is a single priced selection at a bookmaker.
type MarketOffer struct {
	MarketType    string   `json:"market_type"`
	SelectionName string   `json:"selection_name"`
	OddsDecimal   float64  `json:"odds_decimal"`
	Line          *float64 `json:"line,omitempty"`
}

// IsEmpty reports whether the snapshot has no games at all (off-season, failed scrape, ...).
func (s *MarketSnapshot) IsEmpty() bool {
	return s == nil || len(s.Games) == 0
}

// SnapshotBuilder accumulates offers into a MarketSnapshot. Game ids and bookmakers are
// stored normalized so lookups by the validators are case-insensitive.
type SnapshotBuilder struct {
	snap *MarketSnapshot
}

// NewSnapshotBuilder starts an empty snapshot stamped with fetchedAt.
func NewSnapshotBuilder(source string, fetchedAt time.Time) *SnapshotBuilder {
	return &SnapshotBuilder{snap: &MarketSnapshot{
		FetchedAt: fetchedAt,
		Source:    source,
		Games:     map[string]GameMarkets{},
	}}
}

// AddGame registers a game without offers; a later Add attaches offers to it.
func (b *SnapshotBuilder) AddGame(gameID, homeTeam, awayTeam string, startTime time.Time) {
	key := NormalizeKeyPart(gameID)
	if key == "" {
		return
	}
	g, ok := b.snap.Games[key]
	if !ok {
		g = GameMarkets{GameID: gameID, Bookmakers: map[string][]MarketOffer{}}
	}
	g.HomeTeam = homeTeam
	g.AwayTeam = awayTeam
	g.StartTime = startTime
	b.snap.Games[key] = g
}

// Add appends an offer for (game, bookmaker).
func (b *SnapshotBuilder) Add(gameID, bookmaker string, offer MarketOffer) {
	key := NormalizeKeyPart(gameID)
	bk := NormalizeKeyPart(bookmaker)
	if key == "" || bk == "" {
		return
	}
	g, ok := b.snap.Games[key]
	if !ok {
		g = GameMarkets{GameID: gameID, Bookmakers: map[string][]MarketOffer{}}
	}
	g.Bookmakers[bk] = append(g.Bookmakers[bk], offer)
	b.snap.Games[key] = g
}

// Snapshot returns the built snapshot. The builder must not be used afterwards.
func (b *SnapshotBuilder) Snapshot() *MarketSnapshot {
	return b.snap
}
