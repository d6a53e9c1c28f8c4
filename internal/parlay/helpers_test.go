package parlay

import (
	"time"

	"github.com/Vodeneev/parlaybet/internal/pkg/config"
	"github.com/Vodeneev/parlaybet/internal/pkg/models"
)

var testNow = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func testEngineConfig() config.EngineConfig {
	return config.DefaultEngineConfig()
}

func mkLeg(game, market, selection, book string, odds float64) models.ParlayLeg {
	return models.ParlayLeg{GameID: game, MarketType: market, SelectionName: selection, Bookmaker: book, OddsDecimal: odds}
}

func mkLineLeg(game, market, selection, book string, odds, line float64) models.ParlayLeg {
	l := mkLeg(game, market, selection, book, odds)
	l.Line = models.Float(line)
	return l
}

// testSnapshot: one game with two books and a second game with only a moneyline.
func testSnapshot() *models.MarketSnapshot {
	b := models.NewSnapshotBuilder("test", testNow)
	b.AddGame("G1", "Lakers", "Celtics", testNow.Add(2*time.Hour))
	b.Add("G1", "draftkings", models.MarketOffer{MarketType: "h2h", SelectionName: "Lakers", OddsDecimal: 1.85})
	b.Add("G1", "draftkings", models.MarketOffer{MarketType: "h2h", SelectionName: "Celtics", OddsDecimal: 2.0})
	b.Add("G1", "draftkings", models.MarketOffer{MarketType: "spreads", SelectionName: "Lakers", OddsDecimal: 1.9, Line: models.Float(-5.5)})
	b.Add("G1", "draftkings", models.MarketOffer{MarketType: "totals", SelectionName: "Over", OddsDecimal: 1.95, Line: models.Float(220.5)})
	b.Add("G1", "draftkings", models.MarketOffer{MarketType: "alternate_spreads", SelectionName: "Lakers", OddsDecimal: 2.0, Line: models.Float(-5.0)})
	b.Add("G1", "draftkings", models.MarketOffer{MarketType: "alternate_spreads", SelectionName: "Lakers", OddsDecimal: 1.9, Line: models.Float(-5.5)})
	b.Add("G1", "fanduel", models.MarketOffer{MarketType: "h2h", SelectionName: "Lakers", OddsDecimal: 1.87})
	b.Add("G1", "fanduel", models.MarketOffer{MarketType: "player_points", SelectionName: "LeBron James Over", OddsDecimal: 1.8, Line: models.Float(25.5)})
	b.Add("G1", "betmgm", models.MarketOffer{MarketType: "player_points", SelectionName: "LeBron James Over", OddsDecimal: 1.83, Line: models.Float(25.5)})
	b.Add("G2", "draftkings", models.MarketOffer{MarketType: "h2h", SelectionName: "Heat", OddsDecimal: 2.2})
	return b.Snapshot()
}
