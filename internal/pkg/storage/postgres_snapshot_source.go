package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/Vodeneev/parlaybet/internal/pkg/config"
	"github.com/Vodeneev/parlaybet/internal/pkg/models"
)

// PostgresSnapshotSource builds market snapshots from the market_offers table,
// which the odds collectors append to.
type PostgresSnapshotSource struct {
	db     *sql.DB
	maxAge time.Duration
	now    func() time.Time
}

// NewPostgresSnapshotSource opens the database and makes sure the table exists.
func NewPostgresSnapshotSource(cfg *config.PostgresConfig, maxAge time.Duration) (*PostgresSnapshotSource, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &PostgresSnapshotSource{db: db, maxAge: maxAge, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("PostgreSQL snapshot source initialized", "max_age", maxAge)
	return s, nil
}

func (s *PostgresSnapshotSource) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS market_offers (
		id BIGSERIAL PRIMARY KEY,
		game_id VARCHAR(200) NOT NULL,
		home_team VARCHAR(200) NOT NULL DEFAULT '',
		away_team VARCHAR(200) NOT NULL DEFAULT '',
		start_time TIMESTAMPTZ,
		bookmaker VARCHAR(100) NOT NULL,
		market_type VARCHAR(100) NOT NULL,
		selection_name VARCHAR(300) NOT NULL,
		line DOUBLE PRECISION,
		odds_decimal DOUBLE PRECISION NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_market_offers_recorded_at ON market_offers(recorded_at);
	CREATE INDEX IF NOT EXISTS idx_market_offers_key ON market_offers(game_id, bookmaker, market_type, selection_name);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// latestOffersQuery keeps the newest row per (game, bookmaker, market, selection, line).
const latestOffersQuery = `
	SELECT DISTINCT ON (game_id, bookmaker, market_type, selection_name, COALESCE(line, 'NaN'::float8))
		game_id, home_team, away_team, start_time, bookmaker, market_type, selection_name, line, odds_decimal
	FROM market_offers
	WHERE recorded_at >= $1
	ORDER BY game_id, bookmaker, market_type, selection_name, COALESCE(line, 'NaN'::float8), recorded_at DESC
`

// offerRow is one row of latestOffersQuery.
type offerRow struct {
	GameID    string
	HomeTeam  string
	AwayTeam  string
	StartTime sql.NullTime
	Bookmaker string
	Market    string
	Selection string
	Line      sql.NullFloat64
	Odds      float64
}

// FetchSnapshot reads offers recorded within max_age.
func (s *PostgresSnapshotSource) FetchSnapshot(ctx context.Context) (*models.MarketSnapshot, error) {
	now := s.now().UTC()
	since := time.Time{}
	if s.maxAge > 0 {
		since = now.Add(-s.maxAge)
	}

	rows, err := s.db.QueryContext(ctx, latestOffersQuery, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query market offers: %w", err)
	}
	defer rows.Close()

	var offers []offerRow
	for rows.Next() {
		var r offerRow
		if err := rows.Scan(&r.GameID, &r.HomeTeam, &r.AwayTeam, &r.StartTime, &r.Bookmaker, &r.Market, &r.Selection, &r.Line, &r.Odds); err != nil {
			return nil, fmt.Errorf("failed to scan market offer: %w", err)
		}
		offers = append(offers, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read market offers: %w", err)
	}

	return buildSnapshotFromRows(offers, now), nil
}

func buildSnapshotFromRows(rows []offerRow, fetchedAt time.Time) *models.MarketSnapshot {
	b := models.NewSnapshotBuilder("postgres", fetchedAt)
	seen := make(map[string]bool)
	for _, r := range rows {
		if !seen[r.GameID] {
			var start time.Time
			if r.StartTime.Valid {
				start = r.StartTime.Time
			}
			b.AddGame(r.GameID, r.HomeTeam, r.AwayTeam, start)
			seen[r.GameID] = true
		}
		offer := models.MarketOffer{
			MarketType:    r.Market,
			SelectionName: r.Selection,
			OddsDecimal:   r.Odds,
		}
		if r.Line.Valid {
			offer.Line = models.Float(r.Line.Float64)
		}
		b.Add(r.GameID, r.Bookmaker, offer)
	}
	return b.Snapshot()
}

// Close closes the database connection.
func (s *PostgresSnapshotSource) Close() error {
	return s.db.Close()
}
