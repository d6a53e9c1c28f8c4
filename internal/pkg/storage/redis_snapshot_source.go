package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Vodeneev/parlaybet/internal/pkg/config"
	"github.com/Vodeneev/parlaybet/internal/pkg/models"
)

// redisCommands is the subset of the go-redis client the source uses.
type redisCommands interface {
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// MarketDocument is the JSON value stored at <prefix>:<bookmaker>:<game>:<market>.
type MarketDocument struct {
	GameID    string          `json:"game_id"`
	HomeTeam  string          `json:"home_team,omitempty"`
	AwayTeam  string          `json:"away_team,omitempty"`
	StartTime time.Time       `json:"start_time,omitempty"`
	Bookmaker string          `json:"bookmaker"`
	Market    string          `json:"market"`
	Outcomes  []MarketOutcome `json:"outcomes"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type MarketOutcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

// RedisSnapshotSource builds market snapshots from per-market JSON documents.
type RedisSnapshotSource struct {
	client redisCommands
	closer func() error
	prefix string
	maxAge time.Duration
	now    func() time.Time
}

// NewRedisSnapshotSource connects to Redis and checks the connection.
func NewRedisSnapshotSource(cfg *config.RedisConfig, maxAge time.Duration) (*RedisSnapshotSource, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := newRedisSnapshotSource(client, cfg.KeyPrefix, maxAge)
	s.closer = client.Close
	slog.Info("Redis snapshot source initialized", "addr", cfg.Addr, "prefix", s.prefix)
	return s, nil
}

func newRedisSnapshotSource(client redisCommands, prefix string, maxAge time.Duration) *RedisSnapshotSource {
	if prefix == "" {
		prefix = "odds"
	}
	return &RedisSnapshotSource{
		client: client,
		prefix: prefix,
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (s *RedisSnapshotSource) key(bookmaker, gameID, market string) string {
	return fmt.Sprintf("%s:%s:%s:%s", s.prefix, bookmaker, gameID, market)
}

// StoreMarket writes one market document. Collectors use it; the validator only reads.
func (s *RedisSnapshotSource) StoreMarket(ctx context.Context, doc MarketDocument, ttl time.Duration) error {
	if doc.GameID == "" || doc.Bookmaker == "" || doc.Market == "" {
		return fmt.Errorf("game_id, bookmaker and market are required")
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = s.now().UTC()
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal market document: %w", err)
	}
	return s.client.Set(ctx, s.key(doc.Bookmaker, doc.GameID, doc.Market), data, ttl).Err()
}

// FetchSnapshot scans every market document under the prefix.
func (s *RedisSnapshotSource) FetchSnapshot(ctx context.Context) (*models.MarketSnapshot, error) {
	now := s.now().UTC()
	b := models.NewSnapshotBuilder("redis", now)

	var cursor uint64
	pattern := s.prefix + ":*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}
		if len(keys) > 0 {
			if err := s.load(ctx, b, keys, now); err != nil {
				return nil, err
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return b.Snapshot(), nil
}

func (s *RedisSnapshotSource) load(ctx context.Context, b *models.SnapshotBuilder, keys []string, now time.Time) error {
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("failed to load market documents: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // expired between SCAN and MGET
		}
		var doc MarketDocument
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			slog.Warn("Skipping malformed market document", "key", keys[i], "error", err)
			continue
		}
		bookmaker, gameID, market, ok := s.splitKey(keys[i])
		if !ok {
			continue
		}
		if doc.Bookmaker == "" {
			doc.Bookmaker = bookmaker
		}
		if doc.GameID == "" {
			doc.GameID = gameID
		}
		if doc.Market == "" {
			doc.Market = market
		}
		if s.maxAge > 0 && !doc.UpdatedAt.IsZero() && now.Sub(doc.UpdatedAt) > s.maxAge {
			continue
		}

		b.AddGame(doc.GameID, doc.HomeTeam, doc.AwayTeam, doc.StartTime)
		for _, o := range doc.Outcomes {
			b.Add(doc.GameID, doc.Bookmaker, models.MarketOffer{
				MarketType:    doc.Market,
				SelectionName: o.Name,
				OddsDecimal:   o.Price,
				Line:          o.Point,
			})
		}
	}
	return nil
}

// splitKey parses <prefix>:<bookmaker>:<game>:<market>; the game id may itself contain ':'.
func (s *RedisSnapshotSource) splitKey(key string) (bookmaker, gameID, market string, ok bool) {
	rest, found := strings.CutPrefix(key, s.prefix+":")
	if !found {
		return "", "", "", false
	}
	first := strings.Index(rest, ":")
	last := strings.LastIndex(rest, ":")
	if first <= 0 || last <= first || last == len(rest)-1 {
		return "", "", "", false
	}
	return rest[:first], rest[first+1 : last], rest[last+1:], true
}

// Close closes the Redis connection.
func (s *RedisSnapshotSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
