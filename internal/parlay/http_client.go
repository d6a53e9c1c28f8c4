package parlay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Vodeneev/parlaybet/internal/pkg/models"
)

var _ SnapshotSource = (*HTTPSnapshotClient)(nil)

// HTTPSnapshotClient fetches the market snapshot from the odds feed's /odds endpoint
type HTTPSnapshotClient struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewHTTPSnapshotClient creates a new HTTP client for fetching odds
func NewHTTPSnapshotClient(baseURL string, timeout time.Duration) *HTTPSnapshotClient {
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPSnapshotClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

// oddsResponse is the feed payload, one entry per game.
type oddsResponse struct {
	Games []struct {
		ID           string    `json:"id"`
		HomeTeam     string    `json:"home_team"`
		AwayTeam     string    `json:"away_team"`
		CommenceTime time.Time `json:"commence_time"`
		Bookmakers   []struct {
			Key     string `json:"key"`
			Markets []struct {
				Key      string `json:"key"`
				Outcomes []struct {
					Name        string   `json:"name"`
					Description string   `json:"description"` // player name on prop markets
					Price       float64  `json:"price"`
					Point       *float64 `json:"point"`
				} `json:"outcomes"`
			} `json:"markets"`
		} `json:"bookmakers"`
	} `json:"games"`
}

// FetchSnapshot fetches all games from the feed
func (c *HTTPSnapshotClient) FetchSnapshot(ctx context.Context) (*models.MarketSnapshot, error) {
	if c == nil {
		return nil, fmt.Errorf("HTTP client is not configured")
	}

	u, err := url.Parse(c.baseURL + "/odds")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch odds: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var payload oddsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	b := models.NewSnapshotBuilder("http", c.now().UTC())
	for _, g := range payload.Games {
		b.AddGame(g.ID, g.HomeTeam, g.AwayTeam, g.CommenceTime)
		for _, bk := range g.Bookmakers {
			for _, m := range bk.Markets {
				for _, o := range m.Outcomes {
					selection := o.Name
					if o.Description != "" {
						selection = o.Description + " " + o.Name
					}
					b.Add(g.ID, bk.Key, models.MarketOffer{
						MarketType:    m.Key,
						SelectionName: selection,
						OddsDecimal:   o.Price,
						Line:          o.Point,
					})
				}
			}
		}
	}
	return b.Snapshot(), nil
}
