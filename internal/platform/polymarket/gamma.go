package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

const fetchLimit = 100

var errMalformedPrices = errors.New("malformed outcome prices")

// FeedConfig holds the admissibility filter applied to markets coming off
// the Gamma API before they are offered to forecasters.
type FeedConfig struct {
	BaseURL      string
	MinVolume24h float64
	MinYesPrice  float64 // inclusive lower bound on the Yes price
	MaxYesPrice  float64 // inclusive upper bound on the Yes price
	MinHorizon   time.Duration
	MaxHorizon   time.Duration
}

// DefaultFeedConfig returns the standard filter: liquid markets with
// meaningful uncertainty that resolve within one to sixty days.
func DefaultFeedConfig(baseURL string) FeedConfig {
	return FeedConfig{
		BaseURL:      baseURL,
		MinVolume24h: 1000,
		MinYesPrice:  0.05,
		MaxYesPrice:  0.95,
		MinHorizon:   24 * time.Hour,
		MaxHorizon:   60 * 24 * time.Hour,
	}
}

// GammaClient is the REST client for the Polymarket Gamma API. It serves as
// both the market discovery feed and the resolution oracle.
type GammaClient struct {
	cfg        FeedConfig
	httpClient *http.Client
	now        func() time.Time
}

var _ domain.MarketFeed = (*GammaClient)(nil)

// NewGammaClient creates a new Gamma API client.
//
// cfg.BaseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(cfg FeedConfig) *GammaClient {
	return &GammaClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// ListAdmissibleMarkets fetches the top open markets by 24h volume and
// applies the admissibility filter: active, not closed, volume above the
// floor, Yes price inside the uncertainty band, and an end date between the
// minimum and maximum horizon. Results are sorted by 24h volume descending.
func (g *GammaClient) ListAdmissibleMarkets(ctx context.Context) ([]domain.Market, error) {
	params := url.Values{}
	params.Set("closed", "false")
	params.Set("order", "volume24hr")
	params.Set("ascending", "false")
	params.Set("limit", fmt.Sprintf("%d", fetchLimit))
	params.Set("offset", "0")

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list markets: %w", err)
	}

	var raw []gammaMarket
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	now := g.now()
	markets := make([]domain.Market, 0, len(raw))
	for i := range raw {
		if g.admissible(&raw[i], now) {
			markets = append(markets, raw[i].toDomainMarket(now))
		}
	}

	sort.Slice(markets, func(i, j int) bool {
		return markets[i].Volume24h > markets[j].Volume24h
	})

	return markets, nil
}

func (g *GammaClient) admissible(m *gammaMarket, now time.Time) bool {
	if !bool(m.Active) || m.Closed {
		return false
	}
	if m.Volume24h <= g.cfg.MinVolume24h {
		return false
	}

	yes, _, err := m.yesNoPrices()
	if err != nil {
		return false
	}
	if yes < g.cfg.MinYesPrice || yes > g.cfg.MaxYesPrice {
		return false
	}

	end, err := time.Parse(time.RFC3339, m.EndDateISO)
	if err != nil {
		return false
	}
	horizon := end.Sub(now)
	return horizon >= g.cfg.MinHorizon && horizon <= g.cfg.MaxHorizon
}

// CheckResolution queries the Gamma API for a single market and reports
// whether it has resolved. A closed market settles its Yes price to 1 or 0;
// a closed market whose prices never converged is treated as voided.
func (g *GammaClient) CheckResolution(ctx context.Context, marketID string) (domain.ResolutionCheck, error) {
	body, err := g.doGet(ctx, "/markets/"+url.PathEscape(marketID))
	if err != nil {
		return domain.ResolutionCheck{}, fmt.Errorf("polymarket/gamma: check resolution %s: %w", marketID, err)
	}

	var m gammaMarket
	if err := json.Unmarshal(body, &m); err != nil {
		return domain.ResolutionCheck{}, fmt.Errorf("polymarket/gamma: decode market: %w", err)
	}

	if !m.Closed {
		return domain.ResolutionCheck{Resolved: false, Outcome: domain.ResolutionOpen}, nil
	}

	outcome := domain.ResolutionVoided
	if yes, _, err := m.yesNoPrices(); err == nil {
		switch {
		case yes >= 0.99:
			outcome = domain.ResolutionYes
		case yes <= 0.01:
			outcome = domain.ResolutionNo
		}
	}

	return domain.ResolutionCheck{Resolved: true, Outcome: outcome}, nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, body)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, body)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, body)
	}
}
