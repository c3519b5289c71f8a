package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

// MarketService syncs admissible markets from the external feed into the
// store and keeps a short-lived cached snapshot so a round triggered right
// after a sync does not refetch.
type MarketService struct {
	feed    domain.MarketFeed
	markets domain.MarketStore
	cache   domain.MarketCache
	logger  *slog.Logger
}

// NewMarketService creates a MarketService. cache may be nil, in which case
// every Admissible call goes to the feed.
func NewMarketService(
	feed domain.MarketFeed,
	markets domain.MarketStore,
	cache domain.MarketCache,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		feed:    feed,
		markets: markets,
		cache:   cache,
		logger:  logger.With(slog.String("component", "markets")),
	}
}

// Sync fetches the admissible markets from the feed, upserts their snapshots
// into the store, and refreshes the cache. It returns how many markets were
// synced.
func (s *MarketService) Sync(ctx context.Context) (int, error) {
	markets, err := s.feed.ListAdmissibleMarkets(ctx)
	if err != nil {
		return 0, fmt.Errorf("markets: fetch feed: %w", err)
	}

	if err := s.markets.UpsertBatch(ctx, markets); err != nil {
		return 0, fmt.Errorf("markets: upsert: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetAdmissible(ctx, markets); err != nil {
			// Cache failures degrade to feed reads, nothing is lost.
			s.logger.WarnContext(ctx, "cache write failed",
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "markets synced", slog.Int("count", len(markets)))
	return len(markets), nil
}

// Admissible returns the current admissible snapshot, serving from cache
// when a fresh one exists and syncing from the feed otherwise.
func (s *MarketService) Admissible(ctx context.Context) ([]domain.Market, error) {
	if s.cache != nil {
		markets, err := s.cache.GetAdmissible(ctx)
		if err == nil {
			return markets, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "cache read failed",
				slog.String("error", err.Error()),
			)
		}
	}

	if _, err := s.Sync(ctx); err != nil {
		return nil, err
	}
	return s.markets.ListOpen(ctx, 0)
}

// List returns stored markets most recently fetched first.
func (s *MarketService) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	return s.markets.List(ctx, opts)
}
