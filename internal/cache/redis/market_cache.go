package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

const admissibleTTL = 5 * time.Minute

// admissibleKey holds the latest admissible-market snapshot as one JSON blob.
const admissibleKey = "markets:admissible"

// MarketCache implements domain.MarketCache using a single JSON-serialized
// Redis key with a short TTL. The snapshot is written whole and read whole;
// there is no per-market granularity because rounds always consume the full
// admissible set.
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

// SetAdmissible stores the admissible-market snapshot with a 5-minute TTL.
func (mc *MarketCache) SetAdmissible(ctx context.Context, markets []domain.Market) error {
	data, err := json.Marshal(markets)
	if err != nil {
		return fmt.Errorf("redis: marshal admissible markets: %w", err)
	}
	if err := mc.rdb.Set(ctx, admissibleKey, data, admissibleTTL).Err(); err != nil {
		return fmt.Errorf("redis: set admissible markets: %w", err)
	}
	return nil
}

// GetAdmissible retrieves the cached snapshot. It returns domain.ErrNotFound
// when no snapshot is cached or the previous one expired.
func (mc *MarketCache) GetAdmissible(ctx context.Context) ([]domain.Market, error) {
	data, err := mc.rdb.Get(ctx, admissibleKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get admissible markets: %w", err)
	}

	var markets []domain.Market
	if err := json.Unmarshal(data, &markets); err != nil {
		return nil, fmt.Errorf("redis: unmarshal admissible markets: %w", err)
	}
	return markets, nil
}

// Invalidate drops the cached snapshot.
func (mc *MarketCache) Invalidate(ctx context.Context) error {
	if err := mc.rdb.Del(ctx, admissibleKey).Err(); err != nil {
		return fmt.Errorf("redis: invalidate admissible markets: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
