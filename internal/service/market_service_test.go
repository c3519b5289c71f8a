package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

// fakeMarketCache is a single-snapshot in-memory cache.
type fakeMarketCache struct {
	snapshot []domain.Market
	has      bool
	sets     int
}

func (c *fakeMarketCache) SetAdmissible(_ context.Context, markets []domain.Market) error {
	c.snapshot = markets
	c.has = true
	c.sets++
	return nil
}

func (c *fakeMarketCache) GetAdmissible(_ context.Context) ([]domain.Market, error) {
	if !c.has {
		return nil, domain.ErrNotFound
	}
	return c.snapshot, nil
}

func (c *fakeMarketCache) Invalidate(_ context.Context) error {
	c.has = false
	return nil
}

func TestMarketSync_UpsertsAndCaches(t *testing.T) {
	db := newMemDB()
	feed := newFakeOracle()
	feed.admissible = []domain.Market{
		{ID: "m1", Question: "q1", YesPrice: 0.4, Volume24h: 5000, Resolution: domain.ResolutionOpen},
		{ID: "m2", Question: "q2", YesPrice: 0.6, Volume24h: 9000, Resolution: domain.ResolutionOpen},
	}
	cache := &fakeMarketCache{}
	svc := NewMarketService(feed, &memMarketStore{db}, cache, testLogger())

	n, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, db.markets, 2)
	assert.True(t, cache.has)
}

func TestMarketSync_PreservesStoredResolution(t *testing.T) {
	db := newMemDB()
	feed := newFakeOracle()
	resolved := domain.Market{ID: "m1", Question: "q1", Resolution: domain.ResolutionYes}
	db.markets["m1"] = &resolved

	// The feed still reports the market as an open snapshot.
	feed.admissible = []domain.Market{{ID: "m1", Question: "q1", YesPrice: 0.99, Resolution: domain.ResolutionOpen}}
	svc := NewMarketService(feed, &memMarketStore{db}, nil, testLogger())

	_, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ResolutionYes, db.markets["m1"].Resolution)
	assert.Equal(t, 0.99, db.markets["m1"].YesPrice) // prices still refresh
}

func TestAdmissible_ServesFromCache(t *testing.T) {
	db := newMemDB()
	feed := newFakeOracle()
	cache := &fakeMarketCache{}
	svc := NewMarketService(feed, &memMarketStore{db}, cache, testLogger())

	cached := []domain.Market{{ID: "m1", Question: "q1", Resolution: domain.ResolutionOpen}}
	require.NoError(t, cache.SetAdmissible(context.Background(), cached))

	got, err := svc.Admissible(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cached, got)
	assert.Empty(t, db.markets) // the feed was never consulted
}

func TestAdmissible_SyncsOnCacheMiss(t *testing.T) {
	db := newMemDB()
	feed := newFakeOracle()
	feed.admissible = []domain.Market{{ID: "m1", Question: "q1", Volume24h: 100, Resolution: domain.ResolutionOpen}}
	cache := &fakeMarketCache{}
	svc := NewMarketService(feed, &memMarketStore{db}, cache, testLogger())

	got, err := svc.Admissible(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, 1, cache.sets)
}
