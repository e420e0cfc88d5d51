package reftable

import (
	"context"
	"strconv"

	"github.com/patrickmn/go-cache"

	"github.com/couchcryptid/orbs-data-etl/internal/domain"
)

// CachedMatcher wraps a StationMatcher with an in-memory cache.
type CachedMatcher struct {
	inner      domain.StationMatcher
	cache      *cache.Cache
	maxEntries int
}

// NewCachedMatcher creates a cache decorator around a matcher. Once
// maxEntries lookups are cached, further results are passed through uncached.
func NewCachedMatcher(inner domain.StationMatcher, maxEntries int) *CachedMatcher {
	return &CachedMatcher{
		inner:      inner,
		cache:      cache.New(cache.NoExpiration, 0),
		maxEntries: maxEntries,
	}
}

// MatchStation returns the cached result for org at c, calling the inner
// matcher on a miss. Misses are cached too: reference tables do not change
// during a run.
func (c *CachedMatcher) MatchStation(ctx context.Context, org string, coords domain.Coordinates) (string, error) {
	key := cacheKey(org, coords)
	if name, ok := c.cache.Get(key); ok {
		return name.(string), nil
	}
	name, err := c.inner.MatchStation(ctx, org, coords)
	if err != nil {
		return "", err
	}
	if c.cache.ItemCount() < c.maxEntries {
		c.cache.Set(key, name, cache.NoExpiration)
	}
	return name, nil
}

// Len reports the number of cached lookups.
func (c *CachedMatcher) Len() int {
	return c.cache.ItemCount()
}

func cacheKey(org string, coords domain.Coordinates) string {
	return org + "|" + strconv.FormatFloat(coords.Lat, 'g', -1, 64) + "," + strconv.FormatFloat(coords.Lon, 'g', -1, 64)
}
