package tools

import (
	"context"
	"maps"
	"time"

	cache "github.com/patrickmn/go-cache"
)

const cacheKey = "tools"

// CachedProvider memoizes another provider's tool set for a fixed TTL.
// Failed fetches are not cached.
type CachedProvider struct {
	next  Provider
	cache *cache.Cache
}

var _ Provider = (*CachedProvider)(nil)

// Cached wraps p. A ttl <= 0 returns p unchanged.
func Cached(p Provider, ttl time.Duration) Provider {
	if ttl <= 0 {
		return p
	}
	return &CachedProvider{
		next:  p,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *CachedProvider) ListTools(ctx context.Context) (map[string]Tool, error) {
	if v, ok := c.cache.Get(cacheKey); ok {
		return maps.Clone(v.(map[string]Tool)), nil
	}
	set, err := c.next.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(cacheKey, maps.Clone(set))
	return set, nil
}
