package kra

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/tsawler/kra/raster"
)

// surfaceCache holds decoded surfaces by node identifier.
type surfaceCache struct {
	cache *cache.Cache
}

// newSurfaceCache returns nil for a zero ttl, which disables caching.
func newSurfaceCache(ttl time.Duration) *surfaceCache {
	switch {
	case ttl == 0:
		return nil
	case ttl < 0:
		return &surfaceCache{cache: cache.New(cache.NoExpiration, 0)}
	}
	// Expired surfaces are purged at twice the lifetime.
	return &surfaceCache{cache: cache.New(ttl, 2*ttl)}
}

func (c *surfaceCache) Save(id uuid.UUID, s *raster.Surface) {
	if c == nil {
		return
	}
	c.cache.Set(id.String(), s, cache.DefaultExpiration)
}

func (c *surfaceCache) Get(id uuid.UUID) (*raster.Surface, bool) {
	if c == nil {
		return nil, false
	}
	if x, found := c.cache.Get(id.String()); found {
		return x.(*raster.Surface), true
	}
	return nil, false
}

func (c *surfaceCache) Flush() {
	if c == nil {
		return
	}
	c.cache.Flush()
}
