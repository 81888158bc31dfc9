package geocode

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/eytandecker/flightcam/internal/metrics"
	"github.com/eytandecker/flightcam/pkg/types"
)

// CachedResolver remembers successful lookups for a while. Failures are not
// cached, so a transient upstream error does not stick.
type CachedResolver struct {
	next    Resolver
	cache   *expirable.LRU[string, types.Coordinate]
	metrics *metrics.Collector
}

// NewCachedResolver wraps next with an LRU of size entries that expire after ttl.
// m may be nil.
func NewCachedResolver(next Resolver, size int, ttl time.Duration, m *metrics.Collector) *CachedResolver {
	if size < 1 {
		size = 1
	}
	return &CachedResolver{
		next:    next,
		cache:   expirable.NewLRU[string, types.Coordinate](size, nil, ttl),
		metrics: m,
	}
}

// Lookup serves address from the cache or asks the wrapped resolver.
func (c *CachedResolver) Lookup(ctx context.Context, address string) (types.Coordinate, error) {
	key := cacheKey(address)
	if key == "" {
		c.metrics.IncGeocode("invalid")
		return types.Coordinate{}, &types.LookupError{Address: address, Err: ErrEmptyAddress}
	}
	if coord, ok := c.cache.Get(key); ok {
		c.metrics.IncGeocode("hit")
		return coord, nil
	}

	coord, err := c.next.Lookup(ctx, address)
	switch {
	case err == nil:
		c.cache.Add(key, coord)
		c.metrics.IncGeocode("found")
	case errors.Is(err, ErrNotFound):
		c.metrics.IncGeocode("not_found")
	default:
		c.metrics.IncGeocode("error")
	}
	return coord, err
}

// Len reports the number of cached addresses.
func (c *CachedResolver) Len() int {
	return c.cache.Len()
}

func cacheKey(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}
