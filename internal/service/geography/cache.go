package geography

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/ignite/membership-admin/internal/domain"
	"github.com/ignite/membership-admin/internal/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is how long a resolution stays cached. Hierarchy rows only
// change through bulk administrative corrections.
const DefaultCacheTTL = 6 * time.Hour

var cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "membership_admin",
	Subsystem: "geography",
	Name:      "cache_lookups_total",
	Help:      "Ward resolution cache lookups by result.",
}, []string{"result"})

// RegisterMetrics registers the package collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	return reg.Register(cacheLookups)
}

// CachedResolver serves resolutions from Redis and falls through to the
// wrapped resolver on a miss or when Redis is unavailable.
type CachedResolver struct {
	next   WardResolver
	client *redis.Client
	ttl    time.Duration
}

// NewCachedResolver wraps next with a Redis cache.
func NewCachedResolver(next WardResolver, client *redis.Client, ttl time.Duration) *CachedResolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedResolver{next: next, client: client, ttl: ttl}
}

func cacheKey(wardCode string) string { return "geo:ward:" + wardCode }

// Resolve implements WardResolver. Incomplete resolutions are not cached so
// a corrected hierarchy shows up on the next lookup.
func (c *CachedResolver) Resolve(ctx context.Context, wardCode string) (*domain.GeoResolution, error) {
	wardCode = strings.TrimSpace(wardCode)
	if wardCode == "" {
		return nil, ErrEmptyWardCode
	}
	key := cacheKey(wardCode)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var res domain.GeoResolution
		if jerr := json.Unmarshal(data, &res); jerr == nil {
			cacheLookups.WithLabelValues("hit").Inc()
			return &res, nil
		}
		cacheLookups.WithLabelValues("corrupt").Inc()
	case errors.Is(err, redis.Nil):
		cacheLookups.WithLabelValues("miss").Inc()
	default:
		cacheLookups.WithLabelValues("error").Inc()
		logger.Warn("geography cache read failed", "ward_code", wardCode, "error", err)
	}

	res, err := c.next.Resolve(ctx, wardCode)
	if err != nil {
		return nil, err
	}
	if res.Complete() {
		if data, err := json.Marshal(res); err == nil {
			if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
				logger.Warn("geography cache write failed", "ward_code", wardCode, "error", err)
			}
		}
	}
	return res, nil
}

// Invalidate drops cached resolutions for the given wards.
func (c *CachedResolver) Invalidate(ctx context.Context, wardCodes ...string) error {
	if len(wardCodes) == 0 {
		return nil
	}
	keys := make([]string, len(wardCodes))
	for i, w := range wardCodes {
		keys[i] = cacheKey(strings.TrimSpace(w))
	}
	return c.client.Del(ctx, keys...).Err()
}
