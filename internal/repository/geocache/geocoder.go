// Package geocache caches geocoding results in a key-value store.
package geocache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tablefinder/internal/db"
	"github.com/kailas-cloud/tablefinder/internal/domain"
	"github.com/kailas-cloud/tablefinder/internal/domain/geo"
)

var cacheKeyPrefix = domain.KeyPrefix + "geocode:"

// Geocoder resolves an address to a point.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (geo.Point, error)
}

// store is the consumer interface for the geocode cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// CachedGeocoder caches successful lookups. Failures are never cached and
// cache errors never fail a lookup.
type CachedGeocoder struct {
	inner      Geocoder
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner Geocoder,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedGeocoder {
	return &CachedGeocoder{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Geocode returns a cached point or asks the inner geocoder.
func (c *CachedGeocoder) Geocode(ctx context.Context, address string) (geo.Point, error) {
	key := c.cacheKey(address)

	if p, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return p, nil
	}
	c.incCache("miss")

	p, err := c.inner.Geocode(ctx, address)
	if err != nil {
		return geo.Point{}, fmt.Errorf("geocode %q: %w", address, err)
	}

	c.putToCache(ctx, key, p)
	return p, nil
}

func (c *CachedGeocoder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedGeocoder) cacheKey(address string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(address)))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedGeocoder) getFromCache(ctx context.Context, key string) (geo.Point, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached geocode", zap.String("key", key), zap.Error(err))
		}
		return geo.Point{}, false
	}

	var p geo.Point
	if err := json.Unmarshal(data, &p); err != nil || p.Validate() != nil {
		c.logger.Warn("Dropping corrupt cached geocode", zap.String("key", key), zap.ByteString("value", data))
		if err := c.store.Del(ctx, key); err != nil {
			c.logger.Warn("Failed to delete cached geocode", zap.String("key", key), zap.Error(err))
		}
		return geo.Point{}, false
	}
	return p, true
}

func (c *CachedGeocoder) putToCache(ctx context.Context, key string, p geo.Point) {
	data, err := json.Marshal(p)
	if err != nil {
		c.logger.Warn("Failed to encode geocode", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache geocode", zap.String("key", key), zap.Error(err))
	}
}
