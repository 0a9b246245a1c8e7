package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/observability"
	"github.com/kjstillabower/weather-lookup/internal/storage"
)

// DefaultTTL is how long a fetched record stays valid.
const DefaultTTL = 3 * time.Minute

const keyPrefix = "weather_"

// Key returns the storage key for city. Lookups are case-insensitive.
func Key(city string) string {
	return keyPrefix + strings.ToLower(city)
}

// Cache is the city-keyed weather cache used by the controller.
type Cache interface {
	Get(ctx context.Context, city string) (models.WeatherRecord, bool, error)
	Set(ctx context.Context, city string, data models.WeatherRecord) error
}

// WeatherCache stores weather records in a storage.Store with a fetch timestamp.
// Entries are only invalidated when read after their TTL; there is no sweep and
// no size bound.
type WeatherCache struct {
	store storage.Store
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a WeatherCache.
type Option func(*WeatherCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *WeatherCache) { c.now = now }
}

// NewWeatherCache creates a cache over store. ttl <= 0 uses DefaultTTL.
func NewWeatherCache(store storage.Store, ttl time.Duration, opts ...Option) *WeatherCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &WeatherCache{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached record for city annotated with LastUpdate.
// Returns (zero, false, nil) on miss. An entry older than the TTL is removed
// and reported as a miss. An entry that cannot be decoded is removed and
// reported as an error.
func (c *WeatherCache) Get(ctx context.Context, city string) (models.WeatherRecord, bool, error) {
	key := Key(city)
	raw, ok, err := c.store.GetItem(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		return models.WeatherRecord{}, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if !ok {
		observability.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return models.WeatherRecord{}, false, nil
	}

	var entry models.CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		observability.CacheLookupsTotal.WithLabelValues("corrupt").Inc()
		decodeErr := fmt.Errorf("cache decode %s: %w", key, err)
		if rmErr := c.store.RemoveItem(ctx, key); rmErr != nil {
			observability.CacheErrorsTotal.WithLabelValues("remove").Inc()
			return models.WeatherRecord{}, false, errors.Join(decodeErr, fmt.Errorf("cache evict %s: %w", key, rmErr))
		}
		return models.WeatherRecord{}, false, decodeErr
	}

	elapsed := c.now().UnixMilli() - entry.Timestamp
	if elapsed > c.ttl.Milliseconds() {
		observability.CacheLookupsTotal.WithLabelValues("expired").Inc()
		if err := c.store.RemoveItem(ctx, key); err != nil {
			observability.CacheErrorsTotal.WithLabelValues("remove").Inc()
			return models.WeatherRecord{}, false, fmt.Errorf("cache evict %s: %w", key, err)
		}
		return models.WeatherRecord{}, false, nil
	}

	observability.CacheLookupsTotal.WithLabelValues("hit").Inc()
	data := entry.Data
	data.LastUpdate = &models.LastUpdate{Timestamp: entry.Timestamp, TimeElapsed: elapsed}
	return data, true, nil
}

// Set overwrites the entry for city, stamped with the current time.
func (c *WeatherCache) Set(ctx context.Context, city string, data models.WeatherRecord) error {
	key := Key(city)
	data.LastUpdate = nil
	raw, err := json.Marshal(models.CacheEntry{Data: data, Timestamp: c.now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.store.SetItem(ctx, key, string(raw)); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}
