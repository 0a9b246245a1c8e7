package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/observability"
)

// Fetcher fetches fresh weather for a city. Implemented by client.OpenWeatherClient.
type Fetcher interface {
	Fetch(ctx context.Context, city string) (models.WeatherRecord, error)
}

// Warmer prefetches weather for a fixed list of cities into a WeatherCache.
type Warmer struct {
	fetcher Fetcher
	cache   *WeatherCache
	logger  *zap.Logger
}

// NewWarmer creates a Warmer. logger may be nil.
func NewWarmer(fetcher Fetcher, cache *WeatherCache, logger *zap.Logger) *Warmer {
	return &Warmer{fetcher: fetcher, cache: cache, logger: logger}
}

// Warm fetches every city concurrently and overwrites its cache entry.
// Returns the joined errors of the cities that failed.
func (w *Warmer) Warm(ctx context.Context, cities []string) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming cache", zap.Int("cities", len(cities)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(cities))
	for _, city := range cities {
		wg.Add(1)
		go func(city string) {
			defer wg.Done()
			data, err := w.fetcher.Fetch(ctx, city)
			if err != nil {
				errCh <- fmt.Errorf("warm %s: %w", city, err)
				return
			}
			if err := w.cache.Set(ctx, city, data); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", city, err)
			}
		}(city)
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if w.logger != nil {
		w.logger.Info("cache warming complete", zap.Int("cities", len(cities)), zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	}
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then refreshes at the given interval until ctx is done.
func (w *Warmer) WarmPeriodic(ctx context.Context, cities []string, interval time.Duration) error {
	if err := w.Warm(ctx, cities); err != nil && w.logger != nil {
		w.logger.Warn("initial cache warm failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, cities); err != nil && w.logger != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}
