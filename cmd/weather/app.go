package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/cache"
	"github.com/kjstillabower/weather-lookup/internal/client"
	"github.com/kjstillabower/weather-lookup/internal/config"
	"github.com/kjstillabower/weather-lookup/internal/controller"
	"github.com/kjstillabower/weather-lookup/internal/observability"
	"github.com/kjstillabower/weather-lookup/internal/storage"
)

// app is the wired lookup stack shared by serve and lookup.
type app struct {
	store      storage.Store
	cache      *cache.WeatherCache
	client     *client.OpenWeatherClient
	controller *controller.Controller
	events     *controller.Dispatcher

	// ping and close are nil for the in-memory backend.
	ping  func() error
	close func() error
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		s, err := storage.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.store, a.ping, a.close = s, s.Ping, s.Close
		logger.Info("storage backend: sqlite", zap.String("path", cfg.SQLitePath))
	case config.BackendMemcached:
		s, err := storage.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, err
		}
		a.store, a.ping, a.close = s, s.Ping, s.Close
		logger.Info("storage backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	case config.BackendInMemory:
		a.store = storage.NewInMemoryStore()
		logger.Info("storage backend: in_memory")
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	weatherClient, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		a.shutdown(logger)
		return nil, fmt.Errorf("weather client: %w", err)
	}
	a.client = weatherClient
	a.cache = cache.NewWeatherCache(a.store, cfg.CacheTTL)
	a.controller = controller.New(a.cache, a.client, a.store, logger, controller.WithMaxCityLength(cfg.CityMaxLength))
	a.events = controller.NewDispatcher()
	a.controller.Bind(a.events)

	if len(cfg.TrackedCities) > 0 {
		observability.SetTrackedCities(cfg.TrackedCities)
	}
	return a, nil
}

// shutdown releases the storage backend.
func (a *app) shutdown(logger *zap.Logger) {
	if a.close == nil {
		return
	}
	if err := a.close(); err != nil {
		logger.Error("storage close", zap.Error(err))
	}
}
