//go:build integration
// +build integration

// Package testhelpers builds real lookup stacks for integration tests.
package testhelpers

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/weather-lookup/internal/cache"
	"github.com/kjstillabower/weather-lookup/internal/client"
	"github.com/kjstillabower/weather-lookup/internal/controller"
	"github.com/kjstillabower/weather-lookup/internal/storage"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey         string
	APIURL         string
	StorageBackend string // "in_memory", "sqlite" or "memcached"
	MemcachedAddr  string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}

	apiURL := os.Getenv("WEATHER_API_URL")
	if apiURL == "" {
		apiURL = client.DefaultAPIURL
	}

	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		APIKey:         apiKey,
		APIURL:         apiURL,
		StorageBackend: os.Getenv("INTEGRATION_STORAGE_BACKEND"),
		MemcachedAddr:  memcachedAddr,
	}
}

// SetupIntegrationStore opens the configured backend, falling back to memory
// when memcached is unreachable. The store is closed by t.Cleanup.
func SetupIntegrationStore(t *testing.T, cfg IntegrationTestConfig) storage.Store {
	t.Helper()
	switch cfg.StorageBackend {
	case "memcached":
		s, err := storage.NewMemcachedStore(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil && s.Ping() == nil {
			t.Cleanup(func() { _ = s.Close() })
			t.Logf("Using memcached store at %s", cfg.MemcachedAddr)
			return s
		}
		t.Logf("memcached not available, using in-memory store")
	case "sqlite":
		s, err := storage.NewSQLiteStore(t.TempDir() + "/integration.db")
		if err != nil {
			t.Fatalf("NewSQLiteStore() error = %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	}
	return storage.NewInMemoryStore()
}

// SetupIntegrationController wires a controller against the live API.
func SetupIntegrationController(t *testing.T, cfg IntegrationTestConfig) (*controller.Controller, storage.Store) {
	t.Helper()
	weatherClient, err := client.NewOpenWeatherClient(cfg.APIKey, cfg.APIURL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	store := SetupIntegrationStore(t, cfg)
	ctrl := controller.New(cache.NewWeatherCache(store, cache.DefaultTTL), weatherClient, store, zaptest.NewLogger(t))
	return ctrl, store
}
