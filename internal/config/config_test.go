package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalEnvYAML = `
server:
  port: "8080"
`

func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	cfgDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "dev.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile dev.yaml: %v", err)
	}
}

func writeSecretsFile(t *testing.T, dir, content string) {
	t.Helper()
	cfgDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "secrets.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile secrets.yaml: %v", err)
	}
}

// clearEnv isolates a test from overrides set in the caller's shell.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ENV_NAME", "WEATHER_API_KEY", "STORAGE_BACKEND", "SQLITE_PATH", "MEMCACHED_ADDRS"} {
		t.Setenv(k, "")
	}
}

func TestLoad_FailsWhenNoAPIKey(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)

	cfg, err := LoadFrom(dir)
	if err == nil {
		t.Fatal("LoadFrom() expected error when no WEATHER_API_KEY and no secrets file, got nil")
	}
	if cfg != nil {
		t.Fatalf("LoadFrom() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "WEATHER_API_KEY") {
		t.Errorf("LoadFrom() error = %v, want message containing WEATHER_API_KEY", err)
	}
}

func TestLoad_SucceedsWithSecretsFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	writeSecretsFile(t, dir, "weather_api_key: key-from-secrets-file\n")

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.WeatherAPIKey != "key-from-secrets-file" {
		t.Errorf("WeatherAPIKey = %q, want key from secrets file", cfg.WeatherAPIKey)
	}
}

func TestLoad_EnvKeyWinsOverSecretsFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "key-from-env")
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	writeSecretsFile(t, dir, "weather_api_key: key-from-secrets-file\n")

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.WeatherAPIKey != "key-from-env" {
		t.Errorf("WeatherAPIKey = %q, want key-from-env", cfg.WeatherAPIKey)
	}
}

func TestLoad_EnvFileNotFound(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV_NAME", "nonexistent")
	t.Setenv("WEATHER_API_KEY", "key")

	cfg, err := LoadFrom(t.TempDir())
	if err == nil {
		t.Fatal("LoadFrom() expected error for missing env file, got nil")
	}
	if cfg != nil {
		t.Fatalf("LoadFrom() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("LoadFrom() error = %v, want message about config file not found", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "key")
	dir := t.TempDir()
	writeEnvFile(t, dir, "server: [[[")

	if _, err := LoadFrom(dir); err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Errorf("LoadFrom() error = %v, want parse config file error", err)
	}
}

func TestLoad_InvalidSecretsYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	writeSecretsFile(t, dir, "not valid: yaml: [[[")

	cfg, err := LoadFrom(dir)
	if err == nil {
		t.Fatal("LoadFrom() expected error for invalid secrets YAML, got nil")
	}
	if cfg != nil {
		t.Fatalf("LoadFrom() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "secrets") {
		t.Errorf("LoadFrom() error = %v, want message about secrets", err)
	}
}

// TestLoad_Defaults verifies every unset value falls back to its default.
func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "key")
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"ServerPort", cfg.ServerPort, "8080"},
		{"WeatherAPIURL", cfg.WeatherAPIURL, "https://api.openweathermap.org/data/2.5/weather"},
		{"WeatherAPITimeout", cfg.WeatherAPITimeout, time.Duration(0)},
		{"CacheTTL", cfg.CacheTTL, 3 * time.Minute},
		{"StorageBackend", cfg.StorageBackend, BackendInMemory},
		{"SQLitePath", cfg.SQLitePath, "weather.db"},
		{"MemcachedAddrs", cfg.MemcachedAddrs, "localhost:11211"},
		{"MemcachedTimeout", cfg.MemcachedTimeout, 500 * time.Millisecond},
		{"MemcachedMaxIdleConns", cfg.MemcachedMaxIdleConns, 2},
		{"CityMaxLength", cfg.CityMaxLength, 0},
		{"RateLimitRPS", cfg.RateLimitRPS, 100},
		{"RateLimitBurst", cfg.RateLimitBurst, 250},
		{"ShutdownTimeout", cfg.ShutdownTimeout, 30 * time.Second},
		{"ShutdownInFlightTimeout", cfg.ShutdownInFlightTimeout, 10 * time.Second},
		{"ShutdownInFlightCheckInterval", cfg.ShutdownInFlightCheckInterval, 100 * time.Millisecond},
		{"WarmInterval", cfg.WarmInterval, time.Duration(0)},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_FullFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "key")
	dir := t.TempDir()
	writeEnvFile(t, dir, `
server:
  port: "9090"
weather_api:
  url: "http://localhost:9999/weather"
  timeout: "4s"
cache:
  ttl: "90s"
  warm: ["Kyiv", "Lviv"]
  warm_interval: "2m"
storage:
  backend: "SQLite"
  sqlite:
    path: "/tmp/lookup.db"
input:
  city_max_length: 40
reliability:
  rate_limit_rps: 5
  rate_limit_burst: 10
metrics:
  tracked_cities: ["Kyiv"]
`)

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.WeatherAPIURL != "http://localhost:9999/weather" || cfg.WeatherAPITimeout != 4*time.Second {
		t.Errorf("weather api = %q, %v", cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %v, want 90s", cfg.CacheTTL)
	}
	if len(cfg.WarmCities) != 2 || cfg.WarmInterval != 2*time.Minute {
		t.Errorf("warm = %v every %v", cfg.WarmCities, cfg.WarmInterval)
	}
	if cfg.StorageBackend != BackendSQLite || cfg.SQLitePath != "/tmp/lookup.db" {
		t.Errorf("storage = %q at %q", cfg.StorageBackend, cfg.SQLitePath)
	}
	if cfg.CityMaxLength != 40 {
		t.Errorf("CityMaxLength = %d, want 40", cfg.CityMaxLength)
	}
	if cfg.RateLimitRPS != 5 || cfg.RateLimitBurst != 10 {
		t.Errorf("rate limit = %d/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if len(cfg.TrackedCities) != 1 || cfg.TrackedCities[0] != "Kyiv" {
		t.Errorf("TrackedCities = %v", cfg.TrackedCities)
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "key")
	dir := t.TempDir()
	writeEnvFile(t, dir, `
cache:
  ttl: "invalid"
shutdown:
  timeout: "-5s"
`)

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.CacheTTL != 3*time.Minute {
		t.Errorf("CacheTTL = %v, want default 3m", cfg.CacheTTL)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want default 30s", cfg.ShutdownTimeout)
	}
}

func TestLoad_NegativeAPITimeoutRejected(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "key")
	dir := t.TempDir()
	writeEnvFile(t, dir, `
weather_api:
  timeout: "-1s"
`)

	cfg, err := LoadFrom(dir)
	if err == nil {
		t.Fatal("LoadFrom() expected error for negative timeout, got nil")
	}
	if cfg != nil {
		t.Fatalf("LoadFrom() expected nil config on error, got %+v", cfg)
	}
}

func TestLoad_StorageBackendEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "key")
	t.Setenv("STORAGE_BACKEND", "Memcached")
	t.Setenv("MEMCACHED_ADDRS", "cache1:11211,cache2:11211")
	t.Setenv("SQLITE_PATH", "/data/override.db")
	dir := t.TempDir()
	writeEnvFile(t, dir, `
storage:
  backend: "sqlite"
  sqlite:
    path: "file.db"
`)

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.StorageBackend != BackendMemcached {
		t.Errorf("StorageBackend = %q, want memcached from env", cfg.StorageBackend)
	}
	if cfg.MemcachedAddrs != "cache1:11211,cache2:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
	if cfg.SQLitePath != "/data/override.db" {
		t.Errorf("SQLitePath = %q, want env override", cfg.SQLitePath)
	}
}

func TestLoad_InvalidStorageBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "key")
	dir := t.TempDir()
	writeEnvFile(t, dir, `
storage:
  backend: "redis"
`)

	_, err := LoadFrom(dir)
	if err == nil || !strings.Contains(err.Error(), "storage.backend") {
		t.Errorf("LoadFrom() error = %v, want storage.backend error", err)
	}
}

// TestLoad_ProjectDevConfig verifies the checked-in config/dev.yaml loads.
func TestLoad_ProjectDevConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "key")

	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(findProjectRoot(t)); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer func() { _ = os.Chdir(origWd) }()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheTTL != 3*time.Minute {
		t.Errorf("CacheTTL = %v, want 3m", cfg.CacheTTL)
	}
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "config", "dev.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("config/dev.yaml not found (run tests from project root)")
		}
		dir = parent
	}
}
