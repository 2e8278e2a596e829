package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "localhost", cfg.PostgresHost)
	assert.Equal(t, "5432", cfg.PostgresPort)
	assert.Equal(t, "watch", cfg.SearchKeyword)
	assert.Equal(t, 2, cfg.MaxSearchPages)
	assert.Equal(t, 2, cfg.MaxConcurrency)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 3, cfg.ScrapeIntervalDays)
	assert.Equal(t, 3600, cfg.MisfireGraceSec)
	assert.Equal(t, ":8001", cfg.HTTPListenAddr)
	assert.Equal(t, 0.5, cfg.FetchRatePerSec)
	assert.False(t, cfg.RotateUA)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("SEARCH_KEYWORD", "mechanical keyboard")
	t.Setenv("MAX_CONCURRENCY", "7")
	t.Setenv("SCRAPE_INTERVAL_DAYS", "1")
	t.Setenv("ROTATE_USER_AGENT", "true")
	t.Setenv("FETCH_RATE_PER_SEC", "1.5")

	cfg := Load()

	assert.Equal(t, "db.internal", cfg.PostgresHost)
	assert.Equal(t, "mechanical keyboard", cfg.SearchKeyword)
	assert.Equal(t, 7, cfg.MaxConcurrency)
	assert.Equal(t, 1, cfg.ScrapeIntervalDays)
	assert.True(t, cfg.RotateUA)
	assert.Equal(t, 1.5, cfg.FetchRatePerSec)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("MAX_CONCURRENCY", "lots")
	t.Setenv("FETCH_RATE_PER_SEC", "fast")
	t.Setenv("ROTATE_USER_AGENT", "yes please")

	cfg := Load()

	assert.Equal(t, 2, cfg.MaxConcurrency)
	assert.Equal(t, 0.5, cfg.FetchRatePerSec)
	assert.False(t, cfg.RotateUA)
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost:     "localhost",
		PostgresPort:     "5432",
		PostgresUser:     "scraper",
		PostgresPassword: "secret",
		PostgresDB:       "products_db",
		PostgresSSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=scraper password=secret dbname=products_db sslmode=disable",
		cfg.DSN())
}

func TestDurationHelpers(t *testing.T) {
	cfg := &Config{
		SettleWaitMs:       10000,
		NavTimeoutSec:      60,
		RetryDelaySec:      2,
		ScrapeIntervalDays: 3,
		MisfireGraceSec:    3600,
	}

	assert.Equal(t, 10*time.Second, cfg.SettleWait())
	assert.Equal(t, time.Minute, cfg.NavTimeout())
	assert.Equal(t, 2*time.Second, cfg.RetryDelay())
	assert.Equal(t, 72*time.Hour, cfg.ScrapeInterval())
	assert.Equal(t, time.Hour, cfg.MisfireGrace())
}
