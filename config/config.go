package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	OpenAIAPIKey   string
	EmbeddingModel string
	ChatModel      string

	SearchKeyword   string
	MaxSearchPages  int
	MaxConcurrency  int
	SettleWaitMs    int
	NavTimeoutSec   int
	MaxRetries      int
	RetryDelaySec   int
	RotateUA        bool
	FetchRatePerSec float64

	ScrapeIntervalDays int
	MisfireGraceSec    int

	HTTPListenAddr string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "products_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		ChatModel:      getEnv("CHAT_MODEL", "gpt-3.5-turbo"),

		SearchKeyword:   getEnv("SEARCH_KEYWORD", "watch"),
		MaxSearchPages:  getEnvInt("MAX_SEARCH_PAGES", 2),
		MaxConcurrency:  getEnvInt("MAX_CONCURRENCY", 2),
		SettleWaitMs:    getEnvInt("SETTLE_WAIT_MS", 10000),
		NavTimeoutSec:   getEnvInt("NAV_TIMEOUT_SEC", 60),
		MaxRetries:      getEnvInt("MAX_RETRIES", 3),
		RetryDelaySec:   getEnvInt("RETRY_DELAY_SEC", 2),
		RotateUA:        getEnvBool("ROTATE_USER_AGENT", false),
		FetchRatePerSec: getEnvFloat("FETCH_RATE_PER_SEC", 0.5),

		ScrapeIntervalDays: getEnvInt("SCRAPE_INTERVAL_DAYS", 3),
		MisfireGraceSec:    getEnvInt("MISFIRE_GRACE_SEC", 3600),

		HTTPListenAddr: getEnv("HTTP_LISTEN_ADDR", ":8001"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// SettleWait returns the post-navigation settle delay.
func (c *Config) SettleWait() time.Duration {
	return time.Duration(c.SettleWaitMs) * time.Millisecond
}

// NavTimeout returns the per-navigation timeout.
func (c *Config) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// RetryDelay returns the base delay between fetch retries.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySec) * time.Second
}

// ScrapeInterval returns the recurrence interval of the scraping job.
func (c *Config) ScrapeInterval() time.Duration {
	return time.Duration(c.ScrapeIntervalDays) * 24 * time.Hour
}

// MisfireGrace returns how far past its due time a job may still run.
func (c *Config) MisfireGrace() time.Duration {
	return time.Duration(c.MisfireGraceSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
