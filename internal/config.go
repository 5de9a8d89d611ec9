package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MemoryDatabaseURL selects the in-process store instead of PostgreSQL.
const MemoryDatabaseURL = "memory://"

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Redis cache (optional). Empty RedisAddr disables caching.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Quota ledger
	FreeMessagesPerMonth int

	// Answer generation
	AIProvider       string // "echo" or "mock"
	AnswerDelay      time.Duration
	AIRequestTimeout time.Duration

	// Rate limiting for POST /api/chat
	ChatRateLimit  int
	ChatRateWindow time.Duration

	// Visitor cookie lifetime
	VisitorCookieMaxAge time.Duration

	// Admin endpoint authentication. Admin routes are disabled when unset.
	AdminUsername string
	AdminPassword string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

// UsesMemoryStore reports whether the ledger runs without a database.
func (c *Config) UsesMemoryStore() bool {
	return strings.EqualFold(c.DatabaseUrl, MemoryDatabaseURL)
}

// CacheEnabled reports whether a Redis cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

// AdminEnabled reports whether admin credentials are configured.
func (c *Config) AdminEnabled() bool {
	return c.AdminUsername != "" && c.AdminPassword != ""
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 10*time.Minute),

		FreeMessagesPerMonth: getEnvInt("FREE_MESSAGES_PER_MONTH", 3),

		AIProvider:       strings.ToLower(getEnv("AI_PROVIDER", "echo")),
		AnswerDelay:      getEnvDuration("ANSWER_DELAY", time.Second),
		AIRequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", 30*time.Second),

		ChatRateLimit:  getEnvInt("CHAT_RATE_LIMIT", 20),
		ChatRateWindow: getEnvDuration("CHAT_RATE_WINDOW", time.Minute),

		VisitorCookieMaxAge: getEnvDuration("VISITOR_COOKIE_MAX_AGE", 30*24*time.Hour),

		AdminUsername: getEnv("ADMIN_USERNAME", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.FreeMessagesPerMonth <= 0 {
		return nil, fmt.Errorf("FREE_MESSAGES_PER_MONTH must be positive, got: %d", cfg.FreeMessagesPerMonth)
	}

	if cfg.AIProvider != "echo" && cfg.AIProvider != "mock" {
		return nil, fmt.Errorf("AI_PROVIDER must be either 'echo' or 'mock', got: %s", cfg.AIProvider)
	}

	if cfg.ChatRateLimit <= 0 || cfg.ChatRateWindow <= 0 {
		return nil, fmt.Errorf("CHAT_RATE_LIMIT and CHAT_RATE_WINDOW must be positive")
	}

	if (cfg.AdminUsername == "") != (cfg.AdminPassword == "") {
		return nil, fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
