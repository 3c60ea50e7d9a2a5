package main

import (
	"os"
	"strconv"
	"time"

	"rummy-platform/backend/internal/db"
	"rummy-platform/backend/internal/middleware"
	"rummy-platform/backend/internal/redis"
	"rummy-platform/backend/internal/server/websocket"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	// Database configuration
	DBConfig db.Config

	// Redis configuration; an empty host runs without cache and locks
	RedisConfig redis.Config

	// Server configuration
	ServerPort     string
	Environment    string
	LogLevel       string
	AllowedOrigins []string

	// Authentication
	JWTSecret    string
	ClientSecret string

	// Engine hosting
	PublishInterval time.Duration
	RecoveryMaxIdle time.Duration
	StatsCacheTTL   time.Duration
	RateLimit       middleware.RateLimiterConfig
}

// LoadConfig loads configuration from environment variables
func LoadConfig() Config {
	// Load .env file if it exists
	godotenv.Load()

	rateLimit := middleware.DefaultRateLimiterConfig
	rateLimit.RequestsPerSecond = getEnvFloat("RATE_LIMIT_RPS", rateLimit.RequestsPerSecond)
	rateLimit.BurstSize = getEnvInt("RATE_LIMIT_BURST", rateLimit.BurstSize)

	return Config{
		DBConfig: db.Config{
			Driver:     getEnv("DB_DRIVER", db.DriverMySQL),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "3306"),
			User:       getEnv("DB_USER", "root"),
			Password:   getEnv("DB_PASSWORD", ""),
			DBName:     getEnv("DB_NAME", "rummy_platform"),
			SQLitePath: getEnv("SQLITE_PATH", ""),
			LogQueries: getEnv("DB_LOG_QUERIES", "") == "true",
		},
		RedisConfig: redis.Config{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		Environment:     getEnv("ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:  websocket.LoadAllowedOrigins(),
		JWTSecret:       getEnv("JWT_SECRET", "secret"),
		ClientSecret:    getEnv("CLIENT_SECRET", "client-secret"),
		PublishInterval: getEnvDuration("PUBLISH_INTERVAL", 2*time.Second),
		RecoveryMaxIdle: getEnvDuration("RECOVERY_MAX_IDLE", 24*time.Hour),
		StatsCacheTTL:   getEnvDuration("STATS_CACHE_TTL", 10*time.Minute),
		RateLimit:       rateLimit,
	}
}

// getEnv retrieves an environment variable or returns a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return fallback
}
