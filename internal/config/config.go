// Package config provides configuration management for the monitoring service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Scorer    ScorerConfig
	Chat      ChatConfig
	Monitor   MonitorConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ScorerConfig holds configuration for the external risk scorer
type ScorerConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit int // scorer calls per second across all evaluations
}

// ChatConfig holds configuration for the external chat assistant
type ChatConfig struct {
	BaseURL string
	Timeout time.Duration
}

// MonitorConfig holds watchlist monitoring configuration
type MonitorConfig struct {
	PollInterval time.Duration
	Workers      int     // bounded evaluation concurrency per poll cycle
	HistorySize  int     // snapshots retained per address
	ScoreDelta   float64 // score increase that triggers an alert on its own
	AlertTail    int     // alert records retained per address
}

// NotifyConfig holds notification dispatch configuration
type NotifyConfig struct {
	MaxAttempts int
	Backoff     time.Duration
	SMTP        SMTPConfig
	Telegram    TelegramConfig
}

// SMTPConfig holds email channel configuration
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// TelegramConfig holds telegram channel configuration
type TelegramConfig struct {
	BotToken string
	BaseURL  string
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	FreeTier          int
	PaidTier          int
	FreeDailyAnalyses int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "safebase_monitor"),
				User:           getEnv("POSTGRES_USER", "monitor"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "safebase_monitor"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Scorer: ScorerConfig{
			BaseURL:   getEnv("SCORER_URL", "http://localhost:9090"),
			Timeout:   getEnvAsDuration("SCORER_TIMEOUT", 30*time.Second),
			RateLimit: getEnvAsInt("SCORER_RATE_LIMIT", 5),
		},
		Chat: ChatConfig{
			BaseURL: getEnv("CHAT_URL", "http://localhost:9091"),
			Timeout: getEnvAsDuration("CHAT_TIMEOUT", 60*time.Second),
		},
		Monitor: MonitorConfig{
			PollInterval: getEnvAsDuration("MONITOR_POLL_INTERVAL", 10*time.Minute),
			Workers:      getEnvAsInt("MONITOR_WORKERS", 8),
			HistorySize:  getEnvAsInt("MONITOR_HISTORY_SIZE", 50),
			ScoreDelta:   getEnvAsFloat("ALERT_SCORE_DELTA", 20),
			AlertTail:    getEnvAsInt("MONITOR_ALERT_TAIL", 100),
		},
		Notify: NotifyConfig{
			MaxAttempts: getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 3),
			Backoff:     getEnvAsDuration("NOTIFY_BACKOFF", 2*time.Second),
			SMTP: SMTPConfig{
				Host:     getEnv("SMTP_HOST", ""),
				Port:     getEnvAsInt("SMTP_PORT", 587),
				User:     getEnv("SMTP_USER", ""),
				Password: getEnv("SMTP_PASSWORD", ""),
				From:     getEnv("SMTP_FROM", "alerts@safebase.local"),
			},
			Telegram: TelegramConfig{
				BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
				BaseURL:  getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
			},
		},
		RateLimit: RateLimitConfig{
			FreeTier:          getEnvAsInt("RATE_LIMIT_FREE_TIER", 10),
			PaidTier:          getEnvAsInt("RATE_LIMIT_PAID_TIER", 100),
			FreeDailyAnalyses: getEnvAsInt("FREE_TIER_DAILY_ANALYSES", 3),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
