// Package config provides environment configuration for the bot.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultAreas are the MTR stations offered when AREAS is unset.
var DefaultAreas = []string{
	"Admiralty", "Airport", "Causeway Bay", "Central", "Chai Wan",
	"Kowloon Tong", "Mong Kok", "Tsim Sha Tsui", "Tsuen Wan", "Yuen Long",
}

// reservedChoices are chat inputs routed before the hosting flow sees them.
var reservedChoices = []string{"Refresh", "Host", "/start", "/cancel"}

// Config holds all configuration for the application.
type Config struct {
	// Database settings
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Telegram settings
	BotToken            string
	BotName             string
	TelegramDebug       bool
	TelegramPollTimeout int

	// Hosting flow
	Areas              []string
	CostCurrency       string
	Timezone           string
	CleanupInterval    time.Duration
	SessionIdleTimeout time.Duration

	// HTTP gateway settings
	HTTPEnabled        bool
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	GatewayJWTSecret   string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Database
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DBMaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns: getIntEnv("DB_MAX_IDLE_CONNS", 2),

		// Telegram
		BotToken:            getEnv("BOT_TOKEN", ""),
		BotName:             getEnv("BOT_NAME", "HostOrTravelBot"),
		TelegramDebug:       getBoolEnv("TELEGRAM_DEBUG", false),
		TelegramPollTimeout: getIntEnv("TELEGRAM_POLL_TIMEOUT", 60),

		// Hosting flow
		Areas:              getListEnv("AREAS", DefaultAreas),
		CostCurrency:       getEnv("COST_CURRENCY", "TON"),
		Timezone:           getEnv("TIMEZONE", "Local"),
		CleanupInterval:    getDurationEnv("CLEANUP_INTERVAL", time.Hour),
		SessionIdleTimeout: getDurationEnv("SESSION_IDLE_TIMEOUT", 0),

		// HTTP gateway
		HTTPEnabled:        getBoolEnv("HTTP_ENABLED", true),
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
		GatewayJWTSecret:   getEnv("GATEWAY_JWT_SECRET", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate checks the settings the hosting flow depends on.
func (c *Config) Validate() error {
	if len(c.Areas) == 0 {
		return errors.New("config: AREAS must list at least one area")
	}
	seen := make(map[string]bool, len(c.Areas))
	for _, area := range c.Areas {
		if area == "" {
			return errors.New("config: AREAS contains an empty entry")
		}
		if seen[area] {
			return fmt.Errorf("config: duplicate area %q", area)
		}
		seen[area] = true
		for _, reserved := range reservedChoices {
			if area == reserved {
				return fmt.Errorf("config: area %q collides with a menu choice", area)
			}
		}
	}
	if c.CleanupInterval <= 0 {
		return errors.New("config: CLEANUP_INTERVAL must be positive")
	}
	if c.SessionIdleTimeout < 0 {
		return errors.New("config: SESSION_IDLE_TIMEOUT must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves TIMEZONE, the zone whose wall clock defines "now".
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated value, trimming each item.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		out := make([]string, len(defaultValue))
		copy(out, defaultValue)
		return out
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
