package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// API settings
	APIAddr string
	APIKey  string
	DevMode bool

	// Router identity
	Owner        string
	RouterSender string

	// Redis settings
	RedisAddr string

	// ClickHouse settings
	ClickHouseEnabled  bool
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// Venue settings
	VenueBaseURL string
	VenueAPIKey  string

	// Result delivery
	ResultProvider string
	PollInterval   time.Duration

	// TWAP source
	TwapSource string
}

func Load() *Config {
	return &Config{
		// API
		APIAddr: getEnv("API_ADDR", ":8080"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		// Identity
		Owner:        getEnv("ROUTER_OWNER", ""),
		RouterSender: getEnv("ROUTER_SENDER", "router"),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		// ClickHouse
		ClickHouseEnabled:  getBoolEnv("CLICKHOUSE_ENABLED", false),
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "swaprouter"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// Venue
		VenueBaseURL: getEnv("VENUE_BASE_URL", "http://localhost:9070/v1"),
		VenueAPIKey:  getEnv("VENUE_API_KEY", ""),

		// Results
		ResultProvider: getEnv("RESULT_PROVIDER", "pubsub"),
		PollInterval:   getDurationEnv("POLL_INTERVAL", 2*time.Second),

		// TWAP
		TwapSource: getEnv("TWAP_SOURCE", "venue"),
	}
}

func (c *Config) Validate() error {
	if c.Owner == "" {
		return fmt.Errorf("ROUTER_OWNER is required")
	}
	switch c.ResultProvider {
	case "pubsub", "poll":
	default:
		return fmt.Errorf("RESULT_PROVIDER must be pubsub or poll, got %q", c.ResultProvider)
	}
	switch c.TwapSource {
	case "venue":
	case "clickhouse":
		if !c.ClickHouseEnabled {
			return fmt.Errorf("TWAP_SOURCE=clickhouse requires CLICKHOUSE_ENABLED=true")
		}
	default:
		return fmt.Errorf("TWAP_SOURCE must be venue or clickhouse, got %q", c.TwapSource)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
