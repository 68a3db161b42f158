// Package config loads the connector configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the process configuration.
type Config struct {
	Port               string
	RedisURL           string
	APIVersion         string
	MaxThrottleWait    time.Duration
	RequestTimeout     time.Duration
	UserAgent          string
	LogLevel           string
	LogPretty          bool
	CORSAllowedOrigins []string
}

// Load reads an optional .env file, then the environment. Variables already
// set in the environment take precedence over the file.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:       getEnv("CONNECTOR_PORT", "3000"),
		RedisURL:   getEnv("REDIS_URL", ""),
		APIVersion: getEnv("SHOPIFY_API_VERSION", "2024-01"),
		UserAgent:  getEnv("USER_AGENT", "shopify-connector/0.1.0"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.MaxThrottleWait, err = getDuration("SHOPIFY_MAX_THROTTLE_WAIT", 2*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.MaxThrottleWait < 0 {
		return Config{}, fmt.Errorf("SHOPIFY_MAX_THROTTLE_WAIT must be >= 0 (got %s)", cfg.MaxThrottleWait)
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.LogPretty, err = getBool("LOG_PRETTY", false); err != nil {
		return Config{}, err
	}

	for _, origin := range strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	return cfg, nil
}

// ThrottleWaitLimit returns how long a request can spend backing off from
// 429s before it is answered with RATE_LIMIT. The request deadline bounds it
// when it is shorter than SHOPIFY_MAX_THROTTLE_WAIT. Zero means unbounded.
func (c Config) ThrottleWaitLimit() time.Duration {
	switch {
	case c.RequestTimeout <= 0:
		return c.MaxThrottleWait
	case c.MaxThrottleWait <= 0 || c.RequestTimeout < c.MaxThrottleWait:
		return c.RequestTimeout
	default:
		return c.MaxThrottleWait
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}
