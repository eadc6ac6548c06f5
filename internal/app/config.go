package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pocketlist/pocketlist/pkg/jwtx"
)

type Config struct {
	Issuer       string // Issuer claim for access tokens (default: pocketlist)
	SigningKey   string // Optional: path to PKCS8 Ed25519 private key; empty generates an ephemeral key
	DatabaseFile string // Path to the SQLite database file (default: ./pocketlist.db)

	AccessTTL   time.Duration // Access token lifetime (default: 15m)
	RefreshTTL  time.Duration // Refresh token lifetime (default: 168h)
	WarningLead time.Duration // How long before expiry the warning fires (default: 30s)

	CookieSecure bool     // Mark the refresh cookie Secure (default: true outside dev)
	CORSOrigins  []string // Optional: origins allowed to call the API with credentials

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
	Port      int    // HTTP server port (default: 8080)

	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:       getEnvOrDefault("SESSION_ISSUER", "pocketlist"),
		SigningKey:   os.Getenv("SESSION_SIGNING_KEY_PATH"),
		DatabaseFile: getEnvOrDefault("DATABASE_FILE", "pocketlist.db"),

		AccessTTL:   getEnvDurationOrDefault("SESSION_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:  getEnvDurationOrDefault("SESSION_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),
		WarningLead: getEnvDurationOrDefault("SESSION_WARNING_LEAD", 30*time.Second),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		Port:      getEnvIntOrDefault("PORT", 8080),

		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	// Local dev runs over plain HTTP, where a Secure cookie would be dropped
	cfg.CookieSecure = cfg.Env != "dev"
	if v := os.Getenv("SESSION_COOKIE_SECURE"); v != "" {
		cfg.CookieSecure = v == "true" || v == "1"
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are treated as seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
