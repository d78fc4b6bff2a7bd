package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string
	Port        string
	Environment string
	PricesDir   string

	PoeAPIURL      string
	PoeAccessToken string // OAuth bearer token, or a 32-char POESESSID
	PoeUserAgent   string
	NinjaAPIURL    string
	PoewatchAPIURL string

	PricesUpToDate    time.Duration
	PricesStillUsable time.Duration
	GemPricesTTL      time.Duration
	PoewatchTTL       time.Duration
	SnapshotCacheTTL  time.Duration

	StashTabDelay   time.Duration
	StashMaxRetries int
	HTTPTimeout     time.Duration
}

func Load() *Config {
	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", "data/wealth.sqlite"),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		PricesDir:   getEnv("PRICES_DIR", "data/prices"),

		PoeAPIURL:      getEnv("POE_API_URL", "https://api.pathofexile.com"),
		PoeAccessToken: getEnv("POE_ACCESS_TOKEN", ""),
		PoeUserAgent:   getEnv("POE_USER_AGENT", "poe-wealth/1.0"),
		NinjaAPIURL:    getEnv("NINJA_API_URL", "https://poe.ninja/api/data"),
		PoewatchAPIURL: getEnv("POEWATCH_API_URL", "https://api.poe.watch"),

		PricesUpToDate:    time.Duration(getEnvInt("PRICES_UP_TO_DATE_MINUTES", 20)) * time.Minute,
		PricesStillUsable: time.Duration(getEnvInt("PRICES_STILL_USABLE_MINUTES", 20)) * time.Minute,
		GemPricesTTL:      time.Duration(getEnvInt("GEM_PRICES_TTL_MINUTES", 15)) * time.Minute,
		PoewatchTTL:       time.Duration(getEnvInt("POEWATCH_TTL_MINUTES", 10)) * time.Minute,
		SnapshotCacheTTL:  time.Duration(getEnvInt("SNAPSHOT_CACHE_TTL_SECONDS", 60)) * time.Second,

		StashTabDelay:   time.Duration(getEnvInt("STASH_TAB_DELAY_MS", 1100)) * time.Millisecond,
		StashMaxRetries: getEnvInt("STASH_MAX_RETRIES", 0),
		HTTPTimeout:     time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return defaultValue
}
