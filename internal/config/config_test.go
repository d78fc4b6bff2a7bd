package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "PRICES_UP_TO_DATE_MINUTES", "STASH_TAB_DELAY_MS", "STASH_MAX_RETRIES"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "data/wealth.sqlite", cfg.DatabaseURL)
	assert.Equal(t, 20*time.Minute, cfg.PricesUpToDate)
	assert.Equal(t, 15*time.Minute, cfg.GemPricesTTL)
	assert.Equal(t, 1100*time.Millisecond, cfg.StashTabDelay)
	assert.Zero(t, cfg.StashMaxRetries)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "root:pw@tcp(localhost:3306)/wealth")
	t.Setenv("PRICES_STILL_USABLE_MINUTES", "45")
	t.Setenv("STASH_MAX_RETRIES", "3")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "not-a-number")

	cfg := Load()
	assert.Equal(t, "root:pw@tcp(localhost:3306)/wealth", cfg.DatabaseURL)
	assert.Equal(t, 45*time.Minute, cfg.PricesStillUsable)
	assert.Equal(t, 3, cfg.StashMaxRetries)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
}
