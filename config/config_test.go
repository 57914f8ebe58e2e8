package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/quietridge/copilot-core/config"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("PRICE_CACHE_TTL_MS")
	os.Unsetenv("PRICE_MAX_SYMBOLS_PER_REQUEST")

	cfg := config.Load()
	if cfg.PriceCacheTTL != 120*time.Second {
		t.Fatalf("expected default price cache TTL of 120s, got %s", cfg.PriceCacheTTL)
	}
	if cfg.PriceMaxSymbolsPerReq != 0 {
		t.Fatalf("expected unlimited (0) default for PRICE_MAX_SYMBOLS_PER_REQUEST, got %d", cfg.PriceMaxSymbolsPerReq)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("YAHOO_RETRY_DELAY_MS", "90000")
	os.Setenv("ENV", "test")
	defer func() {
		os.Unsetenv("YAHOO_RETRY_DELAY_MS")
		os.Unsetenv("ENV")
	}()

	cfg := config.Load()
	if cfg.YahooRetryDelay != 90*time.Second {
		t.Fatalf("expected YAHOO_RETRY_DELAY_MS to be loaded, got %s", cfg.YahooRetryDelay)
	}
	if cfg.Env != "test" {
		t.Fatalf("expected ENV=test, got %s", cfg.Env)
	}
}
