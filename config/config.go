package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the core and its HTTP surface need.
type Config struct {
	// Server
	Addr            string
	Env             string
	GracefulTimeout time.Duration
	RequestTimeout  time.Duration
	LogLevel        string
	RedisURL        string

	// Primary LLM (OpenAI-style)
	OpenAIAPIKey          string
	OpenAIModel           string
	OpenAIMaxOutputTokens int
	OpenAISystemPrompt    string

	// Secondary LLM (OpenRouter-style)
	OpenRouterAPIKey   string
	OpenRouterModel    string
	OpenRouterBaseURL  string
	OpenRouterTimeout  time.Duration
	OpenRouterSiteURL  string
	OpenRouterSiteName string

	// Primary chart provider
	YahooRetryDelay time.Duration
	ChartBaseURL    string
	CSVBaseURL      string // printf template with one %s for the derived CSV symbol
	SearchBaseURL   string

	// Caches
	PriceCacheTTL           time.Duration
	PriceCacheMaxEntries    int
	PriceMaxSymbolsPerReq   int
	PriceHistoryTTL         time.Duration
	PriceHistoryMaxEntries  int
	PriceIntradayTTL        time.Duration
	PriceIntradayMaxEntries int
	PriceIntradayLookback   time.Duration
	SymbolSearchTTL         time.Duration
	SymbolSearchMaxResults  int
	SymbolSearchMaxEntries  int
	LLMCacheTTL             time.Duration
	LLMCacheMaxEntries      int

	// Quota Gate per-tier limits (§3/§8); quota.MemoryStore applies them to
	// counters it never resets
	FreeTierLLMCalls      int
	FreeTierPriceRequests int
	FreeTierUploads       int
	ProTierLLMCalls       int
	ProTierPriceRequests  int
	ProTierUploads        int

	// StaticAuthTokens seeds auth.StaticResolver: "token:userID:tier,..."
	StaticAuthTokens string
}

// Load reads configuration from environment variables and an optional
// .env file in the working directory.
func Load() *Config {
	_ = godotenv.Load()

	gracefulSec := getEnvInt("GATEWAY_GRACEFUL_TIMEOUT_SEC", 15)

	return &Config{
		Addr:            getEnv("GATEWAY_ADDR", ":8080"),
		Env:             getEnv("ENV", "development"),
		GracefulTimeout: time.Duration(gracefulSec) * time.Second,
		RequestTimeout:  time.Duration(getEnvInt("REQUEST_TIMEOUT_MS", 60000)) * time.Millisecond,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RedisURL:        getEnv("REDIS_URL", "redis://redis:6379"),

		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIMaxOutputTokens: getEnvInt("OPENAI_MAX_OUTPUT_TOKENS", 1024),
		OpenAISystemPrompt:    getEnv("OPENAI_SYSTEM_PROMPT", "You are a precise, concise financial research assistant."),

		OpenRouterAPIKey:   getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterModel:    getEnv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
		OpenRouterBaseURL:  getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterTimeout:  time.Duration(getEnvInt("OPENROUTER_TIMEOUT_MS", 15000)) * time.Millisecond,
		OpenRouterSiteURL:  getEnv("OPENROUTER_SITE_URL", ""),
		OpenRouterSiteName: getEnv("OPENROUTER_SITE_NAME", ""),

		YahooRetryDelay: time.Duration(getEnvInt("YAHOO_RETRY_DELAY_MS", 60000)) * time.Millisecond,
		ChartBaseURL:    getEnv("PRIMARY_CHART_BASE_URL", "https://query1.finance.yahoo.com/v8/finance/chart"),
		CSVBaseURL:      getEnv("CSV_PROVIDER_BASE_URL", "https://stooq.com/q/d/l/?s=%s&i=d"),
		SearchBaseURL:   getEnv("SYMBOL_SEARCH_BASE_URL", "https://query1.finance.yahoo.com/v1/finance/search"),

		PriceCacheTTL:           time.Duration(getEnvInt("PRICE_CACHE_TTL_MS", 120000)) * time.Millisecond,
		PriceCacheMaxEntries:    getEnvInt("PRICE_CACHE_MAX_ENTRIES", 100),
		PriceMaxSymbolsPerReq:   getEnvInt("PRICE_MAX_SYMBOLS_PER_REQUEST", 0),
		PriceHistoryTTL:         time.Duration(getEnvInt("PRICE_HISTORY_TTL_MS", 6*3600*1000)) * time.Millisecond,
		PriceHistoryMaxEntries:  getEnvInt("PRICE_HISTORY_MAX_ENTRIES", 200),
		PriceIntradayTTL:        time.Duration(getEnvInt("PRICE_INTRADAY_TTL_MS", 5*60*1000)) * time.Millisecond,
		PriceIntradayMaxEntries: getEnvInt("PRICE_INTRADAY_MAX_ENTRIES", 200),
		PriceIntradayLookback:   time.Duration(getEnvInt("PRICE_INTRADAY_LOOKBACK_MS", 30*24*3600*1000)) * time.Millisecond,
		SymbolSearchTTL:         time.Duration(getEnvInt("SYMBOL_SEARCH_TTL_MS", 10*60*1000)) * time.Millisecond,
		SymbolSearchMaxResults:  getEnvInt("SYMBOL_SEARCH_MAX_RESULTS", 8),
		SymbolSearchMaxEntries:  getEnvInt("SYMBOL_SEARCH_MAX_ENTRIES", 500),
		LLMCacheTTL:             time.Duration(getEnvInt("LLM_CACHE_TTL_MS", 5*60*1000)) * time.Millisecond,
		LLMCacheMaxEntries:      getEnvInt("LLM_CACHE_MAX_ENTRIES", 50),

		FreeTierLLMCalls:      getEnvInt("FREE_TIER_LLM_CALLS", 20),
		FreeTierPriceRequests: getEnvInt("FREE_TIER_PRICE_REQUESTS", 200),
		FreeTierUploads:       getEnvInt("FREE_TIER_UPLOADS", 5),
		ProTierLLMCalls:       getEnvInt("PRO_TIER_LLM_CALLS", 500),
		ProTierPriceRequests:  getEnvInt("PRO_TIER_PRICE_REQUESTS", 5000),
		ProTierUploads:        getEnvInt("PRO_TIER_UPLOADS", 200),

		StaticAuthTokens: getEnv("STATIC_AUTH_TOKENS", ""),
	}
}

// IsDevelopment reports whether the process is running in development mode.
func (c *Config) IsDevelopment() bool { return c.Env == "development" }

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
