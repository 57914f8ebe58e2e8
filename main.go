package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/quietridge/copilot-core/auth"
	"github.com/quietridge/copilot-core/config"
	"github.com/quietridge/copilot-core/cooldown"
	"github.com/quietridge/copilot-core/fetch"
	"github.com/quietridge/copilot-core/handler"
	"github.com/quietridge/copilot-core/llm"
	"github.com/quietridge/copilot-core/logger"
	"github.com/quietridge/copilot-core/market"
	"github.com/quietridge/copilot-core/metrics"
	"github.com/quietridge/copilot-core/middleware"
	"github.com/quietridge/copilot-core/quota"
	"github.com/quietridge/copilot-core/redisclient"
	"github.com/quietridge/copilot-core/router"
	"github.com/quietridge/copilot-core/symbols"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("copilot-core starting")

	var redisConnected bool
	rc, err := redisclient.New(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("redis init failed — continuing without Redis")
	} else if err := rc.Ping(); err != nil {
		log.Warn().Err(err).Msg("redis ping failed")
	} else {
		log.Info().Msg("redis connected")
		redisConnected = true
	}

	metricsRegistry := metrics.New()

	fetcher := fetch.New()
	cooldowns := cooldown.New()

	dir := symbols.NewDirectory()
	chart := market.NewChartProvider(fetcher, cooldowns, cfg.ChartBaseURL, cfg.YahooRetryDelay.Milliseconds(), log, metricsRegistry)
	search := market.NewSearchProvider(fetcher, cooldowns, cfg.SearchBaseURL, cfg.SymbolSearchTTL.Milliseconds(), cfg.SymbolSearchMaxEntries, cfg.SymbolSearchMaxResults, log, metricsRegistry)
	csv := market.NewCSVProvider(fetcher, cfg.CSVBaseURL, log, metricsRegistry)

	var resolver *symbols.Resolver
	if redisConnected {
		resolver = symbols.NewResolverWithMapping(dir, chart, search, symbols.NewRedisMappingStore(rc))
	} else {
		resolver = symbols.NewResolver(dir, chart, search)
	}

	var primary llm.Provider
	if cfg.OpenAIAPIKey != "" {
		primary = llm.NewOpenAIProvider(fetcher, "", cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIMaxOutputTokens)
	}
	var secondary llm.Provider
	if cfg.OpenRouterAPIKey != "" {
		secondary = llm.NewOpenRouterProvider(fetcher, cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterSiteURL, cfg.OpenRouterSiteName, cfg.OpenRouterTimeout.Milliseconds())
	}
	invoke := llm.NewInvocationLayer(primary, secondary, cfg.OpenAISystemPrompt, cfg.OpenAIMaxOutputTokens, cfg.LLMCacheTTL.Milliseconds(), cfg.LLMCacheMaxEntries, log, metricsRegistry)
	oracle := llm.NewOracle(invoke)

	quotes := market.NewQuoteService(resolver, csv, oracle, cfg.PriceCacheTTL.Milliseconds(), cfg.PriceCacheMaxEntries, log, metricsRegistry)
	history := market.NewHistoryService(chart, resolver, cfg.PriceHistoryTTL.Milliseconds(), cfg.PriceHistoryMaxEntries, cfg.PriceIntradayTTL.Milliseconds(), cfg.PriceIntradayMaxEntries, log, metricsRegistry)
	orchestrator := market.NewOrchestrator(quotes, history, csv, oracle, log, cfg.PriceIntradayLookback)

	gate := quota.NewGate(quota.NewMemoryStore(map[string]quota.Limits{
		"free": {LLMCalls: cfg.FreeTierLLMCalls, PriceRequests: cfg.FreeTierPriceRequests, Uploads: cfg.FreeTierUploads},
		"pro":  {LLMCalls: cfg.ProTierLLMCalls, PriceRequests: cfg.ProTierPriceRequests, Uploads: cfg.ProTierUploads},
	})).WithMetrics(metricsRegistry)

	resolverAuth := auth.NewStaticResolver(parseStaticTokens(cfg.StaticAuthTokens))
	authMiddleware := middleware.NewAuthMiddleware(log, resolverAuth)

	uploadStore := handler.NewUploadStore()

	handlers := router.Handlers{
		Health:    handler.NewHealthHandler(cfg.OpenAIModel),
		Symbols:   handler.NewSymbolsHandler(log, search, dir),
		Prices:    handler.NewPricesHandler(log, orchestrator, gate, cfg.PriceMaxSymbolsPerReq),
		Details:   handler.NewDetailsHandler(log, orchestrator, gate),
		InvokeLLM: handler.NewInvokeLLMHandler(log, invoke, gate),
		Upload:    handler.NewUploadHandler(log, uploadStore),
		Extract:   handler.NewExtractHandler(log, uploadStore, invoke, gate),
	}

	stopSampling := sampleCachesPeriodically(metricsRegistry, quotes, history, search, invoke)
	defer stopSampling()

	r := router.New(cfg, log, authMiddleware, metricsRegistry, handlers)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("stopped gracefully")
	}
}

// parseStaticTokens reads the "token:userID:tier,token:userID:tier" format
// STATIC_AUTH_TOKENS carries, ignoring malformed entries.
func parseStaticTokens(raw string) map[string]auth.User {
	users := make(map[string]auth.User)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			continue
		}
		users[parts[0]] = auth.User{ID: parts[1], Tier: parts[2]}
	}
	return users
}

// sampleCachesPeriodically republishes each cache's cumulative counters
// into the metrics registry's gauges every few seconds, until stopped.
func sampleCachesPeriodically(registry *metrics.Registry, quotes *market.QuoteService, history *market.HistoryService, search *market.SearchProvider, invoke *llm.InvocationLayer) func() {
	ticker := time.NewTicker(5 * time.Second)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				registry.SampleCache("quote", quotes.CacheStats())
				registry.SampleCache("history_daily", history.DailyCacheStats())
				registry.SampleCache("history_intraday", history.IntradayCacheStats())
				registry.SampleCache("symbol_search", search.CacheStats())
				registry.SampleCache("llm_invocation", invoke.CacheStats())
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(stop) }
}
