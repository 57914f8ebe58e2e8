package market

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/cache"
	"github.com/quietridge/copilot-core/coreerr"
	"github.com/quietridge/copilot-core/domain"
	"github.com/quietridge/copilot-core/flight"
	"github.com/quietridge/copilot-core/symbols"
)

const (
	dailyFlightMapName = "history_daily"
	intraFlightMapName = "history_intraday"
)

// HistoryService implements §4.10: daily and intraday series, each with
// its own TTL cache and single-flight guard, resolving canonical tickers
// to external symbols via the Resolver.
type HistoryService struct {
	chart    *ChartProvider
	resolver *symbols.Resolver

	dailyCache    *cache.Cache[domain.DailySeries]
	dailyFlight   flight.Group[domain.DailySeries]
	intraCache    *cache.Cache[domain.Series]
	intraFlight   flight.Group[domain.Series]

	logger  zerolog.Logger
	metrics FlightRecorder
}

// NewHistoryService builds a HistoryService with independently configured
// daily and intraday caches.
func NewHistoryService(chart *ChartProvider, resolver *symbols.Resolver, dailyTTLMs int64, dailyMax int, intraTTLMs int64, intraMax int, logger zerolog.Logger, metrics FlightRecorder) *HistoryService {
	return &HistoryService{
		chart:      chart,
		resolver:   resolver,
		dailyCache: cache.New[domain.DailySeries](dailyMax, dailyTTLMs),
		intraCache: cache.New[domain.Series](intraMax, intraTTLMs),
		logger:     logger,
		metrics:    metrics,
	}
}

func (h *HistoryService) externalSymbol(ctx context.Context, canonical string) (string, error) {
	res := h.resolver.Resolve(ctx, canonical, "")
	if res.RateLimited {
		return "", coreerr.New(coreerr.RateLimit, "primary chart provider in cooldown")
	}
	if !res.Found {
		return "", coreerr.New(coreerr.NotFound, "symbol could not be resolved")
	}
	return res.Entry.Meta.ExternalSymbol, nil
}

// GetDailySeries returns the daily ("max/1d") series for canonical.
func (h *HistoryService) GetDailySeries(ctx context.Context, canonical string) (domain.DailySeries, error) {
	key := symbols.Normalise(canonical)
	if e, ok := h.dailyCache.GetFresh(key); ok {
		return e.Value, nil
	}
	series, err, shared := h.dailyFlight.Acquire(key, func() (domain.DailySeries, error) {
		return h.fetchDaily(ctx, key, "max", "1d")
	})
	if shared && h.metrics != nil {
		h.metrics.RecordFlightCoalesced(dailyFlightMapName)
	}
	if err != nil {
		h.logger.Warn().Str("symbol", key).Err(err).Msg("daily series fetch failed")
		return nil, err
	}
	h.dailyCache.Put(key, series)
	return series, nil
}

// GetIntradaySeries returns the intraday ("5d/5m") series for canonical.
func (h *HistoryService) GetIntradaySeries(ctx context.Context, canonical string) (domain.Series, error) {
	key := symbols.Normalise(canonical)
	if e, ok := h.intraCache.GetFresh(key); ok {
		return e.Value, nil
	}
	series, err, shared := h.intraFlight.Acquire(key, func() (domain.Series, error) {
		return h.fetchRangeSeries(ctx, key, "5d", "5m")
	})
	if shared && h.metrics != nil {
		h.metrics.RecordFlightCoalesced(intraFlightMapName)
	}
	if err != nil {
		h.logger.Debug().Str("symbol", key).Err(err).Msg("intraday series fetch failed")
		return nil, err
	}
	h.intraCache.Put(key, series)
	return series, nil
}

// DailyCacheStats exposes the daily-series cache's counters for metrics.
func (h *HistoryService) DailyCacheStats() cache.Stats { return h.dailyCache.Stats() }

// IntradayCacheStats exposes the intraday-series cache's counters for metrics.
func (h *HistoryService) IntradayCacheStats() cache.Stats { return h.intraCache.Stats() }

// GetRangeSeries fetches an arbitrary range/interval, uncached, for the
// Price Details Orchestrator's step (e) range-selected lookup.
func (h *HistoryService) GetRangeSeries(ctx context.Context, canonical, rng, interval string) (domain.Series, error) {
	return h.fetchRangeSeries(ctx, symbols.Normalise(canonical), rng, interval)
}

func (h *HistoryService) fetchRangeSeries(ctx context.Context, canonical, rng, interval string) (domain.Series, error) {
	ext, err := h.externalSymbol(ctx, canonical)
	if err != nil {
		return nil, err
	}
	r, err := h.chart.FetchChart(ctx, ext, rng, interval)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, coreerr.New(coreerr.NotFound, "no chart data for symbol")
	}
	return r.Series.SortAscending(), nil
}

func (h *HistoryService) fetchDaily(ctx context.Context, canonical, rng, interval string) (domain.DailySeries, error) {
	series, err := h.fetchRangeSeries(ctx, canonical, rng, interval)
	if err != nil {
		return nil, err
	}
	out := make(domain.DailySeries, 0, len(series))
	for _, p := range series {
		out = append(out, domain.DailyPoint{Date: p.Timestamp[:10], Close: p.Close})
	}
	return out, nil
}
