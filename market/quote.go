package market

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/cache"
	"github.com/quietridge/copilot-core/coreerr"
	"github.com/quietridge/copilot-core/domain"
	"github.com/quietridge/copilot-core/flight"
	"github.com/quietridge/copilot-core/symbols"
)

const quoteFlightMapName = "quote"

// QuoteOptions are the per-call options to GetQuote.
type QuoteOptions struct {
	PreferOracle bool
	ExpectedName string
}

// OracleQuoter is the small interface over the LLM Oracle's current-price
// entry point, kept independent of the llm package to avoid a cycle.
type OracleQuoter interface {
	OracleCurrentPrice(ctx context.Context, canonical string) (domain.QuoteEntry, error)
}

// QuoteService implements §4.5: cache + single-flight + ordered provider
// fallback (resolver → CSV → LLM oracle).
type QuoteService struct {
	cache     *cache.Cache[domain.QuoteEntry]
	flight    flight.Group[domain.QuoteEntry]
	resolver  *symbols.Resolver
	csv       *CSVProvider
	oracle    OracleQuoter
	logger    zerolog.Logger
	metrics   FlightRecorder
}

// NewQuoteService builds a QuoteService.
func NewQuoteService(resolver *symbols.Resolver, csvProvider *CSVProvider, oracle OracleQuoter, ttlMs int64, maxEntries int, logger zerolog.Logger, metrics FlightRecorder) *QuoteService {
	return &QuoteService{
		cache:    cache.New[domain.QuoteEntry](maxEntries, ttlMs),
		resolver: resolver,
		csv:      csvProvider,
		oracle:   oracle,
		logger:   logger,
		metrics:  metrics,
	}
}

// GetQuote runs the §4.5 state machine for a single canonical ticker.
func (s *QuoteService) GetQuote(ctx context.Context, canonical string, opts QuoteOptions) (domain.QuoteEntry, error) {
	canonical = symbols.Normalise(canonical)

	if entry, ok := s.cache.GetFresh(canonical); ok {
		return entry.Value, nil
	}

	entry, err, shared := s.flight.Acquire(canonical, func() (domain.QuoteEntry, error) {
		return s.resolveAndFetch(ctx, canonical, opts)
	})
	if shared && s.metrics != nil {
		s.metrics.RecordFlightCoalesced(quoteFlightMapName)
	}
	if err != nil {
		return domain.QuoteEntry{}, err
	}
	s.cache.Put(canonical, entry)
	return entry, nil
}

// CacheStats exposes the quote cache's counters for metrics.
func (s *QuoteService) CacheStats() cache.Stats { return s.cache.Stats() }

// StaleOrFresh returns the cached entry regardless of freshness, for the
// batch orchestrator's stale-fallback behaviour.
func (s *QuoteService) StaleOrFresh(canonical string) (domain.QuoteEntry, bool) {
	e, ok := s.cache.Get(symbols.Normalise(canonical))
	return e.Value, ok
}

func (s *QuoteService) resolveAndFetch(ctx context.Context, canonical string, opts QuoteOptions) (domain.QuoteEntry, error) {
	res := s.resolver.Resolve(ctx, canonical, opts.ExpectedName)
	rateLimited := res.RateLimited

	if res.Found && res.Entry.Valid() {
		if !opts.PreferOracle {
			return res.Entry, nil
		}
		// preferOracle still prefers the primary hit if the oracle itself fails.
	}

	var entry domain.QuoteEntry
	haveEntry := res.Found && res.Entry.Valid()
	if haveEntry {
		entry = res.Entry
	}

	if !haveEntry && s.csv != nil {
		s.logger.Debug().Str("symbol", canonical).Msg("quote falling back to csv daily-bar provider")
		if series, err := s.csv.FetchDailySeries(ctx, canonical); err == nil && len(series) > 0 {
			last := series[len(series)-1]
			ts, perr := time.Parse("2006-01-02", last.Date)
			if perr == nil {
				entry = domain.QuoteEntry{
					Source:    "csv",
					Price:     last.Close,
					Timestamp: time.Date(ts.Year(), ts.Month(), ts.Day(), 20, 0, 0, 0, time.UTC).Format(time.RFC3339),
					Candidates: res.Candidates,
				}
				haveEntry = entry.Valid()
			}
		}
	}

	needOracle := opts.PreferOracle || (rateLimited && !haveEntry)
	if needOracle && s.oracle != nil {
		s.logger.Debug().Str("symbol", canonical).Bool("rate_limited", rateLimited).Bool("prefer_oracle", opts.PreferOracle).Msg("quote falling back to llm oracle")
		if oe, err := s.oracle.OracleCurrentPrice(ctx, canonical); err == nil && oe.Valid() {
			entry = oe
			haveEntry = true
		} else if !haveEntry {
			if err != nil {
				return domain.QuoteEntry{}, err
			}
		}
	}

	if !haveEntry {
		s.logger.Warn().Str("symbol", canonical).Msg("no provider produced a valid quote")
		return domain.QuoteEntry{}, coreerr.New(coreerr.NotFound, "no provider produced a valid quote").WithProvider(canonical)
	}
	return entry, nil
}
