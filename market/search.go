package market

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/cache"
	"github.com/quietridge/copilot-core/cooldown"
	"github.com/quietridge/copilot-core/domain"
	"github.com/quietridge/copilot-core/fetch"
	"github.com/quietridge/copilot-core/resilience"
)

const searchProviderName = "symbol_search"

type searchEnvelope struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		Shortname string `json:"shortname"`
		Longname  string `json:"longname"`
		Exchange  string `json:"exchange"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}

// SearchProvider is the Symbol Search Provider (§4.7): best-effort, its
// own TTL cache, respects the shared chart-provider cooldown, downgrades
// errors to an empty result rather than propagating them.
type SearchProvider struct {
	fetcher   *fetch.Fetcher
	cooldowns *cooldown.Tracker
	courtesy  *resilience.CourtesyLimiter
	cache     *cache.Cache[[]domain.Candidate]
	baseURL   string
	maxResults int
	logger    zerolog.Logger
	metrics   CallRecorder
}

// NewSearchProvider builds a SearchProvider with its own TTL cache.
func NewSearchProvider(f *fetch.Fetcher, cd *cooldown.Tracker, baseURL string, ttlMs int64, maxEntries, maxResults int, logger zerolog.Logger, metrics CallRecorder) *SearchProvider {
	return &SearchProvider{
		fetcher:    f,
		cooldowns:  cd,
		courtesy:   resilience.NewCourtesyLimiter(5, 10),
		cache:      cache.New[[]domain.Candidate](maxEntries, ttlMs),
		baseURL:    baseURL,
		maxResults: maxResults,
		logger:     logger,
		metrics:    metrics,
	}
}

// CacheStats exposes the search cache's counters for metrics.
func (p *SearchProvider) CacheStats() cache.Stats { return p.cache.Stats() }

// Search implements symbols.Searcher.
func (p *SearchProvider) Search(ctx context.Context, query string) ([]domain.Candidate, error) {
	key := strings.ToLower(query)
	if entry, ok := p.cache.GetFresh(key); ok {
		return entry.Value, nil
	}
	if p.cooldowns.Active(chartProviderName) {
		return nil, nil
	}
	if err := p.courtesy.Wait(ctx); err != nil {
		return nil, nil
	}

	started := time.Now()
	var env searchEnvelope
	reqURL := fmt.Sprintf("%s?q=%s", p.baseURL, url.QueryEscape(query))
	if err := p.fetcher.FetchJSON(ctx, "GET", reqURL, nil, fetch.Options{DeadlineMs: 5000}, &env); err != nil {
		// Search is best-effort: log-and-empty, not a propagated error.
		p.logger.Debug().Str("provider", searchProviderName).Err(err).Msg("search downgraded to empty result")
		if p.metrics != nil {
			p.metrics.ObserveProviderCall(searchProviderName, "error", time.Since(started).Seconds())
		}
		return nil, nil
	}
	if p.metrics != nil {
		p.metrics.ObserveProviderCall(searchProviderName, "success", time.Since(started).Seconds())
	}

	out := make([]domain.Candidate, 0, len(env.Quotes))
	for _, q := range env.Quotes {
		if len(out) >= p.maxResults {
			break
		}
		name := q.Shortname
		if name == "" {
			name = q.Longname
		}
		out = append(out, domain.Candidate{
			Symbol:   strings.ToUpper(q.Symbol),
			Name:     name,
			Exchange: q.Exchange,
		})
	}
	p.cache.Put(key, out)
	return out, nil
}
