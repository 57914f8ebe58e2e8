package market

import (
	"context"
	"sync"

	"github.com/quietridge/copilot-core/coreerr"
	"github.com/quietridge/copilot-core/domain"
	"github.com/quietridge/copilot-core/symbols"
)

// BatchResult is one symbol's outcome within a Quote Batch response (§4.13).
// Quote.Stale is set when this is a cached fallback served after a fresh
// fetch failed, per §4.13 step 5.
type BatchResult struct {
	Symbol string             `json:"symbol"`
	Quote  *domain.QuoteEntry `json:"quote,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// BatchMeta reports which symbols were served from cache and which
// failed every provider, by symbol (not just a count), per §4.13 step 6's
// worked examples.
type BatchMeta struct {
	CacheHits       []string `json:"cacheHits"`
	PartialFailures []string `json:"partialFailures"`
}

// BatchResponse is the Quote Batch Endpoint's response shape.
type BatchResponse struct {
	Data []BatchResult `json:"data"`
	Meta BatchMeta     `json:"meta"`
}

// GetQuoteBatch implements §4.13: normalise and dedupe the requested
// symbols, enforce maxSymbols (0 = unlimited), split into fresh-cache-hits
// and to-fetch, fetch the remainder concurrently, and merge deterministically
// by symbol order.
func (o *Orchestrator) GetQuoteBatch(ctx context.Context, rawSymbols []string, maxSymbols int, opts QuoteOptions) (*BatchResponse, error) {
	unique := DedupeSymbols(rawSymbols)
	if len(unique) == 0 {
		return nil, coreerr.New(coreerr.Validation, "at least one symbol is required")
	}
	if maxSymbols > 0 && len(unique) > maxSymbols {
		return nil, coreerr.Newf(coreerr.Validation, "at most %d symbols allowed per request", maxSymbols)
	}

	results := make([]BatchResult, len(unique))
	var mu sync.Mutex
	var cacheHits, partialFailures []string
	var wg sync.WaitGroup

	for i, sym := range unique {
		if e, ok := o.quotes.cache.GetFresh(sym); ok {
			results[i] = BatchResult{Symbol: sym, Quote: &e.Value}
			mu.Lock()
			cacheHits = append(cacheHits, sym)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			entry, err := o.quotes.GetQuote(ctx, sym, opts)
			if err != nil {
				if stale, ok := o.quotes.StaleOrFresh(sym); ok {
					stale.Stale = true
					results[i] = BatchResult{Symbol: sym, Quote: &stale}
					mu.Lock()
					partialFailures = append(partialFailures, sym)
					mu.Unlock()
					return
				}
				results[i] = BatchResult{Symbol: sym, Error: sanitizedErrorMessage(err)}
				mu.Lock()
				partialFailures = append(partialFailures, sym)
				mu.Unlock()
				return
			}
			results[i] = BatchResult{Symbol: sym, Quote: &entry}
		}(i, sym)
	}
	wg.Wait()
	meta := BatchMeta{CacheHits: cacheHits, PartialFailures: partialFailures}

	var firstErr string
	successes := 0
	for _, r := range results {
		if r.Quote != nil {
			successes++
		} else if firstErr == "" && r.Error != "" {
			firstErr = r.Error
		}
	}
	if successes == 0 {
		if firstErr != "" {
			return nil, coreerr.New(coreerr.ProviderError, firstErr)
		}
		return nil, coreerr.New(coreerr.NotFound, "no symbol in the batch resolved to a quote")
	}

	return &BatchResponse{Data: results, Meta: meta}, nil
}

func sanitizedErrorMessage(err error) string {
	if ce, ok := coreerr.As(err); ok {
		return ce.SanitizedMessage()
	}
	return coreerr.Sanitize(err.Error())
}

// DedupeSymbols normalises and dedupes raw ticker strings, in first-seen
// order. Exported so callers can compute the unique count ahead of the
// batch call itself (e.g. for a quota pre-check against §4.13's
// uniqueCount, not the raw request length).
func DedupeSymbols(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		n := symbols.Normalise(s)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
