package symbols

import (
	"context"
	"sort"
	"strings"

	"github.com/quietridge/copilot-core/coreerr"
	"github.com/quietridge/copilot-core/domain"
)

// ChartProbe is the small interface the resolver uses to test whether an
// external symbol candidate is well-formed, without depending on the
// market package's concrete Primary Chart Provider (avoids an import
// cycle, and matches the design notes' "ordered list of small interface
// values" idiom).
type ChartProbe interface {
	FetchQuote(ctx context.Context, externalSymbol string) (domain.QuoteEntry, error)
}

// Searcher is the small interface over the Symbol Search Provider.
type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.Candidate, error)
}

type scoredCandidate struct {
	symbol   string
	name     string
	exchange string
	score    int
	order    int // insertion order, for tie-break
}

// Resolution is the Symbol Resolver's output.
type Resolution struct {
	Entry       domain.QuoteEntry
	Found       bool
	Candidates  []domain.Candidate
	RateLimited bool
}

// Resolver implements §4.4: given a canonical ticker, produce a scored
// candidate set and probe the chart provider in descending score order.
type Resolver struct {
	dir      *Directory
	mapping  MappingStore // canonical -> last-successful external symbol
	probe    ChartProbe
	searcher Searcher
}

// mappingCacheMaxEntries bounds the last-successful-mapping cache; the
// spec does not assign it its own TTL knob, so a long-lived, generously
// sized cache stands in (it only ever stores a symbol string, not a
// priced quote, so staleness risk is low: a wrong external symbol simply
// fails the next chart probe and falls through to search again).
const mappingCacheMaxEntries = 2000
const mappingCacheTTLMs = 24 * 3600 * 1000

// NewResolver builds a Resolver over a Directory and the small interfaces
// for probing and searching, with an in-memory last-successful-mapping
// cache.
func NewResolver(dir *Directory, probe ChartProbe, searcher Searcher) *Resolver {
	return NewResolverWithMapping(dir, probe, searcher, newMemMappingStore())
}

// NewResolverWithMapping builds a Resolver with an explicit MappingStore,
// e.g. a RedisMappingStore when the Redis ping at startup succeeds, so the
// last-successful mapping is shared across replicas instead of kept
// per-process.
func NewResolverWithMapping(dir *Directory, probe ChartProbe, searcher Searcher, mapping MappingStore) *Resolver {
	return &Resolver{
		dir:      dir,
		mapping:  mapping,
		probe:    probe,
		searcher: searcher,
	}
}

// Resolve runs the §4.4 algorithm for canonical ticker t.
func (r *Resolver) Resolve(ctx context.Context, t string, expectedName string) Resolution {
	canonical := Normalise(t)
	candidates := r.buildCandidates(ctx, canonical, expectedName)

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].order < candidates[j].order
	})

	disambiguation := make([]domain.Candidate, 0, 8)
	for _, c := range candidates {
		if len(disambiguation) >= 8 {
			break
		}
		disambiguation = append(disambiguation, domain.Candidate{Symbol: c.symbol, Name: c.name, Exchange: c.exchange})
	}

	for _, c := range candidates {
		entry, err := r.probe.FetchQuote(ctx, c.symbol)
		if err != nil {
			if ce, ok := coreerr.As(err); ok && ce.Kind == coreerr.RateLimit {
				return Resolution{RateLimited: true, Candidates: disambiguation}
			}
			continue
		}
		if entry.Valid() {
			r.mapping.Put(ctx, canonical, c.symbol)
			entry.Candidates = disambiguation
			return Resolution{Entry: entry, Found: true, Candidates: disambiguation}
		}
	}

	return Resolution{Candidates: disambiguation}
}

func (r *Resolver) buildCandidates(ctx context.Context, canonical, expectedName string) []scoredCandidate {
	var out []scoredCandidate
	order := 0
	add := func(symbol, name, exchange string, score int) {
		if symbol == "" {
			return
		}
		out = append(out, scoredCandidate{symbol: symbol, name: name, exchange: exchange, score: score, order: order})
		order++
	}

	if meta, ok := r.dir.Lookup(canonical); ok {
		add(meta.External, meta.Name, "", 100)
	}
	if mapped, ok := r.mapping.GetFresh(ctx, canonical); ok {
		add(mapped, "", "", 80)
	}
	for _, v := range Variants(canonical) {
		add(v, "", "", 40)
	}

	if r.searcher != nil {
		results, err := r.searcher.Search(ctx, canonical)
		if err == nil {
			for rank, res := range results {
				score := 60 - rank
				if expectedName != "" && strings.EqualFold(res.Name, expectedName) {
					score += 80
				} else if expectedName != "" && containsFold(res.Name, expectedName) {
					score += 40
				}
				if meta, ok := r.dir.Lookup(canonical); ok && strings.EqualFold(res.Name, meta.Name) {
					score += 40
				}
				add(res.Symbol, res.Name, res.Exchange, score)
			}
		}
	}

	return out
}

func containsFold(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(strings.ToLower(a), strings.ToLower(b)) ||
		strings.Contains(strings.ToLower(b), strings.ToLower(a))
}
