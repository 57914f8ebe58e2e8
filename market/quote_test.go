package market

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/coreerr"
	"github.com/quietridge/copilot-core/domain"
	"github.com/quietridge/copilot-core/symbols"
)

type fakeChartProbe struct {
	entries map[string]domain.QuoteEntry
	errs    map[string]error
	calls   []string
}

func (f *fakeChartProbe) FetchQuote(ctx context.Context, externalSymbol string) (domain.QuoteEntry, error) {
	f.calls = append(f.calls, externalSymbol)
	if err, ok := f.errs[externalSymbol]; ok {
		return domain.QuoteEntry{}, err
	}
	return f.entries[externalSymbol], nil
}

type noopSearcher struct{}

func (noopSearcher) Search(ctx context.Context, query string) ([]domain.Candidate, error) {
	return nil, nil
}

type fakeOracleQuoter struct {
	entry domain.QuoteEntry
	err   error
	calls int
}

func (f *fakeOracleQuoter) OracleCurrentPrice(ctx context.Context, canonical string) (domain.QuoteEntry, error) {
	f.calls++
	return f.entry, f.err
}

func TestGetQuoteResolvesThroughDirectoryCandidate(t *testing.T) {
	dir := symbols.NewDirectory()
	probe := &fakeChartProbe{entries: map[string]domain.QuoteEntry{
		"AAPL": {Source: "primary_chart", Price: 190.5, Meta: domain.QuoteMeta{ExternalSymbol: "AAPL"}},
	}}
	resolver := symbols.NewResolver(dir, probe, noopSearcher{})
	qs := NewQuoteService(resolver, nil, nil, 60_000, 10, zerolog.Nop(), nil)

	entry, err := qs.GetQuote(context.Background(), "AAPL", QuoteOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Price != 190.5 {
		t.Fatalf("expected price 190.5, got %v", entry.Price)
	}
}

func TestGetQuoteServesFromCacheWithoutReprobing(t *testing.T) {
	dir := symbols.NewDirectory()
	probe := &fakeChartProbe{entries: map[string]domain.QuoteEntry{
		"AAPL": {Source: "primary_chart", Price: 190.5, Meta: domain.QuoteMeta{ExternalSymbol: "AAPL"}},
	}}
	resolver := symbols.NewResolver(dir, probe, noopSearcher{})
	qs := NewQuoteService(resolver, nil, nil, 60_000, 10, zerolog.Nop(), nil)

	if _, err := qs.GetQuote(context.Background(), "AAPL", QuoteOptions{}); err != nil {
		t.Fatalf("unexpected error on first call: %v", err)
	}
	probe.calls = nil

	if _, err := qs.GetQuote(context.Background(), "AAPL", QuoteOptions{}); err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}
	if len(probe.calls) != 0 {
		t.Fatalf("expected second call to be served from cache, but probe was called: %v", probe.calls)
	}
}

func TestGetQuoteFallsBackToOracleWhenRateLimited(t *testing.T) {
	dir := symbols.NewDirectory()
	probe := &fakeChartProbe{errs: map[string]error{
		"AAPL": coreerr.New(coreerr.RateLimit, "rate limited"),
	}}
	resolver := symbols.NewResolver(dir, probe, noopSearcher{})
	oracle := &fakeOracleQuoter{entry: domain.QuoteEntry{Source: "llm_oracle", Price: 191.0}}
	qs := NewQuoteService(resolver, nil, oracle, 60_000, 10, zerolog.Nop(), nil)

	entry, err := qs.GetQuote(context.Background(), "AAPL", QuoteOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Source != "llm_oracle" || entry.Price != 191.0 {
		t.Fatalf("expected oracle fallback entry, got %+v", entry)
	}
	if oracle.calls != 1 {
		t.Fatalf("expected oracle to be consulted exactly once, got %d", oracle.calls)
	}
}

func TestGetQuoteFailsNotFoundWhenEveryProviderMisses(t *testing.T) {
	dir := symbols.NewDirectory()
	probe := &fakeChartProbe{entries: map[string]domain.QuoteEntry{}} // soft miss: zero-value entry
	resolver := symbols.NewResolver(dir, probe, noopSearcher{})
	qs := NewQuoteService(resolver, nil, nil, 60_000, 10, zerolog.Nop(), nil)

	_, err := qs.GetQuote(context.Background(), "AAPL", QuoteOptions{})
	ce, ok := coreerr.As(err)
	if !ok || ce.Kind != coreerr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestGetQuoteCoalescesConcurrentCallsForSameSymbol(t *testing.T) {
	dir := symbols.NewDirectory()
	probe := &fakeChartProbe{entries: map[string]domain.QuoteEntry{
		"AAPL": {Source: "primary_chart", Price: 190.5, Meta: domain.QuoteMeta{ExternalSymbol: "AAPL"}},
	}}
	resolver := symbols.NewResolver(dir, probe, noopSearcher{})
	qs := NewQuoteService(resolver, nil, nil, 60_000, 10, zerolog.Nop(), nil)

	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, err := qs.GetQuote(context.Background(), "AAPL", QuoteOptions{})
			errs <- err
		}()
	}
	for i := 0; i < 5; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}
