package symbols_test

import (
	"context"
	"testing"

	"github.com/quietridge/copilot-core/coreerr"
	"github.com/quietridge/copilot-core/domain"
	"github.com/quietridge/copilot-core/symbols"
)

type fakeProbe struct {
	succeedFor string
	calls      []string
}

func (f *fakeProbe) FetchQuote(ctx context.Context, externalSymbol string) (domain.QuoteEntry, error) {
	f.calls = append(f.calls, externalSymbol)
	if externalSymbol == f.succeedFor {
		return domain.QuoteEntry{Source: "primary_chart", Price: 150.25, Meta: domain.QuoteMeta{ExternalSymbol: externalSymbol}}, nil
	}
	return domain.QuoteEntry{}, nil // soft miss, malformed (price 0)
}

type noopSearcher struct{}

func (noopSearcher) Search(ctx context.Context, query string) ([]domain.Candidate, error) {
	return nil, nil
}

func TestResolvePrefersDirectoryOverVariants(t *testing.T) {
	dir := symbols.NewDirectory() // IAG -> IAG.L per the seed table's later entry
	probe := &fakeProbe{succeedFor: "IAG.L"}
	r := symbols.NewResolver(dir, probe, noopSearcher{})

	res := r.Resolve(context.Background(), "IAG", "")
	if !res.Found {
		t.Fatalf("expected a resolution")
	}
	if res.Entry.Meta.ExternalSymbol != "IAG.L" {
		t.Fatalf("expected external symbol IAG.L, got %s", res.Entry.Meta.ExternalSymbol)
	}
	// Directory candidate (score 100) must be tried before any syntactic variant.
	if probe.calls[0] != "IAG.L" {
		t.Fatalf("expected directory candidate to be probed first, got %v", probe.calls)
	}
}

func TestResolveStopsOnRateLimit(t *testing.T) {
	dir := symbols.NewDirectory()
	probe := &rateLimitedProbe{}
	r := symbols.NewResolver(dir, probe, noopSearcher{})

	res := r.Resolve(context.Background(), "AAPL", "")
	if !res.RateLimited {
		t.Fatalf("expected RateLimited=true")
	}
	if res.Found {
		t.Fatalf("expected no entry when rate limited")
	}
	if len(probe.calls) != 1 {
		t.Fatalf("expected exactly one probe attempt before stopping, got %d", len(probe.calls))
	}
}

type rateLimitedProbe struct{ calls []string }

func (p *rateLimitedProbe) FetchQuote(ctx context.Context, externalSymbol string) (domain.QuoteEntry, error) {
	p.calls = append(p.calls, externalSymbol)
	return domain.QuoteEntry{}, coreerr.New(coreerr.RateLimit, "rate limited")
}
