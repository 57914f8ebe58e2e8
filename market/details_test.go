package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/cooldown"
	"github.com/quietridge/copilot-core/domain"
	"github.com/quietridge/copilot-core/fetch"
	"github.com/quietridge/copilot-core/symbols"
)

func TestGetPriceDetailsReturnsCurrentPriceWithoutTarget(t *testing.T) {
	probe := &fakeChartProbe{entries: map[string]domain.QuoteEntry{
		"AAPL": {Source: "primary_chart", Price: 190.5, Meta: domain.QuoteMeta{ExternalSymbol: "AAPL", Name: "Apple Inc."}},
	}}
	dir := symbols.NewDirectory()
	resolver := symbols.NewResolver(dir, probe, noopSearcher{})
	qs := NewQuoteService(resolver, nil, nil, 60_000, 10, zerolog.Nop(), nil)
	o := NewOrchestrator(qs, nil, nil, nil, zerolog.Nop(), 0)

	details, err := o.GetPriceDetails(context.Background(), DetailsRequest{Symbol: "AAPL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.CurrentPrice != 190.5 {
		t.Fatalf("expected current price 190.5, got %v", details.CurrentPrice)
	}
	if details.HistoricalPrice != nil {
		t.Fatalf("expected no historical price when no date was requested")
	}
}

func TestGetPriceDetailsRejectsMissingSymbol(t *testing.T) {
	o := NewOrchestrator(nil, nil, nil, nil, zerolog.Nop(), 0)
	if _, err := o.GetPriceDetails(context.Background(), DetailsRequest{}); err == nil {
		t.Fatalf("expected an error for a missing symbol")
	}
}

func TestGetPriceDetailsRejectsMalformedDate(t *testing.T) {
	o := NewOrchestrator(nil, nil, nil, nil, zerolog.Nop(), 0)
	if _, err := o.GetPriceDetails(context.Background(), DetailsRequest{Symbol: "AAPL", Date: "not-a-date"}); err == nil {
		t.Fatalf("expected an error for a malformed date")
	}
}

func TestGetPriceDetailsFallsBackToCurrentPriceWhenHistoricalUnavailable(t *testing.T) {
	dir := symbols.NewDirectory()

	quoteProbe := &fakeChartProbe{entries: map[string]domain.QuoteEntry{
		"AAPL": {Source: "primary_chart", Price: 190.5, Meta: domain.QuoteMeta{ExternalSymbol: "AAPL"}},
	}}
	qs := NewQuoteService(symbols.NewResolver(dir, quoteProbe, noopSearcher{}), nil, nil, 60_000, 10, zerolog.Nop(), nil)

	// history's own resolver never finds a candidate, so every historical
	// lookup path misses and GetPriceDetails must fall back to the current
	// price (step (f)).
	historyResolver := symbols.NewResolver(dir, &fakeChartProbe{}, noopSearcher{})
	history := NewHistoryService(nil, historyResolver, 60_000, 10, 60_000, 10, zerolog.Nop(), nil)
	o := NewOrchestrator(qs, history, nil, nil, zerolog.Nop(), 0)

	details, err := o.GetPriceDetails(context.Background(), DetailsRequest{Symbol: "AAPL", Date: "2020-01-01"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.HistoricalPrice == nil || *details.HistoricalPrice != 190.5 {
		t.Fatalf("expected historical price to fall back to current price 190.5, got %+v", details.HistoricalPrice)
	}
}

func TestGetPriceDetailsResolvesHistoricalPriceFromDailySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartEnvelopeJSON(150.0)))
	}))
	defer srv.Close()

	chart := NewChartProvider(fetch.New(), cooldown.New(), srv.URL, 60_000, zerolog.Nop(), nil)
	dir := symbols.NewDirectory()
	resolver := symbols.NewResolver(dir, chart, noopSearcher{})
	qs := NewQuoteService(resolver, nil, nil, 60_000, 10, zerolog.Nop(), nil)
	history := NewHistoryService(chart, resolver, 60_000, 10, 60_000, 10, zerolog.Nop(), nil)
	o := NewOrchestrator(qs, history, nil, nil, zerolog.Nop(), 0)

	details, err := o.GetPriceDetails(context.Background(), DetailsRequest{Symbol: "AAPL", Date: "2020-01-01"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.HistoricalPrice == nil || *details.HistoricalPrice != 150.0 {
		t.Fatalf("expected historical price 150.0 from the daily series, got %+v", details.HistoricalPrice)
	}
}
