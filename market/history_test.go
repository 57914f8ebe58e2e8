package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/cooldown"
	"github.com/quietridge/copilot-core/fetch"
	"github.com/quietridge/copilot-core/symbols"
)

// chartEnvelopeJSON renders a minimal well-formed chart envelope: one
// result, one timestamp/close pair, so every FetchChart/FetchQuote call
// the resolver or a series fetch makes against it succeeds.
func chartEnvelopeJSON(price float64) string {
	return fmt.Sprintf(`{"chart":{"result":[{"meta":{"currency":"USD","symbol":"AAPL","exchangeName":"NMS","regularMarketPrice":%v,"previousClose":%v,"shortName":"Apple Inc."},"timestamp":[1700000000],"indicators":{"quote":[{"close":[%v],"open":[%v]}]}}]}}`, price, price-1, price, price-1)
}

func newHistoryTestServer(t *testing.T, price float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartEnvelopeJSON(price)))
	}))
}

func newTestHistoryService(t *testing.T, price float64) *HistoryService {
	t.Helper()
	srv := newHistoryTestServer(t, price)
	t.Cleanup(srv.Close)

	chart := NewChartProvider(fetch.New(), cooldown.New(), srv.URL, 60_000, zerolog.Nop(), nil)
	dir := symbols.NewDirectory()
	resolver := symbols.NewResolver(dir, chart, noopSearcher{})
	return NewHistoryService(chart, resolver, 60_000, 10, 60_000, 10, zerolog.Nop(), nil)
}

func TestGetDailySeriesFetchesAndCachesResult(t *testing.T) {
	hs := newTestHistoryService(t, 190.5)

	series, err := hs.GetDailySeries(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) == 0 {
		t.Fatalf("expected at least one daily point")
	}
	if series[len(series)-1].Close != 190.5 {
		t.Fatalf("expected close 190.5, got %v", series[len(series)-1].Close)
	}

	stats := hs.DailyCacheStats()
	if stats.Size != 1 {
		t.Fatalf("expected one cached entry, got %d", stats.Size)
	}
}

func TestGetDailySeriesServesFromCacheOnSecondCall(t *testing.T) {
	hs := newTestHistoryService(t, 190.5)

	if _, err := hs.GetDailySeries(context.Background(), "AAPL"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := hs.GetDailySeries(context.Background(), "AAPL"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats := hs.DailyCacheStats()
	if stats.Hits == 0 {
		t.Fatalf("expected at least one cache hit on the second call, got %+v", stats)
	}
}

func TestGetIntradaySeriesFetchesSuccessfully(t *testing.T) {
	hs := newTestHistoryService(t, 55.25)

	series, err := hs.GetIntradaySeries(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) == 0 {
		t.Fatalf("expected at least one intraday point")
	}
}

func TestGetDailySeriesFailsWhenSymbolCannotBeResolved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chart":{"result":[],"error":{"code":"Not Found","description":"no data"}}}`))
	}))
	defer srv.Close()

	chart := NewChartProvider(fetch.New(), cooldown.New(), srv.URL, 60_000, zerolog.Nop(), nil)
	dir := symbols.NewDirectory()
	resolver := symbols.NewResolver(dir, chart, noopSearcher{})
	hs := NewHistoryService(chart, resolver, 60_000, 10, 60_000, 10, zerolog.Nop(), nil)

	if _, err := hs.GetDailySeries(context.Background(), "ZZZZ"); err == nil {
		t.Fatalf("expected an error for an unresolvable symbol")
	}
}

func TestGetDailySeriesCoalescesConcurrentCallsForSameSymbol(t *testing.T) {
	hs := newTestHistoryService(t, 190.5)

	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, err := hs.GetDailySeries(context.Background(), "AAPL")
			errs <- err
		}()
	}
	for i := 0; i < 5; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}
