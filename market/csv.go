package market

import (
	"context"
	"encoding/csv"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/coreerr"
	"github.com/quietridge/copilot-core/domain"
	"github.com/quietridge/copilot-core/fetch"
	"github.com/quietridge/copilot-core/resilience"
	"github.com/quietridge/copilot-core/symbols"
)

const csvProviderName = "csv_daily_bar"

// CSVProvider is the CSV Daily-Bar Provider (§4.8).
type CSVProvider struct {
	fetcher  *fetch.Fetcher
	breaker  *resilience.Breaker
	courtesy *resilience.CourtesyLimiter
	baseURL  string // printf template with a single %s for the csv symbol
	logger   zerolog.Logger
	metrics  CallRecorder
}

// NewCSVProvider builds a CSVProvider. baseURL is a format string with one
// "%s" placeholder for the derived CSV symbol.
func NewCSVProvider(f *fetch.Fetcher, baseURL string, logger zerolog.Logger, metrics CallRecorder) *CSVProvider {
	return &CSVProvider{
		fetcher:  f,
		breaker:  resilience.NewBreaker(csvProviderName, 5),
		courtesy: resilience.NewCourtesyLimiter(5, 10),
		baseURL:  baseURL,
		logger:   logger,
		metrics:  metrics,
	}
}

// FetchDailySeries derives the CSV symbol from a canonical ticker, fetches
// the CSV, and parses it into an ascending daily series, discarding rows
// whose close does not parse as finite.
func (p *CSVProvider) FetchDailySeries(ctx context.Context, canonical string) (domain.DailySeries, error) {
	if err := p.courtesy.Wait(ctx); err != nil {
		return nil, err
	}
	csvSymbol := symbols.CSVSymbol(canonical)
	started := time.Now()

	v, err := p.breaker.Execute(func() (any, error) {
		url := strings.Replace(p.baseURL, "%s", csvSymbol, 1)
		text, ferr := p.fetcher.FetchText(ctx, url, fetch.Options{DeadlineMs: 8000})
		if ferr != nil {
			return nil, ferr
		}
		return text, nil
	})
	if err != nil {
		p.logger.Debug().Str("provider", csvProviderName).Str("symbol", canonical).Err(err).Msg("csv fetch failed")
		if p.metrics != nil {
			p.metrics.ObserveProviderCall(csvProviderName, "error", time.Since(started).Seconds())
		}
		return nil, err
	}
	text := v.(string)

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, coreerr.Newf(coreerr.ProviderError, "parse csv: %v", err).WithProvider(csvProviderName)
	}
	if len(rows) <= 1 {
		if p.metrics != nil {
			p.metrics.ObserveProviderCall(csvProviderName, "empty", time.Since(started).Seconds())
		}
		return nil, nil
	}
	if p.metrics != nil {
		p.metrics.ObserveProviderCall(csvProviderName, "success", time.Since(started).Seconds())
	}

	var out domain.DailySeries
	for _, row := range rows[1:] { // discard header
		if len(row) < 5 {
			continue
		}
		date := row[0]
		closePrice, convErr := strconv.ParseFloat(row[4], 64)
		if convErr != nil || math.IsNaN(closePrice) || math.IsInf(closePrice, 0) {
			continue
		}
		out = append(out, domain.DailyPoint{Date: date, Close: closePrice})
	}

	return sortDailyAscending(out), nil
}

func sortDailyAscending(s domain.DailySeries) domain.DailySeries {
	out := make(domain.DailySeries, len(s))
	copy(out, s)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			ti, _ := time.Parse("2006-01-02", out[j].Date)
			tj, _ := time.Parse("2006-01-02", out[j-1].Date)
			if ti.Before(tj) {
				out[j], out[j-1] = out[j-1], out[j]
			} else {
				break
			}
		}
	}
	return out
}
