// Package market implements the MDRC's provider connectors and the
// services that sit on top of them: the Primary Chart Provider, Symbol
// Search Provider, CSV Daily-Bar Provider, Quote Service, History/
// Intraday Service, and Price Details Orchestrator.
package market

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/clock"
	"github.com/quietridge/copilot-core/cooldown"
	"github.com/quietridge/copilot-core/coreerr"
	"github.com/quietridge/copilot-core/domain"
	"github.com/quietridge/copilot-core/fetch"
	"github.com/quietridge/copilot-core/resilience"
)

const chartProviderName = "primary_chart"

// chartEnvelope mirrors the public chart endpoint's response shape:
// chart.result[0].{meta, indicators.quote[0].close[], timestamp[]},
// or chart.error on failure.
type chartEnvelope struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				ExchangeName       string  `json:"exchangeName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
				ShortName          string  `json:"shortName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
					Open  []*float64 `json:"open"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

var rateLimitCode = regexp.MustCompile(`(?i)rate`)
var notFoundCode = regexp.MustCompile(`(?i)not\s*found|invalid`)

// ChartProvider is the Primary Chart Provider (§4.6).
type ChartProvider struct {
	fetcher   *fetch.Fetcher
	cooldowns *cooldown.Tracker
	breaker   *resilience.Breaker
	baseURL   string
	retryMs   int64
	clock     clock.Clock
	logger    zerolog.Logger
	metrics   CallRecorder
}

// NewChartProvider builds a ChartProvider. baseURL points at the public
// chart endpoint (e.g. "https://query1.finance.yahoo.com/v8/finance/chart");
// retryMs is the rate-limit cooldown duration (YAHOO_RETRY_DELAY_MS).
func NewChartProvider(f *fetch.Fetcher, cd *cooldown.Tracker, baseURL string, retryMs int64, logger zerolog.Logger, metrics CallRecorder) *ChartProvider {
	return &ChartProvider{
		fetcher:   f,
		cooldowns: cd,
		breaker:   resilience.NewBreaker(chartProviderName, 5),
		baseURL:   baseURL,
		retryMs:   retryMs,
		clock:     clock.Default,
		logger:    logger,
		metrics:   metrics,
	}
}

func (p *ChartProvider) observe(outcome string, started time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveProviderCall(chartProviderName, outcome, time.Since(started).Seconds())
	}
}

// ChartResult is the decoded response for a single external symbol.
type ChartResult struct {
	Currency      string
	Exchange      string
	Name          string
	Price         float64
	PreviousClose float64
	Series        domain.Series
}

// FetchChart fetches a range/interval chart for externalSymbol. Before
// issuing, it checks the cooldown; on HTTP 429 or a body error code
// matching /rate/i it trips the cooldown and raises RateLimit. A
// "not found"-shaped body error code is a soft miss (nil, nil).
func (p *ChartProvider) FetchChart(ctx context.Context, externalSymbol, rng, interval string) (*ChartResult, error) {
	started := p.clock.Now()
	if p.cooldowns.Active(chartProviderName) {
		p.observe("cooldown_skip", started)
		return nil, coreerr.New(coreerr.RateLimit, "primary chart provider in cooldown").WithProvider(chartProviderName)
	}

	v, err := p.breaker.Execute(func() (any, error) {
		url := fmt.Sprintf("%s/%s?range=%s&interval=%s", p.baseURL, externalSymbol, rng, interval)
		var env chartEnvelope
		if ferr := p.fetcher.FetchJSON(ctx, "GET", url, nil, fetch.Options{DeadlineMs: 8000}, &env); ferr != nil {
			if ce, ok := coreerr.As(ferr); ok && ce.Kind == coreerr.RateLimit {
				p.cooldowns.Trip(chartProviderName, p.retryMs)
				p.logger.Warn().Str("provider", chartProviderName).Str("symbol", externalSymbol).Msg("rate limited, tripping cooldown")
				return nil, coreerr.New(coreerr.RateLimit, "upstream returned 429").WithProvider(chartProviderName)
			}
			return nil, ferr
		}
		return &env, nil
	})
	if err != nil {
		p.observe("error", started)
		if ce, ok := coreerr.As(err); ok {
			return nil, ce
		}
		return nil, err
	}
	env := v.(*chartEnvelope)

	if env.Chart.Error != nil {
		if rateLimitCode.MatchString(env.Chart.Error.Code) || rateLimitCode.MatchString(env.Chart.Error.Description) {
			p.cooldowns.Trip(chartProviderName, p.retryMs)
			p.logger.Warn().Str("provider", chartProviderName).Str("symbol", externalSymbol).Msg("rate limited by upstream body code, tripping cooldown")
			p.observe("rate_limited", started)
			return nil, coreerr.New(coreerr.RateLimit, "rate limited by upstream body code").WithProvider(chartProviderName)
		}
		if notFoundCode.MatchString(env.Chart.Error.Code) {
			p.observe("not_found", started)
			return nil, nil // soft miss
		}
		p.observe("error", started)
		return nil, coreerr.Newf(coreerr.ProviderError, "chart provider error: %s", env.Chart.Error.Description).WithProvider(chartProviderName)
	}
	if len(env.Chart.Result) == 0 {
		p.observe("not_found", started)
		return nil, nil
	}
	p.observe("success", started)

	r := env.Chart.Result[0]
	result := &ChartResult{
		Currency:      r.Meta.Currency,
		Exchange:      r.Meta.ExchangeName,
		Name:          r.Meta.ShortName,
		Price:         r.Meta.RegularMarketPrice,
		PreviousClose: r.Meta.PreviousClose,
	}
	if len(r.Indicators.Quote) > 0 {
		closes := r.Indicators.Quote[0].Close
		for i, ts := range r.Timestamp {
			if i >= len(closes) || closes[i] == nil {
				continue
			}
			result.Series = append(result.Series, domain.SeriesPoint{
				Timestamp: time.Unix(ts, 0).UTC().Format(time.RFC3339),
				Close:     *closes[i],
			})
		}
	}
	return result, nil
}

// FetchQuote satisfies symbols.ChartProbe: a single current-price probe
// used by the Symbol Resolver.
func (p *ChartProvider) FetchQuote(ctx context.Context, externalSymbol string) (domain.QuoteEntry, error) {
	r, err := p.FetchChart(ctx, externalSymbol, "1d", "1m")
	if err != nil {
		return domain.QuoteEntry{}, err
	}
	if r == nil || r.Price <= 0 {
		return domain.QuoteEntry{}, nil
	}
	entry := domain.QuoteEntry{
		Source:    chartProviderName,
		Price:     r.Price,
		Currency:  r.Currency,
		Exchange:  r.Exchange,
		Timestamp: p.clock.Now().UTC().Format(time.RFC3339),
		Meta:      domain.QuoteMeta{Name: r.Name, ExternalSymbol: strings.ToUpper(externalSymbol)},
		FetchedAt: p.clock.NowMs(),
	}
	if r.PreviousClose > 0 {
		pc := r.PreviousClose
		entry.PreviousClose = &pc
	}
	return entry, nil
}
