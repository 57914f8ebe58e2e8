package market

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/clock"
	"github.com/quietridge/copilot-core/coreerr"
	"github.com/quietridge/copilot-core/domain"
	"github.com/quietridge/copilot-core/symbols"
)

// OracleHistoricalQuoter is the small interface over the LLM Oracle's
// historical-price entry point.
type OracleHistoricalQuoter interface {
	OracleHistoricalPrice(ctx context.Context, canonical, isoDate string) (domain.QuoteEntry, error)
}

// PriceDetails is the Price Details Orchestrator's response shape (§6).
type PriceDetails struct {
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name,omitempty"`
	Type                     string  `json:"type,omitempty"`
	CurrentPrice             float64 `json:"current_price"`
	CurrentPriceTimestamp    string  `json:"current_price_timestamp"`
	HistoricalPrice          *float64 `json:"historical_price,omitempty"`
	HistoricalPriceDate      string  `json:"historical_price_date,omitempty"`
	HistoricalPriceTimestamp string  `json:"historical_price_timestamp,omitempty"`
	CurrentOpen              *float64 `json:"current_open,omitempty"`
	PreviousClose            *float64 `json:"previous_close,omitempty"`
	Provider                 string  `json:"provider"`
	Metadata                 map[string]any `json:"metadata,omitempty"`
}

// DetailsRequest is the validated input to GetPriceDetails.
type DetailsRequest struct {
	Symbol       string
	Date         string // YYYY-MM-DD, optional
	Time         string // HH:MM, optional
	PreferOracle bool
	ExpectedName string
}

// Orchestrator wires the Quote Service, History Service, CSV provider and
// LLM oracle together for the Price Details Orchestrator (§4.12).
type Orchestrator struct {
	quotes           *QuoteService
	history          *HistoryService
	csv              *CSVProvider
	oracleHist       OracleHistoricalQuoter
	clock            clock.Clock
	logger           zerolog.Logger
	intradayLookback time.Duration
}

// NewOrchestrator builds an Orchestrator. oracleHist may be nil when no LLM
// oracle is configured. intradayLookback bounds how far back a timed target
// (§4.12 step (a)) is still served from the intraday series rather than
// falling through to daily bars (PRICE_INTRADAY_LOOKBACK_MS).
func NewOrchestrator(quotes *QuoteService, history *HistoryService, csv *CSVProvider, oracleHist OracleHistoricalQuoter, logger zerolog.Logger, intradayLookback time.Duration) *Orchestrator {
	return &Orchestrator{
		quotes:           quotes,
		history:          history,
		csv:              csv,
		oracleHist:       oracleHist,
		clock:            clock.Default,
		logger:           logger,
		intradayLookback: intradayLookback,
	}
}

// GetPriceDetails implements §4.12.
func (o *Orchestrator) GetPriceDetails(ctx context.Context, req DetailsRequest) (*PriceDetails, error) {
	canonical, targetDt, hasTarget, hasTime, err := validateDetailsRequest(req, o.clock)
	if err != nil {
		return nil, err
	}

	currentEntry, err := o.currentPrice(ctx, canonical, req)
	if err != nil {
		return nil, err
	}

	details := &PriceDetails{
		Symbol:                canonical,
		Name:                  currentEntry.Meta.Name,
		Type:                  currentEntry.Meta.Type,
		CurrentPrice:          currentEntry.Price,
		CurrentPriceTimestamp: currentEntry.Timestamp,
		CurrentOpen:           currentEntry.Open,
		PreviousClose:         currentEntry.PreviousClose,
		Provider:              currentEntry.Source,
	}

	if hasTarget {
		hp, hts, hdate, herr := o.historicalPrice(ctx, canonical, targetDt, hasTime, req)
		if herr == nil && hp != nil {
			details.HistoricalPrice = hp
			details.HistoricalPriceTimestamp = hts
			details.HistoricalPriceDate = hdate
		} else {
			// (f) fall back to current price.
			o.logger.Debug().Str("symbol", canonical).Err(herr).Msg("price details falling back to current price for historical target")
			cp := currentEntry.Price
			details.HistoricalPrice = &cp
			details.HistoricalPriceTimestamp = currentEntry.Timestamp
			details.HistoricalPriceDate = req.Date
		}
	}

	return details, nil
}

func validateDetailsRequest(req DetailsRequest, c clock.Clock) (canonical string, targetDt time.Time, hasTarget bool, hasTime bool, err error) {
	if req.Symbol == "" {
		return "", time.Time{}, false, false, coreerr.New(coreerr.Validation, "symbol is required")
	}
	canonical = symbols.Normalise(req.Symbol)

	if req.Date == "" {
		return canonical, time.Time{}, false, false, nil
	}
	d, derr := time.Parse("2006-01-02", req.Date)
	if derr != nil {
		return "", time.Time{}, false, false, coreerr.New(coreerr.Validation, "date must be YYYY-MM-DD")
	}

	if req.Time == "" {
		targetDt = time.Date(d.Year(), d.Month(), d.Day(), 16, 0, 0, 0, time.UTC)
		return canonical, targetDt, true, false, nil
	}

	tod, terr := time.Parse("15:04", req.Time)
	if terr != nil {
		return "", time.Time{}, false, false, coreerr.New(coreerr.Validation, "time must be HH:MM")
	}
	targetDt = time.Date(d.Year(), d.Month(), d.Day(), tod.Hour(), tod.Minute(), 0, 0, time.UTC)
	return canonical, targetDt, true, true, nil
}

func (o *Orchestrator) currentPrice(ctx context.Context, canonical string, req DetailsRequest) (domain.QuoteEntry, error) {
	entry, err := o.quotes.GetQuote(ctx, canonical, QuoteOptions{PreferOracle: req.PreferOracle, ExpectedName: req.ExpectedName})
	if err == nil && entry.Valid() {
		return entry, nil
	}
	if o.csv != nil {
		if series, cerr := o.csv.FetchDailySeries(ctx, canonical); cerr == nil && len(series) > 0 {
			last := series[len(series)-1]
			return domain.QuoteEntry{
				Source:    "csv",
				Price:     last.Close,
				Timestamp: o.clock.Now().UTC().Format(time.RFC3339),
			}, nil
		}
	}
	return domain.QuoteEntry{}, coreerr.New(coreerr.NotFound, "no current price available")
}

// historicalPrice tries, in order, until one yields a finite value:
// (a) intraday within lookback, (b) daily via primary chart, (c) CSV
// daily, (d) LLM oracle historical (if preferOracle), (e) range-selected
// primary chart. The caller applies fallback (f).
func (o *Orchestrator) historicalPrice(ctx context.Context, canonical string, targetDt time.Time, hasTime bool, req DetailsRequest) (*float64, string, string, error) {
	now := o.clock.Now()
	diff := now.Sub(targetDt)
	if diff < 0 {
		diff = -diff
	}

	if hasTime && diff <= o.intradayLookback {
		if series, err := o.history.GetIntradaySeries(ctx, canonical); err == nil {
			if p, ok := domain.FindClosest(series, targetDt); ok {
				price := p.Close
				return &price, p.Timestamp, targetDt.Format("2006-01-02"), nil
			}
		}
		o.logger.Debug().Str("symbol", canonical).Msg("historical price falling back from intraday to daily series")
	}

	if series, err := o.history.GetDailySeries(ctx, canonical); err == nil {
		if p, ok := domain.FindClosestDaily(series, targetDt); ok {
			price := p.Close
			ts := fmt.Sprintf("%sT16:00:00Z", p.Date)
			return &price, ts, targetDt.Format("2006-01-02"), nil
		}
	}
	o.logger.Debug().Str("symbol", canonical).Msg("historical price falling back from daily series to csv")

	if o.csv != nil {
		if series, err := o.csv.FetchDailySeries(ctx, canonical); err == nil {
			if p, ok := domain.FindClosestDaily(series, targetDt); ok {
				price := p.Close
				ts := fmt.Sprintf("%sT16:00:00Z", p.Date)
				return &price, ts, targetDt.Format("2006-01-02"), nil
			}
		}
	}

	if req.PreferOracle && o.oracleHist != nil {
		o.logger.Debug().Str("symbol", canonical).Msg("historical price falling back to llm oracle")
		if e, err := o.oracleHist.OracleHistoricalPrice(ctx, canonical, targetDt.Format("2006-01-02")); err == nil && e.Valid() {
			price := e.Price
			return &price, e.Timestamp, targetDt.Format("2006-01-02"), nil
		}
	}

	rng, interval := rangeFor(diff, hasTime)
	o.logger.Debug().Str("symbol", canonical).Str("range", rng).Str("interval", interval).Msg("historical price falling back to range-selected chart")
	if series, err := o.history.GetRangeSeries(ctx, canonical, rng, interval); err == nil {
		if p, ok := domain.FindClosest(series, targetDt); ok {
			price := p.Close
			return &price, p.Timestamp, targetDt.Format("2006-01-02"), nil
		}
	}

	o.logger.Warn().Str("symbol", canonical).Msg("no historical price available after exhausting fallback chain")
	return nil, "", "", coreerr.New(coreerr.NotFound, "no historical price available")
}

// rangeFor implements the §4.12 step (e) range-selection table.
func rangeFor(diff time.Duration, hasTime bool) (rng, interval string) {
	switch {
	case hasTime && diff <= 5*24*time.Hour:
		return "5d", "5m"
	case diff <= 30*24*time.Hour:
		return "1mo", "1d"
	case diff <= 365*24*time.Hour:
		return "1y", "1d"
	case diff <= 5*365*24*time.Hour:
		return "5y", "1wk"
	default:
		return "max", "1mo"
	}
}
