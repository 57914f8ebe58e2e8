package llm

import (
	"context"
	"math"
	"time"

	"github.com/quietridge/copilot-core/clock"
	"github.com/quietridge/copilot-core/coreerr"
	"github.com/quietridge/copilot-core/domain"
)

const oracleSystemPrompt = "Respond with compact JSON only. Do not include any explanation or markdown."

var priceSchema = Schema{
	"type": "object",
	"properties": map[string]any{
		"price":    map[string]any{"type": "number"},
		"currency": map[string]any{"type": "string"},
		"date":     map[string]any{"type": "string"},
	},
	"required": []string{"price", "currency"},
}

type priceShape struct {
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	Date     string  `json:"date"`
}

// Oracle is the LLM Oracle (§4.9), satisfying market.OracleQuoter and
// market.OracleHistoricalQuoter structurally without importing market.
type Oracle struct {
	invoke *InvocationLayer
	clock  clock.Clock
}

// NewOracle builds an Oracle over an already-configured InvocationLayer.
func NewOracle(invoke *InvocationLayer) *Oracle {
	return &Oracle{invoke: invoke, clock: clock.Default}
}

// OracleCurrentPrice implements market.OracleQuoter.
func (o *Oracle) OracleCurrentPrice(ctx context.Context, canonical string) (domain.QuoteEntry, error) {
	prompt := "What is the current market price of " + canonical + "? Respond as JSON: {\"price\": number, \"currency\": string}."
	p, err := o.ask(ctx, prompt)
	if err != nil {
		return domain.QuoteEntry{}, err
	}
	return domain.QuoteEntry{
		Source:    "llm_oracle",
		Price:     p.Price,
		Currency:  p.Currency,
		Timestamp: o.clock.Now().UTC().Format(time.RFC3339),
	}, nil
}

// OracleHistoricalPrice implements market.OracleHistoricalQuoter.
func (o *Oracle) OracleHistoricalPrice(ctx context.Context, canonical, isoDate string) (domain.QuoteEntry, error) {
	prompt := "What was the closing market price of " + canonical + " on " + isoDate +
		"? Respond as JSON: {\"price\": number, \"currency\": string, \"date\": string}."
	p, err := o.ask(ctx, prompt)
	if err != nil {
		return domain.QuoteEntry{}, err
	}
	return domain.QuoteEntry{
		Source:    "llm_oracle",
		Price:     p.Price,
		Currency:  p.Currency,
		Timestamp: isoDate + "T16:00:00Z",
	}, nil
}

func (o *Oracle) ask(ctx context.Context, prompt string) (priceShape, error) {
	res, err := o.invoke.Invoke(ctx, InvokeRequest{
		Prompt:         prompt,
		Schema:         priceSchema,
		SystemOverride: oracleSystemPrompt,
	})
	if err != nil {
		return priceShape{}, err
	}

	m, ok := res.Result.(map[string]any)
	if !ok {
		return priceShape{}, coreerr.New(coreerr.BadModelOutput, "oracle response was not a JSON object")
	}
	price, _ := m["price"].(float64)
	currency, _ := m["currency"].(string)
	date, _ := m["date"].(string)
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return priceShape{}, coreerr.New(coreerr.BadModelOutput, "oracle price was not finite and positive")
	}
	return priceShape{Price: price, Currency: currency, Date: date}, nil
}
