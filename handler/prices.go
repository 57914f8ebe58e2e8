package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/auth"
	"github.com/quietridge/copilot-core/coreerr"
	"github.com/quietridge/copilot-core/domain"
	"github.com/quietridge/copilot-core/market"
	"github.com/quietridge/copilot-core/quota"
)

type pricesRequest struct {
	Symbols []string `json:"symbols"`
}

// quoteView is one entry of POST /api/prices's data map.
type quoteView struct {
	Price         float64  `json:"price"`
	PreviousClose *float64 `json:"previousClose,omitempty"`
	Open          *float64 `json:"open,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	Exchange      string   `json:"exchange,omitempty"`
	Timestamp     string   `json:"timestamp"`
	Stale         bool     `json:"stale,omitempty"`
}

// PricesHandler serves POST /api/prices.
type PricesHandler struct {
	logger       zerolog.Logger
	orchestrator *market.Orchestrator
	quota        *quota.Gate
	maxSymbols   int
}

// NewPricesHandler builds a PricesHandler.
func NewPricesHandler(logger zerolog.Logger, orchestrator *market.Orchestrator, gate *quota.Gate, maxSymbols int) *PricesHandler {
	return &PricesHandler{logger: logger, orchestrator: orchestrator, quota: gate, maxSymbols: maxSymbols}
}

// Batch implements POST /api/prices (§4.13).
func (h *PricesHandler) Batch(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(h.logger, w, coreerr.New(coreerr.Unauthenticated, "missing user context"))
		return
	}

	var req pricesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(h.logger, w, err)
		return
	}
	if len(req.Symbols) == 0 {
		writeError(h.logger, w, coreerr.New(coreerr.Validation, "symbols is required"))
		return
	}

	uniqueCount := len(market.DedupeSymbols(req.Symbols))
	if err := h.quota.AssertWithinQuota(r.Context(), user.ID, user.Tier, quota.Delta{QuoteDelta: uniqueCount}); err != nil {
		writeError(h.logger, w, err)
		return
	}

	resp, err := h.orchestrator.GetQuoteBatch(r.Context(), req.Symbols, h.maxSymbols, market.QuoteOptions{})
	if err != nil {
		writeError(h.logger, w, err)
		return
	}

	data := make(map[string]quoteView, len(resp.Data))
	delivered := 0
	for _, res := range resp.Data {
		if res.Quote == nil {
			continue
		}
		data[res.Symbol] = toQuoteView(*res.Quote)
		delivered++
	}

	if err := h.quota.Consume(r.Context(), user.ID, user.Tier, quota.Delta{QuoteDelta: delivered}); err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data, "meta": resp.Meta})
}

func toQuoteView(e domain.QuoteEntry) quoteView {
	return quoteView{
		Price:         e.Price,
		PreviousClose: e.PreviousClose,
		Open:          e.Open,
		Currency:      e.Currency,
		Exchange:      e.Exchange,
		Timestamp:     e.Timestamp,
		Stale:         e.Stale,
	}
}
