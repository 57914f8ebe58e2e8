package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/auth"
	"github.com/quietridge/copilot-core/coreerr"
	"github.com/quietridge/copilot-core/market"
	"github.com/quietridge/copilot-core/quota"
)

type detailsRequest struct {
	Symbol       string `json:"symbol"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	PreferOpenAI bool   `json:"prefer_openai"`
	ExpectedName string `json:"expected_name"`
}

// DetailsHandler serves POST /api/prices/details.
type DetailsHandler struct {
	logger       zerolog.Logger
	orchestrator *market.Orchestrator
	quota        *quota.Gate
}

// NewDetailsHandler builds a DetailsHandler.
func NewDetailsHandler(logger zerolog.Logger, orchestrator *market.Orchestrator, gate *quota.Gate) *DetailsHandler {
	return &DetailsHandler{logger: logger, orchestrator: orchestrator, quota: gate}
}

// Details implements POST /api/prices/details (§4.12).
func (h *DetailsHandler) Details(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(h.logger, w, coreerr.New(coreerr.Unauthenticated, "missing user context"))
		return
	}

	var req detailsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(h.logger, w, err)
		return
	}

	if err := h.quota.AssertWithinQuota(r.Context(), user.ID, user.Tier, quota.Delta{QuoteDelta: 1}); err != nil {
		writeError(h.logger, w, err)
		return
	}

	details, err := h.orchestrator.GetPriceDetails(r.Context(), market.DetailsRequest{
		Symbol:       req.Symbol,
		Date:         req.Date,
		Time:         req.Time,
		PreferOracle: req.PreferOpenAI,
		ExpectedName: req.ExpectedName,
	})
	if err != nil {
		writeError(h.logger, w, err)
		return
	}

	if err := h.quota.Consume(r.Context(), user.ID, user.Tier, quota.Delta{QuoteDelta: 1}); err != nil {
		writeError(h.logger, w, err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}
