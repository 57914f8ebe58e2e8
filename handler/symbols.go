package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/coreerr"
	"github.com/quietridge/copilot-core/market"
	"github.com/quietridge/copilot-core/symbols"
)

// symbolResult is one entry of GET /api/symbols/search's response array.
type symbolResult struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Exchange string `json:"exchange,omitempty"`
	Type     string `json:"type,omitempty"`
}

// SymbolsHandler serves GET /api/symbols/search.
type SymbolsHandler struct {
	logger zerolog.Logger
	search *market.SearchProvider
	dir    *symbols.Directory
}

// NewSymbolsHandler builds a SymbolsHandler.
func NewSymbolsHandler(logger zerolog.Logger, search *market.SearchProvider, dir *symbols.Directory) *SymbolsHandler {
	return &SymbolsHandler{logger: logger, search: search, dir: dir}
}

// Search implements GET /api/symbols/search?q=….
func (h *SymbolsHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(h.logger, w, coreerr.New(coreerr.Validation, "q is required"))
		return
	}

	candidates, err := h.search.Search(r.Context(), q)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}

	out := make([]symbolResult, 0, len(candidates))
	for _, c := range candidates {
		res := symbolResult{Symbol: c.Symbol, Name: c.Name, Exchange: c.Exchange}
		if meta, ok := h.dir.Lookup(c.Symbol); ok {
			res.Type = string(meta.Class)
		}
		out = append(out, res)
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbols": out})
}
