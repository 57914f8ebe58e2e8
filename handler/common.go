// Package handler implements the HTTP surface (§6/§7) over the Market Data
// Resolution & Caching Layer and the LLM Invocation Layer: JSON decode/encode
// around the core operations, quota gating, and coreerr-to-status mapping.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/coreerr"
)

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and a sanitised body per §7. A
// BadModelOutput error additionally surfaces the raw model text for
// diagnosis, as spec.md §7 requires.
func writeError(logger zerolog.Logger, w http.ResponseWriter, err error) {
	ce, ok := coreerr.As(err)
	if !ok {
		logger.Error().Err(err).Msg("unclassified error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	logger.Warn().Str("kind", string(ce.Kind)).Str("provider", ce.Provider).Msg(ce.SanitizedMessage())

	body := map[string]any{"error": ce.SanitizedMessage()}
	if ce.Kind == coreerr.BadModelOutput {
		body["raw"] = coreerr.Sanitize(ce.Raw)
	}
	writeJSON(w, ce.Status(), body)
}

// decodeJSON decodes the request body into v, returning a Validation error
// on malformed JSON.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return coreerr.New(coreerr.Validation, "malformed JSON body")
	}
	return nil
}
