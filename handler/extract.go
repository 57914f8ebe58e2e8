package handler

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/auth"
	"github.com/quietridge/copilot-core/coreerr"
	"github.com/quietridge/copilot-core/llm"
	"github.com/quietridge/copilot-core/quota"
)

type extractRequest struct {
	FileURL    string     `json:"file_url"`
	JSONSchema llm.Schema `json:"json_schema"`
}

const extractSystemInstruction = "Extract structured data from the document text below, matching the requested schema exactly."

// ExtractHandler serves POST /api/extract: it resolves file_url against the
// UploadStore, hands the document body to the LLM Invocation Layer as
// prompt content constrained by json_schema, and removes the upload on
// completion either way.
type ExtractHandler struct {
	logger zerolog.Logger
	store  *UploadStore
	invoke *llm.InvocationLayer
	quota  *quota.Gate
}

// NewExtractHandler builds an ExtractHandler.
func NewExtractHandler(logger zerolog.Logger, store *UploadStore, invoke *llm.InvocationLayer, gate *quota.Gate) *ExtractHandler {
	return &ExtractHandler{logger: logger, store: store, invoke: invoke, quota: gate}
}

// Extract implements POST /api/extract.
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(h.logger, w, coreerr.New(coreerr.Unauthenticated, "missing user context"))
		return
	}

	var req extractRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(h.logger, w, err)
		return
	}
	if req.FileURL == "" || req.JSONSchema == nil {
		writeError(h.logger, w, coreerr.New(coreerr.Validation, "file_url and json_schema are required"))
		return
	}

	id := strings.TrimPrefix(req.FileURL, "upload://")
	if !h.store.Has(user.ID, id) {
		writeError(h.logger, w, coreerr.New(coreerr.NotFound, "unknown or already-consumed file_url"))
		return
	}

	if err := h.quota.AssertWithinQuota(r.Context(), user.ID, user.Tier, quota.Delta{InsightDelta: 1}); err != nil {
		writeError(h.logger, w, err)
		return
	}

	_, data, ok := h.store.Take(user.ID, id)
	if !ok {
		writeError(h.logger, w, coreerr.New(coreerr.NotFound, "unknown or already-consumed file_url"))
		return
	}

	result, err := h.invoke.Invoke(r.Context(), llm.InvokeRequest{
		Prompt:         string(data),
		Schema:         req.JSONSchema,
		SystemOverride: extractSystemInstruction,
	})
	if err != nil {
		writeError(h.logger, w, err)
		return
	}

	if !result.Cached {
		if err := h.quota.Consume(r.Context(), user.ID, user.Tier, quota.Delta{InsightDelta: 1}); err != nil {
			writeError(h.logger, w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "output": result.Result})
}
