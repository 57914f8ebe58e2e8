package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/auth"
	"github.com/quietridge/copilot-core/coreerr"
	"github.com/quietridge/copilot-core/llm"
	"github.com/quietridge/copilot-core/quota"
)

type invokeLLMRequest struct {
	Prompt                  string         `json:"prompt"`
	ResponseJSONSchema      llm.Schema     `json:"response_json_schema"`
	SystemInstruction       string         `json:"system_instruction"`
	AddContextFromInternet  bool           `json:"add_context_from_internet"`
}

// InvokeLLMHandler serves POST /api/invoke-llm.
type InvokeLLMHandler struct {
	logger zerolog.Logger
	invoke *llm.InvocationLayer
	quota  *quota.Gate
}

// NewInvokeLLMHandler builds an InvokeLLMHandler.
func NewInvokeLLMHandler(logger zerolog.Logger, invoke *llm.InvocationLayer, gate *quota.Gate) *InvokeLLMHandler {
	return &InvokeLLMHandler{logger: logger, invoke: invoke, quota: gate}
}

// Invoke implements POST /api/invoke-llm (§4.11).
func (h *InvokeLLMHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(h.logger, w, coreerr.New(coreerr.Unauthenticated, "missing user context"))
		return
	}

	var req invokeLLMRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(h.logger, w, err)
		return
	}
	if req.Prompt == "" {
		writeError(h.logger, w, coreerr.New(coreerr.Validation, "prompt is required"))
		return
	}

	if err := h.quota.AssertWithinQuota(r.Context(), user.ID, user.Tier, quota.Delta{InsightDelta: 1}); err != nil {
		writeError(h.logger, w, err)
		return
	}

	result, err := h.invoke.Invoke(r.Context(), llm.InvokeRequest{
		Prompt:         req.Prompt,
		Schema:         req.ResponseJSONSchema,
		SystemOverride: req.SystemInstruction,
		ContextFlag:    req.AddContextFromInternet,
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

	writeJSON(w, http.StatusOK, map[string]any{
		"result": result.Result,
		"meta": map[string]any{
			"cached":   result.Cached,
			"ageMs":    result.AgeMs,
			"provider": result.Provider,
		},
	})
}
