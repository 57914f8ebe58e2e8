package llm

import (
	"context"
	"encoding/json"

	"github.com/quietridge/copilot-core/coreerr"
	"github.com/quietridge/copilot-core/fetch"
)

const openRouterProviderName = "openrouter"

type openRouterRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	TopP           float64         `json:"top_p"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat json.RawMessage `json:"response_format,omitempty"`
}

type openRouterResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// OpenRouterProvider is the secondary LLM connector, adapted from the
// teacher's provider/together.go adapter-over-OpenAI-format shape. Unlike
// together.go it shares this package's consistent ChatRequest/ChatResult
// types rather than a parallel set of request/response structs.
type OpenRouterProvider struct {
	fetcher     *fetch.Fetcher
	baseURL     string
	apiKey      string
	model       string
	siteURL     string
	siteName    string
	timeoutMs   int64
}

// NewOpenRouterProvider builds an OpenRouterProvider. baseURL defaults to
// the public OpenRouter API when empty; timeoutMs defaults to 15s.
func NewOpenRouterProvider(f *fetch.Fetcher, baseURL, apiKey, model, siteURL, siteName string, timeoutMs int64) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	if timeoutMs == 0 {
		timeoutMs = 15000
	}
	return &OpenRouterProvider{
		fetcher:   f,
		baseURL:   baseURL,
		apiKey:    apiKey,
		model:     model,
		siteURL:   siteURL,
		siteName:  siteName,
		timeoutMs: timeoutMs,
	}
}

func (p *OpenRouterProvider) Name() string { return openRouterProviderName }

// Invoke honours its own (shorter) timeout, separate from the primary
// provider's, per §4.11's "separate timeout (≈15s) using a cancellation
// token" note.
func (p *OpenRouterProvider) Invoke(ctx context.Context, req ChatRequest) (ChatResult, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	body := openRouterRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
	}
	if req.Schema != nil {
		rf, err := json.Marshal(map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "structured_output",
				"schema": req.Schema,
				"strict": true,
			},
		})
		if err != nil {
			return ChatResult{}, coreerr.Newf(coreerr.ProviderError, "marshal response_format: %v", err)
		}
		body.ResponseFormat = rf
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return ChatResult{}, coreerr.Newf(coreerr.ProviderError, "marshal request: %v", err)
	}

	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + p.apiKey,
	}
	if p.siteURL != "" {
		headers["HTTP-Referer"] = p.siteURL
	}
	if p.siteName != "" {
		headers["X-Title"] = p.siteName
	}

	var resp openRouterResponse
	opts := fetch.Options{Headers: headers, DeadlineMs: p.timeoutMs}
	if err := p.fetcher.FetchJSON(ctx, "POST", p.baseURL+"/chat/completions", bytesReader(payload), opts, &resp); err != nil {
		if ce, ok := coreerr.As(err); ok && ce.Kind == coreerr.Timeout {
			return ChatResult{}, coreerr.New(coreerr.Timeout, "secondary provider deadline exceeded").WithProvider(openRouterProviderName)
		}
		return ChatResult{}, rewriteUnauthenticated(err, openRouterProviderName)
	}
	if len(resp.Choices) == 0 {
		return ChatResult{}, coreerr.New(coreerr.BadModelOutput, "provider returned no choices").WithProvider(openRouterProviderName)
	}

	text := resp.Choices[0].Message.Content
	if req.Schema != nil {
		return ChatResult{StructJSON: text}, nil
	}
	return ChatResult{Text: text}, nil
}
