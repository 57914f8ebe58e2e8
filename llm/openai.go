package llm

import (
	"context"
	"encoding/json"

	"github.com/quietridge/copilot-core/coreerr"
	"github.com/quietridge/copilot-core/fetch"
)

const openAIProviderName = "openai"

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	TopP           float64         `json:"top_p"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat json.RawMessage `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// OpenAIProvider is the primary LLM connector, adapted from the teacher's
// provider/openai.go HTTP-call shape and generalized onto the shared
// fetch.Fetcher instead of a private *http.Client.
type OpenAIProvider struct {
	fetcher   *fetch.Fetcher
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
}

// NewOpenAIProvider builds an OpenAIProvider. baseURL defaults to the
// public OpenAI API when empty.
func NewOpenAIProvider(f *fetch.Fetcher, baseURL, apiKey, model string, maxTokens int) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{fetcher: f, baseURL: baseURL, apiKey: apiKey, model: model, maxTokens: maxTokens}
}

func (p *OpenAIProvider) Name() string { return openAIProviderName }

// Invoke sends a chat completion request, requesting a json_schema
// response format when req.Schema is set.
func (p *OpenAIProvider) Invoke(ctx context.Context, req ChatRequest) (ChatResult, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	body := openAIRequest{
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

	var resp openAIResponse
	opts := fetch.Options{
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + p.apiKey,
		},
		DeadlineMs: 60000,
	}
	if err := p.fetcher.FetchJSON(ctx, "POST", p.baseURL+"/chat/completions", bytesReader(payload), opts, &resp); err != nil {
		return ChatResult{}, rewriteUnauthenticated(err, openAIProviderName)
	}
	if len(resp.Choices) == 0 {
		return ChatResult{}, coreerr.New(coreerr.BadModelOutput, "provider returned no choices").WithProvider(openAIProviderName)
	}

	text := resp.Choices[0].Message.Content
	if req.Schema != nil {
		return ChatResult{StructJSON: text}, nil
	}
	return ChatResult{Text: text}, nil
}
