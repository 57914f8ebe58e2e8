// Package llm implements the LLM Invocation Layer (§4.11): message
// building, a cache + single-flight guard, ordered provider fallback
// between an OpenRouter-style secondary and an OpenAI-style primary, and
// strict-then-loose JSON repair of structured output.
package llm

import (
	"context"
)

// ChatMessage is one OpenAI-compatible chat message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Schema is a json-schema object passed through to a provider's
// structured-output request, opaque to this package beyond being
// marshalled into the request body.
type Schema map[string]any

// ChatRequest is the normalised request every Provider accepts.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64
	TopP        float64
	MaxTokens   int
	Schema      Schema // non-nil requests a json_schema response format
}

// ChatResult is what a Provider hands back after extracting whatever text
// or structured content it could find in the raw response.
type ChatResult struct {
	Text       string // raw assistant text, when no schema was requested
	StructJSON string // raw JSON text of the extracted structured field, when a schema was requested
}

// Provider is the small interface both LLM connectors implement.
type Provider interface {
	Name() string
	Invoke(ctx context.Context, req ChatRequest) (ChatResult, error)
}
