package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"context"

	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/cache"
	"github.com/quietridge/copilot-core/clock"
	"github.com/quietridge/copilot-core/coreerr"
	"github.com/quietridge/copilot-core/flight"
)

const (
	defaultSystemPrompt = "You are a careful financial-data assistant. Be concise and factual."
	contextAdvisory     = "You may use general knowledge of current events and markets as of today to inform your answer."

	invokeFlightMapName = "llm_invocation"
)

// FlightRecorder is the small metrics seam Invoke reports coalesced calls
// through, kept as an interface so llm never has to import the metrics
// package's concrete Registry.
type FlightRecorder interface {
	RecordFlightCoalesced(mapName string)
}

// InvokeRequest is the §4.11 invoke() input.
type InvokeRequest struct {
	Prompt         string
	Schema         Schema
	SystemOverride string
	ContextFlag    bool
}

// InvokeResult is the §4.11 invoke() output, including cache provenance.
type InvokeResult struct {
	Result   any
	Provider string
	Cached   bool
	AgeMs    int64
}

type cachedInvocation struct {
	result   any
	provider string
}

// InvocationLayer is the LLM Invocation Layer.
type InvocationLayer struct {
	primary        Provider // OpenAI-style
	secondary      Provider // OpenRouter-style
	systemPrompt   string
	maxTokens      int
	cache          *cache.Cache[cachedInvocation]
	flight         flight.Group[cachedInvocation]
	logger         zerolog.Logger
	metrics        FlightRecorder
}

// NewInvocationLayer builds an InvocationLayer. Either primary or secondary
// may be nil; Invoke fails with Config only if both are nil. metrics may be
// nil (e.g. in tests); when set, it is told about coalesced Acquire calls.
func NewInvocationLayer(primary, secondary Provider, systemPrompt string, maxTokens int, cacheTTLMs int64, cacheMaxEntries int, logger zerolog.Logger, metrics FlightRecorder) *InvocationLayer {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	return &InvocationLayer{
		primary:      primary,
		secondary:    secondary,
		systemPrompt: systemPrompt,
		maxTokens:    maxTokens,
		cache:        cache.New[cachedInvocation](cacheMaxEntries, cacheTTLMs),
		logger:       logger,
		metrics:      metrics,
	}
}

// CacheStats exposes the invocation cache's counters for metrics.
func (l *InvocationLayer) CacheStats() cache.Stats { return l.cache.Stats() }

// Invoke implements the §4.11 state machine.
func (l *InvocationLayer) Invoke(ctx context.Context, req InvokeRequest) (InvokeResult, error) {
	if l.primary == nil && l.secondary == nil {
		return InvokeResult{}, coreerr.New(coreerr.Config, "no LLM provider configured")
	}

	key := cacheKey(req)
	if e, ok := l.cache.GetFresh(key); ok {
		return InvokeResult{
			Result:   e.Value.result,
			Provider: e.Value.provider,
			Cached:   true,
			AgeMs:    clock.Default.NowMs() - e.FetchedAt,
		}, nil
	}

	messages := buildMessages(l.systemPrompt, req)
	entry, err, shared := l.flight.Acquire(key, func() (cachedInvocation, error) {
		return l.dispatch(ctx, messages, req)
	})
	if shared && l.metrics != nil {
		l.metrics.RecordFlightCoalesced(invokeFlightMapName)
	}
	if err != nil {
		return InvokeResult{}, err
	}
	l.cache.Put(key, entry)
	return InvokeResult{Result: entry.result, Provider: entry.provider}, nil
}

// buildMessages implements §4.11 step 1.
func buildMessages(systemPrompt string, req InvokeRequest) []ChatMessage {
	sys := systemPrompt
	if req.SystemOverride != "" {
		sys = sys + "\n" + req.SystemOverride
	}
	if req.ContextFlag {
		sys = sys + "\n" + contextAdvisory
	}
	return []ChatMessage{
		{Role: "system", Content: sys},
		{Role: "user", Content: req.Prompt},
	}
}

// dispatch implements §4.11 steps 4-7: ordered fallback, option application,
// response extraction and JSON repair.
func (l *InvocationLayer) dispatch(ctx context.Context, messages []ChatMessage, req InvokeRequest) (cachedInvocation, error) {
	chatReq := ChatRequest{
		Messages:    messages,
		Temperature: 0.2,
		TopP:        0.8,
		MaxTokens:   l.maxTokens,
		Schema:      req.Schema,
	}

	order := l.providerOrder()
	var lastErr error
	for _, p := range order {
		res, err := p.Invoke(ctx, chatReq)
		if err != nil {
			lastErr = err
			l.logger.Warn().Str("provider", p.Name()).Err(err).Msg("llm provider failed, demoting to next")
			continue
		}
		parsed, perr := l.extract(res, req.Schema)
		if perr != nil {
			return cachedInvocation{}, perr
		}
		return cachedInvocation{result: parsed, provider: p.Name()}, nil
	}
	if lastErr != nil {
		return cachedInvocation{}, lastErr
	}
	return cachedInvocation{}, coreerr.New(coreerr.Config, "no LLM provider configured")
}

func (l *InvocationLayer) providerOrder() []Provider {
	var order []Provider
	if l.secondary != nil {
		order = append(order, l.secondary)
	}
	if l.primary != nil {
		order = append(order, l.primary)
	}
	return order
}

// extract implements §4.11 step 6-7.
func (l *InvocationLayer) extract(res ChatResult, schema Schema) (any, error) {
	if schema != nil {
		var out any
		if err := repairJSON(res.StructJSON, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	return res.Text, nil
}

// cacheKey builds a stable key over (prompt, schema, systemOverride,
// contextFlag) per §4.11 step 2.
func cacheKey(req InvokeRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%v\x00", req.Prompt, req.SystemOverride, req.ContextFlag)
	if req.Schema != nil {
		b, _ := json.Marshal(req.Schema)
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}
