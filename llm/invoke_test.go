package llm

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/coreerr"
)

type fakeProvider struct {
	name   string
	result ChatResult
	err    error
	calls  int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Invoke(ctx context.Context, req ChatRequest) (ChatResult, error) {
	p.calls++
	return p.result, p.err
}

func TestInvokeDemotesToSecondaryThenPrimaryOnFailure(t *testing.T) {
	secondary := &fakeProvider{name: "secondary", err: coreerr.New(coreerr.ProviderError, "boom")}
	primary := &fakeProvider{name: "primary", result: ChatResult{Text: "ok"}}
	layer := NewInvocationLayer(primary, secondary, "", 100, 5*60*1000, 50, zerolog.Nop(), nil)

	res, err := layer.Invoke(context.Background(), InvokeRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Provider != "primary" || res.Result != "ok" {
		t.Fatalf("expected fallback to primary, got %+v", res)
	}
	if secondary.calls != 1 || primary.calls != 1 {
		t.Fatalf("expected exactly one call each, got secondary=%d primary=%d", secondary.calls, primary.calls)
	}
}

func TestInvokeCachesIdenticalRequests(t *testing.T) {
	secondary := &fakeProvider{name: "secondary", result: ChatResult{Text: "cached-answer"}}
	layer := NewInvocationLayer(nil, secondary, "", 100, 5*60*1000, 50, zerolog.Nop(), nil)

	req := InvokeRequest{Prompt: "same question"}
	first, err := layer.Invoke(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Cached {
		t.Fatal("first call should not be a cache hit")
	}

	second, err := layer.Invoke(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Cached {
		t.Fatal("second identical call should be a cache hit")
	}
	if secondary.calls != 1 {
		t.Fatalf("expected provider called exactly once, got %d", secondary.calls)
	}
}

func TestInvokeFailsConfigWhenNoProviderConfigured(t *testing.T) {
	layer := NewInvocationLayer(nil, nil, "", 100, 5*60*1000, 50, zerolog.Nop(), nil)
	_, err := layer.Invoke(context.Background(), InvokeRequest{Prompt: "hi"})
	ce, ok := coreerr.As(err)
	if !ok || ce.Kind != coreerr.Config {
		t.Fatalf("expected Config error, got %v", err)
	}
}

func TestInvokeRepairsStructuredJSON(t *testing.T) {
	secondary := &fakeProvider{name: "secondary", result: ChatResult{StructJSON: `{"price":1.5}`}}
	layer := NewInvocationLayer(nil, secondary, "", 100, 5*60*1000, 50, zerolog.Nop(), nil)

	res, err := layer.Invoke(context.Background(), InvokeRequest{Prompt: "price?", Schema: Schema{"type": "object"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := res.Result.(map[string]any)
	if !ok || m["price"].(float64) != 1.5 {
		t.Fatalf("unexpected result: %+v", res.Result)
	}
}
