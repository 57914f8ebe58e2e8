package quota

import (
	"context"
	"sync"
	"testing"

	"github.com/quietridge/copilot-core/coreerr"
)

// memStore is a simple mutex-guarded fake of the external Usage Counter,
// grounded on the teacher's metering.ReservationStore locking pattern, used
// here only to exercise Gate's pre-check/consume contract in tests.
type memStore struct {
	mu     sync.Mutex
	usage  map[string]Usage
	limits Limits
}

func newMemStore(limits Limits) *memStore {
	return &memStore{usage: make(map[string]Usage), limits: limits}
}

func (s *memStore) GetUsage(ctx context.Context, userID string) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage[userID], nil
}

func (s *memStore) TierLimits(ctx context.Context, tier string) (Limits, error) {
	return s.limits, nil
}

// ConsumeUsage applies delta atomically under its own lock, rejecting the
// update (and leaving counters unchanged) if it would exceed the tier's
// limit — the same conditional-update guarantee a real document store's
// ConsumeUsage is expected to provide.
func (s *memStore) ConsumeUsage(ctx context.Context, userID, tier string, delta Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.usage[userID]
	if delta.QuoteDelta > 0 && u.PriceRequests+delta.QuoteDelta > s.limits.PriceRequests {
		return coreerr.New(coreerr.QuotaExceeded, "price data quota exceeded")
	}
	if delta.InsightDelta > 0 && u.LLMCalls+delta.InsightDelta > s.limits.LLMCalls {
		return coreerr.New(coreerr.QuotaExceeded, "LLM invocation quota exceeded")
	}
	if delta.UploadDelta > 0 && u.Uploads+delta.UploadDelta > s.limits.Uploads {
		return coreerr.New(coreerr.QuotaExceeded, "upload quota exceeded")
	}
	u.UserID = userID
	u.LLMCalls += delta.InsightDelta
	u.PriceRequests += delta.QuoteDelta
	u.Uploads += delta.UploadDelta
	s.usage[userID] = u
	return nil
}

func TestAssertWithinQuotaRejectsOverLimit(t *testing.T) {
	store := newMemStore(Limits{PriceRequests: 2})
	store.usage["u1"] = Usage{UserID: "u1", PriceRequests: 2}
	gate := NewGate(store)

	err := gate.AssertWithinQuota(context.Background(), "u1", "free", Delta{QuoteDelta: 1})
	if err == nil {
		t.Fatal("expected quota error, got nil")
	}
	ce, ok := coreerr.As(err)
	if !ok || ce.Kind != coreerr.QuotaExceeded {
		t.Fatalf("expected QuotaExceeded, got %v", err)
	}
}

func TestAssertWithinQuotaAllowsAtLimit(t *testing.T) {
	store := newMemStore(Limits{PriceRequests: 2})
	store.usage["u1"] = Usage{UserID: "u1", PriceRequests: 1}
	gate := NewGate(store)

	if err := gate.AssertWithinQuota(context.Background(), "u1", "free", Delta{QuoteDelta: 1}); err != nil {
		t.Fatalf("expected quota to allow exactly-at-limit request, got %v", err)
	}
}

func TestConsumeNeverExceedsLimitUnderConcurrency(t *testing.T) {
	limit := 50
	store := newMemStore(Limits{PriceRequests: limit})
	gate := NewGate(store)

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = gate.Consume(context.Background(), "u1", "free", Delta{QuoteDelta: 1})
		}()
	}
	wg.Wait()

	usage, _ := store.GetUsage(context.Background(), "u1")
	if usage.PriceRequests > limit {
		t.Fatalf("consume exceeded limit: got %d, limit %d", usage.PriceRequests, limit)
	}
}
