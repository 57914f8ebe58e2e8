package quota

import (
	"context"
	"sync"

	"github.com/quietridge/copilot-core/coreerr"
)

// MemoryStore is a process-local stand-in for the external Usage Counter
// document store (§1 Non-goals: the persistence driver itself is out of
// scope). It satisfies Store with a mutex-guarded map, giving ConsumeUsage
// the same atomic check-and-increment contract a real document store's
// conditional update would provide. Its counters are never reset: there is
// no monthly period rollover, so the limits apply to totals accumulated
// over the life of the process. Suitable for a single-replica
// deployment or tests; a multi-replica deployment needs a real transactional
// store behind the same interface.
type MemoryStore struct {
	mu     sync.Mutex
	usage  map[string]Usage
	limits map[string]Limits
}

// NewMemoryStore builds a MemoryStore seeded with per-tier limits.
func NewMemoryStore(limits map[string]Limits) *MemoryStore {
	return &MemoryStore{
		usage:  make(map[string]Usage),
		limits: limits,
	}
}

// GetUsage implements Store.
func (s *MemoryStore) GetUsage(ctx context.Context, userID string) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage[userID], nil
}

// TierLimits implements Store.
func (s *MemoryStore) TierLimits(ctx context.Context, tier string) (Limits, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limits[tier]
	if !ok {
		return Limits{}, coreerr.New(coreerr.Config, "unknown billing tier: "+tier)
	}
	return l, nil
}

// ConsumeUsage implements Store. It checks all three deltas against the
// tier's limits and applies them under a single critical section, so
// concurrent callers can never jointly overrun a limit.
func (s *MemoryStore) ConsumeUsage(ctx context.Context, userID, tier string, delta Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	limits, ok := s.limits[tier]
	if !ok {
		return coreerr.New(coreerr.Config, "unknown billing tier: "+tier)
	}
	u := s.usage[userID]

	if delta.InsightDelta > 0 && u.LLMCalls+delta.InsightDelta > limits.LLMCalls {
		return coreerr.New(coreerr.QuotaExceeded, "LLM invocation quota exceeded")
	}
	if delta.QuoteDelta > 0 && u.PriceRequests+delta.QuoteDelta > limits.PriceRequests {
		return coreerr.New(coreerr.QuotaExceeded, "price data quota exceeded")
	}
	if delta.UploadDelta > 0 && u.Uploads+delta.UploadDelta > limits.Uploads {
		return coreerr.New(coreerr.QuotaExceeded, "upload quota exceeded")
	}

	u.UserID = userID
	u.LLMCalls += delta.InsightDelta
	u.PriceRequests += delta.QuoteDelta
	u.Uploads += delta.UploadDelta
	s.usage[userID] = u
	return nil
}
