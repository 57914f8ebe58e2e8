// Package quota implements the Quota Gate (§4.13 collaborators, table row
// 15): a pre-check against a per-user monthly counter followed by a
// transactional consume, fronting the external Usage Counter collaborator
// the core treats as opaque persistence.
package quota

import (
	"context"

	"github.com/quietridge/copilot-core/coreerr"
)

// Usage carries the counter fields of the external Usage Counter document
// (userId, llmCalls, priceRequests, uploads); the period bounds are not
// modelled here.
type Usage struct {
	UserID        string
	LLMCalls      int
	PriceRequests int
	Uploads       int
}

// Limits are the per-tier caps returned by tierLimits(tier).
type Limits struct {
	LLMCalls      int
	PriceRequests int
	Uploads       int
}

// Delta is what a successful operation consumes: {insightDelta,
// quoteDelta, uploadDelta} per §3.
type Delta struct {
	InsightDelta int
	QuoteDelta   int
	UploadDelta  int
}

// Store is the external collaborator: read, assertWithinQuota's inputs,
// and the transactional consume. The core never touches the underlying
// document store directly — Store is the only seam. ConsumeUsage is the
// operation that must provide the §8 monotonicity guarantee ("consume
// never decreases counters; concurrent consume calls never admit past the
// limit") — it is expected to apply delta and enforce tier's limit as one
// atomic conditional update (e.g. a single `UPDATE ... WHERE counter +
// delta <= limit` statement), not a separate read-then-write.
type Store interface {
	GetUsage(ctx context.Context, userID string) (Usage, error)
	TierLimits(ctx context.Context, tier string) (Limits, error)
	ConsumeUsage(ctx context.Context, userID, tier string, delta Delta) error
}

// RejectionRecorder is the small metrics seam AssertWithinQuota reports
// rejections through, kept as an interface so quota never has to import
// the metrics package directly.
type RejectionRecorder interface {
	RecordQuotaRejection(tier string)
}

// Gate is the Quota Gate: AssertWithinQuota before doing any external
// work, Consume only after a successful delivery.
type Gate struct {
	store   Store
	metrics RejectionRecorder
}

// NewGate builds a Gate over a Store implementation.
func NewGate(store Store) *Gate {
	return &Gate{store: store}
}

// WithMetrics attaches a RejectionRecorder and returns the same Gate, for
// constructor-chaining in main's wiring.
func (g *Gate) WithMetrics(m RejectionRecorder) *Gate {
	g.metrics = m
	return g
}

// AssertWithinQuota implements the pre-check steps scattered through §4
// (e.g. "priceRequests + 1 ≤ limits.quotes", "priceRequests + uniqueCount
// ≤ limits.quotes"). It never mutates state — it is read-only, so a
// rejected request issues zero external calls.
func (g *Gate) AssertWithinQuota(ctx context.Context, userID, tier string, delta Delta) error {
	usage, err := g.store.GetUsage(ctx, userID)
	if err != nil {
		return err
	}
	limits, err := g.store.TierLimits(ctx, tier)
	if err != nil {
		return err
	}

	if delta.InsightDelta > 0 && usage.LLMCalls+delta.InsightDelta > limits.LLMCalls {
		g.reject(tier)
		return coreerr.New(coreerr.QuotaExceeded, "LLM invocation quota exceeded")
	}
	if delta.QuoteDelta > 0 && usage.PriceRequests+delta.QuoteDelta > limits.PriceRequests {
		g.reject(tier)
		return coreerr.New(coreerr.QuotaExceeded, "price data quota exceeded")
	}
	if delta.UploadDelta > 0 && usage.Uploads+delta.UploadDelta > limits.Uploads {
		g.reject(tier)
		return coreerr.New(coreerr.QuotaExceeded, "upload quota exceeded")
	}
	return nil
}

func (g *Gate) reject(tier string) {
	if g.metrics != nil {
		g.metrics.RecordQuotaRejection(tier)
	}
}

// Consume records delta against userID's counters, under tier's limit.
// Callers invoke this only after the guarded operation has actually
// succeeded — a failed provider call must never advance the counter. This
// is the authoritative enforcement point: AssertWithinQuota is an
// early-exit optimization so a request already over quota skips the
// expensive provider work entirely, but it is Store.ConsumeUsage's atomic
// conditional update that actually guarantees §8's concurrency property.
func (g *Gate) Consume(ctx context.Context, userID, tier string, delta Delta) error {
	return g.store.ConsumeUsage(ctx, userID, tier, delta)
}
