// Package cooldown implements the Rate-Limit Flag from the data model: a
// process-wide, per-provider monotonic-ms deadline. Any goroutine may
// publish a later deadline; readers always compare against the current
// clock reading. Implemented as an atomic.Int64 per provider name, as the
// design notes prescribe ("readers compare, writers publish with release
// semantics").
package cooldown

import (
	"sync"
	"sync/atomic"

	"github.com/quietridge/copilot-core/clock"
)

// Tracker holds one cooldown deadline per provider name.
type Tracker struct {
	mu    sync.Mutex
	flags map[string]*atomic.Int64
	clock clock.Clock
}

// New creates an empty Tracker.
func New() *Tracker { return NewWithClock(clock.Default) }

// NewWithClock is New with an injectable clock for tests.
func NewWithClock(c clock.Clock) *Tracker {
	return &Tracker{flags: make(map[string]*atomic.Int64), clock: c}
}

func (t *Tracker) flagFor(provider string) *atomic.Int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.flags[provider]
	if !ok {
		f = &atomic.Int64{}
		t.flags[provider] = f
	}
	return f
}

// Active reports whether provider is currently within its cooldown window.
func (t *Tracker) Active(provider string) bool {
	deadline := t.flagFor(provider).Load()
	return t.clock.NowMs() < deadline
}

// Until returns the current cooldown deadline (monotonic ms) for provider,
// or 0 if none is set.
func (t *Tracker) Until(provider string) int64 {
	return t.flagFor(provider).Load()
}

// Trip publishes a new cooldown deadline of now + durationMs for provider.
// The store is unconditional, so concurrent writers race and the last
// writer wins: a shorter deadline stored after a longer one replaces it
// and shortens the window. TripAtLeast is the variant that never shortens
// an existing deadline.
func (t *Tracker) Trip(provider string, durationMs int64) {
	t.flagFor(provider).Store(t.clock.NowMs() + durationMs)
}

// TripAtLeast publishes now + durationMs only if it is later than the
// currently stored deadline, so a racing shorter cooldown can never
// clobber a longer one already in effect.
func (t *Tracker) TripAtLeast(provider string, durationMs int64) {
	f := t.flagFor(provider)
	next := t.clock.NowMs() + durationMs
	for {
		cur := f.Load()
		if cur >= next {
			return
		}
		if f.CompareAndSwap(cur, next) {
			return
		}
	}
}
