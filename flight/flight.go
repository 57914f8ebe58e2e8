// Package flight backs the core's Single-Flight Map with
// golang.org/x/sync/singleflight: the spec's contract — install a shared
// future for a key if none is outstanding, otherwise await the existing
// one, and remove the entry on settle before any caller resumes — is
// exactly singleflight.Group.Do's contract.
package flight

import (
	"golang.org/x/sync/singleflight"
)

// Group deduplicates concurrent producers for identical keys. A typed
// wrapper around singleflight.Group so call sites don't repeat the
// type-assert-the-any-result dance at every use.
type Group[V any] struct {
	g singleflight.Group
}

// Acquire runs producer for k if no call is outstanding, otherwise waits
// for and returns the outstanding call's result. The entry is removed from
// the group before any waiter observes the result, so a subsequent Acquire
// for the same key always starts a fresh attempt.
func (g *Group[V]) Acquire(k string, producer func() (V, error)) (V, error, bool) {
	v, err, shared := g.g.Do(k, func() (any, error) {
		return producer()
	})
	if err != nil {
		var zero V
		return zero, err, shared
	}
	return v.(V), nil, shared
}

// Forget releases any outstanding call for k early, e.g. when an inbound
// request context is cancelled and the leader's work should not continue
// to gate new callers.
func (g *Group[V]) Forget(k string) {
	g.g.Forget(k)
}
