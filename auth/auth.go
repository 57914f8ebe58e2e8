// Package auth is the thin seam over currentUser() (§3): the core treats
// session/credential validation as an external collaborator and only
// needs the resolved identity and billing tier.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/quietridge/copilot-core/coreerr"
)

// User is everything the core needs to know about the caller: who they
// are (for the Quota Gate) and what tier governs their limits.
type User struct {
	ID   string
	Tier string
}

// Resolver is currentUser(): given a request's credentials, resolve the
// authenticated user. Session cookies, OAuth handshakes, and password
// hashing are explicit Non-goals (§3) — this interface is the only seam
// between the core and whatever owns those concerns.
type Resolver interface {
	CurrentUser(ctx context.Context, r *http.Request) (User, error)
}

type contextKey string

const userContextKey contextKey = "auth_user"

// WithUser stashes the resolved user on the request context.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// FromContext retrieves the user stashed by WithUser.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userContextKey).(User)
	return u, ok
}

// BearerResolver extracts a Bearer token from the Authorization header and
// delegates identity lookup to a Backend, the same shape as the teacher's
// AuthMiddleware's header-extraction step, generalized from "pass the raw
// key downstream" to "resolve it to a User up front".
type BearerResolver struct {
	backend Backend
}

// Backend is the actual credential-validation collaborator (session store,
// API-key table, or an upstream auth service) — out of scope for this core,
// consumed only through this interface.
type Backend interface {
	ResolveToken(ctx context.Context, token string) (User, error)
}

// NewBearerResolver builds a BearerResolver over a Backend.
func NewBearerResolver(backend Backend) *BearerResolver {
	return &BearerResolver{backend: backend}
}

// CurrentUser implements Resolver.
func (a *BearerResolver) CurrentUser(ctx context.Context, r *http.Request) (User, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return User{}, coreerr.New(coreerr.Unauthenticated, "missing Authorization header")
	}
	token := header
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		token = header[len("Bearer "):]
	}
	if token == "" {
		return User{}, coreerr.New(coreerr.Unauthenticated, "empty bearer token")
	}
	return a.backend.ResolveToken(ctx, token)
}
