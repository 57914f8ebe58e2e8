package auth

import (
	"context"
	"net/http"

	"github.com/quietridge/copilot-core/coreerr"
)

// StaticResolver maps bearer tokens to a fixed set of users, configured at
// process start. A reasonable stand-in for currentUser() in tests and in a
// single-tenant deployment that doesn't front a real session store; a
// multi-tenant deployment implements Resolver (or Backend, via
// BearerResolver) against its own credential store instead.
type StaticResolver struct {
	users map[string]User // token -> User
}

// NewStaticResolver builds a StaticResolver from a fixed token->User map.
func NewStaticResolver(users map[string]User) *StaticResolver {
	return &StaticResolver{users: users}
}

// CurrentUser implements Resolver by looking up the bearer token directly.
func (s *StaticResolver) CurrentUser(ctx context.Context, r *http.Request) (User, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return User{}, coreerr.New(coreerr.Unauthenticated, "missing Authorization header")
	}
	token := header
	if len(header) > 7 && (header[:7] == "Bearer " || header[:7] == "bearer ") {
		token = header[7:]
	}
	u, ok := s.users[token]
	if !ok {
		return User{}, coreerr.New(coreerr.Unauthenticated, "unrecognized bearer token")
	}
	return u, nil
}
