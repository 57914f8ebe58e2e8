package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quietridge/copilot-core/coreerr"
)

type fakeBackend struct {
	users map[string]User
}

func (b *fakeBackend) ResolveToken(ctx context.Context, token string) (User, error) {
	u, ok := b.users[token]
	if !ok {
		return User{}, coreerr.New(coreerr.Unauthenticated, "unknown token")
	}
	return u, nil
}

func TestBearerResolverExtractsToken(t *testing.T) {
	backend := &fakeBackend{users: map[string]User{"tok1": {ID: "u1", Tier: "pro"}}}
	resolver := NewBearerResolver(backend)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer tok1")

	u, err := resolver.CurrentUser(context.Background(), r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != "u1" || u.Tier != "pro" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestBearerResolverRejectsMissingHeader(t *testing.T) {
	resolver := NewBearerResolver(&fakeBackend{users: map[string]User{}})
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := resolver.CurrentUser(context.Background(), r)
	ce, ok := coreerr.As(err)
	if !ok || ce.Kind != coreerr.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestStaticResolverLooksUpByBearerToken(t *testing.T) {
	resolver := NewStaticResolver(map[string]User{"abc": {ID: "u2", Tier: "free"}})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc")

	u, err := resolver.CurrentUser(context.Background(), r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != "u2" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestStaticResolverRejectsUnknownToken(t *testing.T) {
	resolver := NewStaticResolver(map[string]User{"abc": {ID: "u2", Tier: "free"}})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer nope")

	_, err := resolver.CurrentUser(context.Background(), r)
	ce, ok := coreerr.As(err)
	if !ok || ce.Kind != coreerr.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestWithUserFromContextRoundTrip(t *testing.T) {
	ctx := WithUser(context.Background(), User{ID: "u3", Tier: "pro"})
	u, ok := FromContext(ctx)
	if !ok || u.ID != "u3" {
		t.Fatalf("expected round-tripped user, got %+v ok=%v", u, ok)
	}
}
