package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/auth"
	"github.com/quietridge/copilot-core/coreerr"
)

// AuthMiddleware resolves the caller's identity via an auth.Resolver and
// stashes it on the request context, rejecting with 401 on failure.
// Adapted from the teacher's header-extraction shape, generalized from
// "pass the raw key downstream" to "resolve and attach a typed User".
type AuthMiddleware struct {
	logger   zerolog.Logger
	resolver auth.Resolver
}

// NewAuthMiddleware builds an AuthMiddleware over a Resolver.
func NewAuthMiddleware(logger zerolog.Logger, resolver auth.Resolver) *AuthMiddleware {
	return &AuthMiddleware{logger: logger, resolver: resolver}
}

// Handler returns the middleware handler function.
func (am *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := am.resolver.CurrentUser(r.Context(), r)
		if err != nil {
			status := http.StatusUnauthorized
			msg := "authentication required"
			if ce, ok := coreerr.As(err); ok {
				status = ce.Status()
				msg = ce.SanitizedMessage()
			}
			am.logger.Warn().Err(err).Msg("authentication failed")
			writeJSONError(w, status, msg)
			return
		}
		ctx := auth.WithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
