// Package coreerr defines the closed set of error kinds the core surfaces
// to its callers, the HTTP status each maps to, and the sanitiser every
// outward-facing message must pass through before it reaches a response.
package coreerr

import (
	"fmt"
	"net/http"
	"regexp"
)

// Kind is a contract label, not a Go type hierarchy — callers switch on it.
type Kind string

const (
	Validation      Kind = "Validation"
	Unauthenticated Kind = "Unauthenticated"
	NotFound        Kind = "NotFound"
	QuotaExceeded   Kind = "QuotaExceeded"
	RateLimit       Kind = "RateLimit"
	Timeout         Kind = "Timeout"
	ProviderError   Kind = "ProviderError"
	Config          Kind = "Config"
	BadModelOutput  Kind = "BadModelOutput"
)

var statusByKind = map[Kind]int{
	Validation:      http.StatusBadRequest,
	Unauthenticated: http.StatusUnauthorized,
	NotFound:        http.StatusNotFound,
	QuotaExceeded:   http.StatusTooManyRequests,
	RateLimit:       http.StatusTooManyRequests,
	Timeout:         http.StatusGatewayTimeout,
	ProviderError:   http.StatusBadGateway,
	Config:          http.StatusInternalServerError,
	BadModelOutput:  http.StatusBadGateway,
}

// Error is the shape every component in the core raises instead of a bare
// error string, so the handler layer can map it to a status without
// inspecting message text.
type Error struct {
	Kind     Kind
	Message  string
	Provider string // originating provider name, when applicable
	Raw      string // raw model output, only populated for BadModelOutput
	CoolDown int64  // rateLimitedUntil deadline (monotonic ms), only for RateLimit
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Status returns the HTTP status code this error kind maps to.
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New constructs a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithProvider sets the originating provider name and returns the receiver.
func (e *Error) WithProvider(name string) *Error {
	e.Provider = name
	return e
}

// WithRaw attaches the raw model output a BadModelOutput error carries for
// diagnosis and returns the receiver.
func (e *Error) WithRaw(raw string) *Error {
	e.Raw = raw
	return e
}

// As extracts a *Error from err, or returns (nil, false) if err is not one.
func As(err error) (*Error, bool) {
	ce, ok := err.(*Error)
	return ce, ok
}

// secretPattern matches API-key-shaped substrings so they never leak into an
// outward-facing error message. Matches sk-/OPENAI*/OPENROUTER*-prefixed
// tokens and anything immediately following them that looks like a key.
var secretPattern = regexp.MustCompile(`(?i)(sk|OPENAI|OPENROUTER)[-_A-Za-z0-9]+`)

// Sanitize redacts secret-shaped substrings from a message before it is
// returned to a client or written to a log a client might read.
func Sanitize(msg string) string {
	return secretPattern.ReplaceAllString(msg, "[redacted]")
}

// SanitizedMessage returns e.Message run through Sanitize.
func (e *Error) SanitizedMessage() string {
	return Sanitize(e.Message)
}
