// Package fetch implements the core's HTTP Fetcher: parameterised GET/POST
// with a per-call deadline, text/JSON decoding, and classification of
// transport failures and HTTP status codes into coreerr kinds. It never
// retries — retry policy belongs to the caller (the provider or
// orchestrator deciding whether to fall back).
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/quietridge/copilot-core/coreerr"
)

// maxErrorBodyBytes caps how much of an error response body is echoed back
// in a ProviderError message.
const maxErrorBodyBytes = 4096

// Options configures a single fetch call.
type Options struct {
	Headers    map[string]string
	DeadlineMs int64 // 0 means no explicit deadline beyond ctx's own
}

// Fetcher issues HTTP requests over a pooled, tuned transport shared across
// every provider connector in the process.
type Fetcher struct {
	client *http.Client
}

// New builds a Fetcher with connection pooling tuned the way the teacher's
// provider.pool package tunes its shared transport: generous idle-conn
// reuse, bounded per-host fan-out.
func New() *Fetcher {
	transport := &http.Transport{
		MaxIdleConns:        256,
		MaxIdleConnsPerHost: 32,
		MaxConnsPerHost:     64,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &Fetcher{client: &http.Client{Transport: transport}}
}

// FetchJSON issues a GET (or, with body != nil, a POST) to url and decodes
// the response body as JSON into out.
func (f *Fetcher) FetchJSON(ctx context.Context, method, url string, body io.Reader, opts Options, out any) error {
	respBody, status, err := f.do(ctx, method, url, body, opts)
	if err != nil {
		return err
	}
	if status >= 400 {
		return classifyStatus(status, respBody)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return coreerr.Newf(coreerr.ProviderError, "decode json response: %v", err)
	}
	return nil
}

// FetchText issues a GET and returns the raw response body as text.
func (f *Fetcher) FetchText(ctx context.Context, url string, opts Options) (string, error) {
	respBody, status, err := f.do(ctx, http.MethodGet, url, nil, opts)
	if err != nil {
		return "", err
	}
	if status >= 400 {
		return "", classifyStatus(status, respBody)
	}
	return string(respBody), nil
}

func (f *Fetcher) do(ctx context.Context, method, url string, body io.Reader, opts Options) ([]byte, int, error) {
	if opts.DeadlineMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.DeadlineMs)*time.Millisecond)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, 0, coreerr.Newf(coreerr.ProviderError, "build request: %v", err)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, 0, coreerr.New(coreerr.Timeout, "request deadline exceeded")
		}
		return nil, 0, coreerr.Newf(coreerr.ProviderError, "request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, resp.StatusCode, coreerr.Newf(coreerr.ProviderError, "read response: %v", err)
	}
	return respBody, resp.StatusCode, nil
}

func classifyStatus(status int, body []byte) error {
	if status == http.StatusTooManyRequests {
		return coreerr.New(coreerr.RateLimit, "rate limited")
	}
	if status == http.StatusUnauthorized {
		return coreerr.New(coreerr.Unauthenticated, "upstream rejected credentials")
	}
	snippet := body
	if len(snippet) > maxErrorBodyBytes {
		snippet = snippet[:maxErrorBodyBytes]
	}
	return coreerr.Newf(coreerr.ProviderError, "upstream status %d: %s", status, string(snippet))
}
