// Package router assembles the HTTP surface (§6/§7) over the Market Data
// Resolution & Caching Layer and the LLM Invocation Layer: middleware
// chain, route table, and the unauthenticated health/metrics endpoints.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/config"
	"github.com/quietridge/copilot-core/handler"
	"github.com/quietridge/copilot-core/metrics"
	"github.com/quietridge/copilot-core/middleware"
)

// Handlers bundles every request handler the router mounts. Built once in
// main and passed in, so router stays free of construction concerns.
type Handlers struct {
	Health    *handler.HealthHandler
	Symbols   *handler.SymbolsHandler
	Prices    *handler.PricesHandler
	Details   *handler.DetailsHandler
	InvokeLLM *handler.InvokeLLMHandler
	Upload    *handler.UploadHandler
	Extract   *handler.ExtractHandler
}

// New builds the chi router: public health/metrics endpoints, then the
// authenticated /api surface behind the full middleware chain.
func New(cfg *config.Config, log zerolog.Logger, auth *middleware.AuthMiddleware, metricsRegistry *metrics.Registry, h Handlers) http.Handler {
	r := chi.NewRouter()

	headers := middleware.NewHeaderNormalization(log)
	timeout := middleware.NewTimeoutMiddleware(log, cfg)

	r.Use(middleware.CORSMiddleware([]string{"*"}))
	r.Use(middleware.SecurityHeadersMiddleware)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Logger)
	r.Use(headers.Handler)
	r.Use(timeout.Handler)

	r.Get("/healthz", h.Health.Health)
	r.Get("/ready", h.Health.Health)
	r.Handle("/metrics", metricsRegistry.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(auth.Handler)

		api.Get("/health", h.Health.Health)
		api.Get("/symbols/search", h.Symbols.Search)
		api.Post("/prices", h.Prices.Batch)
		api.Post("/prices/details", h.Details.Details)
		api.Post("/invoke-llm", h.InvokeLLM.Invoke)
		api.Post("/upload", h.Upload.Upload)
		api.Post("/extract", h.Extract.Extract)
	})

	return r
}
