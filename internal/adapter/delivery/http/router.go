// Package http provides the HTTP delivery layer for the URL shortener service.
// This package contains the HTTP handlers and related types used for processing
// incoming requests, validating input, and formatting responses.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/vadimbarashkov/shortlinks/docs"
	"github.com/vadimbarashkov/shortlinks/pkg/metrics"
	"github.com/vadimbarashkov/shortlinks/pkg/middleware/recoverer"
)

type routerOptions struct {
	baseURL  string
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
}

type RouterOption func(*routerOptions)

// WithBaseURL sets the public origin used to build short URLs.
func WithBaseURL(baseURL string) RouterOption {
	return func(o *routerOptions) {
		o.baseURL = baseURL
	}
}

// WithMetrics instruments every request with m and serves gatherer at /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) RouterOption {
	return func(o *routerOptions) {
		o.metrics = m
		o.gatherer = gatherer
	}
}

// NewRouter initializes and returns a new Chi router configured with middleware and routes for the URL shortener API.
func NewRouter(logger *httplog.Logger, linkUseCase linkUseCase, opts ...RouterOption) *chi.Mux {
	var options routerOptions
	for _, opt := range opts {
		opt(&options)
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"POST", "GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	if options.metrics != nil {
		r.Use(instrument(options.metrics))
	}
	r.Use(recoverer.New(logger.Logger, internalErrorResponse))

	if options.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(options.gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(docs.Swagger)
	})

	h := newLinkHandler(linkUseCase, validator.New(), options.baseURL)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", handlePing)
		r.Post("/shorten", h.shortenURL)
		r.Get("/navigate/{shortCode}", h.navigate)
		r.Get("/stats/{shortCode}", h.getLinkStats)
		r.Get("/listLinks", h.listLinks)
		r.Delete("/cascade/{id}", h.removeLink)
	})

	r.Get("/{shortCode}", h.navigate)

	return r
}
