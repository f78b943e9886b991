// Package api serves the reconciliation engine over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inventory-reconciliation-service/internal/locations"
	"inventory-reconciliation-service/internal/metrics"
	"inventory-reconciliation-service/pkg/logger"
)

// RouterConfig carries the dependencies of NewRouter.
type RouterConfig struct {
	Engine      Reconciler
	Mapper      *locations.Mapper
	Logger      logger.Logger
	HTTPMetrics *metrics.HTTPMetrics
	// Gatherer backs /metrics. The route is omitted when nil.
	Gatherer prometheus.Gatherer
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	log = log.WithComponent("api")

	handlers := NewHandlers(cfg.Engine, cfg.Mapper)

	r := chi.NewRouter()
	r.Use(
		RequestID(log),
		Logging(cfg.HTTPMetrics),
		Recoverer,
	)

	r.Get("/healthz", Healthz)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Get("/reconciliation", handlers.Reconciliation)
		r.Get("/locations", handlers.Locations)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorEnvelope{Success: false, Error: "not found"})
	})

	return r
}
