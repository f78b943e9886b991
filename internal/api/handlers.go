package api

import (
	"context"
	"net/http"

	"inventory-reconciliation-service/internal/locations"
	"inventory-reconciliation-service/internal/reconciler"
)

// Reconciler runs one reconciliation per call.
type Reconciler interface {
	Reconcile(ctx context.Context, query reconciler.Query) (*reconciler.Result, error)
	Config() *reconciler.Config
}

// Handlers serves the inventory endpoints.
type Handlers struct {
	engine Reconciler
	mapper *locations.Mapper
}

// NewHandlers creates the endpoint handlers.
func NewHandlers(engine Reconciler, mapper *locations.Mapper) *Handlers {
	return &Handlers{engine: engine, mapper: mapper}
}

// Reconciliation serves GET /api/v1/inventory/reconciliation.
func (h *Handlers) Reconciliation(w http.ResponseWriter, r *http.Request) {
	query, err := parseReconciliationQuery(r, h.engine.Config())
	if err != nil {
		WriteError(r.Context(), w, err)
		return
	}

	result, err := h.engine.Reconcile(r.Context(), query)
	if err != nil {
		WriteError(r.Context(), w, err)
		return
	}

	WriteSuccess(w, result)
}

// locationsResponse is the body of the locations endpoint.
type locationsResponse struct {
	Groups       []locations.Group `json:"groups"`
	SourceACount int               `json:"source_a_count"`
	SourceBCount int               `json:"source_b_count"`
}

// Locations serves GET /api/v1/inventory/locations.
func (h *Handlers) Locations(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, locationsResponse{
		Groups:       h.mapper.Groups(),
		SourceACount: h.mapper.Len(),
		SourceBCount: len(h.mapper.SourceBCodes()),
	})
}

// Healthz serves GET /healthz.
func Healthz(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, map[string]string{"status": "ok"})
}
