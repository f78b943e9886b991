package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"inventory-reconciliation-service/internal/metrics"
	"inventory-reconciliation-service/pkg/errors"
	"inventory-reconciliation-service/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID tags the request with an ID, taken from X-Request-Id when the
// caller sent one, and stores a request-scoped logger in the context.
func RequestID(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, reqID)

			ctx := logger.IntoContext(r.Context(), log.WithRequestID(reqID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Logging logs the start and completion of each request and records its
// duration.
func Logging(httpMetrics *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.FromContext(r.Context()).WithFields(logger.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			ctx := logger.IntoContext(r.Context(), log)

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			log.Debug("request.start")

			next.ServeHTTP(rec, r.WithContext(ctx))

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			elapsed := time.Since(start)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			httpMetrics.ObserveRequest(route, r.Method, rec.status, elapsed)

			log.WithFields(logger.Fields{
				"status":      rec.status,
				"duration_ms": elapsed.Milliseconds(),
			}).Info("request.complete")
		})
	}
}

// Recoverer turns a handler panic into a 500 response.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err := errors.InternalError(errors.CodeUnexpectedError, "request", fmt.Errorf("panic: %v", rec))
				WriteError(r.Context(), w, err)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}
