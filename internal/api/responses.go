package api

import (
	"context"
	"encoding/json"
	"net/http"

	"inventory-reconciliation-service/pkg/errors"
	"inventory-reconciliation-service/pkg/logger"
)

// SuccessEnvelope wraps every successful response body.
type SuccessEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// ErrorEnvelope wraps every error response body.
type ErrorEnvelope struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// WriteSuccess writes data with status 200.
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, SuccessEnvelope{Success: true, Data: data})
}

// WriteError maps err to a status code, logs it and writes the envelope.
func WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	status := StatusFor(err)
	payload := ErrorEnvelope{Success: false, Error: "unexpected error"}

	if typed, ok := errors.AsReconcilerError(err); ok {
		payload.Code = string(typed.Code)
		if status < http.StatusInternalServerError || status == http.StatusBadGateway {
			payload.Error = typed.Error()
		}
		if status == http.StatusBadRequest && len(typed.Context) > 0 {
			payload.Details = typed.Context
		}
	}

	log := logger.FromContext(ctx).WithField("status", status)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("request.error")
	} else {
		log.WithError(err).Warn("request.rejected")
	}

	writeJSON(w, status, payload)
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	typed, ok := errors.AsReconcilerError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch typed.Category {
	case errors.CategoryValidation, errors.CategoryParse:
		return http.StatusBadRequest
	case errors.CategorySource:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}
