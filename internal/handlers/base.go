// Package handlers implements the HTTP surface of the cache engine.
package handlers

import (
	"encoding/json"
	"net/http"

	"cache-engine/internal/cache"
	"cache-engine/internal/common/errors"
	"cache-engine/internal/common/logging"
)

type Handlers struct {
	manager *cache.Manager
	log     logging.Logger
}

func New(manager *cache.Manager, log logging.Logger) *Handlers {
	return &Handlers{
		manager: manager,
		log:     log,
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error("failed to encode response", err)
	}
}

// writeError maps a CacheError to its HTTP status and stamps the request id
// so the failure can be correlated in the audit log.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	cacheErr, ok := err.(*errors.CacheError)
	if !ok {
		cacheErr = errors.Internal("unexpected error", err)
	}

	if requestID, ok := r.Context().Value(logging.RequestIDKey).(string); ok {
		cacheErr = cacheErr.WithRequestID(requestID)
	}

	status := statusForError(cacheErr)
	if status >= 500 {
		h.log.Error("request failed", cacheErr, logging.String("path", r.URL.Path))
	}

	h.writeJSON(w, status, map[string]interface{}{"error": cacheErr})
}

func statusForError(err *errors.CacheError) int {
	switch err.Type {
	case errors.ErrTypeNotFound:
		return http.StatusNotFound
	case errors.ErrTypeValidation:
		if err.Code == "entry_too_large" {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case errors.ErrTypeConfig:
		return http.StatusUnprocessableEntity
	case errors.ErrTypeAuth:
		return http.StatusUnauthorized
	case errors.ErrTypeBackendUnavailable:
		return http.StatusServiceUnavailable
	case errors.ErrTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func parseLevels(names []string) ([]cache.Level, error) {
	if len(names) == 0 {
		return nil, nil
	}
	levels := make([]cache.Level, 0, len(names))
	for _, name := range names {
		level, ok := cache.ParseLevel(name)
		if !ok {
			return nil, errors.Validation("unknown cache level: " + name)
		}
		levels = append(levels, level)
	}
	return levels, nil
}
