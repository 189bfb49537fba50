package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"cache-engine/internal/cache"
	"cache-engine/internal/cache/codec"
	"cache-engine/internal/common/errors"
	"cache-engine/internal/common/logging"
)

type putEntryRequest struct {
	Value               interface{} `json:"value"`
	TTLSeconds          int64       `json:"ttl_seconds"`
	Tags                []string    `json:"tags"`
	CacheLevels         []string    `json:"cache_levels"`
	SerializationFormat string      `json:"serialization_format"`
	TypeTag             string      `json:"type_tag"`
	CompressionEnabled  *bool       `json:"compression_enabled"`
}

// PutEntry handles PUT /cache/entries/{key}. Responds 201 when the key was
// absent from every targeted tier, 200 when it overwrote an existing entry.
func (h *Handlers) PutEntry(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var req putEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, errors.Validation("invalid request body: "+err.Error()))
		return
	}
	if req.TTLSeconds < 0 {
		h.writeError(w, r, errors.Validation("ttl_seconds must not be negative"))
		return
	}

	levels, err := parseLevels(req.CacheLevels)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	opts := cache.SetOptions{
		TTL:     time.Duration(req.TTLSeconds) * time.Second,
		Tags:    req.Tags,
		Levels:  levels,
		TypeTag: req.TypeTag,
	}
	if req.SerializationFormat != "" {
		format, err := codec.ParseFormat(req.SerializationFormat)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		opts.Format = format
	}
	if req.CompressionEnabled != nil && !*req.CompressionEnabled {
		opts.DisableCompression = true
	}

	result, err := h.manager.Set(r.Context(), key, req.Value, opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, result)
}

// GetEntry handles GET /cache/entries/{key}.
func (h *Handlers) GetEntry(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	result, err := h.manager.Get(r.Context(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !result.Found {
		h.writeError(w, r, errors.NotFound(key))
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// DeleteEntry handles DELETE /cache/entries/{key}. Deleting an absent key is
// a 200 with an empty deleted_from_levels, so retries are idempotent.
func (h *Handlers) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	result, err := h.manager.Delete(r.Context(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

type invalidateRequest struct {
	Pattern string   `json:"pattern"`
	Levels  []string `json:"levels"`
	Reason  string   `json:"reason"`
}

// Invalidate handles POST /cache/invalidate.
func (h *Handlers) Invalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, errors.Validation("invalid request body: "+err.Error()))
		return
	}

	levels, err := parseLevels(req.Levels)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.manager.Invalidate(r.Context(), req.Pattern, levels)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if req.Reason != "" {
		h.log.Info("cache invalidated",
			logging.String("pattern", req.Pattern),
			logging.String("reason", req.Reason),
			logging.Int("count", result.Count))
	}

	h.writeJSON(w, http.StatusOK, result)
}

// GetStatus handles GET /cache/status.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.manager.Status(r.Context()))
}

// Health handles GET /health. It is unauthenticated so load balancers can
// probe it.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Health(r.Context()); err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
