package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"cache-engine/internal/cache/configstore"
	"cache-engine/internal/common/errors"
	"cache-engine/internal/common/logging"
)

// Durations cross the wire as integer seconds; the snapshot keeps them as
// time.Duration.
type tierConfigDTO struct {
	Enabled            bool   `json:"enabled"`
	MaxCapacity        int    `json:"max_capacity"`
	MaxSizeMB          int    `json:"max_size_mb"`
	DefaultTTLSeconds  int64  `json:"default_ttl_seconds"`
	IdleTimeoutSeconds int64  `json:"idle_timeout_seconds"`
	EvictionPolicy     string `json:"eviction_policy"`
}

type configDTO struct {
	L1 tierConfigDTO `json:"l1"`
	L2 tierConfigDTO `json:"l2"`
	L3 tierConfigDTO `json:"l3"`

	CompressionAlgorithm string `json:"compression_algorithm"`
	CompressionMinBytes  int    `json:"compression_min_bytes"`
	SerializationFormat  string `json:"serialization_format"`
	MaxEntrySizeMB       int    `json:"max_entry_size_mb"`

	SweepIntervalSeconds     int64 `json:"sweep_interval_seconds"`
	L3CleanupIntervalSeconds int64 `json:"l3_cleanup_interval_seconds"`
	L3CleanupBatch           int   `json:"l3_cleanup_batch"`
	PromoteFromL3            bool  `json:"promote_from_l3"`
}

func tierToDTO(t configstore.TierConfig) tierConfigDTO {
	return tierConfigDTO{
		Enabled:            t.Enabled,
		MaxCapacity:        t.MaxCapacity,
		MaxSizeMB:          t.MaxSizeMB,
		DefaultTTLSeconds:  int64(t.DefaultTTL / time.Second),
		IdleTimeoutSeconds: int64(t.IdleTimeout / time.Second),
		EvictionPolicy:     t.EvictionPolicy,
	}
}

func tierFromDTO(d tierConfigDTO) configstore.TierConfig {
	return configstore.TierConfig{
		Enabled:        d.Enabled,
		MaxCapacity:    d.MaxCapacity,
		MaxSizeMB:      d.MaxSizeMB,
		DefaultTTL:     time.Duration(d.DefaultTTLSeconds) * time.Second,
		IdleTimeout:    time.Duration(d.IdleTimeoutSeconds) * time.Second,
		EvictionPolicy: d.EvictionPolicy,
	}
}

func settingsToDTO(s *configstore.Settings) configDTO {
	return configDTO{
		L1:                       tierToDTO(s.L1),
		L2:                       tierToDTO(s.L2),
		L3:                       tierToDTO(s.L3),
		CompressionAlgorithm:     s.CompressionAlgorithm,
		CompressionMinBytes:      s.CompressionMinBytes,
		SerializationFormat:      s.SerializationFormat,
		MaxEntrySizeMB:           s.MaxEntrySizeMB,
		SweepIntervalSeconds:     int64(s.SweepInterval / time.Second),
		L3CleanupIntervalSeconds: int64(s.L3CleanupInterval / time.Second),
		L3CleanupBatch:           s.L3CleanupBatch,
		PromoteFromL3:            s.PromoteFromL3,
	}
}

func settingsFromDTO(d configDTO) configstore.Settings {
	return configstore.Settings{
		L1:                   tierFromDTO(d.L1),
		L2:                   tierFromDTO(d.L2),
		L3:                   tierFromDTO(d.L3),
		CompressionAlgorithm: d.CompressionAlgorithm,
		CompressionMinBytes:  d.CompressionMinBytes,
		SerializationFormat:  d.SerializationFormat,
		MaxEntrySizeMB:       d.MaxEntrySizeMB,
		SweepInterval:        time.Duration(d.SweepIntervalSeconds) * time.Second,
		L3CleanupInterval:    time.Duration(d.L3CleanupIntervalSeconds) * time.Second,
		L3CleanupBatch:       d.L3CleanupBatch,
		PromoteFromL3:        d.PromoteFromL3,
	}
}

// GetConfig handles GET /cache/config.
func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, settingsToDTO(h.manager.Config()))
}

// UpdateConfig handles PUT /cache/config. The whole snapshot is replaced;
// an invalid payload is rejected as a 422 without touching the running
// configuration.
func (h *Handlers) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	dto := settingsToDTO(h.manager.Config())
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.writeError(w, r, errors.Validation("invalid request body: "+err.Error()))
		return
	}

	restartRequired, err := h.manager.UpdateConfig(settingsFromDTO(dto))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if callerID, ok := r.Context().Value(logging.CallerIDKey).(string); ok {
		h.log.Info("configuration updated", logging.String("caller_id", callerID))
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"applied":          true,
		"restart_required": restartRequired,
	})
}
