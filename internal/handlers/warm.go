package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"cache-engine/internal/cache/warming"
	"cache-engine/internal/common/errors"
)

type warmRequest struct {
	Keys          []string `json:"keys"`
	Patterns      []string `json:"patterns"`
	Strategy      string   `json:"strategy"`
	BatchSize     int      `json:"batch_size"`
	MaxConcurrent int      `json:"max_concurrent"`
	Schedule      string   `json:"schedule"`
}

type warmJobResponse struct {
	JobID         string    `json:"job_id"`
	Strategy      string    `json:"strategy"`
	Status        string    `json:"status"`
	EstimatedKeys int       `json:"estimated_keys"`
	WarmedKeys    int64     `json:"warmed_keys"`
	FailedKeys    int64     `json:"failed_keys"`
	CreatedAt     time.Time `json:"created_at"`
}

func warmJobView(job *warming.Job) warmJobResponse {
	return warmJobResponse{
		JobID:         job.ID,
		Strategy:      string(job.Strategy),
		Status:        string(job.Status()),
		EstimatedKeys: job.EstimatedKeys,
		WarmedKeys:    job.WarmedKeys(),
		FailedKeys:    job.FailedKeys(),
		CreatedAt:     job.CreatedAt,
	}
}

// Warm handles POST /cache/warm. The job runs asynchronously, so the
// response is a 202 with a job id to poll.
func (h *Handlers) Warm(w http.ResponseWriter, r *http.Request) {
	var req warmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, errors.Validation("invalid request body: "+err.Error()))
		return
	}

	job, err := h.manager.Warm(r.Context(), warming.Request{
		Keys:          req.Keys,
		Patterns:      req.Patterns,
		Strategy:      warming.Strategy(req.Strategy),
		BatchSize:     req.BatchSize,
		MaxConcurrent: req.MaxConcurrent,
		Schedule:      req.Schedule,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, warmJobView(job))
}

// GetWarmJob handles GET /cache/warm/{id}.
func (h *Handlers) GetWarmJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, ok := h.manager.WarmJob(id)
	if !ok {
		h.writeError(w, r, errors.NotFound(id))
		return
	}

	h.writeJSON(w, http.StatusOK, warmJobView(job))
}

// CancelWarmJob handles DELETE /cache/warm/{id}. Cancelling a finished or
// unknown job is a 404.
func (h *Handlers) CancelWarmJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if !h.manager.CancelWarmJob(id) {
		h.writeError(w, r, errors.NotFound(id))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":    id,
		"cancelled": true,
	})
}
