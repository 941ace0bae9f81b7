// Package handlers implements the admin HTTP API's request handlers: pool
// listing/control and per-pool task introspection, the kernel-backed
// analog of the teacher's worker/queue/DLQ admin endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/nilrun/statekit/internal/kernel"
	"github.com/nilrun/statekit/internal/logger"
	"github.com/nilrun/statekit/internal/runner"
)

// AdminHandler serves pool and task introspection/control endpoints over
// however many runner.Pool instances the host process registers.
type AdminHandler struct {
	mu    sync.RWMutex
	pools map[string]*runner.Pool
}

// NewAdminHandler builds an AdminHandler with no pools registered yet.
func NewAdminHandler() *AdminHandler {
	return &AdminHandler{pools: make(map[string]*runner.Pool)}
}

// RegisterPool makes p reachable at /admin/pools/{p.ID()}.
func (h *AdminHandler) RegisterPool(p *runner.Pool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pools[p.ID()] = p
}

func (h *AdminHandler) pool(id string) (*runner.Pool, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.pools[id]
	return p, ok
}

type poolSummary struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	Concurrency int    `json:"concurrency"`
	ActiveTasks int    `json:"active_tasks"`
	PendingJobs int    `json:"pending_jobs"`
}

func summarize(p *runner.Pool) poolSummary {
	return poolSummary{
		ID:          p.ID(),
		State:       p.State().String(),
		Concurrency: p.Concurrency(),
		ActiveTasks: p.ActiveTasks(),
		PendingJobs: p.PendingJobs(),
	}
}

// ListPools handles GET /admin/pools.
func (h *AdminHandler) ListPools(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	summaries := make([]poolSummary, 0, len(h.pools))
	for _, p := range h.pools {
		summaries = append(summaries, summarize(p))
	}
	h.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"pools": summaries,
		"count": len(summaries),
	})
}

// GetPool handles GET /admin/pools/{poolID}.
func (h *AdminHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	p, ok := h.pool(chi.URLParam(r, "poolID"))
	if !ok {
		h.respondError(w, http.StatusNotFound, "pool not found")
		return
	}
	h.respondJSON(w, http.StatusOK, summarize(p))
}

// PausePool handles POST /admin/pools/{poolID}/pause.
func (h *AdminHandler) PausePool(w http.ResponseWriter, r *http.Request) {
	p, ok := h.pool(chi.URLParam(r, "poolID"))
	if !ok {
		h.respondError(w, http.StatusNotFound, "pool not found")
		return
	}
	p.Pause()
	logger.Info().Str("pool_id", p.ID()).Msg("pool paused via admin API")
	h.respondJSON(w, http.StatusOK, summarize(p))
}

// ResumePool handles POST /admin/pools/{poolID}/resume.
func (h *AdminHandler) ResumePool(w http.ResponseWriter, r *http.Request) {
	p, ok := h.pool(chi.URLParam(r, "poolID"))
	if !ok {
		h.respondError(w, http.StatusNotFound, "pool not found")
		return
	}
	p.Resume()
	logger.Info().Str("pool_id", p.ID()).Msg("pool resumed via admin API")
	h.respondJSON(w, http.StatusOK, summarize(p))
}

// ListTasks handles GET /admin/pools/{poolID}/tasks.
func (h *AdminHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	p, ok := h.pool(chi.URLParam(r, "poolID"))
	if !ok {
		h.respondError(w, http.StatusNotFound, "pool not found")
		return
	}
	if p.Kernel() == nil {
		h.respondJSON(w, http.StatusOK, map[string]interface{}{"tasks": []kernel.TaskInfo{}, "count": 0})
		return
	}

	tasks := p.Kernel().TaskSnapshots()
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// GetTask handles GET /admin/pools/{poolID}/tasks/{taskID}.
func (h *AdminHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	p, ok := h.pool(chi.URLParam(r, "poolID"))
	if !ok {
		h.respondError(w, http.StatusNotFound, "pool not found")
		return
	}
	if p.Kernel() == nil {
		h.respondError(w, http.StatusNotFound, "pool has no kernel yet")
		return
	}

	id, err := parseTaskID(chi.URLParam(r, "taskID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid task ID")
		return
	}

	info, ok := p.Kernel().TaskSnapshot(id)
	if !ok {
		h.respondError(w, http.StatusNotFound, "task not found")
		return
	}
	h.respondJSON(w, http.StatusOK, info)
}

// SubmitJobRequest is the body POST /admin/pools/{poolID}/jobs expects.
type SubmitJobRequest struct {
	ID       string      `json:"id"`
	Type     string      `json:"type"`
	Priority int         `json:"priority"`
	Payload  interface{} `json:"payload"`
}

// SubmitJob handles POST /admin/pools/{poolID}/jobs.
func (h *AdminHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	p, ok := h.pool(chi.URLParam(r, "poolID"))
	if !ok {
		h.respondError(w, http.StatusNotFound, "pool not found")
		return
	}

	var req SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type == "" {
		h.respondError(w, http.StatusBadRequest, "type is required")
		return
	}

	p.Submit(&runner.Job{ID: req.ID, Type: req.Type, Priority: req.Priority, Payload: req.Payload})

	logger.Info().Str("pool_id", p.ID()).Str("job_id", req.ID).Str("type", req.Type).Msg("job submitted via admin API")
	h.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "job submitted",
		"job_id":  req.ID,
	})
}

// HealthCheck handles GET /admin/health.
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "healthy"})
}

func (h *AdminHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (h *AdminHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func parseTaskID(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
