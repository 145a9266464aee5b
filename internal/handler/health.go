// Package handler exposes the data engine to the local UI over HTTP.
// The server binds to loopback; this is an in-process API for the POS
// frontend, not a public surface.
package handler

import (
	"net/http"
	"time"

	"tillsync/internal/store"
	"tillsync/pkg/response"
)

// StartTime tracks when the process started for uptime reporting.
var StartTime = time.Now()

// Handler carries the dependencies shared by the basic endpoints.
type Handler struct {
	store *store.Store
}

// New creates the base handler.
func New(st *store.Store) *Handler {
	return &Handler{store: st}
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	LocalStore    string    `json:"local_store"`
}

// Health handles GET /api/v1/health. "healthy" means the local store
// answers; remote reachability is a connectivity concern, not a health one.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	localStore := "ok"
	if err := h.store.Ping(r.Context()); err != nil {
		localStore = "error: " + err.Error()
	}

	resp := HealthResponse{
		Status:        "healthy",
		Timestamp:     time.Now().UTC(),
		UptimeSeconds: int64(time.Since(StartTime).Seconds()),
		LocalStore:    localStore,
	}
	if localStore != "ok" {
		resp.Status = "degraded"
		response.JSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	response.OK(w, resp)
}
