package handler

import (
	"errors"
	"net/http"
	"strconv"

	"tillsync/internal/datalayer"
	"tillsync/internal/model"
	"tillsync/pkg/response"
)

// SyncHandler exposes the connectivity state and sync controls.
type SyncHandler struct {
	dl *datalayer.DataLayer
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(dl *datalayer.DataLayer) *SyncHandler {
	return &SyncHandler{dl: dl}
}

// State handles GET /api/v1/sync/state
func (h *SyncHandler) State(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.dl.State())
}

// Trigger handles POST /api/v1/sync. The cycle runs to completion before
// responding; a trigger landing on a running cycle returns immediately.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if err := h.dl.SyncNow(r.Context()); err != nil {
		// The cycle outcome is state, not a request failure: surface it in
		// the snapshot so the UI shows the same thing the tracker does.
		if errors.Is(err, datalayer.ErrNoSession) {
			response.Error(w, mapError(err))
			return
		}
	}
	response.OK(w, h.dl.State())
}

// Log handles GET /api/v1/sync/log?limit=
func (h *SyncHandler) Log(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.dl.SyncLog(r.Context(), limit)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}
	if entries == nil {
		entries = []model.SyncLogEntry{}
	}
	response.OK(w, entries)
}
