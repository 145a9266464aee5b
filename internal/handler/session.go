package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"tillsync/internal/datalayer"
	"tillsync/internal/model"
	"tillsync/pkg/apierror"
	"tillsync/pkg/response"
)

// SessionHandler manages the business context the terminal operates in.
type SessionHandler struct {
	dl *datalayer.DataLayer
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(dl *datalayer.DataLayer) *SessionHandler {
	return &SessionHandler{dl: dl}
}

// SetSession handles POST /api/v1/session
func (h *SessionHandler) SetSession(w http.ResponseWriter, r *http.Request) {
	var s model.Session
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	defer r.Body.Close()

	if err := h.dl.SetSession(r.Context(), s); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, s)
}

// GetSession handles GET /api/v1/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s := h.dl.Session()
	if s.IsZero() {
		response.Error(w, apierror.PreconditionFailed("no active session"))
		return
	}
	response.OK(w, s)
}

// mapError converts facade errors to the API's error vocabulary.
func mapError(err error) error {
	if errors.Is(err, datalayer.ErrNoSession) {
		return apierror.PreconditionFailed("no active session")
	}
	return err
}
