package session

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"stockdash/internal/api/response"
	"stockdash/internal/pkg/logger"
	"stockdash/internal/workflow"
)

// Registry is what the handler needs to manage update sessions.
type Registry interface {
	Create(ctx context.Context) (*workflow.Session, error)
	Get(id string) (*workflow.Session, error)
	Delete(id string) error
}

// Handler serves the update-session routes.
type Handler struct {
	Registry Registry
	Logger   logger.Logger
}

// NewHandler creates the update-session handler.
func NewHandler(reg Registry, log logger.Logger) *Handler {
	return &Handler{Registry: reg, Logger: log}
}

// CreateSessionHandler handles POST /v1/update-sessions.
// @Summary Start an update session
// @Description Opens a guided update on the current product listing.
// @Tags update-sessions
// @Produce json
// @Security BearerAuth
// @Success 201 {object} workflow.View
// @Failure 502 {object} domain.ErrorResponse
// @Router /v1/update-sessions [post]
func (h *Handler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.Registry.Create(r.Context())
	if err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusCreated)
		return
	}
	w.Header().Set("Location", "/v1/update-sessions/"+s.ID())
	response.Handle(w, r, h.Logger, s.View(), nil, http.StatusCreated)
}

// GetSessionHandler handles GET /v1/update-sessions/{id}.
// @Summary Show an update session
// @Tags update-sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session id"
// @Success 200 {object} workflow.View
// @Failure 404 {object} domain.ErrorResponse
// @Router /v1/update-sessions/{id} [get]
func (h *Handler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.Registry.Get(mux.Vars(r)["id"])
	if err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}
	response.Handle(w, r, h.Logger, s.View(), nil, http.StatusOK)
}

// PostEventHandler handles POST /v1/update-sessions/{id}/events.
// @Summary Push an event into an update session
// @Description Rejected events return 400 and leave the session unchanged.
// @Tags update-sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session id"
// @Param event body workflow.Event true "Event"
// @Success 200 {object} workflow.View
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Router /v1/update-sessions/{id}/events [post]
func (h *Handler) PostEventHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.Registry.Get(mux.Vars(r)["id"])
	if err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	var ev workflow.Event
	if err := response.Decode(r, &ev); err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	view, err := s.Handle(r.Context(), ev)
	response.Handle(w, r, h.Logger, view, err, http.StatusOK)
}

// DeleteSessionHandler handles DELETE /v1/update-sessions/{id}.
// @Summary Discard an update session
// @Tags update-sessions
// @Security BearerAuth
// @Param id path string true "Session id"
// @Success 204
// @Failure 404 {object} domain.ErrorResponse
// @Router /v1/update-sessions/{id} [delete]
func (h *Handler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	err := h.Registry.Delete(mux.Vars(r)["id"])
	response.Handle(w, r, h.Logger, nil, err, http.StatusNoContent)
}
