package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/hostbot/internal/model"
	"github.com/capitalize-ai/hostbot/pkg/logger"
)

// EventLister lists and refreshes upcoming events.
type EventLister interface {
	ListUpcoming(ctx context.Context) ([]model.Event, error)
	Refresh(ctx context.Context) (*model.RefreshResponse, error)
}

// EventHandler handles event endpoints.
type EventHandler struct {
	events EventLister
	logger *logger.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(events EventLister, log *logger.Logger) *EventHandler {
	return &EventHandler{
		events: events,
		logger: log,
	}
}

// List handles GET /api/v1/events
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListUpcoming(r.Context())
	if err != nil {
		h.logger.Error("failed to list events", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, &model.ListEventsResponse{
		Events: events,
		Total:  len(events),
	})
}

// Refresh handles POST /api/v1/events/refresh
func (h *EventHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	resp, err := h.events.Refresh(r.Context())
	if err != nil {
		h.logger.Error("failed to refresh events", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "failed to refresh events")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
