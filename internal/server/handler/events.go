package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mintmatch/mintmatch/internal/domain"
)

// EventSource provides read access to the audit log.
type EventSource interface {
	List(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error)
}

// EventHandler serves the audit log endpoint.
type EventHandler struct {
	events   EventSource
	maxLimit int
	logger   *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(events EventSource, maxLimit int, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		events:   events,
		maxLimit: maxLimit,
		logger:   logger,
	}
}

type eventView struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// ListEvents returns audit log entries newest first.
// GET /api/events?limit=50&offset=0&since=...&until=...
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r, h.maxLimit)

	entries, err := h.events.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list events failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	views := make([]eventView, 0, len(entries))
	for _, e := range entries {
		views = append(views, eventView{
			ID:        e.ID,
			Event:     e.Event,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": views})
}
