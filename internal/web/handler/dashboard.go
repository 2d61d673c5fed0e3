package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mcoot/lobbysync/internal/protocol"
	"github.com/mcoot/lobbysync/internal/web/components"
	"github.com/mcoot/lobbysync/internal/web/sse"
)

// SnapshotSource provides consistent user and room listings
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]protocol.User, []protocol.Room)
}

// DashboardHandler serves the read-only status page and its live feed
type DashboardHandler struct {
	source    SnapshotSource
	hub       *sse.Hub
	eventsURL string
	logger    *slog.Logger
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(source SnapshotSource, hub *sse.Hub, eventsURL string, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		source:    source,
		hub:       hub,
		eventsURL: eventsURL,
		logger:    logger,
	}
}

// Dashboard renders the full page from the current snapshot
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	users, rooms := h.source.Snapshot(r.Context())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := components.Dashboard(users, rooms, h.eventsURL).Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render dashboard", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// Events streams listing updates to the page
func (h *DashboardHandler) Events(w http.ResponseWriter, r *http.Request) {
	sse.ServeSSE(w, r, h.hub)
}
