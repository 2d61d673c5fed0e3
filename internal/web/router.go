// Package web serves the operator dashboard.
package web

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/lobbysync/internal/web/handler"
	"github.com/mcoot/lobbysync/internal/web/middleware"
	"github.com/mcoot/lobbysync/internal/web/sse"
)

// Dashboard paths
const (
	DashboardPath = "/dashboard"
	EventsPath    = "/dashboard/events"
)

// RouterConfig holds configuration for the web router
type RouterConfig struct {
	Logger   *slog.Logger
	Snapshot handler.SnapshotSource
	Hub      *sse.Hub
}

// RegisterRoutes mounts the dashboard on r. Request logging is left to the
// caller's router.
func RegisterRoutes(r *mux.Router, cfg RouterConfig) {
	dashboard := r.PathPrefix(DashboardPath).Subrouter()
	dashboard.Use(middleware.Recovery(cfg.Logger))

	h := handler.NewDashboardHandler(cfg.Snapshot, cfg.Hub, EventsPath, cfg.Logger.With(slog.String("component", "dashboard")))
	dashboard.HandleFunc("", h.Dashboard).Methods(http.MethodGet)
	dashboard.HandleFunc("/events", h.Events).Methods(http.MethodGet)
}
