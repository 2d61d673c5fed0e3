package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/lobbysync/internal/api/handler"
	"github.com/mcoot/lobbysync/internal/api/middleware"
	"github.com/mcoot/lobbysync/internal/api/response"
	"github.com/mcoot/lobbysync/internal/dependencies/clock"
	sharedmw "github.com/mcoot/lobbysync/internal/middleware"
	"github.com/mcoot/lobbysync/internal/web"
)

// RouterConfig holds configuration for the HTTP router
type RouterConfig struct {
	Logger  *slog.Logger
	Clock   clock.Clock
	Users   handler.Counter
	Rooms   handler.Counter
	Gateway http.Handler // WebSocket endpoint
	Metrics http.Handler // optional
	Web     *web.RouterConfig
}

// NewRouter creates the server's router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFound)

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(sharedmw.Logging(cfg.Logger))

	healthHandler := handler.NewHealthHandler(cfg.Users, cfg.Rooms, cfg.Clock)
	r.HandleFunc("/", healthHandler.Health).Methods(http.MethodGet)
	r.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)

	if cfg.Gateway != nil {
		r.Handle("/ws", cfg.Gateway).Methods(http.MethodGet)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}
	if cfg.Web != nil {
		web.RegisterRoutes(r, *cfg.Web)
	}

	return r
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	response.Err(w, http.StatusNotFound, "NOT_FOUND", "not found")
}
