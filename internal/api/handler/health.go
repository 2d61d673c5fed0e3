package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/mcoot/lobbysync/internal/api/response"
	"github.com/mcoot/lobbysync/internal/dependencies/clock"
)

// HealthMessage is reported by the health endpoint while the server runs
const HealthMessage = "Lobby coordinator running"

// Counter reports the size of a registry
type Counter interface {
	Count(ctx context.Context) int
}

// HealthHandler reports liveness and registry sizes
type HealthHandler struct {
	users Counter
	rooms Counter
	clock clock.Clock
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(users, rooms Counter, clock clock.Clock) *HealthHandler {
	return &HealthHandler{
		users: users,
		rooms: rooms,
		clock: clock,
	}
}

// Health handles GET / and GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{
		Status:      "ok",
		Message:     HealthMessage,
		Time:        h.clock.Now().UTC().Format(time.RFC3339Nano),
		ActiveUsers: h.users.Count(r.Context()),
		ActiveRooms: h.rooms.Count(r.Context()),
	})
}
