package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/lobbysync/internal/api/response"
	"github.com/mcoot/lobbysync/internal/middleware"
)

// Recovery creates panic recovery middleware for the API.
// It answers with a JSON error body.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, apiPanicHandler)
}

func apiPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}
