package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/lobbysync/internal/middleware"
)

// Recovery creates panic recovery middleware for the dashboard.
// It answers with an HTML error page.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, webPanicHandler)
}

func webPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Error</title></head>
<body>
<h1>Internal Server Error</h1>
<p>The dashboard could not be rendered.</p>
<p><a href="/dashboard">Reload</a></p>
</body>
</html>`))
}
