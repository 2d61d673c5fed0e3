package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Err writes an error body with the given status
func Err(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, Error{Message: message, Code: code})
}
