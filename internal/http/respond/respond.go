package respond

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// ErrorBody is the shape of every non-2xx response.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON writes payload as the response body.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("respond: encode payload failed", zap.Error(err))
	}
}

// Error writes an {"error": message} response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Error: message})
}
