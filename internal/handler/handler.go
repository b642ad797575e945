// Package handler serves the board over HTTP and streams board events to
// websocket subscribers.
package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/rosterboard/internal/model"
)

// Version is the application version.
const Version = "1.0.0"

// HealthResponse is the liveness probe body.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is the readiness probe body. Members is the roster size
// at the time of the probe.
type ReadyResponse struct {
	Status  string `json:"status"`
	Members int    `json:"members"`
}

// writeData wraps data in the success envelope.
func writeData[T any](w http.ResponseWriter, logger *zap.Logger, status int, data T) {
	writeJSON(w, logger, status, model.NewSuccessResponse(data))
}

// writeError writes a model.ErrorResponse. fields carries per-field
// validation messages and may be nil.
func writeError(w http.ResponseWriter, logger *zap.Logger, status int, message string, fields map[string]string) {
	writeJSON(w, logger, status, model.ErrorResponse{Code: status, Message: message, Fields: fields})
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("failed to encode response", zap.Int("status", status), zap.Error(err))
	}
}
