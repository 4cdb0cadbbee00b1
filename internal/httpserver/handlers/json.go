package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/hotdeals/internal/logger"
)

func writeJSON(w http.ResponseWriter, status int, v any, log logger.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("failed to write response", logger.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}
