package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
)

type readyzResponse struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Readyz reports whether the deal database answers.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := d.Deals.Ping(ctx); err != nil {
			d.Logger.Warn("readiness check failed", logger.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{Ready: false, Error: "database unavailable"}, d.Logger)
			return
		}

		writeJSON(w, http.StatusOK, readyzResponse{Ready: true}, d.Logger)
	}
}
