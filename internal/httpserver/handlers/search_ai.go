package handlers

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
)

// maxQueryRunes bounds the question forwarded to the model.
const maxQueryRunes = 200

// SearchAI answers a free-text question about the stored deals.
func SearchAI(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("query"))
		if query == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"}, d.Logger)
			return
		}
		if utf8.RuneCountInString(query) > maxQueryRunes {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is too long"}, d.Logger)
			return
		}

		d.Logger.Info("ai search request", logger.String("query", query))

		writeJSON(w, http.StatusOK, d.Query.Answer(r.Context(), query), d.Logger)
	}
}
