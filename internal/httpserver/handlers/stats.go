package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
)

type sourceStat struct {
	Source domain.Source `json:"source"`
	Name   string        `json:"name"`
	Count  int           `json:"count"`
}

type statsResponse struct {
	Total   int          `json:"total"`
	Sources []sourceStat `json:"sources"`
}

// Stats returns the number of stored deals per source.
func Stats(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statsResponse{Sources: []sourceStat{}}

		counts, err := d.Deals.Stats(r.Context())
		if err != nil {
			d.Logger.Error("failed to compute stats", logger.Error(err))
		}
		for _, c := range counts {
			resp.Total += c.Count
			resp.Sources = append(resp.Sources, sourceStat{
				Source: c.Source,
				Name:   c.Source.DisplayName(),
				Count:  c.Count,
			})
		}

		writeJSON(w, http.StatusOK, resp, d.Logger)
	}
}
