package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/deps"
	redisstore "github.com/MrSnakeDoc/hotdeals/internal/store/redis"
)

const topQueriesShown = 10

type componentStatus struct {
	OK      bool   `json:"ok"`
	Mode    string `json:"mode,omitempty"`
	Impact  string `json:"impact,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Running *bool  `json:"running,omitempty"`
	Next    string `json:"next,omitempty"`
	Error   string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
	LastCrawl  *domain.CrawlReport        `json:"last_crawl,omitempty"`
	Sources    []domain.SourceHealth      `json:"sources"`
	TopQueries []redisstore.QueryCount    `json:"top_queries,omitempty"`
}

// Infra reports the status of every component, the last crawl report and
// per-source health.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		components := map[string]componentStatus{
			"sqlite":  checkSQLite(ctx, d),
			"redis":   checkRedis(ctx, d),
			"vector":  checkVectors(d),
			"crawler": crawlerStatus(d),
		}

		resp := infraResponse{
			Mode:       determineMode(components),
			Components: components,
			Sources:    []domain.SourceHealth{},
		}

		if d.State != nil {
			if report, ok := d.State.LastReport(); ok {
				resp.LastCrawl = &report
			}
			resp.Sources = d.State.SourceHealth()
		}

		if d.Usage != nil {
			if top, err := d.Usage.TopQueries(ctx, topQueriesShown); err == nil {
				resp.TopQueries = top
			}
		}

		writeJSON(w, http.StatusOK, resp, d.Logger)
	}
}

func determineMode(components map[string]componentStatus) string {
	if !components["sqlite"].OK {
		return "critical" // no store = nothing to serve
	}
	if !components["redis"].OK || !components["vector"].OK {
		return "degraded"
	}
	return "optimal"
}

func checkSQLite(ctx context.Context, d deps.Deps) componentStatus {
	if err := d.Deals.Ping(ctx); err != nil {
		return componentStatus{OK: false, Impact: "api-unavailable", Error: "ping failed"}
	}
	return componentStatus{OK: true}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.Usage == nil {
		return componentStatus{
			OK:     false,
			Mode:   "disabled",
			Impact: "answer-cache-disabled",
			Error:  "client not initialized",
		}
	}

	if err := d.Usage.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "answer-cache-disabled",
			Error:  "timeout",
		}
	}

	return componentStatus{OK: true, Mode: "optimal"}
}

func checkVectors(d deps.Deps) componentStatus {
	if d.Vectors == nil {
		return componentStatus{OK: false, Mode: "disabled", Impact: "keyword-only-search"}
	}
	n := d.Vectors.Count()
	return componentStatus{OK: true, Mode: "hybrid", Count: &n}
}

func crawlerStatus(d deps.Deps) componentStatus {
	st := componentStatus{OK: d.Crawler != nil}
	if d.Crawler != nil {
		running := d.Crawler.Running()
		st.Running = &running
	}
	if d.NextCrawl != nil {
		if next := d.NextCrawl(); !next.IsZero() {
			st.Next = next.Format(domain.TimestampLayout)
		}
	}
	return st
}
