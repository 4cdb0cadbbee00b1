package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/mw"
)

// crawl-now bounds itself with CrawlTimeout, detached from the request.
func init() {
	Register("crawl", registerCrawl, func(d deps.Deps) []Middleware {
		return publicAPI(d, mw.RequireIdentity(d.Auth, d.CrawlRequiresAuth, d.Logger))
	})
}

func registerCrawl(r chi.Router, d deps.Deps) {
	r.Post("/api/crawl-now", handlers.CrawlNow(d))
}
