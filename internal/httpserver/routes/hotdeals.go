package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/handlers"
)

func init() {
	Register("hotdeals", registerHotdeals, func(d deps.Deps) []Middleware {
		return publicAPI(d, middleware.Timeout(d.RequestTimeout))
	})
}

func registerHotdeals(r chi.Router, d deps.Deps) {
	r.Get("/api/hotdeals", handlers.Hotdeals(d))
	r.Get("/api/stats", handlers.Stats(d))
	r.Get("/image-proxy", handlers.ImageProxy(d))
}
