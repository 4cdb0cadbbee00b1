package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/mw"
)

func init() {
	Register("healthz", registerHealthz, nil)
	Register("probes", registerProbes, func(d deps.Deps) []Middleware {
		return []Middleware{mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)}
	})
}

func registerHealthz(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))
}

func registerProbes(r chi.Router, d deps.Deps) {
	r.Get("/readyz", handlers.Readyz(d))
	r.Get("/infra", handlers.Infra(d))
}
