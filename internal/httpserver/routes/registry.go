package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/mw"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
	// Stack builds a group's middlewares once the runtime deps are known.
	Stack func(d deps.Deps) []Middleware
)

type group struct {
	name  string
	reg   Registrar
	stack Stack
}

var registry []group

// Register adds a route group. The stack, when non-nil, wraps every route
// the registrar declares.
func Register(name string, reg Registrar, stack Stack) {
	registry = append(registry, group{name: name, reg: reg, stack: stack})
}

// RegisterAll mounts every group on r. Called once from NewRouter.
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, g := range registry {
		var mws []Middleware
		if g.stack != nil {
			mws = g.stack(d)
		}
		r.Group(func(gr chi.Router) {
			gr.Use(mws...)
			g.reg(gr, d)
		})
		d.Logger.Debug("route group mounted",
			logger.String("group", g.name),
			logger.Int("middlewares", len(mws)))
	}
}

// publicAPI is the stack shared by browser-facing routes.
func publicAPI(d deps.Deps, extra ...Middleware) []Middleware {
	return append([]Middleware{mw.EnforceHost(d.AllowedHosts, d.Logger)}, extra...)
}
