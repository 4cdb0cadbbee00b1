package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/hotdeals/internal/httpserver/mw"
)

func init() {
	Register("search-ai", registerSearchAI, func(d deps.Deps) []Middleware {
		return publicAPI(d,
			mw.RateLimit(mw.RateLimitConfig{
				Scope:        "search-ai",
				Burst:        d.SearchRateBurst,
				RefillPerMin: d.SearchRatePerMin,
				MaxEntries:   10000,
				TrustProxy:   d.TrustProxy,
				Now:          d.Now,
			}),
			middleware.Timeout(d.AnswerTimeout),
		)
	})
}

func registerSearchAI(r chi.Router, d deps.Deps) {
	r.Get("/api/search/ai", handlers.SearchAI(d))
}
