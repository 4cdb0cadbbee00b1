package mw

import (
	"net/http"

	"github.com/go-chi/cors"
)

// contentSecurityPolicy allows the front end's CDN assets and https images.
const contentSecurityPolicy = "default-src 'self';" +
	"script-src 'self' 'unsafe-inline' 'unsafe-eval' https://cdn.tailwindcss.com;" +
	"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com;" +
	"font-src 'self' https://fonts.gstatic.com;" +
	"img-src 'self' data: https:;" +
	"connect-src 'self';"

// CORS opens the API to any origin and answers preflight requests.
func CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	})
}

// ContentSecurityPolicy sets the CSP header on every response, preflights
// included, so it must run before CORS.
func ContentSecurityPolicy() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
			next.ServeHTTP(w, r)
		})
	}
}
