package mw

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/hotdeals/internal/auth"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
)

type ctxKey int

const subjectKey ctxKey = iota

// Subject returns the token subject set by RequireIdentity.
func Subject(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok
}

// RequireIdentity rejects requests without a valid, non-expired bearer token.
// If enabled is false it acts as a passthrough. A nil manager with enabled
// set rejects everything.
func RequireIdentity(m *auth.JWTManager, enabled bool, log logger.Logger) func(http.Handler) http.Handler {
	if !enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	if m == nil {
		log.Warn("identity required but no JWT secret configured, endpoint is closed")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok || m == nil {
				w.Header().Set("WWW-Authenticate", `Bearer`)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			claims, err := m.ValidateToken(token)
			if err != nil {
				log.Debug("rejected bearer token", logger.Error(err))
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
