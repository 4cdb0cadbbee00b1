package mw

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/hotdeals/internal/logger"
)

type logEntry struct {
	level  string
	msg    string
	fields map[string]logger.Field
}

// recordingLogger keeps the structured calls and drops the rest.
type recordingLogger struct {
	logger.Logger
	mu      sync.Mutex
	entries []logEntry
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{Logger: logger.NewNop()}
}

func (l *recordingLogger) record(level, msg string, fields []logger.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := logEntry{level: level, msg: msg, fields: map[string]logger.Field{}}
	for _, f := range fields {
		e.fields[f.Key] = f
	}
	l.entries = append(l.entries, e)
}

func (l *recordingLogger) last(t *testing.T) logEntry {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	require.NotEmpty(t, l.entries)
	return l.entries[len(l.entries)-1]
}

func (l *recordingLogger) Debug(msg string, f ...logger.Field) { l.record("debug", msg, f) }
func (l *recordingLogger) Info(msg string, f ...logger.Field)  { l.record("info", msg, f) }
func (l *recordingLogger) Warn(msg string, f ...logger.Field)  { l.record("warn", msg, f) }
func (l *recordingLogger) Error(msg string, f ...logger.Field) { l.record("error", msg, f) }

func serve(h http.Handler, method, target string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func ok(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestLogRecordsRoutePattern(t *testing.T) {
	log := newRecordingLogger()
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Log(log, true))
	r.Get("/api/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	})
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	r.Get("/healthz", ok)

	serve(r, http.MethodGet, "/api/items/42?x=1", func(req *http.Request) {
		req.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")
	})
	e := log.last(t)
	assert.Equal(t, "info", e.level)
	assert.Equal(t, "http_request", e.msg)
	assert.Equal(t, "/api/items/{id}", e.fields["route"].String)
	assert.Equal(t, "/api/items/42", e.fields["path"].String)
	assert.Equal(t, int64(http.StatusCreated), e.fields["status"].Integer)
	assert.Equal(t, int64(5), e.fields["bytes"].Integer)
	assert.Equal(t, "198.51.100.9", e.fields["client_ip"].String)
	assert.NotEmpty(t, e.fields["request_id"].String)

	serve(r, http.MethodGet, "/boom", nil)
	assert.Equal(t, "error", log.last(t).level)

	serve(r, http.MethodGet, "/healthz", nil)
	e = log.last(t)
	assert.Equal(t, "debug", e.level)
	assert.Equal(t, int64(http.StatusOK), e.fields["status"].Integer)
}

func TestEnforceHost(t *testing.T) {
	h := EnforceHost([]string{"Hotdeals.example.com", "*.example.org", " "}, logger.NewNop())(http.HandlerFunc(ok))

	tests := []struct {
		host string
		want int
	}{
		{"hotdeals.example.com", http.StatusOK},
		{"HOTDEALS.example.com:8000", http.StatusOK},
		{"hotdeals.example.com.", http.StatusOK},
		{"api.example.org", http.StatusOK},
		{"example.org", http.StatusForbidden},
		{"evilexample.org", http.StatusForbidden},
		{"evil.com", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			rec := serve(h, http.MethodGet, "/api/hotdeals", func(req *http.Request) { req.Host = tt.host })
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	open := EnforceHost(nil, logger.NewNop())(http.HandlerFunc(ok))
	assert.Equal(t, http.StatusOK, serve(open, http.MethodGet, "/", nil).Code)
}

func TestAllowOnlyCIDRS(t *testing.T) {
	from := func(remote, xff string) func(*http.Request) {
		return func(req *http.Request) {
			req.RemoteAddr = remote
			if xff != "" {
				req.Header.Set("X-Forwarded-For", xff)
			}
		}
	}

	h := AllowOnlyCIDRS([]string{"10.0.0.0/8", "bogus"}, false, logger.NewNop())(http.HandlerFunc(ok))
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/infra", from("10.1.1.1:4000", "")).Code)
	assert.Equal(t, http.StatusForbidden, serve(h, http.MethodGet, "/infra", from("192.0.2.1:4000", "10.2.2.2")).Code)

	proxied := AllowOnlyCIDRS([]string{"10.0.0.0/8"}, true, logger.NewNop())(http.HandlerFunc(ok))
	assert.Equal(t, http.StatusOK, serve(proxied, http.MethodGet, "/infra", from("127.0.0.1:4000", "10.2.2.2")).Code)

	closed := AllowOnlyCIDRS([]string{"bogus"}, false, logger.NewNop())(http.HandlerFunc(ok))
	assert.Equal(t, http.StatusForbidden, serve(closed, http.MethodGet, "/infra", from("10.1.1.1:4000", "")).Code)

	open := AllowOnlyCIDRS(nil, false, logger.NewNop())(http.HandlerFunc(ok))
	assert.Equal(t, http.StatusOK, serve(open, http.MethodGet, "/infra", from("192.0.2.1:4000", "")).Code)
}

func TestRateLimitKeysPerRoute(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limit := RateLimit(RateLimitConfig{Burst: 1, RefillPerMin: 1, Now: func() time.Time { return now }})

	r := chi.NewRouter()
	r.With(limit).Get("/a", ok)
	r.With(limit).Get("/b/{id}", ok)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/a", nil).Code)

	rec := serve(r, http.MethodGet, "/a", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.JSONEq(t, rateLimitedBody, rec.Body.String())

	// a different route has its own budget, whatever the path parameters
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/b/1", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/b/2", nil).Code)

	// and so does another client
	other := func(req *http.Request) { req.RemoteAddr = "198.51.100.1:1234" }
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/a", other).Code)

	now = now.Add(61 * time.Second)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/a", nil).Code)
}

func TestRateLimitSharedScope(t *testing.T) {
	limit := RateLimit(RateLimitConfig{Scope: "search", Burst: 2, RefillPerMin: 1})

	r := chi.NewRouter()
	r.With(limit).Get("/a", ok)
	r.With(limit).Get("/b", ok)

	rec := serve(r, http.MethodGet, "/a", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/b", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/a", nil).Code)
}

func TestRateLimitSweepsIdleClients(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newLimiter(RateLimitConfig{Burst: 1, RefillPerMin: 1, MaxEntries: 2, IdleTTL: time.Minute, Now: func() time.Time { return now }})

	l.take("x|1", now)
	l.take("x|2", now)
	require.Len(t, l.buckets, 2)

	now = now.Add(2 * time.Minute)
	allowed, _, _ := l.take("x|3", now)
	assert.True(t, allowed)
	assert.Len(t, l.buckets, 1)
}
