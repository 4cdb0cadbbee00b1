package claude

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateReturnsText(t *testing.T) {
	var seen map[string]any
	srv := newTestServer(t, http.StatusOK, `{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
		"content": [{"type": "text", "text": "  뽐뿌에 모니터 특가가 있습니다. "}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`, &seen)

	g, err := NewGenerator(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "claude-test", MaxRetries: 0})
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "당신은 핫딜 도우미입니다.", "질문: 모니터")
	require.NoError(t, err)
	assert.Equal(t, "뽐뿌에 모니터 특가가 있습니다.", out)

	assert.Equal(t, "claude-test", seen["model"])
	assert.NotNil(t, seen["system"])
	assert.Len(t, seen["messages"], 1)
}

func TestGenerateEmptyResponse(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{
		"id": "msg_2", "type": "message", "role": "assistant", "model": "claude-test",
		"content": [], "stop_reason": "end_turn",
		"usage": {"input_tokens": 1, "output_tokens": 0}
	}`, nil)

	g, err := NewGenerator(Config{APIKey: "test-key", BaseURL: srv.URL, MaxRetries: 0})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "", "hi")
	assert.True(t, errors.Is(err, ErrEmptyResponse))
}

func TestGenerateAPIError(t *testing.T) {
	srv := newTestServer(t, http.StatusBadRequest,
		`{"type":"error","error":{"type":"invalid_request_error","message":"bad model"}}`, nil)

	g, err := NewGenerator(Config{APIKey: "test-key", BaseURL: srv.URL, MaxRetries: 0})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "", "hi")
	assert.Error(t, err)
}

func TestNewGeneratorDefaults(t *testing.T) {
	_, err := NewGenerator(Config{})
	assert.Error(t, err)

	g, err := NewGenerator(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, g.ModelName())
	assert.Equal(t, int64(DefaultMaxTokens), g.maxTokens)
}
