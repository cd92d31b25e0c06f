package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"renovateAi/internal/conversation"
	"renovateAi/internal/metrics"
	"renovateAi/internal/sessions"
	"renovateAi/internal/storage"
	"renovateAi/internal/vision"
)

func newTestServer(t *testing.T) (*http.Server, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	m := metrics.New()
	srv := New(Options{
		Port: "0",
		Sessions: sessions.Handler{
			Store:   storage.NewInMemoryStore(0),
			Machine: conversation.NewMachine(conversation.DefaultPolicy()),
			Metrics: m,
		},
		Vision:  vision.Handler{},
		Metrics: m,
		Logger:  zap.New(core),
	})
	return srv, logs
}

func serve(srv *http.Server, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := serve(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRoutesAndMetrics(t *testing.T) {
	srv, logs := newTestServer(t)

	rec := serve(srv, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(srv, http.MethodPost, "/api/prompts/compile", `{"room_type":"bathroom","style":"coastal"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bathroom")

	// vision capabilities are not configured
	rec = serve(srv, http.MethodPost, "/api/vision/analyze", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "renovate_sessions_created_total 1")

	requests := logs.FilterMessage("request").All()
	require.NotEmpty(t, requests)
	assert.Equal(t, "/api/sessions", requests[0].ContextMap()["path"])
	assert.EqualValues(t, http.StatusCreated, requests[0].ContextMap()["status"])
}

func TestWriteTimeoutDefault(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Equal(t, ":0", srv.Addr)
	assert.Positive(t, srv.WriteTimeout)
}
