package httpserver

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})
}

func newTestServer(t *testing.T) (*BaseServer, *httptest.Server) {
	t.Helper()
	srv, err := New(&HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		Log:                      slog.New(slog.DiscardHandler),
		GracefulShutdownDuration: time.Second,
	}, pingRoutes{})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func get(t *testing.T, ts *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestRegisteredRoutes(t *testing.T) {
	_, ts := newTestServer(t)

	status, body := get(t, ts, "/ping")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "pong", body)

	status, _ = get(t, ts, "/debug/pprof/")
	require.Equal(t, http.StatusNotFound, status)
}

func TestDrainLifecycle(t *testing.T) {
	srv, ts := newTestServer(t)

	status, body := get(t, ts, "/livez")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"status":"alive"}`, body)

	status, _ = get(t, ts, "/readyz")
	require.Equal(t, http.StatusOK, status)

	_, body = get(t, ts, "/drain")
	require.JSONEq(t, `{"status":"draining"}`, body)
	require.False(t, srv.IsReady())

	status, _ = get(t, ts, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, status)

	_, body = get(t, ts, "/drain")
	require.JSONEq(t, `{"status":"already draining"}`, body)

	_, body = get(t, ts, "/undrain")
	require.JSONEq(t, `{"status":"ready"}`, body)
	require.True(t, srv.IsReady())
}

func TestNewRequiresListenAddr(t *testing.T) {
	_, err := New(&HTTPServerConfig{})
	require.Error(t, err)
}
