package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

func writeSite(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "posts", "hello"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "assets"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"),
		[]byte("<html><body><h1>Welcome</h1></body></html>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "posts", "hello", "index.html"),
		[]byte("<html><body>hello</body></html>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "assets", "site.css"),
		[]byte("body{}</body>"), 0o600))
	return root
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServesStaticFilesWithLiveReload(t *testing.T) {
	s := New(Config{Root: writeSite(t), LiveReload: true})
	h := s.Handler()

	rec := get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `<script async src="/__livereload.js"></script></body>`)

	rec = get(t, h, "/posts/hello/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), scriptPath)

	rec = get(t, h, "/assets/site.css")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "body{}</body>", rec.Body.String())

	rec = get(t, h, scriptPath)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), reloadPath)

	rec = get(t, h, "/missing/")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.NotContains(t, rec.Body.String(), scriptPath)
}

func TestNoInjectionWhenLiveReloadDisabled(t *testing.T) {
	s := New(Config{Root: writeSite(t)})
	rec := get(t, s.Handler(), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), scriptPath)
	require.Equal(t, http.StatusNotFound, get(t, s.Handler(), scriptPath).Code)
}

func TestHealthReportsLastBuild(t *testing.T) {
	s := New(Config{Root: t.TempDir()})
	s.BuildFinished("build-1", "success", nil)

	rec := get(t, s.Handler(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, "build-1", body.LastBuild)
	require.Equal(t, "success", body.Outcome)
	require.NotNil(t, body.BuiltAt)
}

func TestHealthReflectsFailedBuild(t *testing.T) {
	s := New(Config{Root: t.TempDir()})
	s.BuildFinished("build-3", "failed", ferrors.BuildError("duplicate output").Build())

	rec := get(t, s.Handler(), "/healthz")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "build_failed", body.Status)
	require.Contains(t, body.Error, "duplicate output")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	rec.IncRebuildTrigger("watch")

	s := New(Config{Root: t.TempDir(), Metrics: metrics.HTTPHandler(reg)})
	res := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "rebuild")
}

func TestLiveReloadBroadcast(t *testing.T) {
	s := New(Config{Root: writeSite(t), LiveReload: true})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + reloadPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg ReloadMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "hello", msg.Type)

	require.Eventually(t, func() bool { return s.Hub().Clients() == 1 }, time.Second, 5*time.Millisecond)
	s.BuildFinished("build-2", "success", nil)

	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, ReloadMessage{Type: "reload", BuildID: "build-2"}, msg)

	s.Hub().Shutdown()
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	require.Eventually(t, func() bool { return s.Hub().Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}
