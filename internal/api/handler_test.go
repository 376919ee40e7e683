package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/flowlens/internal/config"
	"github.com/gyaneshwarpardhi/flowlens/internal/engine"
)

const body = `{"user_id":"u1","session_id":"s1","event_time":"2024-05-01T10:00:00Z","path":"/"}
{"user_id":"u1","session_id":"s1","event_time":"2024-05-01T10:06:00Z","path":"/cart","css":"#error-404-banner"}
{"user_id":"u2","session_id":"s1","event_time":"2024-05-01T10:07:00Z","path":"/checkout"}
not json
`

func newServer(t *testing.T, path string) (*httptest.Server, *config.Loader) {
	t.Helper()
	loader, err := config.NewLoader(path)
	require.NoError(t, err)
	srv := httptest.NewServer(New(engine.New(loader.Config()), loader))
	t.Cleanup(srv.Close)
	return srv, loader
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAnalyze(t *testing.T) {
	srv, _ := newServer(t, "")

	resp, err := http.Post(srv.URL+"/v1/analyze", "application/x-ndjson", strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	out := decode(t, resp)
	summary := out["summary"].(map[string]any)
	assert.Equal(t, float64(4), summary["records_read"])
	assert.Equal(t, float64(1), summary["rejected"])
	assert.Equal(t, float64(1), summary["sessions"])
	assert.Len(t, out["identity_conflicts"], 1)

	anomalies := out["anomalies"].([]any)
	require.NotEmpty(t, anomalies)
	first := anomalies[0].(map[string]any)
	assert.Equal(t, "high", first["severity"])
}

func TestAnalyze_EchoesRequestID(t *testing.T) {
	srv, _ := newServer(t, "")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/analyze", strings.NewReader(""))
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "req-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-123", resp.Header.Get(RequestIDHeader))
}

func TestAnalyze_Formats(t *testing.T) {
	color.NoColor = true
	srv, _ := newServer(t, "")

	resp, err := http.Post(srv.URL+"/v1/analyze?format=text", "text/plain", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	text, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(text), "User flow analysis")

	resp, err = http.Post(srv.URL+"/v1/analyze?format=xml", "text/plain", strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	out := decode(t, resp)
	assert.Contains(t, out["error"], "unknown output format")
	assert.NotEmpty(t, out["request_id"])
}

func TestAnalyze_BodyTooLarge(t *testing.T) {
	defer func(limit int64) { maxBodyBytes = limit }(maxBodyBytes)
	maxBodyBytes = 64
	srv, _ := newServer(t, "")

	resp, err := http.Post(srv.URL+"/v1/analyze", "text/plain", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestAnalyze_MethodNotAllowed(t *testing.T) {
	srv, _ := newServer(t, "")
	resp, err := http.Get(srv.URL + "/v1/analyze")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestConfigEndpoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowlens.yaml")
	require.NoError(t, os.WriteFile(path, []byte("funnel:\n  terminal_path: /checkout\n"), 0o644))
	srv, loader := newServer(t, path)

	resp, err := http.Get(srv.URL + "/v1/config")
	require.NoError(t, err)
	out := decode(t, resp)
	assert.Equal(t, path, out["path"])
	cfg := out["config"].(map[string]any)
	assert.Equal(t, "5m0s", cfg["gap"].(map[string]any)["threshold"])

	// valid reload swaps the engine config
	require.NoError(t, os.WriteFile(path, []byte("funnel:\n  terminal_path: /thanks\n"), 0o644))
	resp, err = http.Post(srv.URL+"/v1/config/reload", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/v1/config")
	require.NoError(t, err)
	cfg = decode(t, resp)["config"].(map[string]any)
	assert.Equal(t, "/thanks", cfg["funnel"].(map[string]any)["terminal_path"])

	// invalid reload is refused and the previous config stays
	require.NoError(t, os.WriteFile(path, []byte("funnel:\n  terminal_path: thanks\ngap:\n  threshold: 0s\n"), 0o644))
	resp, err = http.Post(srv.URL+"/v1/config/reload", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	errBody := decode(t, resp)
	assert.Contains(t, errBody["error"], "config validation errors")
	assert.Equal(t, "/thanks", loader.Config().Funnel.TerminalPath)
}

func TestReload_WithoutFile(t *testing.T) {
	srv, _ := newServer(t, "")
	resp, err := http.Post(srv.URL+"/v1/config/reload", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newServer(t, "")

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "ok"}, decode(t, resp))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	text, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(text), "flowlens_records_read_total")
}
