package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/pickup/internal/engine"
	"github.com/derickschaefer/pickup/internal/source"
)

// fixtureLines yields totals 10/9/7/5 at leads 3/2/1/0 for 2025-05-13.
func fixtureLines() []string {
	type row struct {
		pd          string
		room, avail int
	}
	rows := []row{
		{"2025-05-10", 1, 5}, {"2025-05-10", 2, 5},
		{"2025-05-11", 1, 5}, {"2025-05-11", 2, 4},
		{"2025-05-12", 1, 4}, {"2025-05-12", 2, 3},
		{"2025-05-13", 1, 3}, {"2025-05-13", 2, 2},
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf(
			`{"raw_check_in_date":"2025-05-13","raw_parse_date":%q,"raw_creation_date":"%s 09:00:00","raw_room_id":%d,"raw_availability":%d}`,
			r.pd, r.pd, r.room, r.avail))
	}
	return lines
}

func writeData(t *testing.T, path string, lines []string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0600))
}

func newTestServer(t *testing.T, cfg Config) (*Server, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.jsonl")
	writeData(t, path, fixtureLines())
	h, err := engine.NewHolder(context.Background(), &source.File{Path: path}, engine.Options{})
	require.NoError(t, err)
	return New(cfg, h), path
}

func do(t *testing.T, s *Server, method, target string) (*http.Response, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	res := rec.Result()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	if strings.HasPrefix(res.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(body, &out), string(body))
	}
	return res, out
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	res, body := do(t, s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["check_ins"])
	assert.NotEmpty(t, res.Header.Get(HeaderRequestID))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	id := "3f1c1a8e-8c64-4f0e-9a59-0a8f9e0c1d2b"
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, id)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(HeaderRequestID))
}

func TestProgressionEndpoint(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	res, body := do(t, s, http.MethodGet, "/api/progression?check_in=2025-05-13&z=1.5")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "2025-05-13", body["check_in"])
	assert.Equal(t, 1.5, body["z"])
	assert.Equal(t, float64(1), body["weekday"])
	points := body["points"].([]interface{})
	require.Len(t, points, 4)
	first := points[0].(map[string]interface{})
	assert.Equal(t, "2025-05-10", first["parse_date"])
	assert.Equal(t, float64(3), first["lead"])
	assert.Equal(t, float64(10), first["observed"])
}

func TestProgressionEndpointNoData(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	res, body := do(t, s, http.MethodGet, "/api/progression?check_in=2024-01-01")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, engine.MsgNoSnapshots, body["message"])
	assert.Empty(t, body["points"])
	assert.NotContains(t, body, "weekday")
}

func TestValidationErrors(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	tests := []struct {
		target string
		want   string
	}{
		{"/api/progression", "missing 'check_in' query param YYYY-MM-DD"},
		{"/api/progression?check_in=2025-5-13", "invalid 'check_in' format. Use YYYY-MM-DD"},
		{"/api/series?limit=abc", "invalid 'limit': must be a number"},
		{"/api/curve?check_in=2025-05-13&lead=x", "invalid 'lead': must be a number"},
		{"/api/anomalies", "missing 'cutoff' query param YYYY-MM-DD"},
	}
	for _, tc := range tests {
		t.Run(tc.target, func(t *testing.T) {
			res, body := do(t, s, http.MethodGet, tc.target)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			assert.Equal(t, tc.want, body["error"])
		})
	}
}

func TestSeriesCurveAndAnomalies(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	res, body := do(t, s, http.MethodGet, "/api/series?limit=5")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, body["series"], 1)
	assert.Len(t, body["labels"], 4)

	res, body = do(t, s, http.MethodGet, "/api/curve?check_in=2025-05-13")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, float64(3), body["start_lead"])
	points := body["points"].([]interface{})
	require.Len(t, points, 4)
	assert.Equal(t, float64(15), points[3].(map[string]interface{})["expected"])

	res, body = do(t, s, http.MethodGet, "/api/anomalies?cutoff=2025-05-11&days=10")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "2025-05-11", body["cutoff"])
	assert.Empty(t, body["results"])
}

func TestReloadEndpoint(t *testing.T) {
	var rebuilt []string
	s, path := newTestServer(t, Config{OnReload: func(trigger string, st engine.Stats) {
		rebuilt = append(rebuilt, trigger+":"+st.Hash)
	}})

	res, body := do(t, s, http.MethodPost, "/api/reload")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, false, body["changed"])

	lines := append(fixtureLines(),
		`{"raw_check_in_date":"2025-05-14","raw_parse_date":"2025-05-13","raw_creation_date":"2025-05-13 09:00:00","raw_room_id":1,"raw_availability":4}`)
	writeData(t, path, lines)

	res, body = do(t, s, http.MethodPost, "/api/reload")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, true, body["changed"])
	require.Len(t, rebuilt, 1)
	assert.Equal(t, "api:"+body["hash"].(string), rebuilt[0])

	_, body = do(t, s, http.MethodGet, "/health")
	assert.Equal(t, float64(2), body["check_ins"])

	res, _ = do(t, s, http.MethodGet, "/api/reload")
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestReloadFailureKeepsModel(t *testing.T) {
	s, path := newTestServer(t, Config{})
	require.NoError(t, os.Remove(path))

	res, body := do(t, s, http.MethodPost, "/api/reload")
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Contains(t, body["error"], "reload")

	_, body = do(t, s, http.MethodGet, "/health")
	assert.Equal(t, float64(1), body["check_ins"])
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, Config{RateLimit: 0.001, Burst: 1})
	res, _ := do(t, s, http.MethodGet, "/api/series")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res, body := do(t, s, http.MethodGet, "/api/series")
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	assert.Equal(t, "rate limit exceeded", body["error"])

	// Health is outside the limited /api tree.
	res, _ = do(t, s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestNotFound(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	res, body := do(t, s, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "not found: /nope", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	do(t, s, http.MethodGet, "/api/progression?check_in=2025-05-13")
	do(t, s, http.MethodPost, "/api/reload")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	text := rec.Body.String()
	assert.Contains(t, text, `pickup_http_requests_total{code="200",method="GET",route="/api/progression"} 1`)
	assert.Contains(t, text, `pickup_model_reloads_total{result="unchanged",trigger="api"} 1`)
	assert.Contains(t, text, "pickup_model_records 8")
}

func TestInvalidReloadSchedule(t *testing.T) {
	s, _ := newTestServer(t, Config{ReloadSchedule: "every tuesday", Addr: "127.0.0.1:0"})
	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid reload schedule")
}
