package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexlinker/plexlinker/internal/linker"
	"github.com/plexlinker/plexlinker/internal/logger"
	"github.com/plexlinker/plexlinker/internal/metrics"
	"github.com/plexlinker/plexlinker/internal/rules"
	"github.com/plexlinker/plexlinker/internal/scheduler"
	"github.com/plexlinker/plexlinker/internal/startup"
	"github.com/plexlinker/plexlinker/internal/testutil"
)

type stubPass struct {
	running bool
	marker  string
	last    *linker.PassReport
}

func (s stubPass) Running() bool                  { return s.running }
func (s stubPass) MarkerPath() string             { return s.marker }
func (s stubPass) LastReport() *linker.PassReport { return s.last }

type stubScheduler struct {
	ran []string
	err error
}

func (s *stubScheduler) ListTasks() []scheduler.TaskInfo {
	return []scheduler.TaskInfo{{ID: "link-pass", Name: "Link Pass", Interval: "15m0s"}}
}

func (s *stubScheduler) GetTask(id string) (*scheduler.TaskInfo, error) {
	if id != "link-pass" {
		return nil, scheduler.ErrTaskNotFound
	}
	return &scheduler.TaskInfo{ID: id}, nil
}

func (s *stubScheduler) RunNow(id string) error {
	if s.err != nil {
		return s.err
	}
	s.ran = append(s.ran, id)
	return nil
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func newSQLServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)

	deps.Rules = rules.NewSQLStore(tdb.Conn, tdb.Logger)
	return NewServer(Info{Version: "test", RulesSource: "db"}, deps, zerolog.Nop())
}

func TestHealthCheck(t *testing.T) {
	s := NewServer(Info{}, Deps{}, zerolog.Nop())

	rec := doRequest(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"status": "ok"}, body)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestStatus(t *testing.T) {
	root := t.TempDir()
	last := &linker.PassReport{ID: "abc", Linked: 2}
	s := NewServer(
		Info{Version: "1.2.3", RulesSource: "yaml", MediaRoot: root, StartTime: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)},
		Deps{
			Pass: stubPass{running: true, marker: filepath.Join(root, "pid.lock"), last: last},
			Services: func() []startup.ServiceStatus {
				return []startup.ServiceStatus{{Name: "sonarr", Version: "4.0"}}
			},
		},
		zerolog.Nop(),
	)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "1.2.3", body.Version)
	assert.Equal(t, "2024-03-09T00:00:00Z", body.StartTime)
	assert.True(t, body.MediaRootOK)
	assert.True(t, body.Running)
	assert.Equal(t, filepath.Join(root, "pid.lock"), body.MarkerPath)
	require.NotNil(t, body.LastPass)
	assert.Equal(t, 2, body.LastPass.Linked)
	require.Len(t, body.Services, 1)
	assert.Equal(t, "sonarr", body.Services[0].Name)
}

func TestRulesRoutes(t *testing.T) {
	s := newSQLServer(t, Deps{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = doRequest(t, s, http.MethodPost, "/api/v1/rules",
		`{"movieTitle":"Alpha","tmdbId":"100","showName":"Beta","episodes":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created rules.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, int64(100), created.TmdbID)
	assert.Equal(t, []int{1}, created.Episodes)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/rules",
		`{"movieTitle":"Alpha","tmdbId":100,"showName":"Beta","episodes":[1]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/rules/9999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodPut, "/api/v1/settings/PUID", `{"value":"1000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, s, http.MethodGet, "/api/v1/settings/PUID", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"key":"PUID","value":"1000"}`, rec.Body.String())
}

func TestRulesRoutes_NoStore(t *testing.T) {
	s := NewServer(Info{}, Deps{}, zerolog.Nop())

	rec := doRequest(t, s, http.MethodGet, "/api/v1/rules", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/rules", `{"movieTitle":"Alpha"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSchedulerRoutes(t *testing.T) {
	sched := &stubScheduler{}
	s := NewServer(Info{}, Deps{Scheduler: sched}, zerolog.Nop())

	rec := doRequest(t, s, http.MethodGet, "/api/v1/scheduler/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"link-pass"`)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/scheduler/tasks/link-pass/run", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"link-pass"}, sched.ran)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/scheduler/tasks/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	sched.err = scheduler.ErrTaskRunning
	rec = doRequest(t, s, http.MethodPost, "/api/v1/scheduler/tasks/link-pass/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	none := NewServer(Info{}, Deps{}, zerolog.Nop())
	rec = doRequest(t, none, http.MethodGet, "/api/v1/scheduler/tasks", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLogsRoute(t *testing.T) {
	recent := logger.NewRecentLogs(10)
	log := zerolog.New(recent)
	log.Info().Str("component", "linker").Msg("linked")
	log.Warn().Msg("show not found")

	s := NewServer(Info{}, Deps{Logs: recent}, zerolog.Nop())

	rec := doRequest(t, s, http.MethodGet, "/api/v1/system/logs?level=warn", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []logger.LogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "show not found", entries[0].Message)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/system/logs?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/system/logs/download", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObservePass(&linker.PassReport{Linked: 1}, nil)

	s := NewServer(Info{}, Deps{Metrics: metrics.Handler(reg)}, zerolog.Nop())

	rec := doRequest(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "plexlinker_links_created_total 1")
}

func TestFrontend(t *testing.T) {
	ui := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html>plexlinker</html>")},
		"app.css":    &fstest.MapFile{Data: []byte("body{}")},
	}
	s := NewServer(Info{}, Deps{UI: ui}, zerolog.Nop())

	rec := doRequest(t, s, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "plexlinker")

	rec = doRequest(t, s, http.MethodGet, "/app.css", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())

	rec = doRequest(t, s, http.MethodGet, "/rules/anything", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
