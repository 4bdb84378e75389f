package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/investbot/balancer/internal/database"
	"github.com/investbot/balancer/internal/scheduler"
	testingpkg "github.com/investbot/balancer/internal/testing"
)

type pingModule struct{}

func (pingModule) RegisterRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})
}

type stubJob struct {
	name string
	err  error
	runs int
}

func (j *stubJob) Run() error   { j.runs++; return j.err }
func (j *stubJob) Name() string { return j.name }

func newTestServer(t *testing.T, broker *testingpkg.MockBrokerClient, jobs ...scheduler.Job) *Server {
	t.Helper()
	s := New(Config{
		Log:       zerolog.Nop(),
		Port:      0,
		DevMode:   true,
		Broker:    broker,
		Databases: []*database.DB{testingpkg.NewTestDB(t, "config")},
		Modules:   []RouteRegistrar{pingModule{}},
		Jobs:      jobs,
	})
	s.systemHandlers.stats = func() (float64, float64) { return 12.5, 40 }
	return s
}

func do(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testingpkg.NewMockBrokerClient())

	rec := do(s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestModulesMountedUnderAPI(t *testing.T) {
	s := newTestServer(t, testingpkg.NewMockBrokerClient())

	rec := do(s, http.MethodGet, "/api/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/ping").Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, testingpkg.NewMockBrokerClient())

	req := httptest.NewRequest(http.MethodOptions, "/api/ping", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSystemStatus(t *testing.T) {
	s := newTestServer(t, testingpkg.NewMockBrokerClient())

	rec := do(s, http.MethodGet, "/api/system/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.BrokerConnected)
	assert.Equal(t, 12.5, resp.CPUPercent)
	assert.Equal(t, 40.0, resp.MemoryPercent)
	assert.Equal(t, "ok", resp.Databases["config"])
}

func TestSystemStatus_BrokerDown(t *testing.T) {
	broker := testingpkg.NewMockBrokerClient()
	broker.SetError(errors.New("connection refused"))
	s := newTestServer(t, broker)

	rec := do(s, http.MethodGet, "/api/system/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.False(t, resp.BrokerConnected)
	assert.Equal(t, "connection refused", resp.BrokerError)
}

func TestJobs(t *testing.T) {
	ok := &stubJob{name: "deviation_monitor"}
	failing := &stubJob{name: "client_data_cleanup", err: errors.New("disk full")}
	s := newTestServer(t, testingpkg.NewMockBrokerClient(), ok, failing)

	rec := do(s, http.MethodGet, "/api/system/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"jobs":["client_data_cleanup","deviation_monitor"]}`, rec.Body.String())

	rec = do(s, http.MethodPost, "/api/system/jobs/deviation_monitor")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ok.runs)

	rec = do(s, http.MethodPost, "/api/system/jobs/client_data_cleanup")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk full")

	rec = do(s, http.MethodPost, "/api/system/jobs/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
