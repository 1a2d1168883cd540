package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"scrape-dispatch/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	summary      *domain.PassSummary
	runErr       error
	created      *domain.Job
	createErr    error
	stats        *domain.JobStats
	statsErr     error
	completed    bool
	reconcileErr error
	pingErr      error
}

func (s *stubService) RunPass(ctx context.Context) (*domain.PassSummary, error) {
	return s.summary, s.runErr
}

func (s *stubService) CreateJob(ctx context.Context, job *domain.Job) error {
	if s.createErr != nil {
		return s.createErr
	}
	job.ID = "generated-id"
	s.created = job
	return nil
}

func (s *stubService) JobStats(ctx context.Context, jobID string) (*domain.JobStats, error) {
	return s.stats, s.statsErr
}

func (s *stubService) Reconcile(ctx context.Context, jobID string) (bool, error) {
	return s.completed, s.reconcileErr
}

func (s *stubService) Ping(ctx context.Context) error { return s.pingErr }

func newTestServer(t *testing.T, svc DispatchService) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewDispatchHandler(svc, logger)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	server := httptest.NewServer(CORS(mux))
	t.Cleanup(server.Close)
	return server
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestDispatchReturnsSummary(t *testing.T) {
	svc := &stubService{summary: &domain.PassSummary{
		Total:     2,
		Succeeded: []domain.Outcome{{JobID: "job-a", Detail: "accepted"}},
		Failed:    []domain.Outcome{{JobID: "job-b", Detail: "worker API error (503): overloaded"}},
		Timestamp: time.Now().UTC(),
	}}
	server := newTestServer(t, svc)

	resp, err := http.Post(server.URL+"/dispatch", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[DispatchResponse](t, resp)
	assert.Equal(t, 2, body.TotalEligible)
	assert.Equal(t, "dispatched 1 of 2 eligible jobs", body.Message)
	require.Len(t, body.Failed, 1)
	assert.Equal(t, "worker API error (503): overloaded", body.Failed[0].Detail)
}

func TestDispatchEmptyBatch(t *testing.T) {
	svc := &stubService{summary: &domain.PassSummary{
		Succeeded: []domain.Outcome{},
		Failed:    []domain.Outcome{},
		Timestamp: time.Now().UTC(),
	}}
	server := newTestServer(t, svc)

	resp, err := http.Post(server.URL+"/dispatch", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[DispatchResponse](t, resp)
	assert.Equal(t, "no eligible jobs found", body.Message)
	assert.Zero(t, body.TotalEligible)
}

func TestDispatchFatalError(t *testing.T) {
	svc := &stubService{runErr: errors.New("dispatch pass: missing required configuration")}
	server := newTestServer(t, svc)

	resp, err := http.Post(server.URL+"/dispatch", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body := decodeBody[ErrorResponse](t, resp)
	assert.Contains(t, body.Error, "missing required configuration")
}

func TestDispatchLocked(t *testing.T) {
	svc := &stubService{runErr: domain.ErrPassInProgress}
	server := newTestServer(t, svc)

	resp, err := http.Post(server.URL+"/dispatch", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDispatchPreflight(t *testing.T) {
	server := newTestServer(t, &stubService{})

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/dispatch", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "OPTIONS")
}

func TestCreateJob(t *testing.T) {
	svc := &stubService{}
	server := newTestServer(t, svc)

	payload := `{
		"profile_id": "profile-1",
		"scraper_engine": "google_maps",
		"job_parts": [{"city": "Leeds", "postcode": "LS1"}, {"keyword": "plumber"}]
	}`
	resp, err := http.Post(server.URL+"/jobs", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody[CreateJobResponse](t, resp)
	assert.Equal(t, "generated-id", body.JobID)
	assert.Equal(t, 2, body.Parts)

	require.NotNil(t, svc.created)
	assert.Equal(t, domain.EngineGoogleMaps, svc.created.Engine)
	require.Len(t, svc.created.Parts, 2)
	require.NotNil(t, svc.created.Parts[0].City)
	assert.Equal(t, "Leeds", *svc.created.Parts[0].City)
}

func TestCreateJobValidationFailure(t *testing.T) {
	server := newTestServer(t, &stubService{})

	payload := `{"profile_id": "profile-1", "scraper_engine": "linkedin", "job_parts": []}`
	resp, err := http.Post(server.URL+"/jobs", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "validation failed", body.Error)
	assert.NotEmpty(t, body.Details)
}

func TestCreateJobBadJSON(t *testing.T) {
	server := newTestServer(t, &stubService{})

	resp, err := http.Post(server.URL+"/jobs", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJobStats(t *testing.T) {
	svc := &stubService{stats: &domain.JobStats{Total: 3, Done: 2, Failed: 1}}
	server := newTestServer(t, svc)

	resp, err := http.Get(server.URL + "/jobs/job-1/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[StatsResponse](t, resp)
	assert.Equal(t, "job-1", body.JobID)
	require.NotNil(t, body.Stats)
	assert.Equal(t, 3, body.Stats.Total)
}

func TestJobStatsNotFound(t *testing.T) {
	svc := &stubService{statsErr: domain.ErrJobNotFound}
	server := newTestServer(t, svc)

	resp, err := http.Get(server.URL + "/jobs/missing/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReconcile(t *testing.T) {
	svc := &stubService{completed: true}
	server := newTestServer(t, svc)

	resp, err := http.Post(server.URL+"/jobs/job-1/reconcile", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[ReconcileResponse](t, resp)
	assert.True(t, body.Completed)
}

func TestHealthUnhealthy(t *testing.T) {
	svc := &stubService{pingErr: errors.New("database is locked")}
	server := newTestServer(t, svc)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHealthHealthy(t *testing.T) {
	server := newTestServer(t, &stubService{})

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "healthy", body["status"])
}
