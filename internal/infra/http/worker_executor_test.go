package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scrape-dispatch/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testJob() *domain.Job {
	city := "Leeds"
	postcode := "LS1"
	return &domain.Job{
		ID:        "job-1",
		ProfileID: "profile-1",
		Engine:    domain.EngineGoogleMaps,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Status:    domain.StatusEligible,
		Parts: []domain.JobPart{
			{ID: "part-1", City: &city, Postcode: &postcode, Status: domain.StatusEligible},
			{ID: "part-2", Status: domain.StatusEligible},
		},
	}
}

func TestSubmitSuccess(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"message": "Job submitted with 2 parts",
			"job_id":  "job-1",
		})
	}))
	defer server.Close()

	exec := NewWorkerExecutor(server.URL, "secret-key", time.Second, testLogger())
	result, err := exec.Submit(context.Background(), testJob())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "Job submitted with 2 parts", result.Message)
	assert.Equal(t, "job-1", result.JobID)

	assert.Equal(t, "/api/jobs/submit", gotPath)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, "job-1", gotBody["job_id"])
	assert.Equal(t, "profile-1", gotBody["profile_id"])
	assert.Equal(t, "google_maps", gotBody["scraper_engine"])
	parts, ok := gotBody["job_parts"].([]any)
	require.True(t, ok)
	assert.Len(t, parts, 2)
}

func TestSubmitNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("overloaded"))
	}))
	defer server.Close()

	exec := NewWorkerExecutor(server.URL, "", time.Second, testLogger())
	result, err := exec.Submit(context.Background(), testJob())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, "worker API error (503): overloaded", err.Error())
}

func TestSubmitRemoteRefusal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": false, "error": "unknown scraper engine"}`))
	}))
	defer server.Close()

	exec := NewWorkerExecutor(server.URL, "", time.Second, testLogger())
	result, err := exec.Submit(context.Background(), testJob())
	require.NoError(t, err, "an explicit refusal is not a transport error")
	assert.False(t, result.Success)
	assert.Equal(t, "unknown scraper engine", result.Err)
}

func TestSubmitSuccessFlagAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message": "maybe"}`))
	}))
	defer server.Close()

	exec := NewWorkerExecutor(server.URL, "", time.Second, testLogger())
	result, err := exec.Submit(context.Background(), testJob())
	require.NoError(t, err)
	assert.False(t, result.Success, "absent success flag must read as failure")
}

func TestSubmitMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	exec := NewWorkerExecutor(server.URL, "", time.Second, testLogger())
	_, err := exec.Submit(context.Background(), testJob())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode worker API response")
}

func TestSubmitTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	exec := NewWorkerExecutor(server.URL, "", 50*time.Millisecond, testLogger())
	start := time.Now()
	_, err := exec.Submit(context.Background(), testJob())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 250*time.Millisecond, "wait must be bounded")
}

func TestSubmitUnreachableWorker(t *testing.T) {
	exec := NewWorkerExecutor("http://127.0.0.1:1", "", time.Second, testLogger())
	_, err := exec.Submit(context.Background(), testJob())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker API request failed")
}
