package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"scrape-dispatch/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// submitPath is the worker service's job intake endpoint.
const submitPath = "/api/jobs/submit"

// maxResponseBytes caps how much of a worker response is read into error
// detail and decoded.
const maxResponseBytes = 64 * 1024

type workerExecutor struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewWorkerExecutor creates an executor that submits jobs to the remote
// worker API over HTTP. The timeout bounds the whole submission round trip;
// expiry surfaces as a per-job failure to the caller. No retries are
// performed: a failed job stays eligible and is picked up by a later pass.
func NewWorkerExecutor(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) domain.Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &workerExecutor{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger.With("component", "worker-executor"),
		tracer:  otel.Tracer("scrape-dispatch-executor"),
	}
}

// Submit posts the job and its full part list to the worker API. The job is
// passed through as-is; the worker decides what to do with the part fields.
func (e *workerExecutor) Submit(ctx context.Context, job *domain.Job) (*domain.SubmitResult, error) {
	ctx, span := e.tracer.Start(ctx, "executor.Submit", trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.engine", string(job.Engine)),
	))
	defer span.End()

	body, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job %s: %w", job.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+submitPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create worker API request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "worker API request failed")
		return nil, fmt.Errorf("worker API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, "worker API returned non-success status")
		return nil, fmt.Errorf("worker API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result domain.SubmitResult
	if err := json.Unmarshal(raw, &result); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("decode worker API response: %w", err)
	}
	return &result, nil
}
