package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"scrape-dispatch/internal/domain"
	"scrape-dispatch/internal/metrics"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DispatchService is the slice of the usecase layer the handler needs.
type DispatchService interface {
	RunPass(ctx context.Context) (*domain.PassSummary, error)
	CreateJob(ctx context.Context, job *domain.Job) error
	JobStats(ctx context.Context, jobID string) (*domain.JobStats, error)
	Reconcile(ctx context.Context, jobID string) (bool, error)
	Ping(ctx context.Context) error
}

// DispatchHandler exposes the pass trigger and the job admin surface.
type DispatchHandler struct {
	service  DispatchService
	logger   *slog.Logger
	validate *validator.Validate
	tracer   trace.Tracer
}

// NewDispatchHandler creates a new DispatchHandler.
func NewDispatchHandler(service DispatchService, logger *slog.Logger) *DispatchHandler {
	return &DispatchHandler{
		service:  service,
		logger:   logger.With("component", "dispatch-handler"),
		validate: validator.New(),
		tracer:   otel.Tracer("scrape-dispatch-api"),
	}
}

// A helper struct to capture the status code.
type instrumentedResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *instrumentedResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// RegisterRoutes registers the trigger and admin routes on the mux.
func (h *DispatchHandler) RegisterRoutes(mux *http.ServeMux) {
	// The trigger accepts any method; OPTIONS is consumed by the CORS
	// middleware before it gets here.
	mux.Handle("/dispatch", h.instrument("/dispatch", h.handleDispatch))
	mux.Handle("POST /jobs", h.instrument("/jobs", h.handleCreateJob))
	mux.Handle("GET /jobs/{id}/stats", h.instrument("/jobs/{id}/stats", h.handleJobStats))
	mux.Handle("POST /jobs/{id}/reconcile", h.instrument("/jobs/{id}/reconcile", h.handleReconcile))
	mux.Handle("GET /healthz", h.instrument("/healthz", h.handleHealth))
}

// instrument wraps a handler with a server span and a request counter.
func (h *DispatchHandler) instrument(path string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), "HTTP "+r.Method+" "+path, trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
		defer span.End()

		iw := &instrumentedResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(iw, r.WithContext(ctx))

		metrics.HTTPRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(iw.statusCode)).Inc()

		span.SetAttributes(attribute.Int("http.status_code", iw.statusCode))
		if iw.statusCode >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
	})
}

// handleDispatch runs one dispatch pass and returns its summary. Per-job
// failures are reported inside the summary; only fatal configuration or
// fetch errors produce a 500.
func (h *DispatchHandler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.RunPass(r.Context())
	if errors.Is(err, domain.ErrPassInProgress) {
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("dispatch pass failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := DispatchResponse{
		TotalEligible: summary.Total,
		Succeeded:     summary.Succeeded,
		Failed:        summary.Failed,
		Timestamp:     summary.Timestamp,
	}
	if summary.Total == 0 {
		resp.Message = "no eligible jobs found"
	} else {
		resp.Message = fmt.Sprintf("dispatched %d of %d eligible jobs", len(summary.Succeeded), summary.Total)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCreateJob validates and enqueues a new scrape job.
func (h *DispatchHandler) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.validate.Struct(req); err != nil {
		var details []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, ve := range verrs {
				details = append(details, "Field '"+ve.Field()+"' failed on the '"+ve.Tag()+"' tag.")
			}
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: details})
		return
	}

	job := req.ToDomainJob()
	if err := h.service.CreateJob(r.Context(), job); err != nil {
		h.logger.Error("error creating job", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, CreateJobResponse{JobID: job.ID, Parts: len(job.Parts)})
}

// handleJobStats returns part status counts for a job.
func (h *DispatchHandler) handleJobStats(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	stats, err := h.service.JobStats(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "job not found"})
			return
		}
		h.logger.Error("error getting job stats", "job_id", jobID, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{JobID: jobID, Stats: stats})
}

// handleReconcile runs the completion check for a job.
func (h *DispatchHandler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	completed, err := h.service.Reconcile(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "job not found"})
			return
		}
		h.logger.Error("error reconciling job", "job_id", jobID, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, ReconcileResponse{JobID: jobID, Completed: completed})
}

// handleHealth reports store connectivity.
func (h *DispatchHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"database": "connected",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
