package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"scrape-dispatch/internal/domain"
	"scrape-dispatch/internal/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// passLockName is the single lock all dispatcher processes contend on.
const passLockName = "dispatch-pass"

// DispatchService converts one batch of eligible jobs into worker
// submissions and reconciled status updates. Jobs are strictly isolated:
// one job's failure never aborts or corrupts the processing of siblings in
// the same pass.
type DispatchService struct {
	store    domain.JobStore
	executor domain.Executor
	locker   domain.Locker // optional; nil disables cross-process exclusion
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewDispatchService creates a new DispatchService. locker may be nil when
// the deployment guarantees serialized pass invocations.
func NewDispatchService(store domain.JobStore, executor domain.Executor, locker domain.Locker, logger *slog.Logger) *DispatchService {
	return &DispatchService{
		store:    store,
		executor: executor,
		locker:   locker,
		logger:   logger.With("component", "dispatch-service"),
		tracer:   otel.Tracer("scrape-dispatch-usecase"),
	}
}

// RunPass processes the current eligible batch to completion and returns
// the pass summary. Fatal errors (missing configuration, a failed batch
// fetch, lock infrastructure trouble) return a nil summary and an error;
// per-job failures only ever land in the summary's failed list.
func (s *DispatchService) RunPass(ctx context.Context) (*domain.PassSummary, error) {
	ctx, span := s.tracer.Start(ctx, "service.RunPass")
	defer span.End()

	if s.store == nil || s.executor == nil {
		metrics.PassesTotal.WithLabelValues("fatal").Inc()
		span.SetStatus(codes.Error, "missing configuration")
		return nil, fmt.Errorf("dispatch pass: %w", domain.ErrMissingConfig)
	}

	if s.locker != nil {
		lock, err := s.locker.Lock(ctx, passLockName)
		if errors.Is(err, domain.ErrLockNotAcquired) {
			metrics.PassesTotal.WithLabelValues("locked").Inc()
			return nil, domain.ErrPassInProgress
		}
		if err != nil {
			metrics.PassesTotal.WithLabelValues("fatal").Inc()
			span.RecordError(err)
			return nil, fmt.Errorf("acquire pass lock: %w", err)
		}
		defer func() {
			if err := lock.Unlock(ctx); err != nil {
				s.logger.Warn("failed to release pass lock", "error", err)
			}
		}()
	}

	jobs, err := s.store.FetchEligible(ctx)
	if err != nil {
		metrics.PassesTotal.WithLabelValues("fatal").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch eligible batch")
		return nil, fmt.Errorf("fetch eligible batch: %w", err)
	}

	summary := &domain.PassSummary{
		Total:     len(jobs),
		Succeeded: []domain.Outcome{},
		Failed:    []domain.Outcome{},
		Timestamp: time.Now().UTC(),
	}
	span.SetAttributes(attribute.Int("pass.eligible", len(jobs)))
	metrics.EligibleJobsLastPass.Set(float64(len(jobs)))

	if len(jobs) == 0 {
		s.logger.Info("no eligible jobs found")
		metrics.PassesTotal.WithLabelValues("ok").Inc()
		return summary, nil
	}

	// Jobs are processed one at a time in store order (creation time
	// ascending) so status writes for different jobs never interleave.
	for _, job := range jobs {
		outcome, err := s.dispatchOne(ctx, job)
		if err != nil {
			s.logger.Error("job dispatch failed", "job_id", job.ID, "error", err)
			metrics.JobDispatchesTotal.WithLabelValues(string(job.Engine), "failed").Inc()
			summary.Failed = append(summary.Failed, domain.Outcome{JobID: job.ID, Detail: err.Error()})
			continue
		}
		s.logger.Info("job dispatched", "job_id", job.ID, "parts", len(job.Parts))
		metrics.JobDispatchesTotal.WithLabelValues(string(job.Engine), "succeeded").Inc()
		summary.Succeeded = append(summary.Succeeded, *outcome)
	}

	s.logger.Info("dispatch pass complete",
		"eligible", summary.Total,
		"succeeded", len(summary.Succeeded),
		"failed", len(summary.Failed),
	)
	metrics.PassesTotal.WithLabelValues("ok").Inc()
	return summary, nil
}

// dispatchOne runs the per-job sequence: submit, confirm acceptance, mark
// the job in progress, then mark its parts. Every failure, including a
// panic from a collaborator, is contained here so the pass moves on to the
// next job.
func (s *DispatchService) dispatchOne(ctx context.Context, job *domain.Job) (outcome *domain.Outcome, err error) {
	ctx, span := s.tracer.Start(ctx, "service.DispatchJob", trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.engine", string(job.Engine)),
	))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = fmt.Errorf("panic during dispatch: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "job dispatch failed")
		}
	}()

	result, err := s.executor.Submit(ctx, job)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		detail := result.Err
		if detail == "" {
			detail = "worker API reported failure"
		}
		return nil, errors.New(detail)
	}

	if err := s.store.UpdateJobStatus(ctx, job.ID, domain.StatusEligible, domain.StatusInProgress); err != nil {
		// The worker accepted the job but it is still marked eligible,
		// so the next pass may dispatch it again.
		metrics.InconsistenciesTotal.WithLabelValues("job_unmarked").Inc()
		return nil, fmt.Errorf("update job status: %w", err)
	}

	if err := s.store.UpdatePartsStatus(ctx, job.ID, domain.StatusInProgress); err != nil {
		// Job is in progress while its parts stayed eligible.
		metrics.InconsistenciesTotal.WithLabelValues("parts_unmarked").Inc()
		return nil, fmt.Errorf("update job parts status: %w", err)
	}

	detail := result.Message
	if detail == "" {
		detail = "accepted"
	}
	return &domain.Outcome{JobID: job.ID, Detail: detail}, nil
}

// CreateJob validates and persists a new job with eligible status, minting
// IDs where absent.
func (s *DispatchService) CreateJob(ctx context.Context, job *domain.Job) error {
	ctx, span := s.tracer.Start(ctx, "service.CreateJob")
	defer span.End()

	if err := job.Validate(); err != nil {
		return err
	}

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.Status = domain.StatusEligible
	for i := range job.Parts {
		if job.Parts[i].ID == "" {
			job.Parts[i].ID = uuid.New().String()
		}
		job.Parts[i].Status = domain.StatusEligible
	}
	span.SetAttributes(attribute.String("job.id", job.ID), attribute.Int("job.parts", len(job.Parts)))

	if err := s.store.CreateJob(ctx, job); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create job")
		return err
	}
	return nil
}

// JobStats returns part status counts for a job.
func (s *DispatchService) JobStats(ctx context.Context, jobID string) (*domain.JobStats, error) {
	ctx, span := s.tracer.Start(ctx, "service.JobStats")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	stats, err := s.store.JobStats(ctx, jobID)
	if err != nil {
		span.RecordError(err)
	}
	return stats, err
}

// Reconcile flips a job to done once all of its parts have finished. The
// downstream consumer that records part results calls this after updates.
func (s *DispatchService) Reconcile(ctx context.Context, jobID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "service.Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	completed, err := s.store.CompleteIfFinished(ctx, jobID)
	if err != nil {
		span.RecordError(err)
	}
	return completed, err
}

// Ping reports whether the job store is reachable.
func (s *DispatchService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
