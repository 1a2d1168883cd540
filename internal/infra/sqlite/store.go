package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"scrape-dispatch/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type jobStore struct {
	db     *sql.DB
	logger *slog.Logger
	tracer trace.Tracer
}

// NewJobStore creates a SQLite-backed job store.
func NewJobStore(db *sql.DB, logger *slog.Logger) domain.JobStore {
	return &jobStore{
		db:     db,
		logger: logger.With("component", "sqlite-store"),
		tracer: otel.Tracer("scrape-dispatch-sqlite"),
	}
}

// CreateJob persists the job and its parts in one transaction.
func (s *jobStore) CreateJob(ctx context.Context, job *domain.Job) error {
	ctx, span := s.tracer.Start(ctx, "store.CreateJob")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", job.ID),
		attribute.Int("job.parts", len(job.Parts)),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create job: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO scrape_jobs(id, profile_id, scraper_engine, status, created_at)
VALUES(?, ?, ?, ?, ?);
`, job.ID, job.ProfileID, string(job.Engine), string(job.Status), job.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}

	for _, part := range job.Parts {
		_, err = tx.ExecContext(ctx, `
INSERT INTO scrape_job_parts(id, job_id, city, postcode, keyword, status)
VALUES(?, ?, ?, ?, ?, ?);
`, part.ID, job.ID, part.City, part.Postcode, part.Keyword, string(part.Status))
		if err != nil {
			return fmt.Errorf("insert job part %s: %w", part.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob returns a job with its parts.
func (s *jobStore) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	ctx, span := s.tracer.Start(ctx, "store.GetJob")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", id))

	row := s.db.QueryRowContext(ctx, `
SELECT id, profile_id, scraper_engine, status, created_at
FROM scrape_jobs
WHERE id = ?;
`, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	if err := s.loadParts(ctx, job); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return job, nil
}

// FetchEligible returns the eligible batch: jobs whose own status and all
// part statuses are eligible, oldest first.
func (s *jobStore) FetchEligible(ctx context.Context) ([]*domain.Job, error) {
	ctx, span := s.tracer.Start(ctx, "store.FetchEligible")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
SELECT j.id, j.profile_id, j.scraper_engine, j.status, j.created_at
FROM scrape_jobs j
WHERE j.status = ?
  AND NOT EXISTS (
    SELECT 1 FROM scrape_job_parts p
    WHERE p.job_id = j.id AND p.status <> ?
  )
ORDER BY j.created_at ASC, j.rowid ASC;
`, string(domain.StatusEligible), string(domain.StatusEligible))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query eligible jobs")
		return nil, fmt.Errorf("fetch eligible jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scan eligible job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate eligible jobs: %w", err)
	}

	for _, job := range jobs {
		if err := s.loadParts(ctx, job); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}
	span.SetAttributes(attribute.Int("jobs.eligible", len(jobs)))
	return jobs, nil
}

// UpdateJobStatus performs a compare-and-set on the job row so a concurrent
// pass that already claimed the job turns into ErrStatusConflict instead of
// a silent double write.
func (s *jobStore) UpdateJobStatus(ctx context.Context, id string, expected, next domain.Status) error {
	ctx, span := s.tracer.Start(ctx, "store.UpdateJobStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", id),
		attribute.String("status.next", string(next)),
	)

	res, err := s.db.ExecContext(ctx, `
UPDATE scrape_jobs SET status = ? WHERE id = ? AND status = ?;
`, string(next), id, string(expected))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("update job %s status: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job %s status: %w", id, err)
	}
	if affected == 0 {
		var one int
		if scanErr := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM scrape_jobs WHERE id = ?;`, id).Scan(&one); scanErr != nil {
			return domain.ErrJobNotFound
		}
		return domain.ErrStatusConflict
	}
	return nil
}

// UpdatePartsStatus updates every part of the job in one scoped statement.
func (s *jobStore) UpdatePartsStatus(ctx context.Context, jobID string, next domain.Status) error {
	ctx, span := s.tracer.Start(ctx, "store.UpdatePartsStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", jobID),
		attribute.String("status.next", string(next)),
	)

	_, err := s.db.ExecContext(ctx, `
UPDATE scrape_job_parts SET status = ? WHERE job_id = ?;
`, string(next), jobID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("update parts of job %s: %w", jobID, err)
	}
	return nil
}

// JobStats returns part status counts for a job.
func (s *jobStore) JobStats(ctx context.Context, jobID string) (*domain.JobStats, error) {
	ctx, span := s.tracer.Start(ctx, "store.JobStats")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	var one int
	if err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM scrape_jobs WHERE id = ?;`, jobID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("check job %s: %w", jobID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT status, COUNT(*) FROM scrape_job_parts WHERE job_id = ? GROUP BY status;
`, jobID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("job %s stats: %w", jobID, err)
	}
	defer rows.Close()

	stats := &domain.JobStats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan job %s stats: %w", jobID, err)
		}
		stats.Total += count
		switch domain.Status(status) {
		case domain.StatusEligible:
			stats.Eligible = count
		case domain.StatusInProgress:
			stats.InProgress = count
		case domain.StatusDone:
			stats.Done = count
		case domain.StatusFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job %s stats: %w", jobID, err)
	}
	return stats, nil
}

// CompleteIfFinished marks the job done once every part is done or failed.
func (s *jobStore) CompleteIfFinished(ctx context.Context, jobID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "store.CompleteIfFinished")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	res, err := s.db.ExecContext(ctx, `
UPDATE scrape_jobs SET status = ?
WHERE id = ?
  AND EXISTS (
    SELECT 1 FROM scrape_job_parts p WHERE p.job_id = scrape_jobs.id
  )
  AND NOT EXISTS (
    SELECT 1 FROM scrape_job_parts p
    WHERE p.job_id = scrape_jobs.id AND p.status NOT IN (?, ?)
  );
`, string(domain.StatusDone), jobID, string(domain.StatusDone), string(domain.StatusFailed))
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("complete job %s: %w", jobID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete job %s: %w", jobID, err)
	}
	if affected == 0 {
		var one int
		if scanErr := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM scrape_jobs WHERE id = ?;`, jobID).Scan(&one); scanErr != nil {
			return false, domain.ErrJobNotFound
		}
		return false, nil
	}
	s.logger.Info("job completed, all parts finished", "job_id", jobID)
	return true, nil
}

// Ping verifies the database connection.
func (s *jobStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *jobStore) loadParts(ctx context.Context, job *domain.Job) error {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, city, postcode, keyword, status
FROM scrape_job_parts
WHERE job_id = ?
ORDER BY rowid ASC;
`, job.ID)
	if err != nil {
		return fmt.Errorf("load parts of job %s: %w", job.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var part domain.JobPart
		var status string
		if err := rows.Scan(&part.ID, &part.City, &part.Postcode, &part.Keyword, &status); err != nil {
			return fmt.Errorf("scan part of job %s: %w", job.ID, err)
		}
		part.Status = domain.Status(status)
		job.Parts = append(job.Parts, part)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		j          domain.Job
		engine     string
		status     string
		createdAtS string
	)
	if err := row.Scan(&j.ID, &j.ProfileID, &engine, &status, &createdAtS); err != nil {
		return nil, err
	}
	j.Engine = domain.Engine(engine)
	j.Status = domain.Status(status)
	if t, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
		j.CreatedAt = t
	}
	return &j, nil
}
