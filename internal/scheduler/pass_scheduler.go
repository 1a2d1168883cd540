package scheduler

import (
	"context"
	"errors"
	"log/slog"

	"scrape-dispatch/internal/domain"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// PassRunner runs one dispatch pass over the current eligible batch.
type PassRunner interface {
	RunPass(ctx context.Context) (*domain.PassSummary, error)
}

// PassScheduler triggers dispatch passes on a cron schedule. It is one of
// the possible pass triggers next to the HTTP endpoint; both funnel into
// the same RunPass.
type PassScheduler struct {
	cron   *cron.Cron
	runner PassRunner
	spec   string
	logger *slog.Logger
	tracer trace.Tracer
}

// NewPassScheduler creates a scheduler that runs a pass per cron tick.
func NewPassScheduler(spec string, runner PassRunner, logger *slog.Logger) *PassScheduler {
	return &PassScheduler{
		cron:   cron.New(cron.WithSeconds()),
		runner: runner,
		spec:   spec,
		logger: logger.With("component", "pass-scheduler"),
		tracer: otel.Tracer("scrape-dispatch-scheduler"),
	}
}

// Start registers the schedule and blocks until ctx is done.
func (s *PassScheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, s.runOnce); err != nil {
		s.logger.Error("invalid dispatch schedule", "spec", s.spec, "error", err)
		return err
	}

	s.logger.Info("pass scheduler started", "spec", s.spec)
	s.cron.Start()
	<-ctx.Done()

	s.logger.Info("pass scheduler stopping...")
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("pass scheduler stopped")
	return ctx.Err()
}

// runOnce is called by the cron library. Each tick gets its own root span.
func (s *PassScheduler) runOnce() {
	ctx, span := s.tracer.Start(context.Background(), "scheduler.RunPass")
	defer span.End()

	summary, err := s.runner.RunPass(ctx)
	if errors.Is(err, domain.ErrPassInProgress) {
		s.logger.Info("skipping scheduled pass, another pass holds the lock")
		return
	}
	if err != nil {
		s.logger.Error("scheduled pass failed", "error", err)
		span.RecordError(err)
		return
	}
	if summary.Total > 0 {
		s.logger.Info("scheduled pass complete",
			"eligible", summary.Total,
			"succeeded", len(summary.Succeeded),
			"failed", len(summary.Failed),
		)
	}
}
