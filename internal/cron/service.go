package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/inkledger-backend/pkg/logger"
	"github.com/angelmondragon/inkledger-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

var errJobFailed = errors.New("job failed")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	// Manual jobs never run on the ticker, only through RunOnce.
	Manual   *Registry
	Lock     Lock
	Metrics  *metrics.BatchJobMetrics
	Interval time.Duration
}

// Service executes the registered billing jobs on a fixed cadence. One
// instance per environment runs a cycle at a time.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	manual   *Registry
	lock     Lock
	metrics  *metrics.BatchJobMetrics
	interval time.Duration
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	manual := params.Manual
	if manual == nil {
		manual = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		manual:   manual,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run starts the cron loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	if err := s.lock.Acquire(ctx, "scheduled"); err != nil {
		var held *LockHeldError
		if errors.As(err, &held) {
			heldCtx := s.logg.WithFields(ctx, map[string]any{"lock_instance": held.Instance, "lock_purpose": held.Purpose})
			s.logg.Info(heldCtx, "billing batch lock held elsewhere; skipping this cycle")
			return nil
		}
		return fmt.Errorf("lock acquire: %w", err)
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	s.logg.Info(ctx, "scheduled run starting")
	for _, job := range s.registry.Jobs() {
		s.runJob(ctx, job)
	}
	s.logg.Info(ctx, "scheduled run complete")
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	jobCtx = s.logg.WithField(jobCtx, "event", "cron.job")
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	s.observeDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.recordFailure(job.Name())
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.recordSuccess(job.Name())
}

// RunOnce executes a single registered job under the lock, outside the ticker.
func (s *Service) RunOnce(ctx context.Context, name string) error {
	job := s.registry.Lookup(name)
	if job == nil {
		job = s.manual.Lookup(name)
	}
	if job == nil {
		return fmt.Errorf("unknown job %q", name)
	}
	if err := s.lock.Acquire(ctx, name); err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	jobCtx := s.logg.WithField(ctx, "job", name)
	start := time.Now()
	err := job.Run(jobCtx)
	s.observeDuration(name, time.Since(start))
	if err != nil {
		s.recordFailure(name)
		return err
	}
	s.recordSuccess(name)
	return nil
}

func (s *Service) observeDuration(job string, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDuration(job, duration)
}

func (s *Service) recordSuccess(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncRun(job, nil)
}

func (s *Service) recordFailure(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncRun(job, errJobFailed)
}
