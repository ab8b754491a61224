package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/inkledger-backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	JobOutboxRetention = "outbox-retention"

	outboxRetention = 30 * 24 * time.Hour
	dlqRetention    = 90 * 24 * time.Hour
)

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRetentionRepo
	DLQ        dlqRetentionRepo
	// MaxAttempts matches the publisher's limit; rows at or past it are parked.
	MaxAttempts  int
	Retention    time.Duration
	DLQRetention time.Duration
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type dlqRetentionRepo interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewOutboxRetentionJob prunes delivered billing and wallet events, then
// dead letters old enough that nobody will replay them.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Repository == nil:
		return nil, fmt.Errorf("outbox repository required")
	case params.DLQ == nil:
		return nil, fmt.Errorf("dlq repository required")
	case params.MaxAttempts <= 0:
		return nil, fmt.Errorf("max attempts required")
	}
	job := &outboxRetentionJob{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		dlq:          params.DLQ,
		maxAttempts:  params.MaxAttempts,
		retention:    params.Retention,
		dlqRetention: params.DLQRetention,
		now:          time.Now,
	}
	if job.retention <= 0 {
		job.retention = outboxRetention
	}
	if job.dlqRetention < job.retention {
		job.dlqRetention = dlqRetention
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	db           txRunner
	repo         outboxRetentionRepo
	dlq          dlqRetentionRepo
	maxAttempts  int
	retention    time.Duration
	dlqRetention time.Duration
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return JobOutboxRetention }

// Run deletes both tables in one transaction.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	eventCutoff := now.Add(-j.retention)
	dlqCutoff := now.Add(-j.dlqRetention)

	var events, deadLetters int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if events, err = j.repo.DeletePublishedBefore(ctx, tx, eventCutoff, j.maxAttempts); err != nil {
			return fmt.Errorf("events: %w", err)
		}
		if deadLetters, err = j.dlq.DeleteFailedBefore(ctx, tx, dlqCutoff); err != nil {
			return fmt.Errorf("dlq: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"event_cutoff":     eventCutoff,
		"dlq_cutoff":       dlqCutoff,
		"events_deleted":   events,
		"dlq_rows_deleted": deadLetters,
	}), "outbox retention complete")
	return nil
}
