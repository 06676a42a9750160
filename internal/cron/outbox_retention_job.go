package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultDLQRetention    = 90 * 24 * time.Hour
	defaultPruneBatch      = 500
	maxPruneBatches        = 40
	outboxMinAttempts      = 10
	retentionEvery         = 6 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	PruneBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount, limit int) (int64, error)
}

type dlqPruner interface {
	PruneBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

// OutboxRetentionJobParams configure the prune job. DLQ is optional; without
// it parked rows are kept forever.
type OutboxRetentionJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Outbox       outboxPruner
	DLQ          dlqPruner
	Retention    time.Duration
	DLQRetention time.Duration
	BatchSize    int
	MinAttempts  int
}

// NewOutboxRetentionJob builds the job that trims delivered events and old
// dead letters in short transactions.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Outbox == nil:
		return nil, errors.New("outbox repository required")
	}
	return &outboxRetentionJob{
		logg:         params.Logger,
		db:           params.DB,
		outbox:       params.Outbox,
		dlq:          params.DLQ,
		retention:    positiveOr(params.Retention, defaultOutboxRetention),
		dlqRetention: positiveOr(params.DLQRetention, defaultDLQRetention),
		batch:        positiveOr(params.BatchSize, defaultPruneBatch),
		minAttempts:  positiveOr(params.MinAttempts, outboxMinAttempts),
		now:          time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	db           txRunner
	outbox       outboxPruner
	dlq          dlqPruner
	retention    time.Duration
	dlqRetention time.Duration
	batch        int
	minAttempts  int
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Every() time.Duration { return retentionEvery }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	outboxCutoff := now.Add(-j.retention)
	events, err := j.drain(ctx, func(tx *gorm.DB) (int64, error) {
		return j.outbox.PruneBefore(ctx, tx, outboxCutoff, j.minAttempts, j.batch)
	})
	if err != nil {
		return fmt.Errorf("prune outbox: %w", err)
	}

	var parked int64
	dlqCutoff := now.Add(-j.dlqRetention)
	if j.dlq != nil {
		parked, err = j.drain(ctx, func(tx *gorm.DB) (int64, error) {
			return j.dlq.PruneBefore(ctx, tx, dlqCutoff, j.batch)
		})
		if err != nil {
			return fmt.Errorf("prune dlq: %w", err)
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"outbox_cutoff":  outboxCutoff,
		"dlq_cutoff":     dlqCutoff,
		"events_deleted": events,
		"dlq_deleted":    parked,
	}), "outbox retention complete")
	return nil
}

// drain repeats prune until a batch comes back short, ctx ends or the per-run
// batch cap is hit. Each batch commits on its own.
func (j *outboxRetentionJob) drain(ctx context.Context, prune func(tx *gorm.DB) (int64, error)) (int64, error) {
	var total int64
	for range maxPruneBatches {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var n int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			n, err = prune(tx)
			return err
		})
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(j.batch) {
			break
		}
	}
	return total, nil
}

func positiveOr[T ~int | ~int64](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}
