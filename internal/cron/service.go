package cron

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/tableside-backend/pkg/logger"
	"github.com/angelmondragon/tableside-backend/pkg/metrics"
)

const (
	defaultInterval   = 10 * time.Minute
	defaultJobTimeout = 5 * time.Minute
)

// ServiceParams configure the cron service. Metrics is optional.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs the registered consistency jobs on a fixed cadence, one
// replica at a time.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
	now        func() time.Time

	mu      sync.Mutex
	lastRun map[string]time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = &Registry{}
	}
	return &Service{
		logg:       params.Logger,
		registry:   registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   positiveOr(params.Interval, defaultInterval),
		jobTimeout: positiveOr(params.JobTimeout, defaultJobTimeout),
		now:        time.Now,
		lastRun:    map[string]time.Time{},
	}, nil
}

// Run executes a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"interval": s.interval.String(),
		"jobs":     s.registry.Names(),
	}), "cron loop starting")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs every due job once if the cycle lock is free. A failing job
// does not stop the ones after it.
func (s *Service) RunOnce(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lease, err := s.lock.TryAcquire(ctx)
	if err != nil {
		return err
	}
	if lease == nil {
		s.logg.Debug(ctx, "cron lock held by another replica; skipping cycle")
		return nil
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "failed to release cron lock", err)
		}
	}()

	for _, job := range s.registry.Jobs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.isDue(job) {
			continue
		}
		s.runJob(ctx, job)
	}
	return nil
}

func (s *Service) isDue(job Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return due(job, s.lastRun[job.Name()], s.now())
}

func (s *Service) runJob(ctx context.Context, job Job) {
	ctx = s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	jobCtx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	start := s.now()
	err := job.Run(jobCtx)
	took := time.Since(start)
	s.metrics.ObserveRun(job.Name(), took, err)

	ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		return
	}
	s.mu.Lock()
	s.lastRun[job.Name()] = start
	s.mu.Unlock()
	s.logg.Info(ctx, "job completed")
}
