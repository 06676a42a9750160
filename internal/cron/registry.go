package cron

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// Job is one periodic task run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// cadenced jobs run at most once per Every instead of on every cycle.
type cadenced interface {
	Every() time.Duration
}

// Registry keeps jobs in registration order. Names label metrics, so they
// must be unique.
type Registry struct {
	jobs []Job
}

// NewRegistry registers jobs in order, skipping nils.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	if slices.Contains(r.Names(), job.Name()) {
		return fmt.Errorf("cron job %q registered twice", job.Name())
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	return slices.Clone(r.jobs)
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.jobs))
	for i, job := range r.jobs {
		names[i] = job.Name()
	}
	return names
}

// due reports whether job should run at now given when it last succeeded.
func due(job Job, last, now time.Time) bool {
	c, ok := job.(cadenced)
	if !ok || last.IsZero() {
		return true
	}
	return !now.Before(last.Add(c.Every()))
}
