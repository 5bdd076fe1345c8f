// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/orgvote/clock"
	"github.com/danielhkuo/orgvote/metrics"
	"github.com/danielhkuo/orgvote/models"
)

// DefaultTTL bounds how long an abandoned job is kept.
const DefaultTTL = time.Hour

// UnitTimeout bounds the work a task may spend on a single unit.
const UnitTimeout = 10 * time.Second

// leaseMargin covers the reads and the swap around a batch.
const leaseMargin = 30 * time.Second

// leaseFor returns how long a batch of task may hold a job's lock. The
// batch itself runs with a deadline leaseMargin shorter, so the lock
// never lapses while units are still being processed.
func leaseFor(task Task) time.Duration {
	return time.Duration(max(task.BatchSize(), 1))*UnitTimeout + leaseMargin
}

// Task is one kind of batch work. Count and Run must see the same
// ordered list of units so that offsets stay meaningful between batches.
type Task interface {
	BatchSize() int
	Count(ctx context.Context, params map[string]any) (int, error)
	Run(ctx context.Context, params map[string]any, offset, limit int) ([]Result, error)
}

// Processor starts and advances jobs one batch at a time.
type Processor struct {
	store   Store
	tasks   map[string]Task
	ttl     time.Duration
	clock   clock.Clock
	metrics *metrics.Metrics
}

func NewProcessor(store Store, ttl time.Duration, clk clock.Clock, m *metrics.Metrics) *Processor {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Processor{store: store, tasks: make(map[string]Task), ttl: ttl, clock: clk, metrics: m}
}

// Register makes a task available under kind.
func (p *Processor) Register(kind string, task Task) {
	p.tasks[kind] = task
}

// Start counts the work and saves a running job. A job with nothing to
// do is saved as done.
func (p *Processor) Start(ctx context.Context, kind string, params map[string]any) (*Job, error) {
	task, ok := p.tasks[kind]
	if !ok {
		return nil, models.ErrUnknownJobType
	}

	total, err := task.Count(ctx, params)
	if err != nil {
		if _, ok := models.ReasonOf(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("failed to count %s work: %w", kind, err)
	}

	now := p.clock.Now()
	job := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusRunning,
		Params:    params,
		Total:     total,
		Results:   []Result{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if total == 0 {
		job.Status = StatusDone
	}

	if err := p.store.Create(ctx, job, p.ttl); err != nil {
		return nil, err
	}

	slog.Info("job started", "job_id", job.ID, "kind", kind, "total", total)
	return job, nil
}

// Progress reads the job without side effects.
func (p *Processor) Progress(ctx context.Context, id string) (*Job, error) {
	return p.store.Get(ctx, id)
}

// Advance runs the next batch. When another caller is already advancing
// the job, the current state is returned and nothing runs. A failed
// batch records LastError and leaves the offset in place for a retry.
func (p *Processor) Advance(ctx context.Context, id string) (*Job, error) {
	job, err := p.store.Get(ctx, id)
	if err != nil || job.Done() {
		return job, err
	}

	task, ok := p.tasks[job.Kind]
	if !ok {
		return nil, models.ErrUnknownJobType
	}
	lease := leaseFor(task)

	locked, err := p.store.Lock(ctx, id, lease)
	if err != nil {
		return nil, err
	}
	if !locked {
		return job, nil
	}
	defer func() {
		if err := p.store.Unlock(context.WithoutCancel(ctx), id); err != nil {
			slog.Warn("failed to unlock job", "job_id", id, "error", err)
		}
	}()

	// Re-read under the lock; a previous holder may have moved it on.
	job, err = p.store.Get(ctx, id)
	if err != nil || job.Done() {
		return job, err
	}

	expected := job.Offset
	end := min(job.Offset+task.BatchSize(), job.Total)
	runCtx, cancel := context.WithTimeout(ctx, lease-leaseMargin)
	results, runErr := task.Run(runCtx, job.Params, job.Offset, end-job.Offset)
	cancel()
	job.UpdatedAt = p.clock.Now()

	if runErr != nil {
		slog.Error("job batch failed", "job_id", id, "kind", job.Kind, "offset", expected, "error", runErr)
		p.metrics.JobBatch(job.Kind, "error")
		job.LastError = runErr.Error()
	} else {
		job.Results = append(job.Results, results...)
		job.Offset = end
		job.Processed = end
		job.LastError = ""
		if job.Offset >= job.Total {
			job.Status = StatusDone
		}
	}

	swapped, err := p.store.Swap(ctx, job, expected)
	if err != nil {
		return nil, err
	}
	if !swapped {
		slog.Warn("job moved on concurrently", "job_id", id, "offset", expected)
		return p.store.Get(ctx, id)
	}

	if runErr == nil {
		p.metrics.JobBatch(job.Kind, "ok")
		slog.Info("job batch done", "job_id", id, "kind", job.Kind, "processed", job.Processed, "total", job.Total)
	}
	return job, nil
}

// Cancel removes a job. Cancelling an expired job reports ErrJobNotFound.
func (p *Processor) Cancel(ctx context.Context, id string) error {
	if _, err := p.store.Get(ctx, id); err != nil {
		return err
	}
	if err := p.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	slog.Info("job cancelled", "job_id", id)
	return nil
}

// IsNotFound reports whether err means the job is gone.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}
