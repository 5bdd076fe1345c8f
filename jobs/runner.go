// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// maxFailures stops a worker from retrying a job forever. The job stays
// in the store and can still be advanced by a client.
const maxFailures = 5

// Runner drives submitted jobs to completion with a fixed number of
// workers, pausing between batches. It uses the same Advance call a
// polling client would.
type Runner struct {
	proc    *Processor
	workers int
	delay   time.Duration

	mu     sync.Mutex
	queue  chan string
	closed bool
	wg     sync.WaitGroup
}

func NewRunner(proc *Processor, workers int, delay time.Duration) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		proc:    proc,
		workers: workers,
		delay:   delay,
		queue:   make(chan string, 64),
	}
}

// Start launches the workers. They exit when ctx is done or Stop is called.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id, ok := <-r.queue:
					if !ok {
						return
					}
					r.drive(ctx, id)
				}
			}
		}()
	}
	slog.Info("job runner started", "workers", r.workers, "delay", r.delay)
}

// Submit queues a job. It returns false when the queue is full or the
// runner is stopped; the job can still be advanced by a client.
func (r *Runner) Submit(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	select {
	case r.queue <- id:
		return true
	default:
		slog.Warn("job queue full", "job_id", id)
		return false
	}
}

// Stop closes the queue and waits for in-flight jobs.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) drive(ctx context.Context, id string) {
	failures := 0
	for {
		job, err := r.proc.Advance(ctx, id)
		switch {
		case IsNotFound(err):
			slog.Warn("job expired while running", "job_id", id)
			return
		case err != nil:
			failures++
			slog.Error("failed to advance job", "job_id", id, "error", err)
		case job.Done():
			slog.Info("job finished", "job_id", id, "kind", job.Kind, "total", job.Total, "failed", job.Failed())
			return
		case job.LastError != "":
			failures++
		default:
			failures = 0
		}

		if failures >= maxFailures {
			slog.Error("giving up on job", "job_id", id, "failures", failures)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.delay):
		}
	}
}
