// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package jobs runs long work as resumable batches.

A job is started with a kind and params, which fixes its total number of
units. Each Advance call runs the next batch and moves the offset; a job
is done once the offset reaches the total. State lives in a Store with a
TTL, so an abandoned job simply expires and later calls get
ErrJobNotFound.

	job, err := proc.Start(ctx, jobs.KindGroupSync, nil)
	for !job.Done() {
		job, err = proc.Advance(ctx, job.ID)
		// ...
		time.Sleep(delay)
	}

Advance is safe to call concurrently: a per-job lock lets only one
caller run a batch, and the offset is written with a compare-and-swap on
the offset that batch started from. A failing batch stores LastError and
is retried from the same offset by the next call.

Runner drives jobs with a worker pool when JOB_WORKERS is set; clients
can poll progress either way.

# Kinds

  - group_sync: one city group per distinct profile city, batch 20
  - invitation_email: mail every eligible user of a poll or survey, batch 50
*/
package jobs
