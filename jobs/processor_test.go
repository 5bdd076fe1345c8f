package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/orgvote/clock"
	"github.com/danielhkuo/orgvote/models"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// countingTask produces one result per unit and can be told to fail.
type countingTask struct {
	mu    sync.Mutex
	batch int
	total int
	fail  error
	runs  int
}

func (c *countingTask) BatchSize() int { return c.batch }

func (c *countingTask) Count(ctx context.Context, params map[string]any) (int, error) {
	return c.total, nil
}

func (c *countingTask) Run(ctx context.Context, params map[string]any, offset, limit int) ([]Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
	if c.fail != nil {
		return nil, c.fail
	}
	var out []Result
	for i := offset; i < offset+limit; i++ {
		out = append(out, Result{Key: fmt.Sprint(i), OK: true})
	}
	return out, nil
}

func newTestProcessor(store Store, task Task) *Processor {
	p := NewProcessor(store, time.Hour, clock.Fixed(testNow), nil)
	p.Register("count", task)
	return p
}

func TestAdvance_ThreeBatches(t *testing.T) {
	ctx := context.Background()
	task := &countingTask{batch: 100, total: 250}
	p := newTestProcessor(NewMemoryStore(), task)

	job, err := p.Start(ctx, "count", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, job.Status)
	assert.Equal(t, 250, job.Total)

	wantOffsets := []int{100, 200, 250}
	for i, want := range wantOffsets {
		job, err = p.Advance(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, want, job.Offset, "advance %d", i+1)
		assert.Equal(t, want, job.Processed)
	}

	assert.True(t, job.Done())
	assert.Len(t, job.Results, 250)
	assert.Equal(t, "249", job.Results[249].Key)

	again, err := p.Advance(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 250, again.Processed)
	assert.Equal(t, 3, task.runs, "done job runs nothing")

	progress := again.Progress()
	assert.Equal(t, models.JobProgress{
		ID: job.ID, Type: "count", Status: StatusDone, Total: 250, Processed: 250, Offset: 250, Pct: 100,
	}, progress)
}

func TestProgress_IsPure(t *testing.T) {
	ctx := context.Background()
	task := &countingTask{batch: 100, total: 300}
	p := newTestProcessor(NewMemoryStore(), task)

	job, err := p.Start(ctx, "count", nil)
	require.NoError(t, err)
	_, err = p.Advance(ctx, job.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := p.Progress(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, got.Offset)
		assert.Equal(t, 33.3, got.Progress().Pct)
	}
	assert.Equal(t, 1, task.runs)
}

func TestStart(t *testing.T) {
	ctx := context.Background()
	p := newTestProcessor(NewMemoryStore(), &countingTask{batch: 10})

	job, err := p.Start(ctx, "count", nil)
	require.NoError(t, err)
	assert.True(t, job.Done(), "nothing to do")
	assert.Equal(t, 100.0, job.Progress().Pct)

	_, err = p.Start(ctx, "reindex", nil)
	assert.ErrorIs(t, err, models.ErrUnknownJobType)
}

func TestAdvance_FailedBatchIsRetried(t *testing.T) {
	ctx := context.Background()
	task := &countingTask{batch: 10, total: 15, fail: errors.New("smtp down")}
	p := newTestProcessor(NewMemoryStore(), task)

	job, err := p.Start(ctx, "count", nil)
	require.NoError(t, err)

	job, err = p.Advance(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, job.Offset)
	assert.Equal(t, "smtp down", job.LastError)
	assert.Equal(t, StatusRunning, job.Status)

	task.fail = nil
	job, err = p.Advance(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, job.Offset)
	assert.Empty(t, job.LastError)
}

func TestAdvance_LockedJobIsLeftAlone(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	task := &countingTask{batch: 10, total: 30}
	p := newTestProcessor(store, task)

	job, err := p.Start(ctx, "count", nil)
	require.NoError(t, err)

	ok, err := store.Lock(ctx, job.ID, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := p.Advance(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Offset)
	assert.Equal(t, 0, task.runs)

	require.NoError(t, store.Unlock(ctx, job.ID))
	got, err = p.Advance(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Offset)
}

func TestAdvance_Concurrent(t *testing.T) {
	ctx := context.Background()
	task := &countingTask{batch: 10, total: 1000}
	p := newTestProcessor(NewMemoryStore(), task)

	job, err := p.Start(ctx, "count", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Advance(ctx, job.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := p.Progress(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, task.runs*10, got.Offset, "every batch that ran moved the offset exactly once")
	assert.Len(t, got.Results, got.Offset)
}

func TestExpiryAndCancel(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := testNow
	store.now = func() time.Time { return now }
	p := newTestProcessor(store, &countingTask{batch: 10, total: 30})

	job, err := p.Start(ctx, "count", nil)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = p.Progress(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = p.Advance(ctx, job.ID)
	assert.True(t, IsNotFound(err))

	job, err = p.Start(ctx, "count", nil)
	require.NoError(t, err)
	require.NoError(t, p.Cancel(ctx, job.ID))
	_, err = p.Progress(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, p.Cancel(ctx, job.ID), ErrJobNotFound)
}

func TestMemoryStore_SwapKeepsExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := testNow
	store.now = func() time.Time { return now }

	job := &Job{ID: "j1", Status: StatusRunning, Total: 10}
	require.NoError(t, store.Create(ctx, job, time.Hour))

	now = now.Add(50 * time.Minute)
	job.Offset = 5
	ok, err := store.Swap(ctx, job, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	stale := &Job{ID: "j1", Offset: 7}
	ok, err = store.Swap(ctx, stale, 0)
	require.NoError(t, err)
	assert.False(t, ok, "offset no longer matches")

	now = now.Add(11 * time.Minute)
	_, err = store.Get(ctx, "j1")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryStore_CreateEvictsExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := testNow
	store.now = func() time.Time { return now }

	for _, id := range []string{"old-1", "old-2"} {
		require.NoError(t, store.Create(ctx, &Job{ID: id}, time.Minute))
	}
	ok, err := store.Lock(ctx, "old-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	require.NoError(t, store.Create(ctx, &Job{ID: "fresh"}, time.Hour))

	assert.Len(t, store.jobs, 1, "nobody read the expired jobs, they still go")
	assert.Contains(t, store.jobs, "fresh")
	assert.Empty(t, store.locks)
}

// leaseTask records the batch deadline and the lock it runs under.
type leaseTask struct {
	countingTask
	store    *MemoryStore
	deadline time.Time
	lockedTo time.Time
}

func (l *leaseTask) Run(ctx context.Context, params map[string]any, offset, limit int) ([]Result, error) {
	l.deadline, _ = ctx.Deadline()
	l.store.mu.Lock()
	l.lockedTo = l.store.locks["lease-job"]
	l.store.mu.Unlock()
	return l.countingTask.Run(ctx, params, offset, limit)
}

func TestAdvance_LeaseCoversBatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	task := &leaseTask{countingTask: countingTask{batch: InvitationBatch, total: 60}, store: store}
	p := newTestProcessor(store, task)

	require.NoError(t, store.Create(ctx, &Job{ID: "lease-job", Kind: "count", Status: StatusRunning, Total: 60}, time.Hour))

	before := time.Now()
	job, err := p.Advance(ctx, "lease-job")
	require.NoError(t, err)
	assert.Equal(t, InvitationBatch, job.Offset)

	require.False(t, task.deadline.IsZero(), "batch runs with a deadline")
	require.False(t, task.lockedTo.IsZero(), "batch runs under the lock")
	assert.GreaterOrEqual(t, task.lockedTo.Sub(before), InvitationBatch*UnitTimeout,
		"one unit timeout per recipient fits in the lease")
	assert.True(t, task.deadline.Before(task.lockedTo), "the batch gives up before the lease lapses")

	assert.Empty(t, store.locks, "released after the batch")
}
