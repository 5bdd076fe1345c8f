// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package jobs

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danielhkuo/orgvote/models"
)

// Job kinds
const (
	KindGroupSync  = "group_sync"
	KindInvitation = "invitation_email"
)

// Job status
const (
	StatusRunning = "running"
	StatusDone    = "done"
)

// ErrJobNotFound is returned when a job never existed or its TTL expired.
var ErrJobNotFound = errors.New("job not found")

// Result records the outcome of one unit of work.
type Result struct {
	Key   string `json:"key"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Job is the state kept in the job store between batches.
type Job struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Status    string         `json:"status"`
	Params    map[string]any `json:"params,omitempty"`
	Total     int            `json:"total"`
	Processed int            `json:"processed"`
	Offset    int            `json:"offset"`
	Results   []Result       `json:"results"`
	LastError string         `json:"last_error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Done reports whether every unit has been processed.
func (j *Job) Done() bool {
	return j.Status == StatusDone
}

// Failed counts results that did not succeed.
func (j *Job) Failed() int {
	n := 0
	for _, r := range j.Results {
		if !r.OK {
			n++
		}
	}
	return n
}

// Progress is the client-facing view of a job.
func (j *Job) Progress() models.JobProgress {
	pct := 100.0
	if j.Total > 0 {
		pct = decimal.NewFromInt(int64(j.Processed)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(j.Total))).
			Round(1).
			InexactFloat64()
	}
	return models.JobProgress{
		ID:        j.ID,
		Type:      j.Kind,
		Status:    j.Status,
		Total:     j.Total,
		Processed: j.Processed,
		Offset:    j.Offset,
		Pct:       pct,
		LastError: j.LastError,
	}
}
