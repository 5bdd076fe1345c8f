// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package clock provides the single time source used for every voting
// window and eligibility decision.
package clock

import (
	"sync"
	"time"
)

// Clock returns the organizational "now".
type Clock interface {
	Now() time.Time
}

// VotingClock applies an admin-configured offset to the server clock so
// that organizational time can differ from server time.
type VotingClock struct {
	mu     sync.RWMutex
	offset time.Duration
	now    func() time.Time
}

func New(offset time.Duration) *VotingClock {
	return &VotingClock{offset: offset, now: time.Now}
}

// Fixed returns a clock frozen at t. Used by tests and replays.
func Fixed(t time.Time) *VotingClock {
	return &VotingClock{now: func() time.Time { return t }}
}

func (c *VotingClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now().Add(c.offset).UTC()
}

func (c *VotingClock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

func (c *VotingClock) SetOffset(offset time.Duration) {
	c.mu.Lock()
	c.offset = offset
	c.mu.Unlock()
}

// InWindow reports whether now lies in [start, end].
func InWindow(now, start, end time.Time) bool {
	return !now.Before(start) && !now.After(end)
}
