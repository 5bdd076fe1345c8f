// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Store keeps job state for a limited time.
type Store interface {
	// Create saves a new job that expires after ttl.
	Create(ctx context.Context, job *Job, ttl time.Duration) error

	// Get returns ErrJobNotFound once the job has expired.
	Get(ctx context.Context, id string) (*Job, error)

	// Swap replaces the stored job only if its offset still equals
	// expectedOffset. The remaining TTL is kept.
	Swap(ctx context.Context, job *Job, expectedOffset int) (bool, error)

	// Lock takes a short exclusive lease on a job.
	Lock(ctx context.Context, id string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, id string) error

	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is a process-local Store, used when no Redis URL is set.
type MemoryStore struct {
	mu    sync.Mutex
	jobs  map[string]memoryEntry
	locks map[string]time.Time
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:  make(map[string]memoryEntry),
		locks: make(map[string]time.Time),
		now:   time.Now,
	}
}

// lookup returns the live entry for id, evicting it if expired.
// Callers hold mu.
func (s *MemoryStore) lookup(id string) (memoryEntry, bool) {
	e, ok := s.jobs[id]
	if !ok {
		return e, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.jobs, id)
		return e, false
	}
	return e, true
}

func (s *MemoryStore) Create(ctx context.Context, job *Job, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.jobs[job.ID] = memoryEntry{data: data, expiresAt: s.now().Add(ttl)}
	return nil
}

// sweep evicts expired jobs and leases nobody asked about again.
// Callers hold mu.
func (s *MemoryStore) sweep() {
	now := s.now()
	for id, e := range s.jobs {
		if !now.Before(e.expiresAt) {
			delete(s.jobs, id)
		}
	}
	for id, until := range s.locks {
		if !now.Before(until) {
			delete(s.locks, id)
		}
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Job, error) {
	s.mu.Lock()
	e, ok := s.lookup(id)
	s.mu.Unlock()
	if !ok {
		return nil, ErrJobNotFound
	}

	var job Job
	if err := json.Unmarshal(e.data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *MemoryStore) Swap(ctx context.Context, job *Job, expectedOffset int) (bool, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(job.ID)
	if !ok {
		return false, ErrJobNotFound
	}
	var current Job
	if err := json.Unmarshal(e.data, &current); err != nil {
		return false, err
	}
	if current.Offset != expectedOffset {
		return false, nil
	}

	s.jobs[job.ID] = memoryEntry{data: data, expiresAt: e.expiresAt}
	return true, nil
}

func (s *MemoryStore) Lock(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if until, ok := s.locks[id]; ok && now.Before(until) {
		return false, nil
	}
	s.locks[id] = now.Add(ttl)
	return true, nil
}

func (s *MemoryStore) Unlock(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, id)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	delete(s.locks, id)
	return nil
}
