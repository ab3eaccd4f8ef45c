package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory queue store for tests and local development.
type MemoryStore struct {
	mu         sync.Mutex
	pending    []Envelope
	delayed    []delayedEntry
	processing map[string]Envelope
	dead       []Envelope

	now func() time.Time
}

type delayedEntry struct {
	env     Envelope
	readyAt time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory queue store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		processing: make(map[string]Envelope),
		now:        time.Now,
	}
}

// WithClock overrides the store clock. Intended for backoff tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

func (s *MemoryStore) Enqueue(_ context.Context, env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, env)
	return nil
}

func (s *MemoryStore) EnqueueDelayed(_ context.Context, env Envelope, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.delayed = append(s.delayed, delayedEntry{env: env, readyAt: s.now().Add(delay)})
	return nil
}

func (s *MemoryStore) Claim(_ context.Context) (Envelope, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.promoteDueLocked()
	if len(s.pending) == 0 {
		return Envelope{}, false, nil
	}

	env := s.pending[0]
	s.pending = s.pending[1:]
	s.processing[env.ID] = env
	return env, true, nil
}

func (s *MemoryStore) Ack(_ context.Context, env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.processing, env.ID)
	return nil
}

func (s *MemoryStore) Retry(_ context.Context, env Envelope, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.processing, env.ID)
	retried := env
	retried.Attempt++
	s.delayed = append(s.delayed, delayedEntry{env: retried, readyAt: s.now().Add(delay)})
	return nil
}

func (s *MemoryStore) DeadLetter(_ context.Context, env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.processing, env.ID)
	s.dead = append(s.dead, env)
	return nil
}

func (s *MemoryStore) Depths(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]int64{
		StatePending:    int64(len(s.pending)),
		StateDelayed:    int64(len(s.delayed)),
		StateProcessing: int64(len(s.processing)),
		StateDead:       int64(len(s.dead)),
	}, nil
}

// DeadLetters returns a copy of the dead-letter log. Intended for tests and
// inspection tooling.
func (s *MemoryStore) DeadLetters() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Envelope, len(s.dead))
	copy(out, s.dead)
	return out
}

func (s *MemoryStore) promoteDueLocked() {
	if len(s.delayed) == 0 {
		return
	}
	now := s.now()
	var remaining []delayedEntry
	var due []delayedEntry
	for _, entry := range s.delayed {
		if entry.readyAt.After(now) {
			remaining = append(remaining, entry)
		} else {
			due = append(due, entry)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].readyAt.Before(due[j].readyAt) })
	for _, entry := range due {
		s.pending = append(s.pending, entry.env)
	}
	s.delayed = remaining
}
