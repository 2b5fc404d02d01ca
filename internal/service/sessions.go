package service

import (
	"context"
	"sync"
	"time"

	"github.com/joeblew999/plat-waterwatch/internal/metrics"
)

// Sessions keeps one value per viewer session and drops sessions that have
// been idle for longer than the idle timeout.
type Sessions[T any] struct {
	mu      sync.Mutex
	items   map[string]*sessionEntry[T]
	create  func(id string) T
	release func(T)
	idle    time.Duration

	// Now is the clock; tests replace it.
	Now func() time.Time
}

type sessionEntry[T any] struct {
	value    T
	lastSeen time.Time
}

// NewSessions creates a registry. release, if set, is called for every
// session removed by Sweep or Close.
func NewSessions[T any](idle time.Duration, create func(id string) T, release func(T)) *Sessions[T] {
	return &Sessions[T]{
		items:   map[string]*sessionEntry[T]{},
		create:  create,
		release: release,
		idle:    idle,
		Now:     time.Now,
	}
}

// Get returns the session and marks it as seen.
func (s *Sessions[T]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	e.lastSeen = s.Now()
	return e.value, true
}

// GetOrCreate returns the session, creating it on first use.
func (s *Sessions[T]) GetOrCreate(id string) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		e = &sessionEntry[T]{value: s.create(id)}
		s.items[id] = e
		metrics.ActiveSessions.Set(float64(len(s.items)))
	}
	e.lastSeen = s.Now()
	return e.value
}

// Len counts live sessions.
func (s *Sessions[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sweep removes idle sessions and returns how many were removed.
func (s *Sessions[T]) Sweep() int {
	s.mu.Lock()
	var expired []T
	cutoff := s.Now().Add(-s.idle)
	for id, e := range s.items {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, e.value)
			delete(s.items, id)
		}
	}
	metrics.ActiveSessions.Set(float64(len(s.items)))
	s.mu.Unlock()

	if s.release != nil {
		for _, v := range expired {
			s.release(v)
		}
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (s *Sessions[T]) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}

// Close releases every session.
func (s *Sessions[T]) Close() {
	s.mu.Lock()
	items := s.items
	s.items = map[string]*sessionEntry[T]{}
	metrics.ActiveSessions.Set(0)
	s.mu.Unlock()

	if s.release != nil {
		for _, e := range items {
			s.release(e.value)
		}
	}
}
