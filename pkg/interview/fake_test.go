package interview

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory Store that records every transcript write.
type memStore struct {
	mu       sync.Mutex
	now      func() time.Time
	seq      int
	sessions map[string]*Session
	creates  int
	writes   map[string][]int
	failAll  error
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{now: now, sessions: map[string]*Session{}, writes: map[string][]int{}}
}

func (s *memStore) CreateSession(_ context.Context, stage Stage, user string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return nil, s.failAll
	}
	s.seq++
	s.creates++
	sess := &Session{
		ID:        fmt.Sprintf("s%d", s.seq),
		User:      user,
		Stage:     stage,
		Status:    StatusPending,
		CreatedAt: s.now(),
	}
	s.sessions[sess.ID] = sess
	return sess.Clone(), nil
}

func (s *memStore) UpdateSession(_ context.Context, id string, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if u.Transcript != nil {
		s.writes[id] = append(s.writes[id], len(u.Transcript))
	}
	ApplyUpdate(sess, u)
	return nil
}

func (s *memStore) GetSession(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *memStore) ListSessions(_ context.Context, f Filter) ([]*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Session
	for _, sess := range s.sessions {
		if f.Match(sess) {
			out = append(out, sess.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) get(id string) *Session {
	sess, _ := s.GetSession(context.Background(), id)
	return sess
}

// clock is a manually advanced clock.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// countingCloser records how often and in which order it was closed.
type countingCloser struct {
	name    string
	mu      sync.Mutex
	closed  int
	order   *[]string
	orderMu *sync.Mutex
}

func (c *countingCloser) Close() error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	if c.order != nil {
		c.orderMu.Lock()
		*c.order = append(*c.order, c.name)
		c.orderMu.Unlock()
	}
	return nil
}

func (c *countingCloser) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
