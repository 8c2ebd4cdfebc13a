package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore keeps everything in process memory. It backs tests and
// development runs; durability comes from the SQL stores.
type InMemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	events   []Event
	sessions map[string]Session
	order    []string // session insertion order, for stable listing
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nextID: 1, sessions: make(map[string]Session)}
}

func (s *InMemoryStore) RecordSession(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return nil
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	s.sessions[sess.ID] = sess
	s.order = append(s.order, sess.ID)
	return nil
}

func (s *InMemoryStore) RecordEvent(_ context.Context, e Event) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID
	s.nextID++
	if e.TS.IsZero() {
		e.TS = time.Now()
	}
	s.events = append(s.events, e)
	return e.ID, nil
}

func (s *InMemoryStore) ListEvents(_ context.Context, filter string, limit, offset int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Event
	for i := len(s.events) - 1; i >= 0; i-- {
		if matchesFilter(s.events[i], filter) {
			matched = append(matched, s.events[i])
		}
	}

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return append([]Event{}, matched...), nil
}

func (s *InMemoryStore) CountEvents(_ context.Context, filter string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, e := range s.events {
		if matchesFilter(e, filter) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) ListSessions(_ context.Context) ([]SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]SessionSummary, 0, len(s.sessions))
	for _, id := range s.order {
		sess := s.sessions[id]
		summary := SessionSummary{Session: sess}
		for i := range s.events {
			if s.events[i].SessionID != id {
				continue
			}
			summary.EventCount++
			ts := s.events[i].TS
			if summary.LastEventAt == nil || ts.After(*summary.LastEventAt) {
				summary.LastEventAt = &ts
			}
		}
		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		switch {
		case a.LastEventAt == nil && b.LastEventAt == nil:
			return a.CreatedAt.After(b.CreatedAt)
		case a.LastEventAt == nil:
			return false
		case b.LastEventAt == nil:
			return true
		default:
			return a.LastEventAt.After(*b.LastEventAt)
		}
	})
	return summaries, nil
}

func (s *InMemoryStore) Close() error { return nil }
