package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"warden/pkg/domain"
	audit "warden/pkg/platform/audit"
	"warden/pkg/platform/sentinel"
)

// InMemoryStore keeps audit history in process memory. Used for development
// and tests; history is lost on restart.
type InMemoryStore struct {
	mu       sync.RWMutex
	attempts []audit.Attempt
	actions  []audit.Action
	records  map[domain.UserID]audit.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[domain.UserID]audit.Record)}
}

// Clear drops all history.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = nil
	s.actions = nil
	s.records = make(map[domain.UserID]audit.Record)
}

func (s *InMemoryStore) AppendAttempt(_ context.Context, attempt audit.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, attempt)
	return nil
}

func (s *InMemoryStore) AppendAction(_ context.Context, action audit.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
	return nil
}

func (s *InMemoryStore) MarkVerified(_ context.Context, userID domain.UserID, at time.Time) (audit.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[userID]; ok && rec.Verified {
		return rec, nil
	}
	rec := audit.Record{UserID: userID, Verified: true, VerifiedAt: at}
	s.records[userID] = rec
	return rec, nil
}

func (s *InMemoryStore) Record(_ context.Context, userID domain.UserID) (audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[userID]
	if !ok {
		return audit.Record{}, fmt.Errorf("verification record for %s: %w", userID, sentinel.ErrNotFound)
	}
	return rec, nil
}

func (s *InMemoryStore) IsVerified(_ context.Context, userID domain.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[userID].Verified, nil
}

// List returns the most recent entries across attempts and actions,
// newest first.
func (s *InMemoryStore) List(_ context.Context, q audit.Query) ([]audit.Entry, error) {
	q = q.Normalize()

	s.mu.RLock()
	entries := make([]audit.Entry, 0, len(s.attempts)+len(s.actions))
	for _, a := range s.attempts {
		if q.GroupID == "" || a.GroupID == q.GroupID {
			entries = append(entries, audit.EntryFromAttempt(a))
		}
	}
	for _, a := range s.actions {
		if q.GroupID == "" || a.GroupID == q.GroupID {
			entries = append(entries, audit.EntryFromAction(a))
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(entries, func(a, b audit.Entry) int {
		return cmp.Compare(b.Timestamp.UnixNano(), a.Timestamp.UnixNano())
	})
	if len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}
	return entries, nil
}

func (s *InMemoryStore) Stats(_ context.Context, since time.Time) (audit.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := audit.Stats{Since: since}
	for _, rec := range s.records {
		if rec.Verified {
			stats.TotalVerified++
		}
	}
	for _, a := range s.attempts {
		if !a.Success && !a.Timestamp.Before(since) {
			stats.FailedInWindow++
		}
	}
	return stats, nil
}

// Attempts returns a copy of every attempt in append order. Test helper.
func (s *InMemoryStore) Attempts() []audit.Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Attempt{}, s.attempts...)
}

// Actions returns a copy of every action in append order. Test helper.
func (s *InMemoryStore) Actions() []audit.Action {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Action{}, s.actions...)
}
