package window

import (
	"context"
	"sync"
	"time"

	"warden/internal/ratelimit/models"
)

// InMemoryWindowStore keeps sliding windows of attempt timestamps in process
// memory. Windows are not shared between processes; use RedisWindowStore for
// that.
type InMemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
}

// slidingWindow tracks attempt timestamps in insertion order.
type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

func NewInMemory() *InMemoryWindowStore {
	return &InMemoryWindowStore{
		windows: make(map[string]*slidingWindow),
	}
}

// Count prunes the window and returns what remains. It never adds.
func (s *InMemoryWindowStore) Count(_ context.Context, key string, now time.Time, window time.Duration) (models.Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw := s.windows[key]
	if sw == nil {
		return models.Window{}, nil
	}
	sw.window = window
	sw.cleanup(now)
	return sw.snapshot(), nil
}

// Add prunes the window, appends now, and returns the new state.
func (s *InMemoryWindowStore) Add(_ context.Context, key string, now time.Time, window time.Duration) (models.Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw := s.getOrCreate(key, window)
	sw.window = window
	sw.cleanup(now)
	sw.timestamps = append(sw.timestamps, now)
	return sw.snapshot(), nil
}

// Sweep drops windows with no timestamps left inside them and returns how
// many were dropped.
func (s *InMemoryWindowStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, sw := range s.windows {
		sw.cleanup(now)
		if len(sw.timestamps) == 0 {
			delete(s.windows, key)
			dropped++
		}
	}
	return dropped, nil
}

// Reset clears the window for a key.
func (s *InMemoryWindowStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// Len reports how many windows are tracked.
func (s *InMemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// cleanup removes timestamps at or before now-window.
func (sw *slidingWindow) cleanup(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

func (sw *slidingWindow) snapshot() models.Window {
	if len(sw.timestamps) == 0 {
		return models.Window{}
	}
	return models.Window{Count: len(sw.timestamps), Oldest: sw.timestamps[0]}
}

// getOrCreate must be called while holding s.mu.
func (s *InMemoryWindowStore) getOrCreate(key string, window time.Duration) *slidingWindow {
	if sw := s.windows[key]; sw != nil {
		return sw
	}
	sw := &slidingWindow{window: window}
	s.windows[key] = sw
	return sw
}
