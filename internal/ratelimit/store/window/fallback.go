package window

import (
	"context"
	"log/slog"
	"time"

	"warden/internal/ratelimit/models"
	"warden/pkg/platform/circuit"
)

// Store is the window contract shared by the memory, Redis and fallback
// stores.
type Store interface {
	Count(ctx context.Context, key string, now time.Time, window time.Duration) (models.Window, error)
	Add(ctx context.Context, key string, now time.Time, window time.Duration) (models.Window, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
	Reset(ctx context.Context, key string) error
}

// DegradedObserver is told when the store switches to or from the fallback.
type DegradedObserver interface {
	SetDegraded(degraded bool)
}

// FallbackStore serves from primary while it is healthy and from an
// in-memory store while the circuit is open. A failed primary call is
// answered by the fallback so a verification start is never blocked by a
// shared-store outage.
type FallbackStore struct {
	primary  Store
	fallback *InMemoryWindowStore
	breaker  *circuit.Breaker
	logger   *slog.Logger
	observer DegradedObserver
}

type FallbackOption func(*FallbackStore)

func WithFallbackLogger(logger *slog.Logger) FallbackOption {
	return func(s *FallbackStore) {
		s.logger = logger
	}
}

func WithDegradedObserver(o DegradedObserver) FallbackOption {
	return func(s *FallbackStore) {
		s.observer = o
	}
}

func WithBreaker(b *circuit.Breaker) FallbackOption {
	return func(s *FallbackStore) {
		s.breaker = b
	}
}

func NewFallback(primary Store, opts ...FallbackOption) *FallbackStore {
	s := &FallbackStore{
		primary:  primary,
		fallback: NewInMemory(),
		breaker:  circuit.New("ratelimit-window", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(3)),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FallbackStore) Count(ctx context.Context, key string, now time.Time, window time.Duration) (models.Window, error) {
	return s.do(ctx, "count", func(st Store) (models.Window, error) {
		return st.Count(ctx, key, now, window)
	})
}

func (s *FallbackStore) Add(ctx context.Context, key string, now time.Time, window time.Duration) (models.Window, error) {
	return s.do(ctx, "add", func(st Store) (models.Window, error) {
		return st.Add(ctx, key, now, window)
	})
}

func (s *FallbackStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return s.fallback.Sweep(ctx, now)
}

func (s *FallbackStore) Reset(ctx context.Context, key string) error {
	_ = s.fallback.Reset(ctx, key)
	return s.primary.Reset(ctx, key)
}

// Degraded reports whether the circuit is open.
func (s *FallbackStore) Degraded() bool {
	return s.breaker.IsOpen()
}

func (s *FallbackStore) do(ctx context.Context, op string, fn func(Store) (models.Window, error)) (models.Window, error) {
	if !s.breaker.Allow() {
		return fn(s.fallback)
	}

	w, err := fn(s.primary)
	if err != nil {
		_, change := s.breaker.RecordFailure()
		if change.Opened {
			s.logger.WarnContext(ctx, "rate limit store degraded, using in-memory fallback",
				"breaker", s.breaker.Name(),
				"op", op,
				"error", err,
			)
			s.notify(true)
		}
		return fn(s.fallback)
	}

	usePrimary, change := s.breaker.RecordSuccess()
	if change.Closed {
		s.logger.InfoContext(ctx, "rate limit store recovered", "breaker", s.breaker.Name())
		s.notify(false)
	}
	if !usePrimary {
		return fn(s.fallback)
	}
	return w, nil
}

func (s *FallbackStore) notify(degraded bool) {
	if s.observer != nil {
		s.observer.SetDegraded(degraded)
	}
}
