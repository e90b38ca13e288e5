package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"warden/internal/ratelimit/metrics"
	"warden/internal/ratelimit/models"
	"warden/internal/ratelimit/store/window"
	"warden/pkg/domain"
	"warden/pkg/requestcontext"
)

// Limiter bounds verification starts per user with a sliding window.
//
// Check never adds to the window; Record adds exactly one entry. Callers
// serialize Check and Record for one user (the verification manager holds the
// per-user lock across both).
type Limiter struct {
	store   window.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

func New(store window.Store, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("window store is required")
	}
	l := &Limiter{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Check prunes the user's window and reports whether another start is allowed.
func (l *Limiter) Check(ctx context.Context, userID domain.UserID, policy models.Policy) (models.Result, error) {
	now := requestcontext.Now(ctx)
	w, err := l.store.Count(ctx, models.VerificationKey(userID), now, policy.Window)
	if err != nil {
		return models.Result{}, fmt.Errorf("check rate limit: %w", err)
	}
	result := models.NewResult(w, policy, now)
	l.metrics.IncrementCheck(result.Allowed)
	return result, nil
}

// Record appends the current time to the user's window. Count in the result
// includes the new entry.
func (l *Limiter) Record(ctx context.Context, userID domain.UserID, policy models.Policy) (models.Result, error) {
	now := requestcontext.Now(ctx)
	w, err := l.store.Add(ctx, models.VerificationKey(userID), now, policy.Window)
	if err != nil {
		return models.Result{}, fmt.Errorf("record rate limit: %w", err)
	}
	return models.NewResult(w, policy, now), nil
}

// Sweep drops fully aged-out windows.
func (l *Limiter) Sweep(ctx context.Context) int {
	n, err := l.store.Sweep(ctx, requestcontext.Now(ctx))
	if err != nil {
		l.logger.WarnContext(ctx, "rate limit sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		l.logger.DebugContext(ctx, "rate limit windows swept", "count", n)
		l.metrics.AddWindowsSwept(n)
	}
	return n
}

// Reset clears a user's window. Used when an administrator force-verifies.
func (l *Limiter) Reset(ctx context.Context, userID domain.UserID) error {
	if err := l.store.Reset(ctx, models.VerificationKey(userID)); err != nil {
		return fmt.Errorf("reset rate limit: %w", err)
	}
	return nil
}
