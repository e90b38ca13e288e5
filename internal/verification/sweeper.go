package verification

import (
	"context"
	"log/slog"
	"time"
)

// Sweepable is anything holding time-bounded state that must be pruned.
type Sweepable interface {
	Sweep(ctx context.Context) int
}

const defaultSweepInterval = 5 * time.Second

// Sweeper periodically expires due sessions and prunes rate-limit windows.
type Sweeper struct {
	targets  map[string]Sweepable
	interval time.Duration
	logger   *slog.Logger
}

type SweeperOption func(*Sweeper)

func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithSweepLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// NewSweeper builds a sweeper over named targets.
func NewSweeper(targets map[string]Sweepable, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		targets:  targets,
		interval: defaultSweepInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "sweeper started", "interval", s.interval, "targets", len(s.targets))
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sweeper stopped")
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs every target once and returns the total removed.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	total := 0
	for name, target := range s.targets {
		n := target.Sweep(ctx)
		if n > 0 {
			s.logger.DebugContext(ctx, "swept", "target", name, "removed", n)
		}
		total += n
	}
	return total
}
