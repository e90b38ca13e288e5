package verification

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/pkg/domain"
)

type countingTarget struct {
	calls   atomic.Int32
	removed int
}

func (c *countingTarget) Sweep(context.Context) int {
	c.calls.Add(1)
	return c.removed
}

func TestSweeper(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("sweep once sums every target", func(t *testing.T) {
		sessions := &countingTarget{removed: 2}
		windows := &countingTarget{removed: 3}
		s := NewSweeper(map[string]Sweepable{"sessions": sessions, "windows": windows}, WithSweepLogger(logger))

		assert.Equal(t, 5, s.SweepOnce(context.Background()))
		assert.Equal(t, int32(1), sessions.calls.Load())
		assert.Equal(t, int32(1), windows.calls.Load())
	})

	t.Run("run ticks until cancelled", func(t *testing.T) {
		target := &countingTarget{}
		s := NewSweeper(map[string]Sweepable{"t": target},
			WithSweepLogger(logger),
			WithSweepInterval(5*time.Millisecond),
		)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Run(ctx) }()

		require.Eventually(t, func() bool { return target.calls.Load() >= 2 }, time.Second, time.Millisecond)
		cancel()
		require.NoError(t, <-done)
	})

	t.Run("non positive interval keeps default", func(t *testing.T) {
		s := NewSweeper(nil, WithSweepInterval(0))
		assert.Equal(t, defaultSweepInterval, s.interval)
	})
}

func TestSessionTableDue(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	table := newSessionTable()
	table.put(&Session{UserID: "2", CreatedAt: base.Add(time.Second), Timeout: time.Minute})
	table.put(&Session{UserID: "1", CreatedAt: base, Timeout: time.Minute})
	table.put(&Session{UserID: "3", CreatedAt: base, Timeout: time.Hour})

	assert.Empty(t, table.due(base.Add(30*time.Second)))
	assert.Equal(t, []string{"1"}, idStrings(table.due(base.Add(time.Minute))))
	assert.Equal(t, []string{"1", "2"}, idStrings(table.due(base.Add(2*time.Minute))))
}

func TestNewToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a, err := NewToken("1", now)
	require.NoError(t, err)
	b, err := NewToken("1", now)
	require.NoError(t, err)

	assert.Len(t, a, TokenLength)
	assert.NotEqual(t, a, b)
}

func idStrings(ids []domain.UserID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
