package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warden/internal/ratelimit/models"
	"warden/internal/ratelimit/store/window"
	"warden/pkg/requestcontext"
)

type LimiterSuite struct {
	suite.Suite
	store   *window.InMemoryWindowStore
	limiter *Limiter
	policy  models.Policy
	t0      time.Time
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterSuite))
}

func (s *LimiterSuite) SetupTest() {
	s.store = window.NewInMemory()
	limiter, err := New(s.store, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	s.limiter = limiter
	s.policy = models.Policy{MaxAttempts: 3, Window: time.Hour}
	s.t0 = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
}

func (s *LimiterSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.t0.Add(d))
}

func (s *LimiterSuite) TestNewRequiresStore() {
	_, err := New(nil)
	s.Require().EqualError(err, "window store is required")
}

// Three recorded starts inside the window block the fourth; the first start
// leaving the window admits one more.
func (s *LimiterSuite) TestSlidingWindow() {
	for i := range 3 {
		ctx := s.at(time.Duration(i) * time.Minute)
		res, err := s.limiter.Check(ctx, "100", s.policy)
		s.Require().NoError(err)
		s.True(res.Allowed)

		rec, err := s.limiter.Record(ctx, "100", s.policy)
		s.Require().NoError(err)
		s.Equal(i+1, rec.Count)
	}

	res, err := s.limiter.Check(s.at(30*time.Minute), "100", s.policy)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal(3, res.Count)
	s.Equal(0, res.Remaining())
	s.Equal(s.t0.Add(time.Hour), res.ResetAt)

	res, err = s.limiter.Check(s.at(time.Hour), "100", s.policy)
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.Equal(2, res.Count)
}

func (s *LimiterSuite) TestCheckHasNoSideEffects() {
	for range 10 {
		res, err := s.limiter.Check(s.at(0), "200", s.policy)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Zero(res.Count)
	}
	s.Zero(s.store.Len())
}

func (s *LimiterSuite) TestUsersAreIndependent() {
	for range 3 {
		_, err := s.limiter.Record(s.at(0), "300", s.policy)
		s.Require().NoError(err)
	}
	res, err := s.limiter.Check(s.at(0), "301", s.policy)
	s.Require().NoError(err)
	s.True(res.Allowed)
}

func (s *LimiterSuite) TestSweepAndReset() {
	_, err := s.limiter.Record(s.at(0), "400", s.policy)
	s.Require().NoError(err)
	_, err = s.limiter.Record(s.at(0), "401", s.policy)
	s.Require().NoError(err)

	s.Require().NoError(s.limiter.Reset(s.at(0), "401"))
	s.Equal(1, s.store.Len())

	s.Equal(1, s.limiter.Sweep(s.at(2*time.Hour)))
	s.Zero(s.store.Len())
}
