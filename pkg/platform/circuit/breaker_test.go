package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type BreakerSuite struct {
	suite.Suite
	clock time.Time
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) SetupTest() {
	s.clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *BreakerSuite) breaker(opts ...Option) *Breaker {
	return New("windows", append([]Option{WithClock(func() time.Time { return s.clock })}, opts...)...)
}

func (s *BreakerSuite) fail(b *Breaker, n int) {
	for range n {
		b.RecordFailure()
	}
}

func (s *BreakerSuite) TestStartsClosed() {
	b := s.breaker()
	s.Equal(StateClosed, b.State())
	s.Equal("windows", b.Name())
	s.True(b.Allow())
}

func (s *BreakerSuite) TestFailureThreshold() {
	b := s.breaker(WithFailureThreshold(2))

	fallback, change := b.RecordFailure()
	s.False(fallback)
	s.Equal(StateChange{}, change)

	fallback, change = b.RecordFailure()
	s.True(fallback)
	s.True(change.Opened)
	s.True(b.IsOpen())

	s.Run("further failures stay on fallback without a transition", func() {
		fallback, change := b.RecordFailure()
		s.True(fallback)
		s.Equal(StateChange{}, change)
	})
}

func (s *BreakerSuite) TestSuccessClearsFailureStreak() {
	b := s.breaker(WithFailureThreshold(2))
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	s.False(b.IsOpen())
}

func (s *BreakerSuite) TestRecovery() {
	b := s.breaker(WithFailureThreshold(1), WithSuccessThreshold(2))
	s.fail(b, 1)

	primary, change := b.RecordSuccess()
	s.False(primary)
	s.False(change.Closed)

	s.Run("a failure restarts the success streak", func() {
		b.RecordFailure()
		primary, _ := b.RecordSuccess()
		s.False(primary)
	})

	primary, change = b.RecordSuccess()
	s.True(primary)
	s.True(change.Closed)
	s.Equal(StateClosed, b.State())
}

func (s *BreakerSuite) TestProbePerCooldown() {
	b := s.breaker(WithFailureThreshold(1), WithCooldown(10*time.Second))
	s.fail(b, 1)

	s.False(b.Allow())

	s.clock = s.clock.Add(10 * time.Second)
	s.True(b.Allow())
	s.False(b.Allow(), "only one probe per cooldown")

	s.clock = s.clock.Add(10 * time.Second)
	s.True(b.Allow())
}

func (s *BreakerSuite) TestReset() {
	b := s.breaker(WithFailureThreshold(1))
	s.fail(b, 1)
	b.Reset()
	s.Equal(StateClosed, b.State())
	s.True(b.Allow())
}

func (s *BreakerSuite) TestNonPositiveOptionsKeepDefaults() {
	b := New("x", WithFailureThreshold(0), WithSuccessThreshold(-1), WithCooldown(0), WithClock(nil))
	s.Equal(5, b.failureThreshold)
	s.Equal(1, b.successThreshold)
	s.Equal(5*time.Second, b.cooldown)
	s.NotNil(b.now)
}
