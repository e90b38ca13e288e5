//go:build integration

package window_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warden/internal/ratelimit/store/window"
	"warden/pkg/testutil/containers"
)

type RedisWindowStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *window.RedisWindowStore
	ctx   context.Context
	t0    time.Time
}

func TestRedisWindowStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisWindowStoreSuite))
}

func (s *RedisWindowStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = window.NewRedis(s.redis.Client)
	s.ctx = context.Background()
}

func (s *RedisWindowStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
	s.t0 = time.Now().Truncate(time.Millisecond)
}

func (s *RedisWindowStoreSuite) TestAddAndCount() {
	for i := range 3 {
		w, err := s.store.Add(s.ctx, "verify:1", s.t0.Add(time.Duration(i)*time.Second), time.Hour)
		s.Require().NoError(err)
		s.Equal(i+1, w.Count)
	}

	w, err := s.store.Count(s.ctx, "verify:1", s.t0.Add(time.Minute), time.Hour)
	s.Require().NoError(err)
	s.Equal(3, w.Count)
	s.True(w.Oldest.Equal(s.t0))
}

func (s *RedisWindowStoreSuite) TestOldAttemptsFallOut() {
	_, err := s.store.Add(s.ctx, "verify:2", s.t0, time.Hour)
	s.Require().NoError(err)
	_, err = s.store.Add(s.ctx, "verify:2", s.t0.Add(30*time.Minute), time.Hour)
	s.Require().NoError(err)

	w, err := s.store.Count(s.ctx, "verify:2", s.t0.Add(time.Hour), time.Hour)
	s.Require().NoError(err)
	s.Equal(1, w.Count)
	s.True(w.Oldest.Equal(s.t0.Add(30 * time.Minute)))
}

func (s *RedisWindowStoreSuite) TestKeyExpires() {
	_, err := s.store.Add(s.ctx, "verify:3", s.t0, time.Hour)
	s.Require().NoError(err)

	ttl, err := s.redis.Client.TTL(s.ctx, "warden:ratelimit:verify:3").Result()
	s.Require().NoError(err)
	s.Positive(ttl)
	s.LessOrEqual(ttl, time.Hour)
}

func (s *RedisWindowStoreSuite) TestReset() {
	_, err := s.store.Add(s.ctx, "verify:4", s.t0, time.Hour)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Reset(s.ctx, "verify:4"))

	w, err := s.store.Count(s.ctx, "verify:4", s.t0, time.Hour)
	s.Require().NoError(err)
	s.Zero(w.Count)
	s.True(w.Oldest.IsZero())
}
