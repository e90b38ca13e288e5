package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"warden/pkg/domain"
	audit "warden/pkg/platform/audit"
	"warden/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	t0    time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) attempt(user domain.UserID, group domain.GroupID, success bool, at time.Time) audit.Attempt {
	return audit.Attempt{
		ID:        uuid.New(),
		UserID:    user,
		GroupID:   group,
		Username:  "user" + string(user),
		Success:   success,
		Reason:    "test",
		Timestamp: at,
	}
}

func (s *InMemoryStoreSuite) TestMarkVerified() {
	s.Run("first write creates record", func() {
		rec, err := s.store.MarkVerified(s.ctx, "100", s.t0)
		s.Require().NoError(err)
		s.True(rec.Verified)
		s.Equal(s.t0, rec.VerifiedAt)
	})

	s.Run("re-write keeps first verified_at", func() {
		rec, err := s.store.MarkVerified(s.ctx, "100", s.t0.Add(time.Hour))
		s.Require().NoError(err)
		s.Equal(s.t0, rec.VerifiedAt)
	})

	s.Run("is verified reflects record", func() {
		ok, err := s.store.IsVerified(s.ctx, "100")
		s.Require().NoError(err)
		s.True(ok)

		ok, err = s.store.IsVerified(s.ctx, "200")
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("missing record is not found", func() {
		_, err := s.store.Record(s.ctx, "200")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestList() {
	s.Require().NoError(s.store.AppendAttempt(s.ctx, s.attempt("1", "10", false, s.t0)))
	s.Require().NoError(s.store.AppendAttempt(s.ctx, s.attempt("2", "20", true, s.t0.Add(2*time.Minute))))
	s.Require().NoError(s.store.AppendAction(s.ctx, audit.Action{
		ID:        uuid.New(),
		Type:      audit.ActionForceVerify,
		ActorID:   "9",
		UserID:    "3",
		GroupID:   "10",
		Success:   true,
		Details:   "Force verified by 9",
		Timestamp: s.t0.Add(time.Minute),
	}))

	s.Run("newest first across streams", func() {
		entries, err := s.store.List(s.ctx, audit.Query{Limit: 10})
		s.Require().NoError(err)
		s.Require().Len(entries, 3)
		s.Equal(domain.UserID("2"), entries[0].UserID)
		s.Equal(string(audit.ActionForceVerify), entries[1].Action)
		s.Equal(audit.KindAction, entries[1].Kind)
		s.Equal(audit.AttemptAction, entries[2].Action)
	})

	s.Run("group filter", func() {
		entries, err := s.store.List(s.ctx, audit.Query{Limit: 10, GroupID: "10"})
		s.Require().NoError(err)
		s.Len(entries, 2)
		for _, e := range entries {
			s.Equal(domain.GroupID("10"), e.GroupID)
		}
	})

	s.Run("limit applies after ordering", func() {
		entries, err := s.store.List(s.ctx, audit.Query{Limit: 1})
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(domain.UserID("2"), entries[0].UserID)
	})
}

func (s *InMemoryStoreSuite) TestList_LimitClamp() {
	for i := range 60 {
		s.Require().NoError(s.store.AppendAttempt(s.ctx,
			s.attempt(domain.UserID(fmt.Sprint(i+1)), "10", false, s.t0.Add(time.Duration(i)*time.Second))))
	}

	entries, err := s.store.List(s.ctx, audit.Query{Limit: 500})
	s.Require().NoError(err)
	s.Len(entries, audit.MaxListLimit)

	entries, err = s.store.List(s.ctx, audit.Query{})
	s.Require().NoError(err)
	s.Len(entries, audit.DefaultListLimit)
}

func (s *InMemoryStoreSuite) TestStats() {
	_, err := s.store.MarkVerified(s.ctx, "1", s.t0)
	s.Require().NoError(err)
	_, err = s.store.MarkVerified(s.ctx, "2", s.t0)
	s.Require().NoError(err)

	s.Require().NoError(s.store.AppendAttempt(s.ctx, s.attempt("3", "10", false, s.t0.Add(-48*time.Hour))))
	s.Require().NoError(s.store.AppendAttempt(s.ctx, s.attempt("3", "10", false, s.t0.Add(-time.Hour))))
	s.Require().NoError(s.store.AppendAttempt(s.ctx, s.attempt("1", "10", true, s.t0)))

	stats, err := s.store.Stats(s.ctx, s.t0.Add(-24*time.Hour))
	s.Require().NoError(err)
	s.Equal(2, stats.TotalVerified)
	s.Equal(1, stats.FailedInWindow)
}
