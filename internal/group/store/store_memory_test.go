package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warden/internal/group/models"
	"warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

type GroupStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestGroupStoreSuite(t *testing.T) {
	suite.Run(t, new(GroupStoreSuite))
}

func (s *GroupStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *GroupStoreSuite) TestFindAndSave() {
	s.Run("returns ErrNotFound for unknown group", func() {
		_, err := s.store.Find(s.ctx, "404")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("save then find round trips", func() {
		created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		cfg := &models.Config{GroupID: "1", Name: "lounge", AccessMarkerID: "11", AutoGrantEnabled: true, CreatedAt: created}
		s.Require().NoError(s.store.Save(s.ctx, cfg))

		found, err := s.store.Find(s.ctx, "1")
		s.Require().NoError(err)
		s.Equal("lounge", found.Name)
		s.Equal(domain.MarkerID("11"), found.AccessMarkerID)
	})

	s.Run("save keeps first created_at", func() {
		later := &models.Config{GroupID: "1", Name: "renamed", CreatedAt: time.Now()}
		s.Require().NoError(s.store.Save(s.ctx, later))

		found, err := s.store.Find(s.ctx, "1")
		s.Require().NoError(err)
		s.Equal("renamed", found.Name)
		s.Equal(2026, found.CreatedAt.Year())
	})

	s.Run("returned config is a copy", func() {
		found, err := s.store.Find(s.ctx, "1")
		s.Require().NoError(err)
		found.Name = "mutated"

		again, err := s.store.Find(s.ctx, "1")
		s.Require().NoError(err)
		s.Equal("renamed", again.Name)
	})
}

func (s *GroupStoreSuite) TestListAutoGrant() {
	s.Require().NoError(s.store.Save(s.ctx, &models.Config{GroupID: "3", AccessMarkerID: "33", AutoGrantEnabled: true}))
	s.Require().NoError(s.store.Save(s.ctx, &models.Config{GroupID: "1", AccessMarkerID: "11", AutoGrantEnabled: true}))
	s.Require().NoError(s.store.Save(s.ctx, &models.Config{GroupID: "2", AccessMarkerID: "22", AutoGrantEnabled: false}))
	s.Require().NoError(s.store.Save(s.ctx, &models.Config{GroupID: "4", AutoGrantEnabled: true}))

	configs, err := s.store.ListAutoGrant(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(configs, 2)
	s.Equal(domain.GroupID("1"), configs[0].GroupID)
	s.Equal(domain.GroupID("3"), configs[1].GroupID)
}
