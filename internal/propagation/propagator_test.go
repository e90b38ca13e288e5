package propagation_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	groupmodels "warden/internal/group/models"
	"warden/internal/propagation"
	"warden/internal/propagation/mocks"
	"warden/pkg/domain"
)

type PropagatorSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	gateway   *mocks.MockGateway
	groups    *mocks.MockGroupSource
	messenger *mocks.MockMessenger
	ctx       context.Context
}

func TestPropagatorSuite(t *testing.T) {
	suite.Run(t, new(PropagatorSuite))
}

func (s *PropagatorSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.gateway = mocks.NewMockGateway(s.ctrl)
	s.groups = mocks.NewMockGroupSource(s.ctrl)
	s.messenger = mocks.NewMockMessenger(s.ctrl)
	s.ctx = context.Background()
}

func (s *PropagatorSuite) newPropagator(opts ...propagation.Option) *propagation.Propagator {
	opts = append([]propagation.Option{
		propagation.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	p, err := propagation.New(s.gateway, s.groups, s.messenger, opts...)
	s.Require().NoError(err)
	return p
}

func autoGrant(group, marker string) *groupmodels.Config {
	return &groupmodels.Config{
		GroupID:          domain.GroupID(group),
		AccessMarkerID:   domain.MarkerID(marker),
		AutoGrantEnabled: true,
	}
}

func (s *PropagatorSuite) TestNewRequiresCollaborators() {
	_, err := propagation.New(nil, s.groups, s.messenger)
	s.Require().EqualError(err, "gateway is required")
	_, err = propagation.New(s.gateway, nil, s.messenger)
	s.Require().EqualError(err, "group source is required")
	_, err = propagation.New(s.gateway, s.groups, nil)
	s.Require().EqualError(err, "messenger is required")
}

// =============================================================================
// Apply
// =============================================================================

func (s *PropagatorSuite) TestApply_GrantsAndSkipsHeld() {
	p := s.newPropagator()
	s.groups.EXPECT().ListAutoGrant(gomock.Any()).Return([]*groupmodels.Config{autoGrant("1", "11"), autoGrant("2", "22")}, nil)
	s.groups.EXPECT().Get(gomock.Any(), domain.GroupID("1")).Times(0)

	s.gateway.EXPECT().HasMarker(gomock.Any(), domain.GroupID("1"), domain.UserID("9"), domain.MarkerID("11")).Return(false, nil)
	s.gateway.EXPECT().GrantMarker(gomock.Any(), domain.GroupID("1"), domain.UserID("9"), domain.MarkerID("11"), gomock.Any()).Return(nil)
	s.gateway.EXPECT().HasMarker(gomock.Any(), domain.GroupID("2"), domain.UserID("9"), domain.MarkerID("22")).Return(true, nil)

	report := p.Apply(s.ctx, "9", "1")

	s.Require().Len(report.Groups, 2)
	s.Equal(propagation.StatusGranted, report.Groups[0].Status)
	s.Equal(propagation.StatusAlreadyHeld, report.Groups[1].Status)
	s.Equal(1, report.Granted())
	s.Equal(propagation.InviteNotConfigured, report.Primary.Status)
	s.True(report.OK())
}

// Justification: one group failing must not stop the others and must be
// visible per group in the report.
func (s *PropagatorSuite) TestApply_PartialFailure() {
	p := s.newPropagator()
	s.groups.EXPECT().ListAutoGrant(gomock.Any()).
		Return([]*groupmodels.Config{autoGrant("1", "11"), autoGrant("2", "22"), autoGrant("3", "33")}, nil)

	s.gateway.EXPECT().HasMarker(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil).Times(3)
	s.gateway.EXPECT().GrantMarker(gomock.Any(), domain.GroupID("1"), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.gateway.EXPECT().GrantMarker(gomock.Any(), domain.GroupID("2"), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("missing permissions"))
	s.gateway.EXPECT().GrantMarker(gomock.Any(), domain.GroupID("3"), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	report := p.Apply(s.ctx, "9", "")

	s.Equal(2, report.Granted())
	failed := report.Failed()
	s.Require().Len(failed, 1)
	s.Equal(domain.GroupID("2"), failed[0].GroupID)
	s.EqualError(failed[0].Err, "missing permissions")
	s.False(report.OK())
}

func (s *PropagatorSuite) TestApply_IncludesOriginWithMarker() {
	p := s.newPropagator()
	s.groups.EXPECT().ListAutoGrant(gomock.Any()).Return(nil, nil)
	s.groups.EXPECT().Get(gomock.Any(), domain.GroupID("5")).
		Return(&groupmodels.Config{GroupID: "5", AccessMarkerID: "55"}, nil)
	s.gateway.EXPECT().HasMarker(gomock.Any(), domain.GroupID("5"), gomock.Any(), domain.MarkerID("55")).Return(false, nil)
	s.gateway.EXPECT().GrantMarker(gomock.Any(), domain.GroupID("5"), gomock.Any(), domain.MarkerID("55"), gomock.Any()).Return(nil)

	report := p.Apply(s.ctx, "9", "5")
	s.Equal(1, report.Granted())
}

func (s *PropagatorSuite) TestApply_OriginWithoutMarkerIsIgnored() {
	p := s.newPropagator()
	s.groups.EXPECT().ListAutoGrant(gomock.Any()).Return(nil, nil)
	s.groups.EXPECT().Get(gomock.Any(), domain.GroupID("5")).Return(groupmodels.Default("5"), nil)

	report := p.Apply(s.ctx, "9", "5")
	s.Empty(report.Groups)
	s.True(report.OK())
}

func (s *PropagatorSuite) TestApply_ListFailureStillHandlesOrigin() {
	p := s.newPropagator()
	s.groups.EXPECT().ListAutoGrant(gomock.Any()).Return(nil, errors.New("db down"))
	s.groups.EXPECT().Get(gomock.Any(), domain.GroupID("5")).
		Return(&groupmodels.Config{GroupID: "5", AccessMarkerID: "55"}, nil)
	s.gateway.EXPECT().HasMarker(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)

	report := p.Apply(s.ctx, "9", "5")
	s.Error(report.ListErr)
	s.Require().Len(report.Groups, 1)
	s.Equal(propagation.StatusAlreadyHeld, report.Groups[0].Status)
	s.False(report.OK())
}

func (s *PropagatorSuite) TestApply_PerCallTimeout() {
	p := s.newPropagator(propagation.WithCallTimeout(20 * time.Millisecond))
	s.groups.EXPECT().ListAutoGrant(gomock.Any()).Return([]*groupmodels.Config{autoGrant("1", "11")}, nil)
	s.gateway.EXPECT().HasMarker(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ domain.GroupID, _ domain.UserID, _ domain.MarkerID) (bool, error) {
			<-ctx.Done()
			return false, ctx.Err()
		})

	report := p.Apply(s.ctx, "9", "")
	s.Require().Len(report.Failed(), 1)
	s.ErrorIs(report.Failed()[0].Err, context.DeadlineExceeded)
}

func (s *PropagatorSuite) TestApply_BoundedConcurrency() {
	p := s.newPropagator(propagation.WithConcurrency(2))
	configs := make([]*groupmodels.Config, 0, 8)
	for i := range 8 {
		id := string(rune('1' + i))
		configs = append(configs, autoGrant(id, id+"0"))
	}
	s.groups.EXPECT().ListAutoGrant(gomock.Any()).Return(configs, nil)

	var inflight, peak atomic.Int32
	s.gateway.EXPECT().HasMarker(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, domain.GroupID, domain.UserID, domain.MarkerID) (bool, error) {
			n := inflight.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inflight.Add(-1)
			return true, nil
		}).Times(8)

	report := p.Apply(s.ctx, "9", "")
	s.Len(report.Groups, 8)
	s.LessOrEqual(peak.Load(), int32(2))
}

// =============================================================================
// Primary group admission
// =============================================================================

func (s *PropagatorSuite) TestApply_PrimaryInvite() {
	p := s.newPropagator(propagation.WithPrimaryGroup("100"), propagation.WithInviteTTL(time.Hour))

	s.Run("non-member gets a single-use invite", func() {
		invite := propagation.Invite{GroupID: "100", URL: "https://discord.gg/abc", MaxUses: 1}
		s.groups.EXPECT().ListAutoGrant(gomock.Any()).Return(nil, nil)
		s.gateway.EXPECT().IsMember(gomock.Any(), domain.GroupID("100"), domain.UserID("9")).Return(false, nil)
		s.gateway.EXPECT().CreateInvite(gomock.Any(), domain.GroupID("100"), time.Hour).Return(invite, nil)
		s.messenger.EXPECT().SendInvite(gomock.Any(), domain.UserID("9"), invite).Return(nil)

		report := p.Apply(s.ctx, "9", "")
		s.Equal(propagation.InviteSent, report.Primary.Status)
		s.Equal(invite.URL, report.Primary.Invite.URL)
	})

	s.Run("member gets nothing", func() {
		s.groups.EXPECT().ListAutoGrant(gomock.Any()).Return(nil, nil)
		s.gateway.EXPECT().IsMember(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)

		report := p.Apply(s.ctx, "9", "")
		s.Equal(propagation.InviteAlreadyMember, report.Primary.Status)
	})

	s.Run("delivery failure is recorded, not fatal", func() {
		s.groups.EXPECT().ListAutoGrant(gomock.Any()).Return([]*groupmodels.Config{autoGrant("1", "11")}, nil)
		s.gateway.EXPECT().HasMarker(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil)
		s.gateway.EXPECT().GrantMarker(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		s.gateway.EXPECT().IsMember(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil)
		s.gateway.EXPECT().CreateInvite(gomock.Any(), gomock.Any(), gomock.Any()).Return(propagation.Invite{URL: "x"}, nil)
		s.messenger.EXPECT().SendInvite(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("dms closed"))

		report := p.Apply(s.ctx, "9", "")
		s.Equal(1, report.Granted())
		s.Equal(propagation.InviteFailed, report.Primary.Status)
		s.Error(report.Primary.Err)
	})
}

// =============================================================================
// ApplyToGroup
// =============================================================================

func (s *PropagatorSuite) TestApplyToGroup() {
	p := s.newPropagator()

	s.Run("group without auto-grant is skipped", func() {
		s.groups.EXPECT().Get(gomock.Any(), domain.GroupID("7")).Return(groupmodels.Default("7"), nil)
		res := p.ApplyToGroup(s.ctx, "9", "7")
		s.Equal(propagation.StatusSkipped, res.Status)
	})

	s.Run("auto-grant group grants", func() {
		s.groups.EXPECT().Get(gomock.Any(), domain.GroupID("7")).Return(autoGrant("7", "77"), nil)
		s.gateway.EXPECT().HasMarker(gomock.Any(), domain.GroupID("7"), domain.UserID("9"), domain.MarkerID("77")).Return(false, nil)
		s.gateway.EXPECT().GrantMarker(gomock.Any(), domain.GroupID("7"), domain.UserID("9"), domain.MarkerID("77"), gomock.Any()).Return(nil)

		res := p.ApplyToGroup(s.ctx, "9", "7")
		s.Equal(propagation.StatusGranted, res.Status)
	})

	s.Run("config failure is reported", func() {
		s.groups.EXPECT().Get(gomock.Any(), domain.GroupID("7")).Return(nil, errors.New("db down"))
		res := p.ApplyToGroup(s.ctx, "9", "7")
		s.Equal(propagation.StatusFailed, res.Status)
	})
}
