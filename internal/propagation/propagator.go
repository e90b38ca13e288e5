// Package propagation grants the verified marker across every group that
// opted in and admits verified users to the primary group.
package propagation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	groupmodels "warden/internal/group/models"
	"warden/internal/propagation/metrics"
	"warden/pkg/domain"
)

//go:generate mockgen -source=propagator.go -destination=mocks/mocks.go -package=mocks

// Gateway is the transport-side view of groups and their markers.
type Gateway interface {
	HasMarker(ctx context.Context, groupID domain.GroupID, userID domain.UserID, markerID domain.MarkerID) (bool, error)
	GrantMarker(ctx context.Context, groupID domain.GroupID, userID domain.UserID, markerID domain.MarkerID, reason string) error
	IsMember(ctx context.Context, groupID domain.GroupID, userID domain.UserID) (bool, error)
	CreateInvite(ctx context.Context, groupID domain.GroupID, ttl time.Duration) (Invite, error)
}

// Messenger delivers an invite privately to a user.
type Messenger interface {
	SendInvite(ctx context.Context, userID domain.UserID, invite Invite) error
}

// GroupSource resolves group configuration.
type GroupSource interface {
	Get(ctx context.Context, groupID domain.GroupID) (*groupmodels.Config, error)
	ListAutoGrant(ctx context.Context) ([]*groupmodels.Config, error)
}

const (
	defaultCallTimeout = 5 * time.Second
	defaultConcurrency = 4
	defaultInviteTTL   = time.Hour
	grantReason        = "Age verification completed"
)

var tracer = otel.Tracer("warden/propagation")

// Propagator applies verified status across groups. Apply is idempotent:
// markers already held are skipped and a member of the primary group is not
// sent a new invite.
type Propagator struct {
	gateway      Gateway
	groups       GroupSource
	messenger    Messenger
	logger       *slog.Logger
	metrics      *metrics.Metrics
	callTimeout  time.Duration
	concurrency  int
	primaryGroup domain.GroupID
	inviteTTL    time.Duration
}

type Option func(*Propagator)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Propagator) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Propagator) {
		p.metrics = m
	}
}

// WithCallTimeout bounds each gateway call.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Propagator) {
		if d > 0 {
			p.callTimeout = d
		}
	}
}

// WithConcurrency bounds how many groups are processed at once.
func WithConcurrency(n int) Option {
	return func(p *Propagator) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithPrimaryGroup(groupID domain.GroupID) Option {
	return func(p *Propagator) {
		p.primaryGroup = groupID
	}
}

func WithInviteTTL(d time.Duration) Option {
	return func(p *Propagator) {
		if d > 0 {
			p.inviteTTL = d
		}
	}
}

func New(gateway Gateway, groups GroupSource, messenger Messenger, opts ...Option) (*Propagator, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if groups == nil {
		return nil, errors.New("group source is required")
	}
	if messenger == nil {
		return nil, errors.New("messenger is required")
	}
	p := &Propagator{
		gateway:     gateway,
		groups:      groups,
		messenger:   messenger,
		logger:      slog.Default(),
		callTimeout: defaultCallTimeout,
		concurrency: defaultConcurrency,
		inviteTTL:   defaultInviteTTL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Apply grants the marker in every auto-grant group plus the origin group
// when it has a marker, then ensures primary-group admission.
func (p *Propagator) Apply(ctx context.Context, userID domain.UserID, origin domain.GroupID) Report {
	ctx, span := tracer.Start(ctx, "propagation.Apply", trace.WithAttributes(
		attribute.String("group.origin", origin.String()),
	))
	defer span.End()
	start := time.Now()

	report := Report{UserID: userID}
	targets, err := p.targets(ctx, origin)
	if err != nil {
		report.ListErr = err
		p.logger.ErrorContext(ctx, "failed to list auto-grant groups", "error", err)
	}

	report.Groups = make([]GroupResult, len(targets))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, cfg := range targets {
		g.Go(func() error {
			report.Groups[i] = p.grant(ctx, userID, cfg)
			return nil
		})
	}
	_ = g.Wait()

	report.Primary = p.admit(ctx, userID)

	for _, r := range report.Groups {
		p.metrics.IncrementGroupOutcome(string(r.Status))
	}
	p.metrics.IncrementInviteOutcome(string(report.Primary.Status))
	p.metrics.ObserveRun(time.Since(start))

	span.SetAttributes(
		attribute.Int("groups.total", len(report.Groups)),
		attribute.Int("groups.granted", report.Granted()),
		attribute.Int("groups.failed", len(report.Failed())),
	)
	if !report.OK() {
		span.SetStatus(codes.Error, "partial propagation failure")
	}
	p.logger.InfoContext(ctx, "verification propagated",
		"groups", len(report.Groups),
		"granted", report.Granted(),
		"failed", len(report.Failed()),
		"primary", report.Primary.Status,
	)
	return report
}

// ApplyToGroup grants one group's marker, used when a verified user joins a
// group after verifying.
func (p *Propagator) ApplyToGroup(ctx context.Context, userID domain.UserID, groupID domain.GroupID) GroupResult {
	cfg, err := p.groups.Get(ctx, groupID)
	if err != nil {
		return GroupResult{GroupID: groupID, Status: StatusFailed, Err: err}
	}
	if !cfg.GrantsMarker() {
		return GroupResult{GroupID: groupID, Status: StatusSkipped}
	}
	res := p.grant(ctx, userID, cfg)
	p.metrics.IncrementGroupOutcome(string(res.Status))
	return res
}

func (p *Propagator) targets(ctx context.Context, origin domain.GroupID) ([]*groupmodels.Config, error) {
	configs, listErr := p.groups.ListAutoGrant(ctx)

	seen := make(map[domain.GroupID]bool, len(configs)+1)
	targets := make([]*groupmodels.Config, 0, len(configs)+1)
	for _, cfg := range configs {
		if seen[cfg.GroupID] {
			continue
		}
		seen[cfg.GroupID] = true
		targets = append(targets, cfg)
	}

	if !origin.IsNil() && !seen[origin] {
		cfg, err := p.groups.Get(ctx, origin)
		switch {
		case err != nil:
			p.logger.WarnContext(ctx, "failed to load origin group", "group_id", origin, "error", err)
		case !cfg.AccessMarkerID.IsNil():
			targets = append(targets, cfg)
		}
	}
	return targets, listErr
}

func (p *Propagator) grant(ctx context.Context, userID domain.UserID, cfg *groupmodels.Config) GroupResult {
	res := GroupResult{GroupID: cfg.GroupID, MarkerID: cfg.AccessMarkerID}

	held, err := p.call(ctx, func(ctx context.Context) (bool, error) {
		return p.gateway.HasMarker(ctx, cfg.GroupID, userID, cfg.AccessMarkerID)
	})
	if err != nil {
		return p.failed(ctx, res, err)
	}
	if held {
		res.Status = StatusAlreadyHeld
		return res
	}

	_, err = p.call(ctx, func(ctx context.Context) (bool, error) {
		return true, p.gateway.GrantMarker(ctx, cfg.GroupID, userID, cfg.AccessMarkerID, grantReason)
	})
	if err != nil {
		return p.failed(ctx, res, err)
	}
	res.Status = StatusGranted
	return res
}

func (p *Propagator) failed(ctx context.Context, res GroupResult, err error) GroupResult {
	res.Status = StatusFailed
	res.Err = err
	p.logger.WarnContext(ctx, "marker propagation failed",
		"group_id", res.GroupID,
		"marker_id", res.MarkerID,
		"error", err,
	)
	return res
}

func (p *Propagator) admit(ctx context.Context, userID domain.UserID) InviteResult {
	res := InviteResult{GroupID: p.primaryGroup}
	if p.primaryGroup.IsNil() {
		res.Status = InviteNotConfigured
		return res
	}

	member, err := p.call(ctx, func(ctx context.Context) (bool, error) {
		return p.gateway.IsMember(ctx, p.primaryGroup, userID)
	})
	if err != nil {
		return p.inviteFailed(ctx, res, err)
	}
	if member {
		res.Status = InviteAlreadyMember
		return res
	}

	var invite Invite
	_, err = p.call(ctx, func(ctx context.Context) (bool, error) {
		var err error
		invite, err = p.gateway.CreateInvite(ctx, p.primaryGroup, p.inviteTTL)
		return err == nil, err
	})
	if err != nil {
		return p.inviteFailed(ctx, res, err)
	}
	res.Invite = &invite

	_, err = p.call(ctx, func(ctx context.Context) (bool, error) {
		return true, p.messenger.SendInvite(ctx, userID, invite)
	})
	if err != nil {
		return p.inviteFailed(ctx, res, err)
	}
	res.Status = InviteSent
	return res
}

func (p *Propagator) inviteFailed(ctx context.Context, res InviteResult, err error) InviteResult {
	res.Status = InviteFailed
	res.Err = err
	p.logger.WarnContext(ctx, "primary group admission failed",
		"group_id", res.GroupID,
		"error", err,
	)
	return res
}

// call runs fn with the per-call timeout.
func (p *Propagator) call(ctx context.Context, fn func(ctx context.Context) (bool, error)) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return fn(ctx)
}
