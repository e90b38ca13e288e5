package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"warden/internal/group/models"
	"warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/audit"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

type Store interface {
	Find(ctx context.Context, groupID domain.GroupID) (*models.Config, error)
	Save(ctx context.Context, cfg *models.Config) error
	ListAutoGrant(ctx context.Context) ([]*models.Config, error)
}

type AuditWriter interface {
	AppendAction(ctx context.Context, action audit.Action) error
}

// Service owns per-group verification configuration.
type Service struct {
	store   Store
	auditor AuditWriter
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, auditor AuditWriter, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("group store is required")
	}
	if auditor == nil {
		return nil, errors.New("audit writer is required")
	}
	s := &Service{store: store, auditor: auditor, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get returns the stored configuration, or the defaults for a group that has
// never been configured.
func (s *Service) Get(ctx context.Context, groupID domain.GroupID) (*models.Config, error) {
	cfg, err := s.store.Find(ctx, groupID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Default(groupID), nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group configuration")
	}
	return cfg, nil
}

// Policy resolves the effective verification policy for a group. An empty
// group id yields the defaults.
func (s *Service) Policy(ctx context.Context, groupID domain.GroupID) (models.Policy, error) {
	if groupID.IsNil() {
		return models.Default("").Policy(), nil
	}
	cfg, err := s.Get(ctx, groupID)
	if err != nil {
		return models.Policy{}, err
	}
	return cfg.Policy(), nil
}

// ListAutoGrant returns the groups whose marker is granted on verification.
func (s *Service) ListAutoGrant(ctx context.Context) ([]*models.Config, error) {
	configs, err := s.store.ListAutoGrant(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list auto-grant groups")
	}
	return configs, nil
}

// Configure applies an administrator update. The acting administrator is
// read from the context.
func (s *Service) Configure(ctx context.Context, groupID domain.GroupID, u models.Update) (*models.Config, error) {
	if groupID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "group id is required")
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	cfg, err := s.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	cfg.Apply(u, requestcontext.Now(ctx))
	if err := s.store.Save(ctx, cfg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save group configuration")
	}

	s.logger.InfoContext(ctx, "group configured",
		"group_id", groupID,
		"actor_id", requestcontext.Actor(ctx),
		"auto_grant", cfg.AutoGrantEnabled,
	)
	s.appendAction(ctx, audit.Action{
		Type:    audit.ActionGroupConfigured,
		ActorID: requestcontext.Actor(ctx),
		GroupID: groupID,
		Success: true,
		Details: describeUpdate(ctx, u),
	})
	return cfg, nil
}

// Setup points verification at a marker and a prompt channel. Auto-grant is
// enabled only when a marker is given.
func (s *Service) Setup(ctx context.Context, groupID domain.GroupID, marker domain.MarkerID, channel domain.ChannelID) (*models.Config, error) {
	enabled := !marker.IsNil()
	u := models.Update{
		PromptChannelID:  &channel,
		AutoGrantEnabled: &enabled,
	}
	if enabled {
		u.AccessMarkerID = &marker
	}
	return s.Configure(ctx, groupID, u)
}

// Joined records that the bot was added to a group and remembers its name.
func (s *Service) Joined(ctx context.Context, groupID domain.GroupID, name string) error {
	cfg, err := s.Get(ctx, groupID)
	if err != nil {
		return err
	}
	cfg.Apply(models.Update{Name: &name}, requestcontext.Now(ctx))
	if err := s.store.Save(ctx, cfg); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save group configuration")
	}
	s.logger.InfoContext(ctx, "joined group", "group_id", groupID, "name", name)
	s.appendAction(ctx, audit.Action{
		Type:    audit.ActionGroupJoined,
		GroupID: groupID,
		Success: true,
		Details: "Joined group: " + name,
	})
	return nil
}

// Left records that the bot was removed from a group. Configuration is kept
// so a rejoin restores it.
func (s *Service) Left(ctx context.Context, groupID domain.GroupID, name string) {
	s.logger.InfoContext(ctx, "left group", "group_id", groupID, "name", name)
	s.appendAction(ctx, audit.Action{
		Type:    audit.ActionGroupLeft,
		GroupID: groupID,
		Success: true,
		Details: "Left group: " + name,
	})
}

func (s *Service) appendAction(ctx context.Context, a audit.Action) {
	a.ID = uuid.New()
	a.Timestamp = requestcontext.Now(ctx)
	if err := s.auditor.AppendAction(ctx, a); err != nil {
		s.logger.WarnContext(ctx, "failed to append audit action",
			"action", a.Type,
			"group_id", a.GroupID,
			"error", err,
		)
	}
}

func describeUpdate(ctx context.Context, u models.Update) string {
	var parts []string
	if u.Name != nil {
		parts = append(parts, fmt.Sprintf("name=%q", *u.Name))
	}
	if u.AccessMarkerID != nil {
		parts = append(parts, "access_marker_id="+u.AccessMarkerID.String())
	}
	if u.AutoGrantEnabled != nil {
		parts = append(parts, fmt.Sprintf("auto_grant_enabled=%t", *u.AutoGrantEnabled))
	}
	if u.PromptChannelID != nil {
		parts = append(parts, "prompt_channel_id="+u.PromptChannelID.String())
	}
	if u.MinAccountAgeDays != nil {
		parts = append(parts, fmt.Sprintf("min_account_age_days=%d", *u.MinAccountAgeDays))
	}
	if u.MaxAttemptsPerWindow != nil {
		parts = append(parts, fmt.Sprintf("max_attempts_per_window=%d", *u.MaxAttemptsPerWindow))
	}
	if u.WindowSeconds != nil {
		parts = append(parts, fmt.Sprintf("window_seconds=%d", *u.WindowSeconds))
	}
	if u.SessionTimeoutSeconds != nil {
		parts = append(parts, fmt.Sprintf("session_timeout_seconds=%d", *u.SessionTimeoutSeconds))
	}
	if client := requestcontext.Client(ctx); client != "" {
		parts = append(parts, "via "+client)
	}
	return strings.Join(parts, " ")
}
