package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	groupmodels "warden/internal/group/models"
	"warden/internal/platform/metrics"
	"warden/internal/propagation"
	"warden/internal/screen"
	"warden/internal/verification"
	"warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/audit"
	"warden/pkg/requestcontext"
)

// Verifier is the verification core as seen by chat commands.
type Verifier interface {
	Start(ctx context.Context, req verification.StartRequest) (*verification.StartResult, error)
	Confirm(ctx context.Context, userID domain.UserID, choice verification.Choice) (*verification.ConfirmResult, error)
	ConfirmToken(ctx context.Context, userID domain.UserID, token string, choice verification.Choice) (*verification.ConfirmResult, error)
	Cancel(ctx context.Context, userID domain.UserID) (*verification.ConfirmResult, error)
	ForceVerify(ctx context.Context, userID domain.UserID, groupID domain.GroupID) (*verification.ForceResult, error)
	MemberJoined(ctx context.Context, userID domain.UserID, groupID domain.GroupID) (propagation.GroupResult, bool, error)
	Stats(ctx context.Context) (verification.Stats, error)
	AuditLog(ctx context.Context, q audit.Query) ([]audit.Entry, error)
}

// Groups manages per-group configuration and bot membership.
type Groups interface {
	Get(ctx context.Context, groupID domain.GroupID) (*groupmodels.Config, error)
	Setup(ctx context.Context, groupID domain.GroupID, marker domain.MarkerID, channel domain.ChannelID) (*groupmodels.Config, error)
	Joined(ctx context.Context, groupID domain.GroupID, name string) error
	Left(ctx context.Context, groupID domain.GroupID, name string)
}

// ActionWriter records command failures.
type ActionWriter interface {
	AppendAction(ctx context.Context, action audit.Action) error
}

//go:generate mockgen -source=commands.go -destination=mocks/mocks.go -package=mocks

// Command names, shared by the prefix parser and slash registration.
const (
	CmdVerify        = "verify"
	CmdConfirm       = "confirm"
	CmdCancel        = "cancel"
	CmdSetup         = "setup_verification"
	CmdSettings      = "verification_settings"
	CmdStats         = "verification_stats"
	CmdAuditLog      = "audit_log"
	CmdForceVerify   = "force_verify"
	CmdUptime        = "uptime"
	CmdPing          = "ping"
	defaultAuditShow = 10

	defaultVerifyCooldown = 30 * time.Second
)

// Invocation is one command call, normalized across transports.
type Invocation struct {
	Name      string
	Args      []string
	UserID    domain.UserID
	GroupID   domain.GroupID
	ChannelID domain.ChannelID
	IsAdmin   bool
	Snapshot  screen.Snapshot
	// Target is the user a command acts on, from a mention or a user option.
	Target domain.UserID
}

type handlerFunc func(ctx context.Context, inv Invocation, r Responder) error

type command struct {
	admin    bool
	inGroup  bool
	cooldown time.Duration
	run      handlerFunc
}

// cooldowns remembers the last accepted call per command and user.
type cooldowns struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// take reports how long the caller must still wait. A zero wait records now
// as the new last call.
func (c *cooldowns) take(key string, now time.Time, d time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		c.last = make(map[string]time.Time)
	}
	if prev, ok := c.last[key]; ok {
		if wait := prev.Add(d).Sub(now); wait > 0 {
			return wait
		}
	}
	for k, t := range c.last {
		if !now.Before(t.Add(d)) {
			delete(c.last, k)
		}
	}
	c.last[key] = now
	return 0
}

// Commands dispatches invocations to their handlers.
type Commands struct {
	verifier  Verifier
	groups    Groups
	actions   ActionWriter
	logger    *slog.Logger
	metrics   *metrics.Metrics
	startedAt time.Time
	latency   func() time.Duration
	table     map[string]command

	verifyCooldown time.Duration
	cooldowns      cooldowns
}

type CommandsOption func(*Commands)

func WithCommandsLogger(logger *slog.Logger) CommandsOption {
	return func(c *Commands) {
		c.logger = logger
	}
}

func WithCommandsMetrics(m *metrics.Metrics) CommandsOption {
	return func(c *Commands) {
		c.metrics = m
	}
}

// WithLatency sets the source for the ping command.
func WithLatency(fn func() time.Duration) CommandsOption {
	return func(c *Commands) {
		c.latency = fn
	}
}

// WithVerifyCooldown sets the per-user pause between verify calls. Zero
// disables it.
func WithVerifyCooldown(d time.Duration) CommandsOption {
	return func(c *Commands) {
		c.verifyCooldown = d
	}
}

func WithStartedAt(t time.Time) CommandsOption {
	return func(c *Commands) {
		c.startedAt = t
	}
}

func NewCommands(verifier Verifier, groups Groups, actions ActionWriter, opts ...CommandsOption) (*Commands, error) {
	if verifier == nil {
		return nil, errors.New("verifier is required")
	}
	if groups == nil {
		return nil, errors.New("group service is required")
	}
	if actions == nil {
		return nil, errors.New("action writer is required")
	}
	c := &Commands{
		verifier:  verifier,
		groups:    groups,
		actions:   actions,
		logger:    slog.Default(),
		startedAt: time.Now(),
		latency:   func() time.Duration { return 0 },

		verifyCooldown: defaultVerifyCooldown,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.table = map[string]command{
		CmdVerify:      {inGroup: true, cooldown: c.verifyCooldown, run: c.verify},
		CmdConfirm:     {run: c.confirm},
		CmdCancel:      {run: c.cancel},
		CmdSetup:       {admin: true, inGroup: true, run: c.setup},
		CmdSettings:    {admin: true, inGroup: true, run: c.settings},
		CmdStats:       {admin: true, run: c.stats},
		CmdAuditLog:    {admin: true, inGroup: true, run: c.auditLog},
		CmdForceVerify: {admin: true, inGroup: true, run: c.forceVerify},
		CmdUptime:      {run: c.uptime},
		CmdPing:        {run: c.ping},
	}
	return c, nil
}

// Known reports whether name is a registered command.
func (c *Commands) Known(name string) bool {
	_, ok := c.table[name]
	return ok
}

// Dispatch runs one command. Failures are answered, logged and audited, so
// the caller only sees errors from the responder itself.
func (c *Commands) Dispatch(ctx context.Context, inv Invocation, r Responder) error {
	cmd, ok := c.table[inv.Name]
	if !ok {
		return nil
	}
	ctx = requestcontext.WithActor(ctx, inv.UserID)
	ctx = requestcontext.WithRequestID(ctx, uuid.NewString())

	if cmd.inGroup && inv.GroupID.IsNil() {
		c.metrics.IncrementCommand(inv.Name, "rejected")
		return r.Respond(ctx, Reply{Content: "This command only works inside a server.", Ephemeral: true})
	}
	if cmd.admin && !inv.IsAdmin {
		c.metrics.IncrementCommand(inv.Name, "forbidden")
		return r.Respond(ctx, Reply{Content: "You need administrator permissions to use this command.", Ephemeral: true})
	}
	if cmd.cooldown > 0 {
		if wait := c.cooldowns.take(inv.Name+":"+inv.UserID.String(), requestcontext.Now(ctx), cmd.cooldown); wait > 0 {
			c.metrics.IncrementCommand(inv.Name, "cooldown")
			return r.Respond(ctx, Reply{
				Content:   fmt.Sprintf("Please wait %.1f seconds before using this command again.", wait.Seconds()),
				Ephemeral: true,
			})
		}
	}

	err := cmd.run(ctx, inv, r)
	if err == nil {
		c.metrics.IncrementCommand(inv.Name, "ok")
		return nil
	}

	if de, ok := dErrors.As(err); ok && de.Code != dErrors.CodeInternal {
		c.metrics.IncrementCommand(inv.Name, "invalid")
		return r.Respond(ctx, Reply{Content: de.Message, Ephemeral: true})
	}

	c.metrics.IncrementCommand(inv.Name, "error")
	c.logger.ErrorContext(ctx, "command failed",
		"command", inv.Name,
		"user_id", inv.UserID,
		"group_id", inv.GroupID,
		"error", err,
	)
	c.recordFailure(ctx, inv, err)
	return r.Respond(ctx, Reply{Content: "Something went wrong. The error has been logged.", Ephemeral: true})
}

func (c *Commands) recordFailure(ctx context.Context, inv Invocation, cause error) {
	err := c.actions.AppendAction(ctx, audit.Action{
		ID:        uuid.New(),
		Type:      audit.ActionCommandError,
		ActorID:   inv.UserID,
		GroupID:   inv.GroupID,
		Success:   false,
		Details:   fmt.Sprintf("%s: %v", inv.Name, cause),
		Timestamp: requestcontext.Now(ctx),
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to audit command error", "command", inv.Name, "error", err)
	}
}

func (c *Commands) verify(ctx context.Context, inv Invocation, r Responder) error {
	if err := r.Defer(ctx); err != nil {
		return err
	}
	snap := inv.Snapshot
	snap.ObservedAt = requestcontext.Now(ctx)
	res, err := c.verifier.Start(ctx, verification.StartRequest{
		UserID:    inv.UserID,
		GroupID:   inv.GroupID,
		ChannelID: inv.ChannelID,
		Snapshot:  snap,
	})
	var rejected *verification.RejectedError
	if errors.As(err, &rejected) {
		return r.Followup(ctx, Reply{Embed: rejectionEmbed(rejected), Ephemeral: true})
	}
	if err != nil {
		return err
	}
	return r.Followup(ctx, Reply{Embed: startedEmbed(res), Ephemeral: true})
}

func (c *Commands) confirm(ctx context.Context, inv Invocation, r Responder) error {
	res, err := c.verifier.Confirm(ctx, inv.UserID, verification.ChoiceAccept)
	if err != nil {
		return err
	}
	return r.Respond(ctx, Reply{Content: outcomeText(res.Outcome), Ephemeral: true})
}

func (c *Commands) cancel(ctx context.Context, inv Invocation, r Responder) error {
	res, err := c.verifier.Cancel(ctx, inv.UserID)
	if err != nil {
		return err
	}
	return r.Respond(ctx, Reply{Content: outcomeText(res.Outcome), Ephemeral: true})
}

func outcomeText(o verification.Outcome) string {
	switch o {
	case verification.OutcomeVerified:
		return "Verification complete."
	case verification.OutcomeCancelled:
		return "Verification cancelled."
	case verification.OutcomeExpired:
		return "Your verification expired. Run verify again to restart."
	}
	return "You have no pending verification."
}

func (c *Commands) setup(ctx context.Context, inv Invocation, r Responder) error {
	var marker domain.MarkerID
	if len(inv.Args) > 0 {
		id, err := domain.ParseMarkerID(stripMention(inv.Args[0]))
		if err != nil {
			return dErrors.New(dErrors.CodeInvalidInput, "Give a role mention or role id.")
		}
		marker = id
	}
	cfg, err := c.groups.Setup(ctx, inv.GroupID, marker, inv.ChannelID)
	if err != nil {
		return err
	}
	return r.Respond(ctx, Reply{Content: "Verification configured.", Embed: settingsEmbed(cfg)})
}

func (c *Commands) settings(ctx context.Context, inv Invocation, r Responder) error {
	cfg, err := c.groups.Get(ctx, inv.GroupID)
	if err != nil {
		return err
	}
	return r.Respond(ctx, Reply{Embed: settingsEmbed(cfg)})
}

func (c *Commands) stats(ctx context.Context, _ Invocation, r Responder) error {
	st, err := c.verifier.Stats(ctx)
	if err != nil {
		return err
	}
	return r.Respond(ctx, Reply{Embed: statsEmbed(st)})
}

func (c *Commands) auditLog(ctx context.Context, inv Invocation, r Responder) error {
	limit := defaultAuditShow
	if len(inv.Args) > 0 {
		n, err := strconv.Atoi(inv.Args[0])
		if err != nil {
			return dErrors.New(dErrors.CodeInvalidInput, "Limit must be a number.")
		}
		limit = n
	}
	entries, err := c.verifier.AuditLog(ctx, audit.Query{Limit: limit, GroupID: inv.GroupID})
	if err != nil {
		return err
	}
	return r.Respond(ctx, Reply{Embed: auditLogEmbed(entries), Ephemeral: true})
}

func (c *Commands) forceVerify(ctx context.Context, inv Invocation, r Responder) error {
	target := inv.Target
	if target.IsNil() && len(inv.Args) > 0 {
		id, err := domain.ParseUserID(stripMention(inv.Args[0]))
		if err == nil {
			target = id
		}
	}
	if target.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "Mention the user to verify.")
	}
	if err := r.Defer(ctx); err != nil {
		return err
	}
	res, err := c.verifier.ForceVerify(ctx, target, inv.GroupID)
	if err != nil {
		return err
	}
	return r.Followup(ctx, Reply{Embed: forceEmbed(target, res)})
}

func (c *Commands) uptime(ctx context.Context, _ Invocation, r Responder) error {
	up := requestcontext.Now(ctx).Sub(c.startedAt).Truncate(time.Second)
	return r.Respond(ctx, Reply{Content: "Uptime: " + up.String()})
}

func (c *Commands) ping(ctx context.Context, _ Invocation, r Responder) error {
	return r.Respond(ctx, Reply{Content: fmt.Sprintf("Pong! %dms", c.latency().Milliseconds())})
}

// stripMention turns "<@123>", "<@!123>" or "<@&123>" into "123".
func stripMention(s string) string {
	s = strings.TrimPrefix(s, "<@")
	s = strings.TrimPrefix(s, "!")
	s = strings.TrimPrefix(s, "&")
	return strings.TrimSuffix(s, ">")
}
