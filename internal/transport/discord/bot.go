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

	"github.com/bwmarrin/discordgo"

	"warden/internal/verification"
	"warden/pkg/domain"
)

const (
	intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsDirectMessageReactions |
		discordgo.IntentsMessageContent

	defaultEventTimeout = 15 * time.Second
)

// PromptResolver maps a reaction on a prompt message back to its token.
type PromptResolver interface {
	Resolve(messageID string, userID domain.UserID) (string, bool)
}

// Dial builds a bot session with the intents the bot relies on. The
// connection is opened by Bot.Run.
func Dial(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, errors.New("discord token is required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.Identify.Intents = intents
	return s, nil
}

// Bot routes gateway events to commands and the verification core.
type Bot struct {
	session      *discordgo.Session
	rest         RESTSession
	interactions InteractionSession
	permissions  func(userID, channelID string) (int64, error)

	commands *Commands
	verifier Verifier
	groups   Groups
	prompts  PromptResolver

	prefix       string
	appID        string
	eventTimeout time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	selfID string
	known  map[domain.GroupID]struct{}
	base   context.Context
}

type BotOption func(*Bot)

func WithPrefix(prefix string) BotOption {
	return func(b *Bot) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

// WithAppID enables slash command registration on startup.
func WithAppID(appID string) BotOption {
	return func(b *Bot) {
		b.appID = appID
	}
}

func WithBotLogger(logger *slog.Logger) BotOption {
	return func(b *Bot) {
		b.logger = logger
	}
}

func WithEventTimeout(d time.Duration) BotOption {
	return func(b *Bot) {
		if d > 0 {
			b.eventTimeout = d
		}
	}
}

func NewBot(session *discordgo.Session, commands *Commands, verifier Verifier, groups Groups, prompts PromptResolver, opts ...BotOption) (*Bot, error) {
	if session == nil {
		return nil, errors.New("discord session is required")
	}
	b, err := newBot(session, session, func(userID, channelID string) (int64, error) {
		return session.UserChannelPermissions(userID, channelID)
	}, commands, verifier, groups, prompts, opts...)
	if err != nil {
		return nil, err
	}
	b.session = session
	return b, nil
}

func newBot(rest RESTSession, interactions InteractionSession, permissions func(string, string) (int64, error),
	commands *Commands, verifier Verifier, groups Groups, prompts PromptResolver, opts ...BotOption,
) (*Bot, error) {
	switch {
	case commands == nil:
		return nil, errors.New("commands are required")
	case verifier == nil:
		return nil, errors.New("verifier is required")
	case groups == nil:
		return nil, errors.New("group service is required")
	case prompts == nil:
		return nil, errors.New("prompt resolver is required")
	}
	b := &Bot{
		rest:         rest,
		interactions: interactions,
		permissions:  permissions,
		commands:     commands,
		verifier:     verifier,
		groups:       groups,
		prompts:      prompts,
		prefix:       "!",
		eventTimeout: defaultEventTimeout,
		logger:       slog.Default(),
		known:        make(map[domain.GroupID]struct{}),
		base:         context.Background(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Run connects to the gateway and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	b.base = ctx
	b.mu.Unlock()

	handlers := []any{
		func(_ *discordgo.Session, e *discordgo.Ready) { b.handleReady(e) },
		func(_ *discordgo.Session, e *discordgo.MessageCreate) { b.event(func(ctx context.Context) { b.handleMessage(ctx, e) }) },
		func(_ *discordgo.Session, e *discordgo.InteractionCreate) {
			b.event(func(ctx context.Context) { b.handleInteraction(ctx, e) })
		},
		func(_ *discordgo.Session, e *discordgo.MessageReactionAdd) {
			b.event(func(ctx context.Context) { b.handleReaction(ctx, e) })
		},
		func(_ *discordgo.Session, e *discordgo.GuildCreate) { b.event(func(ctx context.Context) { b.handleGuildCreate(ctx, e) }) },
		func(_ *discordgo.Session, e *discordgo.GuildDelete) { b.event(func(ctx context.Context) { b.handleGuildDelete(ctx, e) }) },
		func(_ *discordgo.Session, e *discordgo.GuildMemberAdd) {
			b.event(func(ctx context.Context) { b.handleMemberAdd(ctx, e) })
		},
	}
	for _, h := range handlers {
		remove := b.session.AddHandler(h)
		defer remove()
	}

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	b.logger.InfoContext(ctx, "discord gateway connected", "prefix", b.prefix)

	if b.appID != "" {
		if _, err := b.session.ApplicationCommandBulkOverwrite(b.appID, "", slashCommands(), discordgo.WithContext(ctx)); err != nil {
			b.logger.WarnContext(ctx, "failed to register slash commands", "error", err)
		}
	}

	<-ctx.Done()
	b.logger.InfoContext(ctx, "closing discord gateway")
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("close gateway: %w", err)
	}
	return nil
}

func (b *Bot) event(fn func(ctx context.Context)) {
	b.mu.Lock()
	base := b.base
	b.mu.Unlock()
	ctx, cancel := context.WithTimeout(base, b.eventTimeout)
	defer cancel()
	fn(ctx)
}

func (b *Bot) handleReady(e *discordgo.Ready) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e.User != nil {
		b.selfID = e.User.ID
	}
	for _, g := range e.Guilds {
		b.known[domain.GroupID(g.ID)] = struct{}{}
	}
}

func (b *Bot) isSelf(userID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selfID != "" && userID == b.selfID
}

func (b *Bot) handleMessage(ctx context.Context, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	name, args, ok := parsePrefix(b.prefix, m.Content)
	if !ok || !b.commands.Known(name) {
		return
	}
	inv := Invocation{
		Name:      name,
		Args:      args,
		UserID:    domain.UserID(m.Author.ID),
		GroupID:   domain.GroupID(m.GuildID),
		ChannelID: domain.ChannelID(m.ChannelID),
		Snapshot:  SnapshotOf(m.Author, time.Now()),
	}
	if len(m.Mentions) > 0 {
		inv.Target = domain.UserID(m.Mentions[0].ID)
	}
	if m.GuildID != "" {
		inv.IsAdmin = b.hasAdmin(ctx, m.Author.ID, m.ChannelID)
	}
	r := &messageResponder{session: b.rest, channelID: m.ChannelID, messageID: m.ID, guildID: m.GuildID}
	if err := b.commands.Dispatch(ctx, inv, r); err != nil {
		b.logger.WarnContext(ctx, "failed to answer command", "command", name, "error", err)
	}
}

func (b *Bot) hasAdmin(ctx context.Context, userID, channelID string) bool {
	perms, err := b.permissions(userID, channelID)
	if err != nil {
		b.logger.WarnContext(ctx, "failed to resolve permissions", "channel_id", channelID, "error", err)
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

func parsePrefix(prefix, content string) (string, []string, bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func (b *Bot) handleInteraction(ctx context.Context, e *discordgo.InteractionCreate) {
	user := interactionUser(e.Interaction)
	if user == nil {
		return
	}
	switch e.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleSlash(ctx, e.Interaction, user)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, e.Interaction, user)
	}
}

func (b *Bot) handleSlash(ctx context.Context, i *discordgo.Interaction, user *discordgo.User) {
	data := i.ApplicationCommandData()
	inv := Invocation{
		Name:      data.Name,
		UserID:    domain.UserID(user.ID),
		GroupID:   domain.GroupID(i.GuildID),
		ChannelID: domain.ChannelID(i.ChannelID),
		Snapshot:  SnapshotOf(user, time.Now()),
		IsAdmin:   i.Member != nil && i.Member.Permissions&discordgo.PermissionAdministrator != 0,
	}
	for _, opt := range data.Options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionUser:
			inv.Target = domain.UserID(opt.UserValue(nil).ID)
		case discordgo.ApplicationCommandOptionRole:
			inv.Args = append(inv.Args, opt.RoleValue(nil, "").ID)
		case discordgo.ApplicationCommandOptionInteger:
			inv.Args = append(inv.Args, strconv.FormatInt(opt.IntValue(), 10))
		case discordgo.ApplicationCommandOptionString:
			inv.Args = append(inv.Args, opt.StringValue())
		}
	}
	r := &interactionResponder{session: b.interactions, interaction: i}
	if !b.commands.Known(inv.Name) {
		if err := r.Respond(ctx, Reply{Content: "Unknown command.", Ephemeral: true}); err != nil {
			b.logger.WarnContext(ctx, "failed to answer interaction", "error", err)
		}
		return
	}
	if err := b.commands.Dispatch(ctx, inv, r); err != nil {
		b.logger.WarnContext(ctx, "failed to answer interaction", "command", inv.Name, "error", err)
	}
}

func (b *Bot) handleComponent(ctx context.Context, i *discordgo.Interaction, user *discordgo.User) {
	choice, token, ok := parseCustomID(i.MessageComponentData().CustomID)
	if !ok {
		return
	}
	r := &interactionResponder{session: b.interactions, interaction: i}
	reply := Reply{Ephemeral: true}
	res, err := b.verifier.ConfirmToken(ctx, domain.UserID(user.ID), token, choice)
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to resolve confirmation", "user_id", user.ID, "error", err)
		reply.Content = "Something went wrong. Please try again."
	} else {
		reply.Content = outcomeText(res.Outcome)
	}
	if err := r.Respond(ctx, reply); err != nil {
		b.logger.WarnContext(ctx, "failed to answer button", "error", err)
	}
}

func (b *Bot) handleReaction(ctx context.Context, e *discordgo.MessageReactionAdd) {
	if e.MessageReaction == nil || b.isSelf(e.UserID) {
		return
	}
	choice, ok := choiceForEmoji(e.Emoji.Name)
	if !ok {
		return
	}
	userID := domain.UserID(e.UserID)
	token, ok := b.prompts.Resolve(e.MessageID, userID)
	if !ok {
		return
	}
	res, err := b.verifier.ConfirmToken(ctx, userID, token, choice)
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to resolve reaction", "user_id", userID, "error", err)
		return
	}
	b.logger.DebugContext(ctx, "reaction resolved", "user_id", userID, "outcome", res.Outcome)
}

func (b *Bot) handleGuildCreate(ctx context.Context, e *discordgo.GuildCreate) {
	if e.Guild == nil || e.Unavailable {
		return
	}
	groupID := domain.GroupID(e.ID)
	b.mu.Lock()
	_, seen := b.known[groupID]
	b.known[groupID] = struct{}{}
	b.mu.Unlock()
	if seen {
		return
	}
	if err := b.groups.Joined(ctx, groupID, e.Name); err != nil {
		b.logger.ErrorContext(ctx, "failed to record joined group", "group_id", groupID, "error", err)
	}
}

func (b *Bot) handleGuildDelete(ctx context.Context, e *discordgo.GuildDelete) {
	if e.Guild == nil || e.Unavailable {
		return
	}
	groupID := domain.GroupID(e.ID)
	b.mu.Lock()
	delete(b.known, groupID)
	b.mu.Unlock()

	name := e.Name
	if e.BeforeDelete != nil && name == "" {
		name = e.BeforeDelete.Name
	}
	b.groups.Left(ctx, groupID, name)
}

func (b *Bot) handleMemberAdd(ctx context.Context, e *discordgo.GuildMemberAdd) {
	if e.Member == nil || e.User == nil || e.User.Bot {
		return
	}
	userID := domain.UserID(e.User.ID)
	res, granted, err := b.verifier.MemberJoined(ctx, userID, domain.GroupID(e.GuildID))
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to handle member join", "group_id", e.GuildID, "error", err)
		return
	}
	if granted {
		b.logger.InfoContext(ctx, "auto granted access marker", "group_id", e.GuildID, "status", res.Status)
	}
}

func slashCommands() []*discordgo.ApplicationCommand {
	var admin int64 = discordgo.PermissionAdministrator
	noDM := false
	return []*discordgo.ApplicationCommand{
		{Name: CmdVerify, Description: "Start age verification", DMPermission: &noDM},
		{Name: CmdConfirm, Description: "Confirm your pending verification"},
		{Name: CmdCancel, Description: "Cancel your pending verification"},
		{
			Name: CmdSetup, Description: "Configure verification for this server",
			DefaultMemberPermissions: &admin, DMPermission: &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role granted to verified members"},
			},
		},
		{Name: CmdSettings, Description: "Show verification settings", DefaultMemberPermissions: &admin, DMPermission: &noDM},
		{Name: CmdStats, Description: "Show verification statistics", DefaultMemberPermissions: &admin},
		{
			Name: CmdAuditLog, Description: "Show recent verification history",
			DefaultMemberPermissions: &admin, DMPermission: &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "limit", Description: "Entries to load (max 50)"},
			},
		},
		{
			Name: CmdForceVerify, Description: "Verify a member manually",
			DefaultMemberPermissions: &admin, DMPermission: &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to verify", Required: true},
			},
		},
		{Name: CmdUptime, Description: "Show bot uptime"},
		{Name: CmdPing, Description: "Show gateway latency"},
	}
}

var _ Verifier = (*verification.Manager)(nil)
