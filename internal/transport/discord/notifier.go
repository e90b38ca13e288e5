package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"warden/internal/verification"
	"warden/pkg/domain"
)

// Notifier delivers prompts and outcome notices. Direct messages are tried
// first; the request channel is the fallback.
type Notifier struct {
	session RESTSession
	prompts *promptIndex
	logger  *slog.Logger
}

type NotifierOption func(*Notifier)

func WithNotifierLogger(logger *slog.Logger) NotifierOption {
	return func(n *Notifier) {
		n.logger = logger
	}
}

func NewNotifier(session RESTSession, opts ...NotifierOption) (*Notifier, error) {
	if session == nil {
		return nil, errors.New("discord session is required")
	}
	n := &Notifier{
		session: session,
		prompts: newPromptIndex(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

var _ verification.Notifier = (*Notifier)(nil)

func (n *Notifier) Prompt(ctx context.Context, p verification.Prompt) error {
	msg := &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{promptEmbed(p)},
		Components: promptComponents(p.Token),
	}
	sent, err := n.deliver(ctx, p.UserID, p.ChannelID, msg)
	if err != nil {
		return fmt.Errorf("deliver prompt: %w", err)
	}

	for _, emoji := range []string{emojiAccept, emojiDecline} {
		if err := n.session.MessageReactionAdd(sent.ChannelID, sent.ID, emoji, discordgo.WithContext(ctx)); err != nil {
			n.logger.WarnContext(ctx, "failed to add prompt reaction", "emoji", emoji, "error", err)
		}
	}
	n.prompts.add(sent.ID, promptRef{userID: p.UserID, token: p.Token, expiresAt: p.ExpiresAt})
	return nil
}

func (n *Notifier) Outcome(ctx context.Context, notice verification.Notice) error {
	msg := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{outcomeEmbed(notice)}}
	if _, err := n.deliver(ctx, notice.UserID, notice.ChannelID, msg); err != nil {
		return fmt.Errorf("deliver outcome: %w", err)
	}
	return nil
}

// Resolve matches a reaction to the prompt it was added to.
func (n *Notifier) Resolve(messageID string, userID domain.UserID) (string, bool) {
	return n.prompts.take(messageID, userID)
}

// Sweep forgets prompts past their deadline.
func (n *Notifier) Sweep(ctx context.Context) int {
	return n.prompts.Sweep(ctx)
}

func (n *Notifier) deliver(ctx context.Context, userID domain.UserID, channelID domain.ChannelID, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	sent, dmErr := n.sendDM(ctx, userID, msg)
	if dmErr == nil {
		return sent, nil
	}
	if channelID.IsNil() {
		return nil, dmErr
	}
	n.logger.DebugContext(ctx, "dm failed, falling back to channel", "channel_id", channelID, "error", dmErr)

	fallback := *msg
	fallback.Content = mention(userID)
	fallback.AllowedMentions = &discordgo.MessageAllowedMentions{Users: []string{userID.String()}}
	sent, err := n.session.ChannelMessageSendComplex(channelID.String(), &fallback, discordgo.WithContext(ctx))
	if err != nil {
		return nil, errors.Join(dmErr, fmt.Errorf("channel: %w", err))
	}
	return sent, nil
}

func (n *Notifier) sendDM(ctx context.Context, userID domain.UserID, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	dm, err := n.session.UserChannelCreate(userID.String(), discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("open dm: %w", err)
	}
	sent, err := n.session.ChannelMessageSendComplex(dm.ID, msg, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("dm: %w", err)
	}
	return sent, nil
}
