package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Reply is a command response.
type Reply struct {
	Content string
	Embed   *discordgo.MessageEmbed
	// Ephemeral replies are only visible to the invoker where the transport
	// supports it.
	Ephemeral bool
}

// Responder answers a command regardless of whether it came from a prefix
// message or a slash interaction.
type Responder interface {
	Respond(ctx context.Context, r Reply) error
	// Defer acknowledges a command that needs more time before responding.
	Defer(ctx context.Context) error
	Followup(ctx context.Context, r Reply) error
}

func (r Reply) embeds() []*discordgo.MessageEmbed {
	if r.Embed == nil {
		return nil
	}
	return []*discordgo.MessageEmbed{r.Embed}
}

func (r Reply) flags() discordgo.MessageFlags {
	if r.Ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

type messageResponder struct {
	session   RESTSession
	channelID string
	messageID string
	guildID   string
}

func (m *messageResponder) Respond(ctx context.Context, r Reply) error {
	_, err := m.session.ChannelMessageSendComplex(m.channelID, &discordgo.MessageSend{
		Content: r.Content,
		Embeds:  r.embeds(),
		Reference: &discordgo.MessageReference{
			MessageID: m.messageID,
			ChannelID: m.channelID,
			GuildID:   m.guildID,
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// Defer is a no-op: a prefix command has no acknowledgement deadline.
func (m *messageResponder) Defer(context.Context) error { return nil }

func (m *messageResponder) Followup(ctx context.Context, r Reply) error {
	return m.Respond(ctx, r)
}

type interactionResponder struct {
	session     InteractionSession
	interaction *discordgo.Interaction
	deferred    bool
}

func (i *interactionResponder) Respond(ctx context.Context, r Reply) error {
	if i.deferred {
		return i.Followup(ctx, r)
	}
	err := i.session.InteractionRespond(i.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: r.Content,
			Embeds:  r.embeds(),
			Flags:   r.flags(),
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("respond to interaction: %w", err)
	}
	return nil
}

func (i *interactionResponder) Defer(ctx context.Context) error {
	if i.deferred {
		return nil
	}
	err := i.session.InteractionRespond(i.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("defer interaction: %w", err)
	}
	i.deferred = true
	return nil
}

func (i *interactionResponder) Followup(ctx context.Context, r Reply) error {
	_, err := i.session.FollowupMessageCreate(i.interaction, true, &discordgo.WebhookParams{
		Content: r.Content,
		Embeds:  r.embeds(),
		Flags:   r.flags(),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send followup: %w", err)
	}
	return nil
}
