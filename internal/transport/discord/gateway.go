package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"

	"warden/internal/propagation"
	"warden/pkg/domain"
)

const inviteBaseURL = "https://discord.gg/"

// Gateway implements propagation.Gateway and propagation.Messenger over the
// Discord REST API.
type Gateway struct {
	session RESTSession
	now     func() time.Time
}

func NewGateway(session RESTSession) *Gateway {
	return &Gateway{session: session, now: time.Now}
}

var (
	_ propagation.Gateway   = (*Gateway)(nil)
	_ propagation.Messenger = (*Gateway)(nil)
)

func (g *Gateway) HasMarker(ctx context.Context, groupID domain.GroupID, userID domain.UserID, markerID domain.MarkerID) (bool, error) {
	member, err := g.session.GuildMember(groupID.String(), userID.String(), discordgo.WithContext(ctx))
	if err != nil {
		if isUnknownMember(err) {
			return false, nil
		}
		return false, fmt.Errorf("load member: %w", err)
	}
	return slices.Contains(member.Roles, markerID.String()), nil
}

// GrantMarker adds the role. A user who is not a member of the group cannot
// hold its marker, which is reported as an error.
func (g *Gateway) GrantMarker(ctx context.Context, groupID domain.GroupID, userID domain.UserID, markerID domain.MarkerID, reason string) error {
	err := g.session.GuildMemberRoleAdd(groupID.String(), userID.String(), markerID.String(),
		discordgo.WithContext(ctx),
		discordgo.WithAuditLogReason(reason),
	)
	if err != nil {
		return fmt.Errorf("add role %s: %w", markerID, err)
	}
	return nil
}

func (g *Gateway) IsMember(ctx context.Context, groupID domain.GroupID, userID domain.UserID) (bool, error) {
	_, err := g.session.GuildMember(groupID.String(), userID.String(), discordgo.WithContext(ctx))
	if err != nil {
		if isUnknownMember(err) {
			return false, nil
		}
		return false, fmt.Errorf("load member: %w", err)
	}
	return true, nil
}

// CreateInvite creates a single-use invite on the group's first text channel.
func (g *Gateway) CreateInvite(ctx context.Context, groupID domain.GroupID, ttl time.Duration) (propagation.Invite, error) {
	channels, err := g.session.GuildChannels(groupID.String(), discordgo.WithContext(ctx))
	if err != nil {
		return propagation.Invite{}, fmt.Errorf("list channels: %w", err)
	}
	channelID, err := inviteChannel(channels)
	if err != nil {
		return propagation.Invite{}, err
	}

	inv, err := g.session.ChannelInviteCreate(channelID, discordgo.Invite{
		MaxAge:  int(ttl.Seconds()),
		MaxUses: 1,
		Unique:  true,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return propagation.Invite{}, fmt.Errorf("create invite: %w", err)
	}
	return propagation.Invite{
		GroupID:   groupID,
		URL:       inviteBaseURL + inv.Code,
		MaxUses:   1,
		ExpiresAt: g.now().Add(ttl),
	}, nil
}

func inviteChannel(channels []*discordgo.Channel) (string, error) {
	text := make([]*discordgo.Channel, 0, len(channels))
	for _, c := range channels {
		if c.Type == discordgo.ChannelTypeGuildText {
			text = append(text, c)
		}
	}
	if len(text) == 0 {
		return "", errors.New("group has no text channel to invite into")
	}
	sort.SliceStable(text, func(i, j int) bool { return text[i].Position < text[j].Position })
	return text[0].ID, nil
}

// SendInvite delivers the invite by direct message.
func (g *Gateway) SendInvite(ctx context.Context, userID domain.UserID, invite propagation.Invite) error {
	dm, err := g.session.UserChannelCreate(userID.String(), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm: %w", err)
	}
	_, err = g.session.ChannelMessageSendComplex(dm.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{inviteEmbed(invite)},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send invite: %w", err)
	}
	return nil
}
