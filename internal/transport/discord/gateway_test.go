package discord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/propagation"
)

func TestGatewayMembership(t *testing.T) {
	ctx := context.Background()
	session := newFakeSession()
	session.members["g1/u1"] = &discordgo.Member{Roles: []string{"r1", "r2"}}
	gw := NewGateway(session)

	t.Run("has marker", func(t *testing.T) {
		has, err := gw.HasMarker(ctx, "g1", "u1", "r2")
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("missing marker", func(t *testing.T) {
		has, err := gw.HasMarker(ctx, "g1", "u1", "r9")
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("non member holds nothing", func(t *testing.T) {
		has, err := gw.HasMarker(ctx, "g1", "u2", "r1")
		require.NoError(t, err)
		assert.False(t, has)

		member, err := gw.IsMember(ctx, "g1", "u2")
		require.NoError(t, err)
		assert.False(t, member)
	})

	t.Run("member", func(t *testing.T) {
		member, err := gw.IsMember(ctx, "g1", "u1")
		require.NoError(t, err)
		assert.True(t, member)
	})
}

func TestGatewayGrantMarker(t *testing.T) {
	ctx := context.Background()

	t.Run("adds the role", func(t *testing.T) {
		session := newFakeSession()
		require.NoError(t, NewGateway(session).GrantMarker(ctx, "g1", "u1", "r1", "verified"))
		assert.Equal(t, []string{"g1/u1/r1"}, session.roleAdds)
	})

	t.Run("wraps failures", func(t *testing.T) {
		session := newFakeSession()
		session.roleErr = errors.New("missing permissions")
		err := NewGateway(session).GrantMarker(ctx, "g1", "u1", "r1", "verified")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "add role r1")
	})
}

func TestGatewayCreateInvite(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("uses the first text channel", func(t *testing.T) {
		session := newFakeSession()
		session.channels = []*discordgo.Channel{
			{ID: "voice", Type: discordgo.ChannelTypeGuildVoice, Position: 0},
			{ID: "general", Type: discordgo.ChannelTypeGuildText, Position: 2},
			{ID: "rules", Type: discordgo.ChannelTypeGuildText, Position: 1},
		}
		gw := NewGateway(session)
		gw.now = func() time.Time { return now }

		inv, err := gw.CreateInvite(ctx, "g1", time.Hour)
		require.NoError(t, err)

		assert.Equal(t, "https://discord.gg/code-rules", inv.URL)
		assert.Equal(t, 1, inv.MaxUses)
		assert.Equal(t, now.Add(time.Hour), inv.ExpiresAt)
		require.Len(t, session.invites, 1)
		assert.Equal(t, 3600, session.invites[0].MaxAge)
		assert.True(t, session.invites[0].Unique)
	})

	t.Run("no text channel", func(t *testing.T) {
		session := newFakeSession()
		session.channels = []*discordgo.Channel{{ID: "voice", Type: discordgo.ChannelTypeGuildVoice}}
		_, err := NewGateway(session).CreateInvite(ctx, "g1", time.Hour)
		require.Error(t, err)
	})
}

func TestGatewaySendInvite(t *testing.T) {
	session := newFakeSession()
	err := NewGateway(session).SendInvite(context.Background(), "u1", propagation.Invite{URL: "https://discord.gg/abc", MaxUses: 1})
	require.NoError(t, err)

	require.Len(t, session.sent, 1)
	assert.Equal(t, "dm-u1", session.sent[0].channelID)
	assert.Equal(t, "https://discord.gg/abc", session.sent[0].msg.Embeds[0].Description)
}
