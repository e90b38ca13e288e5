package discord

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"warden/internal/propagation"
	"warden/internal/transport/discord/mocks"
	"warden/internal/verification"
	"warden/pkg/domain"
)

type botFixture struct {
	bot      *Bot
	session  *fakeSession
	verifier *mocks.MockVerifier
	groups   *mocks.MockGroups
	notifier *Notifier
	perms    int64
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &botFixture{
		session:  newFakeSession(),
		verifier: mocks.NewMockVerifier(ctrl),
		groups:   mocks.NewMockGroups(ctrl),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	commands, err := NewCommands(f.verifier, f.groups, mocks.NewMockActionWriter(ctrl), WithCommandsLogger(logger))
	require.NoError(t, err)
	f.notifier, err = NewNotifier(f.session, WithNotifierLogger(logger))
	require.NoError(t, err)

	f.bot, err = newBot(f.session, f.session,
		func(string, string) (int64, error) { return f.perms, nil },
		commands, f.verifier, f.groups, f.notifier,
		WithBotLogger(logger), WithPrefix("?"),
	)
	require.NoError(t, err)
	return f
}

func TestParsePrefix(t *testing.T) {
	tests := []struct {
		content string
		name    string
		args    []string
		ok      bool
	}{
		{content: "!verify", name: "verify", args: []string{}, ok: true},
		{content: "!Audit_Log 20", name: "audit_log", args: []string{"20"}, ok: true},
		{content: "!  force_verify <@1>", name: "force_verify", args: []string{"<@1>"}, ok: true},
		{content: "verify"},
		{content: "!"},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			name, args, ok := parsePrefix("!", tt.content)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			if tt.ok {
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestParseCustomID(t *testing.T) {
	choice, token, ok := parseCustomID(customID(verification.ChoiceDecline, "abc"))
	require.True(t, ok)
	assert.Equal(t, verification.ChoiceDecline, choice)
	assert.Equal(t, "abc", token)

	for _, id := range []string{"verify:accept:", "verify:maybe:abc", "other:accept:abc", "verify"} {
		_, _, ok := parseCustomID(id)
		assert.False(t, ok, id)
	}
}

func TestSnapshotOf(t *testing.T) {
	observed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := SnapshotOf(&discordgo.User{ID: "175928847299117063", Username: "alice", Avatar: "a1"}, observed)

	assert.Equal(t, domain.UserID("175928847299117063"), snap.UserID)
	assert.Equal(t, "alice", snap.DisplayName)
	assert.True(t, snap.HasAvatar)
	assert.Equal(t, 2016, snap.CreatedAt.Year())
	assert.Equal(t, observed, snap.ObservedAt)

	assert.Equal(t, observed, SnapshotOf(nil, observed).ObservedAt)
}

func TestBotMessageCommand(t *testing.T) {
	t.Run("dispatches with admin permissions", func(t *testing.T) {
		f := newBotFixture(t)
		f.perms = discordgo.PermissionAdministrator
		f.verifier.EXPECT().Stats(gomock.Any()).Return(verification.Stats{TotalVerified: 1}, nil)

		f.bot.handleMessage(context.Background(), &discordgo.MessageCreate{Message: &discordgo.Message{
			ID: "msg", ChannelID: "c1", GuildID: "g1", Content: "?verification_stats",
			Author: &discordgo.User{ID: "1", Username: "admin"},
		}})

		require.Len(t, f.session.sent, 1)
		assert.Equal(t, "c1", f.session.sent[0].channelID)
		assert.Equal(t, "msg", f.session.sent[0].msg.Reference.MessageID)
		assert.Equal(t, "Verification statistics", f.session.sent[0].msg.Embeds[0].Title)
	})

	t.Run("ignores bots and other prefixes", func(t *testing.T) {
		f := newBotFixture(t)
		f.bot.handleMessage(context.Background(), &discordgo.MessageCreate{Message: &discordgo.Message{
			Content: "?ping", Author: &discordgo.User{ID: "2", Bot: true},
		}})
		f.bot.handleMessage(context.Background(), &discordgo.MessageCreate{Message: &discordgo.Message{
			Content: "!ping", Author: &discordgo.User{ID: "2"},
		}})
		assert.Empty(t, f.session.sent)
	})

	t.Run("mention becomes the target", func(t *testing.T) {
		f := newBotFixture(t)
		f.perms = discordgo.PermissionAdministrator
		f.verifier.EXPECT().ForceVerify(gomock.Any(), domain.UserID("42"), domain.GroupID("g1")).
			Return(&verification.ForceResult{}, nil)

		f.bot.handleMessage(context.Background(), &discordgo.MessageCreate{Message: &discordgo.Message{
			ChannelID: "c1", GuildID: "g1", Content: "?force_verify <@42>",
			Author:   &discordgo.User{ID: "1"},
			Mentions: []*discordgo.User{{ID: "42"}},
		}})

		require.Len(t, f.session.sent, 1)
	})

	t.Run("manage server alone is not admin", func(t *testing.T) {
		f := newBotFixture(t)
		f.perms = discordgo.PermissionManageServer

		assert.False(t, f.bot.hasAdmin(context.Background(), "1", "c1"))

		f.bot.handleMessage(context.Background(), &discordgo.MessageCreate{Message: &discordgo.Message{
			ChannelID: "c1", GuildID: "g1", Content: "?force_verify <@42>",
			Author:   &discordgo.User{ID: "1"},
			Mentions: []*discordgo.User{{ID: "42"}},
		}})

		require.Len(t, f.session.sent, 1)
		assert.Equal(t, "You need administrator permissions to use this command.", f.session.sent[0].msg.Content)
	})
}

func TestBotReaction(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves the prompted user", func(t *testing.T) {
		f := newBotFixture(t)
		require.NoError(t, f.notifier.Prompt(ctx, testPrompt(time.Now().Add(time.Minute))))
		f.verifier.EXPECT().ConfirmToken(gomock.Any(), domain.UserID("100000000000000001"), "0123456789abcdef0123456789abcdef", verification.ChoiceAccept).
			Return(&verification.ConfirmResult{Outcome: verification.OutcomeVerified}, nil)

		f.bot.handleReaction(ctx, &discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
			UserID: "100000000000000001", MessageID: "m1", Emoji: discordgo.Emoji{Name: emojiAccept},
		}})
	})

	t.Run("ignores own and foreign reactions", func(t *testing.T) {
		f := newBotFixture(t)
		f.bot.handleReady(&discordgo.Ready{User: &discordgo.User{ID: "bot"}})
		require.NoError(t, f.notifier.Prompt(ctx, testPrompt(time.Now().Add(time.Minute))))

		f.bot.handleReaction(ctx, &discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
			UserID: "bot", MessageID: "m1", Emoji: discordgo.Emoji{Name: emojiAccept},
		}})
		f.bot.handleReaction(ctx, &discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
			UserID: "999", MessageID: "m1", Emoji: discordgo.Emoji{Name: emojiDecline},
		}})
		f.bot.handleReaction(ctx, &discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
			UserID: "100000000000000001", MessageID: "m1", Emoji: discordgo.Emoji{Name: "🎉"},
		}})
		assert.Equal(t, 1, f.notifier.prompts.len())
	})
}

func TestBotInteractions(t *testing.T) {
	ctx := context.Background()
	member := &discordgo.Member{User: &discordgo.User{ID: "100000000000000001"}}

	t.Run("button confirms by token", func(t *testing.T) {
		f := newBotFixture(t)
		f.verifier.EXPECT().ConfirmToken(gomock.Any(), domain.UserID("100000000000000001"), "tok", verification.ChoiceDecline).
			Return(&verification.ConfirmResult{Outcome: verification.OutcomeCancelled}, nil)

		f.bot.handleInteraction(ctx, &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Type:   discordgo.InteractionMessageComponent,
			Member: member,
			Data:   discordgo.MessageComponentInteractionData{CustomID: customID(verification.ChoiceDecline, "tok")},
		}})

		require.Len(t, f.session.responses, 1)
		assert.Equal(t, "Verification cancelled.", f.session.responses[0].Data.Content)
		assert.Equal(t, discordgo.MessageFlagsEphemeral, f.session.responses[0].Data.Flags)
	})

	t.Run("button failure is answered", func(t *testing.T) {
		f := newBotFixture(t)
		f.verifier.EXPECT().ConfirmToken(gomock.Any(), gomock.Any(), "tok", verification.ChoiceAccept).
			Return(nil, errors.New("store down"))

		f.bot.handleInteraction(ctx, &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Type:   discordgo.InteractionMessageComponent,
			User:   &discordgo.User{ID: "5"},
			Data:   discordgo.MessageComponentInteractionData{CustomID: customID(verification.ChoiceAccept, "tok")},
		}})

		require.Len(t, f.session.responses, 1)
		assert.Equal(t, "Something went wrong. Please try again.", f.session.responses[0].Data.Content)
	})

	t.Run("slash verify defers then follows up", func(t *testing.T) {
		f := newBotFixture(t)
		f.verifier.EXPECT().Start(gomock.Any(), gomock.Any()).
			Return(nil, &verification.RejectedError{Reason: verification.ReasonAlreadyVerified})

		f.bot.handleInteraction(ctx, &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: "g1", ChannelID: "c1",
			Member:  member,
			Data:    discordgo.ApplicationCommandInteractionData{Name: CmdVerify},
		}})

		require.Len(t, f.session.responses, 1)
		assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, f.session.responses[0].Type)
		require.Len(t, f.session.followups, 1)
		assert.Equal(t, "Already verified", f.session.followups[0].Embeds[0].Title)
	})

	t.Run("slash options become target and args", func(t *testing.T) {
		f := newBotFixture(t)
		admin := &discordgo.Member{User: member.User, Permissions: discordgo.PermissionAdministrator}
		f.verifier.EXPECT().AuditLog(gomock.Any(), gomock.Any()).Return(nil, nil)

		f.bot.handleInteraction(ctx, &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: "g1",
			Member:  admin,
			Data: discordgo.ApplicationCommandInteractionData{Name: CmdAuditLog, Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "limit", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(5)},
			}},
		}})

		require.Len(t, f.session.responses, 1)
		assert.Equal(t, "Audit log", f.session.responses[0].Data.Embeds[0].Title)
	})

	t.Run("slash admin commands require administrator", func(t *testing.T) {
		f := newBotFixture(t)
		manager := &discordgo.Member{User: member.User, Permissions: discordgo.PermissionManageServer}

		f.bot.handleInteraction(ctx, &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: "g1",
			Member:  manager,
			Data:    discordgo.ApplicationCommandInteractionData{Name: CmdAuditLog},
		}})

		require.Len(t, f.session.responses, 1)
		assert.Equal(t, "You need administrator permissions to use this command.", f.session.responses[0].Data.Content)
	})
}

func TestBotGroupLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("ready guilds are not rejoined", func(t *testing.T) {
		f := newBotFixture(t)
		f.bot.handleReady(&discordgo.Ready{Guilds: []*discordgo.Guild{{ID: "g1", Unavailable: true}}})
		f.groups.EXPECT().Joined(gomock.Any(), domain.GroupID("g2"), "New Place").Return(nil)

		f.bot.handleGuildCreate(ctx, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g1", Name: "Old"}})
		f.bot.handleGuildCreate(ctx, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g2", Name: "New Place"}})
		f.bot.handleGuildCreate(ctx, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g2", Name: "New Place"}})
	})

	t.Run("outages are not departures", func(t *testing.T) {
		f := newBotFixture(t)
		f.groups.EXPECT().Left(gomock.Any(), domain.GroupID("g1"), "Lounge")

		f.bot.handleGuildDelete(ctx, &discordgo.GuildDelete{Guild: &discordgo.Guild{ID: "g1", Unavailable: true}})
		f.bot.handleGuildDelete(ctx, &discordgo.GuildDelete{
			Guild:        &discordgo.Guild{ID: "g1"},
			BeforeDelete: &discordgo.Guild{ID: "g1", Name: "Lounge"},
		})
	})

	t.Run("member join asks for auto grant", func(t *testing.T) {
		f := newBotFixture(t)
		f.verifier.EXPECT().MemberJoined(gomock.Any(), domain.UserID("7"), domain.GroupID("g1")).
			Return(propagation.GroupResult{GroupID: "g1", Status: propagation.StatusGranted}, true, nil)

		f.bot.handleMemberAdd(ctx, &discordgo.GuildMemberAdd{Member: &discordgo.Member{GuildID: "g1", User: &discordgo.User{ID: "7"}}})
		f.bot.handleMemberAdd(ctx, &discordgo.GuildMemberAdd{Member: &discordgo.Member{GuildID: "g1", User: &discordgo.User{ID: "8", Bot: true}}})
	})
}
