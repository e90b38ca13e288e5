package discord

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
)

type sentMessage struct {
	channelID string
	msg       *discordgo.MessageSend
}

// fakeSession records REST and interaction calls in memory.
type fakeSession struct {
	mu sync.Mutex

	members   map[string]*discordgo.Member
	roleErr   error
	roleAdds  []string
	channels  []*discordgo.Channel
	invites   []discordgo.Invite
	dmErr     error
	sendErr   map[string]error
	sent      []sentMessage
	reactions []string
	nextID    int

	responses []*discordgo.InteractionResponse
	followups []*discordgo.WebhookParams
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		members: make(map[string]*discordgo.Member),
		sendErr: make(map[string]error),
	}
}

func unknownMemberError() error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMember, Message: "Unknown Member"},
	}
}

func (f *fakeSession) GuildMember(guildID, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[guildID+"/"+userID]
	if !ok {
		return nil, unknownMemberError()
	}
	return m, nil
}

func (f *fakeSession) GuildMemberRoleAdd(guildID, userID, roleID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roleErr != nil {
		return f.roleErr
	}
	f.roleAdds = append(f.roleAdds, guildID+"/"+userID+"/"+roleID)
	return nil
}

func (f *fakeSession) GuildChannels(string, ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels, nil
}

func (f *fakeSession) ChannelInviteCreate(channelID string, i discordgo.Invite, _ ...discordgo.RequestOption) (*discordgo.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invites = append(f.invites, i)
	return &discordgo.Invite{Code: "code-" + channelID, MaxAge: i.MaxAge, MaxUses: i.MaxUses}, nil
}

func (f *fakeSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dmErr != nil {
		return nil, f.dmErr
	}
	return &discordgo.Channel{ID: "dm-" + recipientID, Type: discordgo.ChannelTypeDM}, nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sendErr[channelID]; err != nil {
		return nil, err
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{channelID: channelID, msg: data})
	return &discordgo.Message{ID: fmt.Sprintf("m%d", f.nextID), ChannelID: channelID}, nil
}

func (f *fakeSession) MessageReactionAdd(channelID, messageID, emojiID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, channelID+"/"+messageID+"/"+emojiID)
	return nil
}

func (f *fakeSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeSession) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followups = append(f.followups, data)
	return &discordgo.Message{ID: "followup"}, nil
}

// recordingResponder captures replies for command tests.
type recordingResponder struct {
	replies  []Reply
	deferred bool
}

func (r *recordingResponder) Respond(_ context.Context, reply Reply) error {
	r.replies = append(r.replies, reply)
	return nil
}

func (r *recordingResponder) Defer(context.Context) error {
	r.deferred = true
	return nil
}

func (r *recordingResponder) Followup(_ context.Context, reply Reply) error {
	r.replies = append(r.replies, reply)
	return nil
}

func (r *recordingResponder) last() Reply {
	if len(r.replies) == 0 {
		return Reply{}
	}
	return r.replies[len(r.replies)-1]
}
