package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"warden/internal/screen"
	"warden/pkg/domain"
)

// SnapshotOf captures what the screen needs from a platform user. Creation
// time is decoded from the user's snowflake.
func SnapshotOf(u *discordgo.User, observedAt time.Time) screen.Snapshot {
	if u == nil {
		return screen.Snapshot{ObservedAt: observedAt}
	}
	id := domain.UserID(u.ID)
	display := u.GlobalName
	if display == "" {
		display = u.Username
	}
	return screen.Snapshot{
		UserID:      id,
		Username:    u.Username,
		DisplayName: display,
		CreatedAt:   id.CreatedAt(),
		HasAvatar:   u.Avatar != "",
		ObservedAt:  observedAt,
	}
}
