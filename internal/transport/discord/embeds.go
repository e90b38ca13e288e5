package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	groupmodels "warden/internal/group/models"
	"warden/internal/propagation"
	"warden/internal/verification"
	"warden/pkg/platform/audit"
)

const (
	colorSuccess = 0x2ecc71
	colorFailure = 0xe74c3c
	colorWarning = 0xf39c12
	colorInfo    = 0x3498db

	emojiAccept  = "✅"
	emojiDecline = "❌"

	// auditLogDisplayMax bounds how many entries fit in one embed.
	auditLogDisplayMax = 10
)

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func relative(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}

func mention(userID fmt.Stringer) string {
	return "<@" + userID.String() + ">"
}

func promptEmbed(p verification.Prompt) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Age verification",
		Description: "Confirm that you meet this community's age requirement to gain access.\n" +
			"React with " + emojiAccept + " or press **Confirm** to verify, " + emojiDecline + " or **Cancel** to stop.",
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Requirements", Value: requirementsText(p.Requirements.MinAccountAgeDays), Inline: false},
			{Name: "Expires", Value: relative(p.ExpiresAt), Inline: true},
			{Name: "Reference", Value: "`" + shortRef(p.Token) + "`", Inline: true},
		},
		Timestamp: timestamp(p.ExpiresAt.Add(-p.Timeout)),
	}
}

func shortRef(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}

func requirementsText(minAgeDays int) string {
	return fmt.Sprintf("• You are 18 or older\n• Your account is at least %d days old\n• You have a profile picture", minAgeDays)
}

func promptComponents(token string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Confirm", Style: discordgo.SuccessButton, CustomID: customID(verification.ChoiceAccept, token)},
			discordgo.Button{Label: "Cancel", Style: discordgo.DangerButton, CustomID: customID(verification.ChoiceDecline, token)},
		}},
	}
}

func outcomeEmbed(n verification.Notice) *discordgo.MessageEmbed {
	switch n.Outcome {
	case verification.OutcomeVerified:
		e := &discordgo.MessageEmbed{
			Title:       "Verification complete",
			Description: "You now have access. Welcome!",
			Color:       colorSuccess,
		}
		if n.Report != nil {
			e.Fields = reportFields(*n.Report)
		}
		return e
	case verification.OutcomeExpired:
		return &discordgo.MessageEmbed{
			Title:       "Verification timed out",
			Description: "You did not confirm in time. Run the verify command again to restart.",
			Color:       colorWarning,
		}
	default:
		return &discordgo.MessageEmbed{
			Title:       "Verification cancelled",
			Description: "No changes were made. You can verify again at any time.",
			Color:       colorWarning,
		}
	}
}

func reportFields(r propagation.Report) []*discordgo.MessageEmbedField {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Communities updated", Value: fmt.Sprintf("%d", r.Granted()), Inline: true},
	}
	if failed := r.Failed(); len(failed) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Pending", Value: fmt.Sprintf("%d communities will be retried by staff", len(failed)), Inline: true,
		})
	}
	switch r.Primary.Status {
	case propagation.InviteSent:
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Invite", Value: "Check your messages for an invite link."})
	case propagation.InviteFailed:
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Invite", Value: "We could not create your invite. Please contact staff."})
	}
	return fields
}

func inviteEmbed(inv propagation.Invite) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Your invite",
		Description: inv.URL,
		Color:       colorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Uses", Value: fmt.Sprintf("%d", inv.MaxUses), Inline: true},
			{Name: "Expires", Value: relative(inv.ExpiresAt), Inline: true},
		},
	}
}

func rejectionEmbed(rejected *verification.RejectedError) *discordgo.MessageEmbed {
	switch rejected.Reason {
	case verification.ReasonAlreadyVerified:
		return &discordgo.MessageEmbed{Title: "Already verified", Description: "You are already verified.", Color: colorInfo}
	case verification.ReasonAlreadyPending:
		return &discordgo.MessageEmbed{
			Title:       "Verification in progress",
			Description: "You already have a pending verification. Check your messages or cancel it first.",
			Color:       colorWarning,
		}
	case verification.ReasonRateLimited:
		desc := "Too many verification attempts."
		if !rejected.RetryAt.IsZero() {
			desc += " Try again " + relative(rejected.RetryAt) + "."
		}
		return &discordgo.MessageEmbed{Title: "Slow down", Description: desc, Color: colorFailure}
	}
	return &discordgo.MessageEmbed{
		Title:       "Security check failed",
		Description: "Your account does not meet this community's requirements.",
		Color:       colorFailure,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Issues", Value: "• " + strings.Join(rejected.Issues, "\n• ")},
		},
	}
}

func startedEmbed(res *verification.StartResult) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Verification started",
		Description: "Check your direct messages to confirm. If they are closed the prompt is posted here.",
		Color:       colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Expires", Value: relative(res.ExpiresAt), Inline: true},
			{Name: "Attempt", Value: fmt.Sprintf("%d", res.AttemptCount), Inline: true},
		},
	}
}

func settingsEmbed(cfg *groupmodels.Config) *discordgo.MessageEmbed {
	p := cfg.Policy()
	marker := "not set"
	if !cfg.AccessMarkerID.IsNil() {
		marker = "<@&" + cfg.AccessMarkerID.String() + ">"
	}
	channel := "not set"
	if !cfg.PromptChannelID.IsNil() {
		channel = "<#" + cfg.PromptChannelID.String() + ">"
	}
	return &discordgo.MessageEmbed{
		Title: "Verification settings",
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Access role", Value: marker, Inline: true},
			{Name: "Auto grant", Value: enabled(cfg.AutoGrantEnabled), Inline: true},
			{Name: "Prompt channel", Value: channel, Inline: true},
			{Name: "Minimum account age", Value: fmt.Sprintf("%d days", p.MinAccountAgeDays()), Inline: true},
			{Name: "Attempts", Value: fmt.Sprintf("%d per %s", p.MaxAttemptsPerWindow, p.Window), Inline: true},
			{Name: "Timeout", Value: p.SessionTimeout.String(), Inline: true},
		},
	}
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func statsEmbed(st verification.Stats) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Verification statistics",
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Total verified", Value: fmt.Sprintf("%d", st.TotalVerified), Inline: true},
			{Name: "Pending", Value: fmt.Sprintf("%d", st.Pending), Inline: true},
			{Name: "Failed (24h)", Value: fmt.Sprintf("%d", st.FailedLastDay), Inline: true},
		},
	}
}

func auditLogEmbed(entries []audit.Entry) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{Title: "Audit log", Color: colorInfo}
	if len(entries) == 0 {
		e.Description = "No entries."
		return e
	}
	if len(entries) > auditLogDisplayMax {
		entries = entries[:auditLogDisplayMax]
	}
	for _, entry := range entries {
		status := emojiAccept
		if !entry.Success {
			status = emojiDecline
		}
		subject := "system"
		if !entry.UserID.IsNil() {
			subject = mention(entry.UserID)
		}
		value := subject + " " + relative(entry.Timestamp)
		if entry.Details != "" {
			value += "\n" + entry.Details
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:  status + " " + entry.Action,
			Value: value,
		})
	}
	return e
}

func forceEmbed(target fmt.Stringer, res *verification.ForceResult) *discordgo.MessageEmbed {
	desc := mention(target) + " is now verified."
	if res.ClearedPending {
		desc += " Their pending verification was discarded."
	}
	return &discordgo.MessageEmbed{
		Title:       "Force verification",
		Description: desc,
		Color:       colorSuccess,
		Fields:      reportFields(res.Report),
	}
}
