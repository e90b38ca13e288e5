package discord

import (
	"strings"

	"warden/internal/verification"
)

const customIDPrefix = "verify"

// customID encodes a prompt button as "verify:<choice>:<token>".
func customID(choice verification.Choice, token string) string {
	return customIDPrefix + ":" + string(choice) + ":" + token
}

func parseCustomID(id string) (verification.Choice, string, bool) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 || parts[0] != customIDPrefix || parts[2] == "" {
		return "", "", false
	}
	switch choice := verification.Choice(parts[1]); choice {
	case verification.ChoiceAccept, verification.ChoiceDecline:
		return choice, parts[2], true
	}
	return "", "", false
}

// choiceForEmoji maps a reaction on a prompt to a choice.
func choiceForEmoji(name string) (verification.Choice, bool) {
	switch name {
	case emojiAccept:
		return verification.ChoiceAccept, true
	case emojiDecline:
		return verification.ChoiceDecline, true
	}
	return "", false
}
