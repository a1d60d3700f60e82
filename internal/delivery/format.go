package delivery

import (
	"fmt"
	"unicode/utf8"

	"omnichannel-support/internal/event"
)

// ChatLimit is the longest chat reply sent before truncation, in characters.
const ChatLimit = 250

const (
	emailGreeting  = "Hi,"
	emailSignature = "Best regards,\nThe Support Team"
	webFormFooter  = "--\nSupport Team"
)

// Format applies the channel's presentation rules to a reply.
func Format(channel event.Channel, text string) string {
	switch channel {
	case event.ChannelEmail:
		return fmt.Sprintf("%s\n\n%s\n\n%s", emailGreeting, text, emailSignature)
	case event.ChannelChat:
		return truncate(text, ChatLimit)
	case event.ChannelWebForm:
		return fmt.Sprintf("%s\n\n%s", text, webFormFooter)
	default:
		return text
	}
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
