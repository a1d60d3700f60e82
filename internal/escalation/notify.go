package escalation

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
)

// Notice describes an escalated ticket for the human support team.
type Notice struct {
	TicketID       string
	ConversationID string
	Channel        string
	Reasons        []string
}

// Notifier tells people about an escalation. Failures never affect the pipeline outcome.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// NopNotifier discards notices.
type NopNotifier struct{}

// Notify does nothing.
func (NopNotifier) Notify(context.Context, Notice) error { return nil }

// slackPoster is the subset of *slack.Client used by SlackNotifier.
type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts escalations to a Slack channel.
type SlackNotifier struct {
	client  slackPoster
	channel string
}

// NewSlackNotifier returns a notifier posting to channel with a bot token.
func NewSlackNotifier(token, channel string, opts ...slack.Option) *SlackNotifier {
	return &SlackNotifier{client: slack.New(token, opts...), channel: channel}
}

// Notify posts one line per escalation. The message never includes customer content.
func (s *SlackNotifier) Notify(ctx context.Context, n Notice) error {
	if _, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionText(noticeText(n), false)); err != nil {
		return fmt.Errorf("slack notify: %w", err)
	}
	return nil
}

func noticeText(n Notice) string {
	reasons := "unspecified"
	if len(n.Reasons) > 0 {
		reasons = strings.Join(n.Reasons, ", ")
	}
	return fmt.Sprintf("Ticket %s escalated to human support (channel %s, conversation %s): %s",
		n.TicketID, n.Channel, n.ConversationID, reasons)
}
