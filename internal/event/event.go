// Package event defines the schemas carried on the bus: InboundMessage on the intake topic,
// MetricEvent on the metrics topic and DeadLetterEvent on the dead-letter topic.
// Every event is validated by the publisher before send and by consumers after decode.
package event

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Channel is the customer-facing channel an inbound message arrived on.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelChat    Channel = "chat"
	ChannelWebForm Channel = "web_form"
)

// Valid reports whether c is one of the supported channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelChat, ChannelWebForm:
		return true
	}
	return false
}

// Metric outcome statuses.
const (
	StatusProcessed = "processed"
	// StatusDuplicate marks a redelivered inbound event whose reply already exists.
	StatusDuplicate = "duplicate"
)

// Event is implemented by every bus schema.
type Event interface {
	// Validate returns an error when required fields are missing or out of range.
	Validate() error
	// Stamp sets published_at. Called by the publisher at send time.
	Stamp(t time.Time)
	// PartitionKey returns the key that routes the event to a partition. Empty means no key.
	PartitionKey() string
}

// InboundMessage is a channel message normalized by an ingestion adapter.
type InboundMessage struct {
	Channel          Channel        `json:"channel"`
	ChannelMessageID string         `json:"channel_message_id"`
	CustomerEmail    string         `json:"customer_email,omitempty"`
	CustomerPhone    string         `json:"customer_phone,omitempty"`
	CustomerName     string         `json:"customer_name,omitempty"`
	Subject          string         `json:"subject,omitempty"`
	Content          string         `json:"content"`
	ReceivedAt       string         `json:"received_at"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	PublishedAt      string         `json:"published_at,omitempty"`
}

// Validate checks the required fields of an inbound message.
func (m *InboundMessage) Validate() error {
	var problems []string
	if !m.Channel.Valid() {
		problems = append(problems, fmt.Sprintf("channel %q is not one of email, chat, web_form", m.Channel))
	}
	if strings.TrimSpace(m.ChannelMessageID) == "" {
		problems = append(problems, "channel_message_id is required")
	}
	if m.Email() == "" && m.Phone() == "" {
		problems = append(problems, "customer_email or customer_phone is required")
	}
	if m.Email() != "" {
		if _, err := mail.ParseAddress(m.Email()); err != nil {
			problems = append(problems, fmt.Sprintf("customer_email %q is not a valid address", m.CustomerEmail))
		}
	}
	if strings.TrimSpace(m.Content) == "" {
		problems = append(problems, "content is required")
	}
	if m.ReceivedAt == "" {
		problems = append(problems, "received_at is required")
	} else if _, err := ParseTimestamp(m.ReceivedAt); err != nil {
		problems = append(problems, fmt.Sprintf("received_at %q is not an ISO-8601 timestamp", m.ReceivedAt))
	}
	if len(problems) > 0 {
		return errors.New("inbound message: " + strings.Join(problems, "; "))
	}
	return nil
}

// Stamp sets published_at.
func (m *InboundMessage) Stamp(t time.Time) { m.PublishedAt = FormatTimestamp(t) }

// Email returns the trimmed, lower-cased customer email.
func (m *InboundMessage) Email() string {
	return strings.ToLower(strings.TrimSpace(m.CustomerEmail))
}

// Phone returns the trimmed customer phone.
func (m *InboundMessage) Phone() string {
	return strings.TrimSpace(m.CustomerPhone)
}

// PartitionKey is the customer contact (email, else phone) so one customer's messages stay ordered.
func (m *InboundMessage) PartitionKey() string {
	if e := m.Email(); e != "" {
		return e
	}
	return m.Phone()
}

// IdempotencyKey is a stable hex digest of channel and channel_message_id.
// Redeliveries of the same inbound event produce the same key.
func (m *InboundMessage) IdempotencyKey() string {
	sum := blake2b.Sum256([]byte(string(m.Channel) + ":" + strings.TrimSpace(m.ChannelMessageID)))
	return hex.EncodeToString(sum[:])
}

// MetricEvent records the outcome of one processing pass.
type MetricEvent struct {
	ConversationID string  `json:"conversation_id"`
	TicketID       string  `json:"ticket_id,omitempty"`
	Channel        Channel `json:"channel"`
	LatencyMs      int64   `json:"latency_ms"`
	SentimentScore float64 `json:"sentiment_score"`
	IsEscalated    bool    `json:"is_escalated"`
	// EscalationFailed is set when escalation was decided but could not be recorded.
	EscalationFailed bool   `json:"escalation_failed,omitempty"`
	Status           string `json:"status"`
	DeliveryStatus   string `json:"delivery_status"`
	PublishedAt      string `json:"published_at,omitempty"`
}

// Validate checks the required fields of a metric event.
func (m *MetricEvent) Validate() error {
	if _, err := uuid.Parse(m.ConversationID); err != nil {
		return fmt.Errorf("metric event: conversation_id %q is not a uuid", m.ConversationID)
	}
	if !m.Channel.Valid() {
		return fmt.Errorf("metric event: channel %q is not supported", m.Channel)
	}
	if m.LatencyMs < 0 {
		return errors.New("metric event: latency_ms must not be negative")
	}
	if m.SentimentScore < 0 || m.SentimentScore > 1 {
		return fmt.Errorf("metric event: sentiment_score %v out of range [0,1]", m.SentimentScore)
	}
	if m.Status == "" {
		return errors.New("metric event: status is required")
	}
	return nil
}

// Stamp sets published_at.
func (m *MetricEvent) Stamp(t time.Time) { m.PublishedAt = FormatTimestamp(t) }

// PartitionKey groups a conversation's metrics on one partition.
func (m *MetricEvent) PartitionKey() string { return m.ConversationID }

// DeadLetterEvent wraps an inbound event that could not be processed.
type DeadLetterEvent struct {
	OriginalMessage InboundMessage `json:"original_message"`
	// RawPayload holds the undecoded bus payload when the original could not be parsed.
	RawPayload  string `json:"raw_payload,omitempty"`
	Error       string `json:"error"`
	ErrorKind   string `json:"error_kind,omitempty"`
	LatencyMs   int64  `json:"latency_ms"`
	PublishedAt string `json:"published_at,omitempty"`
}

// Validate checks the required fields of a dead-letter event. The original message is not
// validated: it may be the reason the event is dead.
func (d *DeadLetterEvent) Validate() error {
	if strings.TrimSpace(d.Error) == "" {
		return errors.New("dead-letter event: error is required")
	}
	if d.LatencyMs < 0 {
		return errors.New("dead-letter event: latency_ms must not be negative")
	}
	return nil
}

// Stamp sets published_at.
func (d *DeadLetterEvent) Stamp(t time.Time) { d.PublishedAt = FormatTimestamp(t) }

// PartitionKey follows the original message.
func (d *DeadLetterEvent) PartitionKey() string { return d.OriginalMessage.PartitionKey() }

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 timestamp. Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// FormatTimestamp renders t as RFC 3339 in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
