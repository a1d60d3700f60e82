package domain

import "time"

// Status is the lifecycle state of a conversation.
type Status string

const (
	StatusActive    Status = "active"
	StatusEscalated Status = "escalated"
	StatusResolved  Status = "resolved"
)

// EscalationTarget is recorded on conversations handed to people.
const EscalationTarget = "human_support"

// Conversation is a support session of one customer. Only active conversations whose
// last activity falls inside the session window are reused for new inbound messages.
type Conversation struct {
	ID             string
	CustomerID     string
	InitialChannel string
	Status         Status
	// SentimentScore is the latest observed value; nil until the first reply is scored.
	SentimentScore *float64
	EscalatedTo    string
	CreatedAt      time.Time
	LastActivity   time.Time
}

// ReusableAt reports whether the conversation may absorb a message arriving at now.
func (c *Conversation) ReusableAt(now time.Time, window time.Duration) bool {
	if c == nil || c.Status != StatusActive {
		return false
	}
	return c.LastActivity.After(now.Add(-window))
}
