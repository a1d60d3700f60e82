package domain

import "time"

// Status of a ticket.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

// Priority of a ticket.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// DefaultCategory labels tickets opened by the automated pipeline.
const DefaultCategory = "AI Triage"

// Ticket tracks one accepted inbound event. IdempotencyKey is unique, so redelivery of the
// same event maps to the same ticket.
type Ticket struct {
	ID             string
	CustomerID     string
	ConversationID string
	SourceChannel  string
	Category       string
	Priority       Priority
	Status         Status
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ResolvedAt     *time.Time
}

// Raise returns the next priority up, saturating at urgent.
func (p Priority) Raise() Priority {
	switch p {
	case PriorityLow:
		return PriorityMedium
	case PriorityMedium:
		return PriorityHigh
	default:
		return PriorityUrgent
	}
}
