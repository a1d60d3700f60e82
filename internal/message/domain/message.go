package domain

import "time"

// Direction of a message relative to the support team.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Role of the message author.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

// Message is an immutable entry in a conversation's log.
type Message struct {
	ID               string
	ConversationID   string
	Channel          string
	Direction        Direction
	Role             Role
	Content          string
	ChannelMessageID string
	// IdempotencyKey deduplicates redelivered events; empty disables deduplication.
	IdempotencyKey string
	CreatedAt      time.Time
}

// ReplyKey derives the idempotency key of the outbound reply to an inbound event.
func ReplyKey(inboundKey string) string {
	if inboundKey == "" {
		return ""
	}
	return inboundKey + ":reply"
}
