package repository

import (
	"context"

	"omnichannel-support/internal/message/domain"
)

// Repository defines persistence for the append-only message log.
type Repository interface {
	// Append stores m and bumps the conversation's last_activity. It returns false without error
	// when a message with the same idempotency key already exists.
	Append(ctx context.Context, m *domain.Message) (bool, error)
	// GetByIdempotencyKey returns the message stored under key, or nil if none.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Message, error)
	// ListByConversation returns up to limit messages, oldest first.
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error)
}
