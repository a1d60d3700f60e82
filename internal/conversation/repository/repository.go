package repository

import (
	"context"
	"time"

	"omnichannel-support/internal/conversation/domain"
)

// Repository defines persistence for conversations.
type Repository interface {
	// FindActiveSince returns the most recently active conversation of customerID with
	// status active and last_activity after since, or nil if none.
	FindActiveSince(ctx context.Context, customerID string, since time.Time) (*domain.Conversation, error)
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	Create(ctx context.Context, c *domain.Conversation) error
	// UpdateSentiment overwrites sentiment_score with the latest value and bumps last_activity.
	UpdateSentiment(ctx context.Context, id string, score float64, at time.Time) error
}
