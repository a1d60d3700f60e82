package repository

import (
	"context"
	"time"

	"omnichannel-support/internal/ticket/domain"
)

// Repository defines persistence for tickets.
type Repository interface {
	// CreateIdempotent inserts t unless a ticket with the same idempotency key exists.
	// It returns the stored ticket and whether this call created it.
	CreateIdempotent(ctx context.Context, t *domain.Ticket) (*domain.Ticket, bool, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// Escalate moves the ticket to in_progress with raised priority and marks its conversation
	// escalated to human support, atomically.
	Escalate(ctx context.Context, id string, at time.Time) error
	// Resolve closes the ticket and its conversation.
	Resolve(ctx context.Context, id string, at time.Time) error
}
