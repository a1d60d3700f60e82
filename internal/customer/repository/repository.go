package repository

import (
	"context"

	"omnichannel-support/internal/customer/domain"
)

// Repository defines persistence for customers.
type Repository interface {
	// GetByEmail returns the customer with the exact email, or nil if not found.
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	// GetByPhone returns the customer with the exact phone, or nil if not found.
	GetByPhone(ctx context.Context, phone string) (*domain.Customer, error)
	// Create inserts c. When a concurrent insert already claimed the email or phone,
	// the existing customer is returned instead.
	Create(ctx context.Context, c *domain.Customer) (*domain.Customer, error)
}
