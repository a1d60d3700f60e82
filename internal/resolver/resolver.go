// Package resolver maps an inbound contact to a customer and a conversation session.
package resolver

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	convdomain "omnichannel-support/internal/conversation/domain"
	convrepo "omnichannel-support/internal/conversation/repository"
	custdomain "omnichannel-support/internal/customer/domain"
	custrepo "omnichannel-support/internal/customer/repository"
	"omnichannel-support/internal/errs"
)

// DefaultSessionWindow is how long an active conversation stays reusable after its last activity.
const DefaultSessionWindow = 24 * time.Hour

// ErrNoContact is returned when neither email nor phone is set.
var ErrNoContact = errors.New("resolver: email or phone is required")

// Contact identifies a customer. At least one field must be set.
type Contact struct {
	Email string
	Phone string
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	CustomerID     string
	ConversationID string
	// NewCustomer and NewConversation report whether Resolve inserted the rows.
	NewCustomer     bool
	NewConversation bool
}

// Resolver finds or creates the customer and the current conversation.
type Resolver struct {
	customers     custrepo.Repository
	conversations convrepo.Repository
	window        time.Duration
	now           func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithWindow overrides the session window.
func WithWindow(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.window = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// New returns a Resolver over the given repositories.
func New(customers custrepo.Repository, conversations convrepo.Repository, opts ...Option) *Resolver {
	r := &Resolver{
		customers:     customers,
		conversations: conversations,
		window:        DefaultSessionWindow,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the customer for contact (matched on email, else phone, else created) and the
// conversation that should absorb a message on channel. Any repository failure is returned as a
// persistence error.
func (r *Resolver) Resolve(ctx context.Context, contact Contact, displayName, channel string) (Resolution, error) {
	email := strings.ToLower(strings.TrimSpace(contact.Email))
	phone := strings.TrimSpace(contact.Phone)
	if email == "" && phone == "" {
		return Resolution{}, errs.Validation("resolver.resolve", ErrNoContact)
	}
	now := r.now().UTC()

	var res Resolution
	customer, err := r.lookupCustomer(ctx, email, phone)
	if err != nil {
		return Resolution{}, errs.Persistence("resolver.lookup_customer", err)
	}
	if customer == nil {
		name := strings.TrimSpace(displayName)
		if name == "" {
			name = custdomain.DefaultName
		}
		customer, err = r.customers.Create(ctx, &custdomain.Customer{
			ID:        uuid.New().String(),
			Name:      name,
			Email:     email,
			Phone:     phone,
			CreatedAt: now,
		})
		if err != nil {
			return Resolution{}, errs.Persistence("resolver.create_customer", err)
		}
		res.NewCustomer = true
	}
	res.CustomerID = customer.ID

	conv, err := r.conversations.FindActiveSince(ctx, customer.ID, now.Add(-r.window))
	if err != nil {
		return Resolution{}, errs.Persistence("resolver.find_conversation", err)
	}
	if conv == nil {
		conv = &convdomain.Conversation{
			ID:             uuid.New().String(),
			CustomerID:     customer.ID,
			InitialChannel: channel,
			Status:         convdomain.StatusActive,
			CreatedAt:      now,
			LastActivity:   now,
		}
		if err := r.conversations.Create(ctx, conv); err != nil {
			return Resolution{}, errs.Persistence("resolver.create_conversation", err)
		}
		res.NewConversation = true
	}
	res.ConversationID = conv.ID
	return res, nil
}

func (r *Resolver) lookupCustomer(ctx context.Context, email, phone string) (*custdomain.Customer, error) {
	if email != "" {
		return r.customers.GetByEmail(ctx, email)
	}
	return r.customers.GetByPhone(ctx, phone)
}
