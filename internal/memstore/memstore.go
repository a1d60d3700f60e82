// Package memstore holds mutex-guarded in-memory implementations of the customer, conversation,
// message and ticket repositories. Used by pipeline tests.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	convdomain "omnichannel-support/internal/conversation/domain"
	custdomain "omnichannel-support/internal/customer/domain"
	msgdomain "omnichannel-support/internal/message/domain"
	ticketdomain "omnichannel-support/internal/ticket/domain"
)

// ErrNotFound is returned by updates on unknown ids.
var ErrNotFound = errors.New("memstore: not found")

// ErrConstraint is returned when a row references a customer or conversation that does not exist,
// as the database foreign keys and uuid columns would reject it.
var ErrConstraint = errors.New("memstore: constraint violation")

// Store implements all four repositories over shared maps so cross-table updates stay consistent.
// Set the *Err fields to make the matching operation fail.
type Store struct {
	mu            sync.Mutex
	customers     map[string]*custdomain.Customer
	conversations map[string]*convdomain.Conversation
	messages      []*msgdomain.Message
	tickets       map[string]*ticketdomain.Ticket

	CustomerErr     error
	ConversationErr error
	TicketErr       error
	EscalateErr     error
	SentimentErr    error
	// AppendErr fails Append for messages of the given direction.
	AppendErr map[msgdomain.Direction]error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		customers:     map[string]*custdomain.Customer{},
		conversations: map[string]*convdomain.Conversation{},
		tickets:       map[string]*ticketdomain.Ticket{},
		AppendErr:     map[msgdomain.Direction]error{},
	}
}

// Customers returns the customer repository view.
func (s *Store) Customers() *Customers { return &Customers{s} }

// Conversations returns the conversation repository view.
func (s *Store) Conversations() *Conversations { return &Conversations{s} }

// Messages returns the message repository view.
func (s *Store) Messages() *Messages { return &Messages{s} }

// Tickets returns the ticket repository view.
func (s *Store) Tickets() *Tickets { return &Tickets{s} }

// Counts returns the number of customers, conversations, messages and tickets.
func (s *Store) Counts() (customers, conversations, messages, tickets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.customers), len(s.conversations), len(s.messages), len(s.tickets)
}

// Conversation returns a copy of the conversation with id, or nil.
func (s *Store) Conversation(id string) *convdomain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

// Ticket returns a copy of the ticket with id, or nil.
func (s *Store) Ticket(id string) *ticketdomain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

// MessagesOf returns copies of the conversation's messages in insertion order.
func (s *Store) MessagesOf(conversationID string) []msgdomain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []msgdomain.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	return out
}

// Customers implements the customer repository.
type Customers struct{ s *Store }

func (r *Customers) GetByEmail(_ context.Context, email string) (*custdomain.Customer, error) {
	return r.find(func(c *custdomain.Customer) bool { return c.Email != "" && c.Email == email })
}

func (r *Customers) GetByPhone(_ context.Context, phone string) (*custdomain.Customer, error) {
	return r.find(func(c *custdomain.Customer) bool { return c.Phone != "" && c.Phone == phone })
}

func (r *Customers) Create(_ context.Context, c *custdomain.Customer) (*custdomain.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.CustomerErr != nil {
		return nil, r.s.CustomerErr
	}
	for _, existing := range r.s.customers {
		if (c.Email != "" && existing.Email == c.Email) || (c.Phone != "" && existing.Phone == c.Phone) {
			cp := *existing
			return &cp, nil
		}
	}
	cp := *c
	r.s.customers[c.ID] = &cp
	out := cp
	return &out, nil
}

func (r *Customers) find(match func(*custdomain.Customer) bool) (*custdomain.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.CustomerErr != nil {
		return nil, r.s.CustomerErr
	}
	for _, c := range r.s.customers {
		if match(c) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

// Conversations implements the conversation repository.
type Conversations struct{ s *Store }

func (r *Conversations) FindActiveSince(_ context.Context, customerID string, since time.Time) (*convdomain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.ConversationErr != nil {
		return nil, r.s.ConversationErr
	}
	var candidates []*convdomain.Conversation
	for _, c := range r.s.conversations {
		if c.CustomerID == customerID && c.Status == convdomain.StatusActive && c.LastActivity.After(since) {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].LastActivity.After(candidates[j].LastActivity) })
	cp := *candidates[0]
	return &cp, nil
}

func (r *Conversations) GetByID(_ context.Context, id string) (*convdomain.Conversation, error) {
	return r.s.Conversation(id), nil
}

func (r *Conversations) Create(_ context.Context, c *convdomain.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.ConversationErr != nil {
		return r.s.ConversationErr
	}
	if _, ok := r.s.customers[c.CustomerID]; !ok {
		return fmt.Errorf("%w: conversation %s references customer %q", ErrConstraint, c.ID, c.CustomerID)
	}
	cp := *c
	r.s.conversations[c.ID] = &cp
	return nil
}

func (r *Conversations) UpdateSentiment(_ context.Context, id string, score float64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.SentimentErr != nil {
		return r.s.SentimentErr
	}
	c, ok := r.s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	v := score
	c.SentimentScore = &v
	if at.After(c.LastActivity) {
		c.LastActivity = at
	}
	return nil
}

// Messages implements the message repository.
type Messages struct{ s *Store }

func (r *Messages) Append(_ context.Context, m *msgdomain.Message) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.AppendErr[m.Direction]; err != nil {
		return false, err
	}
	if _, ok := r.s.conversations[m.ConversationID]; !ok {
		return false, fmt.Errorf("%w: message references conversation %q", ErrConstraint, m.ConversationID)
	}
	if m.IdempotencyKey != "" {
		for _, existing := range r.s.messages {
			if existing.IdempotencyKey == m.IdempotencyKey {
				return false, nil
			}
		}
	}
	cp := *m
	r.s.messages = append(r.s.messages, &cp)
	if c, ok := r.s.conversations[m.ConversationID]; ok && m.CreatedAt.After(c.LastActivity) {
		c.LastActivity = m.CreatedAt
	}
	return true, nil
}

func (r *Messages) GetByIdempotencyKey(_ context.Context, key string) (*msgdomain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if key == "" {
		return nil, nil
	}
	for _, m := range r.s.messages {
		if m.IdempotencyKey == key {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *Messages) ListByConversation(_ context.Context, conversationID string, limit int) ([]*msgdomain.Message, error) {
	all := r.s.MessagesOf(conversationID)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]*msgdomain.Message, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, nil
}

// Tickets implements the ticket repository.
type Tickets struct{ s *Store }

func (r *Tickets) CreateIdempotent(_ context.Context, t *ticketdomain.Ticket) (*ticketdomain.Ticket, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.TicketErr != nil {
		return nil, false, r.s.TicketErr
	}
	if _, ok := r.s.customers[t.CustomerID]; !ok {
		return nil, false, fmt.Errorf("%w: ticket references customer %q", ErrConstraint, t.CustomerID)
	}
	if _, ok := r.s.conversations[t.ConversationID]; !ok {
		return nil, false, fmt.Errorf("%w: ticket references conversation %q", ErrConstraint, t.ConversationID)
	}
	for _, existing := range r.s.tickets {
		if existing.IdempotencyKey == t.IdempotencyKey {
			cp := *existing
			return &cp, false, nil
		}
	}
	cp := *t
	cp.UpdatedAt = t.CreatedAt
	r.s.tickets[t.ID] = &cp
	out := cp
	return &out, true, nil
}

func (r *Tickets) GetByID(_ context.Context, id string) (*ticketdomain.Ticket, error) {
	return r.s.Ticket(id), nil
}

func (r *Tickets) Escalate(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.EscalateErr != nil {
		return r.s.EscalateErr
	}
	t, ok := r.s.tickets[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status == ticketdomain.StatusOpen {
		t.Priority = t.Priority.Raise()
	}
	t.Status = ticketdomain.StatusInProgress
	t.UpdatedAt = at
	if c, ok := r.s.conversations[t.ConversationID]; ok && c.Status != convdomain.StatusResolved {
		c.Status = convdomain.StatusEscalated
		c.EscalatedTo = convdomain.EscalationTarget
	}
	return nil
}

func (r *Tickets) Resolve(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = ticketdomain.StatusResolved
	t.ResolvedAt = &at
	t.UpdatedAt = at
	if c, ok := r.s.conversations[t.ConversationID]; ok {
		c.Status = convdomain.StatusResolved
	}
	return nil
}
