package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"omnichannel-support/internal/errs"
	"omnichannel-support/internal/memstore"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newResolver(store *memstore.Store, clock *fakeClock) *Resolver {
	return New(store.Customers(), store.Conversations(), WithClock(clock.Now))
}

func TestResolve_SessionContinuity(t *testing.T) {
	store := memstore.New()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	r := newResolver(store, clock)
	ctx := context.Background()
	contact := Contact{Email: "a@x.com"}

	first, err := r.Resolve(ctx, contact, "Ada", "email")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !first.NewCustomer || !first.NewConversation {
		t.Errorf("first resolution = %+v, want new customer and conversation", first)
	}

	clock.Advance(3 * time.Hour)
	second, err := r.Resolve(ctx, contact, "Ada", "chat")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Errorf("within window conversation = %s, want %s", second.ConversationID, first.ConversationID)
	}
	if second.NewCustomer || second.NewConversation {
		t.Errorf("second resolution = %+v, want reuse", second)
	}

	clock.Advance(25 * time.Hour)
	third, err := r.Resolve(ctx, contact, "Ada", "chat")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if third.ConversationID == first.ConversationID {
		t.Error("after the window a new conversation must be created")
	}
	if third.CustomerID != first.CustomerID {
		t.Errorf("customer = %s, want %s", third.CustomerID, first.CustomerID)
	}
	c := store.Conversation(third.ConversationID)
	if c.InitialChannel != "chat" {
		t.Errorf("initial_channel = %q, want chat", c.InitialChannel)
	}
}

func TestResolve_EmailNormalizedAndPhoneFallback(t *testing.T) {
	store := memstore.New()
	clock := &fakeClock{now: time.Now().UTC()}
	r := newResolver(store, clock)
	ctx := context.Background()

	a, err := r.Resolve(ctx, Contact{Email: " A@X.com "}, "", "web_form")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	b, err := r.Resolve(ctx, Contact{Email: "a@x.com"}, "", "email")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if a.CustomerID != b.CustomerID {
		t.Error("email lookup must be case-insensitive after normalization")
	}

	p1, err := r.Resolve(ctx, Contact{Phone: "+15550001"}, "Bo", "chat")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	p2, err := r.Resolve(ctx, Contact{Phone: "+15550001"}, "Bo", "chat")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p1.CustomerID != p2.CustomerID || p1.CustomerID == a.CustomerID {
		t.Errorf("phone customers = %s/%s, want one distinct customer", p1.CustomerID, p2.CustomerID)
	}
	customers, _, _, _ := store.Counts()
	if customers != 2 {
		t.Errorf("customers = %d, want 2", customers)
	}
}

func TestResolve_EscalatedConversationNotReused(t *testing.T) {
	store := memstore.New()
	clock := &fakeClock{now: time.Now().UTC()}
	r := newResolver(store, clock)
	ctx := context.Background()

	first, err := r.Resolve(ctx, Contact{Email: "b@x.com"}, "", "email")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	conv := store.Conversation(first.ConversationID)
	conv.Status = "escalated"
	if err := store.Conversations().Create(ctx, conv); err != nil {
		t.Fatalf("overwrite conversation: %v", err)
	}

	second, err := r.Resolve(ctx, Contact{Email: "b@x.com"}, "", "email")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if second.ConversationID == first.ConversationID {
		t.Error("escalated conversation must not be reused")
	}
}

func TestResolve_NoContact(t *testing.T) {
	r := New(memstore.New().Customers(), memstore.New().Conversations())
	_, err := r.Resolve(context.Background(), Contact{}, "x", "chat")
	if !errors.Is(err, ErrNoContact) {
		t.Fatalf("err = %v, want ErrNoContact", err)
	}
	if !errs.Is(err, errs.KindValidation) {
		t.Errorf("kind = %q, want validation", errs.KindOf(err))
	}
}

func TestResolve_PersistenceFailures(t *testing.T) {
	testCases := []struct {
		name   string
		breakS func(s *memstore.Store)
	}{
		{"customer lookup", func(s *memstore.Store) { s.CustomerErr = errors.New("connection refused") }},
		{"conversation lookup", func(s *memstore.Store) { s.ConversationErr = errors.New("connection refused") }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := memstore.New()
			tc.breakS(store)
			r := New(store.Customers(), store.Conversations())
			_, err := r.Resolve(context.Background(), Contact{Email: "c@x.com"}, "", "chat")
			if !errs.Is(err, errs.KindPersistence) {
				t.Fatalf("err = %v, want persistence error", err)
			}
		})
	}
}

func TestWithWindow(t *testing.T) {
	store := memstore.New()
	clock := &fakeClock{now: time.Now().UTC()}
	r := New(store.Customers(), store.Conversations(), WithClock(clock.Now), WithWindow(time.Hour))
	ctx := context.Background()

	first, _ := r.Resolve(ctx, Contact{Email: "d@x.com"}, "", "chat")
	clock.Advance(2 * time.Hour)
	second, _ := r.Resolve(ctx, Contact{Email: "d@x.com"}, "", "chat")
	if first.ConversationID == second.ConversationID {
		t.Error("custom window of 1h should expire after 2h")
	}
}
