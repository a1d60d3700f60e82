// Package delivery formats replies for their channel and hands them to the outbound provider.
package delivery

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"omnichannel-support/internal/event"
)

// Status is the provider's view of an outbound message.
type Status string

const (
	StatusSent      Status = "sent"
	StatusQueued    Status = "queued"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusSent, StatusQueued, StatusDelivered, StatusFailed:
		return true
	}
	return false
}

// Result is the outcome of one send. Err is set only when Status is failed.
type Result struct {
	Status           Status
	ChannelMessageID string
	Err              error
}

// Failed returns a failed result wrapping err.
func Failed(err error) Result { return Result{Status: StatusFailed, Err: err} }

// Dispatcher sends an already formatted reply. Send never panics and reports failure in the Result.
type Dispatcher interface {
	Send(ctx context.Context, channel event.Channel, recipient, text string) Result
}

// LogDispatcher logs replies instead of sending them. Used when no provider is configured.
type LogDispatcher struct{}

// Send logs the channel and recipient and reports the reply as sent.
func (LogDispatcher) Send(_ context.Context, channel event.Channel, recipient, text string) Result {
	id := "log-" + uuid.NewString()
	log.Printf("delivery: %s reply to %s (%d bytes) id=%s", channel, recipient, len(text), id)
	return Result{Status: StatusSent, ChannelMessageID: id}
}

// Router picks a dispatcher per channel, falling back to a default.
type Router struct {
	byChannel map[event.Channel]Dispatcher
	fallback  Dispatcher
}

// NewRouter returns a router. fallback must not be nil.
func NewRouter(fallback Dispatcher) *Router {
	return &Router{byChannel: make(map[event.Channel]Dispatcher), fallback: fallback}
}

// Route registers d for channel.
func (r *Router) Route(channel event.Channel, d Dispatcher) *Router {
	r.byChannel[channel] = d
	return r
}

// Send delegates to the channel's dispatcher.
func (r *Router) Send(ctx context.Context, channel event.Channel, recipient, text string) Result {
	d, ok := r.byChannel[channel]
	if !ok {
		d = r.fallback
	}
	if d == nil {
		return Failed(fmt.Errorf("delivery: no dispatcher for channel %q", channel))
	}
	return d.Send(ctx, channel, recipient, text)
}

// Recipient picks the address a reply goes to: the phone for chat when known, else the email,
// else the phone.
func Recipient(channel event.Channel, email, phone string) string {
	if channel == event.ChannelChat && phone != "" {
		return phone
	}
	if email != "" {
		return email
	}
	return phone
}
