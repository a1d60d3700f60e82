package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"omnichannel-support/internal/errs"
	"omnichannel-support/internal/event"
)

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (r *recordingPublisher) Publish(_ context.Context, _ string, ev event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return errs.Bus("bus.publish", r.err)
	}
	r.keys = append(r.keys, ev.PartitionKey())
	return nil
}

const lines = `{"channel":"email","channel_message_id":"m1","customer_email":"A@x.com","content":"hi","received_at":"2026-03-01T10:00:00Z"}

{"channel":"sms","channel_message_id":"m2","customer_email":"b@x.com","content":"hi","received_at":"2026-03-01T10:00:00Z"}
not json
{"channel":"chat","channel_message_id":"m3","customer_phone":"+15550100","content":"hey","received_at":"2026-03-01T10:00:00Z"}
`

func TestPublishLines(t *testing.T) {
	pub := &recordingPublisher{}
	sent, rejected, err := publishLines(context.Background(), strings.NewReader(lines), pub, "in")
	if err != nil {
		t.Fatalf("publishLines: %v", err)
	}
	if sent != 2 || rejected != 2 {
		t.Errorf("sent=%d rejected=%d, want 2/2", sent, rejected)
	}
	if len(pub.keys) != 2 || pub.keys[0] != "a@x.com" || pub.keys[1] != "+15550100" {
		t.Errorf("partition keys = %v", pub.keys)
	}
}

func TestPublishLines_BusFailureStops(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("no brokers")}
	sent, _, err := publishLines(context.Background(), strings.NewReader(lines), pub, "in")
	if !errs.Is(err, errs.KindBus) {
		t.Fatalf("err = %v, want bus error", err)
	}
	if sent != 0 {
		t.Errorf("sent = %d, want 0", sent)
	}
}
