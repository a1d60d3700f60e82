package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"omnichannel-support/internal/config"
	"omnichannel-support/internal/errs"
	"omnichannel-support/internal/event"
)

// mockWriter records written messages.
type mockWriter struct {
	mu       sync.Mutex
	msgs     []kafka.Message
	writeErr error
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error { return nil }

// mockReader serves queued messages, then blocks until ctx is done.
type mockReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	fetchErr  error
	commitErr error
	committed []int64
}

func (m *mockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	fetchErr := m.fetchErr
	m.mu.Unlock()
	if fetchErr != nil {
		return kafka.Message{}, fetchErr
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	for _, msg := range msgs {
		m.committed = append(m.committed, msg.Offset)
	}
	return nil
}

func (m *mockReader) Close() error { return nil }

func inbound() *event.InboundMessage {
	return &event.InboundMessage{
		Channel:          event.ChannelEmail,
		ChannelMessageID: "msg-1",
		CustomerEmail:    "Jane@Example.com",
		Content:          "hello",
		ReceivedAt:       "2026-03-01T10:00:00Z",
	}
}

func TestPublish_StampsKeysAndEncodes(t *testing.T) {
	w := &mockWriter{}
	fixed := time.Date(2026, 3, 1, 10, 0, 1, 0, time.UTC)
	p := &KafkaPublisher{writer: w, now: func() time.Time { return fixed }}

	if err := p.Publish(context.Background(), "fte.tickets.incoming", inbound()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("written = %d, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if msg.Topic != "fte.tickets.incoming" {
		t.Errorf("topic = %q, want fte.tickets.incoming", msg.Topic)
	}
	if string(msg.Key) != "jane@example.com" {
		t.Errorf("key = %q, want customer email", msg.Key)
	}
	var decoded map[string]any
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded["published_at"] != "2026-03-01T10:00:01Z" {
		t.Errorf("published_at = %v, want stamped time", decoded["published_at"])
	}
}

func TestPublish_InvalidEventNotSent(t *testing.T) {
	w := &mockWriter{}
	p := &KafkaPublisher{writer: w, now: time.Now}
	m := inbound()
	m.CustomerEmail = ""

	err := p.Publish(context.Background(), "fte.tickets.incoming", m)
	if !errs.Is(err, errs.KindValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if len(w.msgs) != 0 {
		t.Errorf("written = %d, want 0", len(w.msgs))
	}
}

func TestPublish_BrokerFailureIsBusError(t *testing.T) {
	w := &mockWriter{writeErr: errors.New("dial tcp: connection refused")}
	p := &KafkaPublisher{writer: w, now: time.Now}

	err := p.Publish(context.Background(), "fte.tickets.incoming", inbound())
	if !errs.Is(err, errs.KindBus) {
		t.Fatalf("err = %v, want bus error", err)
	}
}

func TestConsumer_CommitsAfterHandler(t *testing.T) {
	r := &mockReader{queue: []kafka.Message{{Offset: 1, Value: []byte("a")}, {Offset: 2, Value: []byte("b")}}}
	c := &Consumer{reader: r, name: "test"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []string
	err := c.Run(ctx, func(_ context.Context, msg Message) error {
		seen = append(seen, string(msg.Value))
		if len(seen) == 2 {
			cancel()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("handled = %d, want 2", len(seen))
	}
	if len(r.committed) < 1 || r.committed[0] != 1 {
		t.Errorf("committed = %v, want first offset committed", r.committed)
	}
}

func TestConsumer_HandlerErrorStopsWithoutCommit(t *testing.T) {
	r := &mockReader{queue: []kafka.Message{{Offset: 7}}}
	c := &Consumer{reader: r, name: "test"}
	want := errors.New("dead-letter publish failed")

	err := c.Run(context.Background(), func(context.Context, Message) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want handler error", err)
	}
	if len(r.committed) != 0 {
		t.Errorf("committed = %v, want none", r.committed)
	}
}

func TestConsumer_FetchErrorTerminates(t *testing.T) {
	r := &mockReader{fetchErr: errors.New("group coordinator not available")}
	c := &Consumer{reader: r, name: "test"}

	err := c.Run(context.Background(), func(context.Context, Message) error { return nil })
	if !errs.Is(err, errs.KindBus) {
		t.Fatalf("err = %v, want bus error", err)
	}
}

func TestConsumer_CommitErrorTerminates(t *testing.T) {
	r := &mockReader{queue: []kafka.Message{{Offset: 3}}, commitErr: errors.New("rebalance in progress")}
	c := &Consumer{reader: r, name: "test"}

	err := c.Run(context.Background(), func(context.Context, Message) error { return nil })
	if !errs.Is(err, errs.KindBus) {
		t.Fatalf("err = %v, want bus error", err)
	}
}

func TestNewConsumer_RequiresTopicsAndGroup(t *testing.T) {
	if _, err := NewConsumer([]string{"localhost:9092"}, nil, "g", nil); err == nil {
		t.Error("NewConsumer without topics should fail")
	}
	if _, err := NewConsumer([]string{"localhost:9092"}, []string{"t"}, "", nil); err == nil {
		t.Error("NewConsumer without group should fail")
	}
	if _, err := NewConsumer(nil, []string{"t"}, "g", nil); err == nil {
		t.Error("NewConsumer without brokers should fail")
	}
}

func TestSecurity_Plaintext(t *testing.T) {
	s := Security{Protocol: config.SecurityPlaintext}
	tc, err := s.TLSConfig()
	if err != nil || tc != nil {
		t.Errorf("TLSConfig = %v, %v; want nil, nil", tc, err)
	}
	mech, err := s.SASLMechanism()
	if err != nil || mech != nil {
		t.Errorf("SASLMechanism = %v, %v; want nil, nil", mech, err)
	}
}

func TestSecurity_SASLMechanisms(t *testing.T) {
	testCases := []struct {
		mechanism string
		wantName  string
		wantErr   bool
	}{
		{"SCRAM-SHA-256", "SCRAM-SHA-256", false},
		{"scram-sha-512", "SCRAM-SHA-512", false},
		{"PLAIN", "PLAIN", false},
		{"GSSAPI", "", true},
	}
	for _, tc := range testCases {
		t.Run(tc.mechanism, func(t *testing.T) {
			s := Security{Protocol: config.SecuritySASLPlaintext, Mechanism: tc.mechanism, Username: "u", Password: "p"}
			mech, err := s.SASLMechanism()
			if tc.wantErr {
				if err == nil {
					t.Fatal("SASLMechanism should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("SASLMechanism: %v", err)
			}
			if mech.Name() != tc.wantName {
				t.Errorf("Name = %q, want %q", mech.Name(), tc.wantName)
			}
		})
	}
}

func TestSecurity_SASLSSLUsesSystemRoots(t *testing.T) {
	s := Security{Protocol: config.SecuritySASLSSL, Username: "u", Password: "p"}
	tc, err := s.TLSConfig()
	if err != nil {
		t.Fatalf("TLSConfig: %v", err)
	}
	if tc == nil || tc.RootCAs != nil {
		t.Errorf("TLSConfig = %+v, want non-nil with system roots", tc)
	}
	d, err := NewDialer(s)
	if err != nil {
		t.Fatalf("NewDialer: %v", err)
	}
	if d.TLS == nil || d.SASLMechanism == nil {
		t.Error("dialer should carry TLS and SASL")
	}
}

func TestSecurity_MissingCAFile(t *testing.T) {
	s := Security{Protocol: config.SecuritySSL, CAFile: "/nonexistent/ca.pem"}
	if _, err := s.TLSConfig(); err == nil {
		t.Error("TLSConfig should fail when the CA file is missing")
	}
	if _, err := NewTransport(s); err == nil {
		t.Error("NewTransport should fail when the CA file is missing")
	}
}
