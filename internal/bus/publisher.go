// Package bus is the Kafka event bus: a validating publisher and a consumer-group subscriber
// that commits offsets only after the handler returns.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"omnichannel-support/internal/errs"
	"omnichannel-support/internal/event"
)

const publishTimeout = 5 * time.Second

// Topics names the three pipeline topics.
type Topics struct {
	Incoming   string
	Metrics    string
	DeadLetter string
}

// Publisher sends events to a topic. Publish fails the caller when the broker does not acknowledge.
type Publisher interface {
	Publish(ctx context.Context, topic string, ev event.Event) error
}

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements Publisher using segmentio/kafka-go.
type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaPublisher creates a publisher for the given brokers. The topic is chosen per message.
// Messages are hash-balanced on the event's partition key. Call Close when shutting down.
func NewKafkaPublisher(brokers []string, transport *kafka.Transport) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("bus: at least one broker is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: false,
	}
	if transport != nil {
		w.Transport = transport
	}
	return &KafkaPublisher{writer: w, now: time.Now}, nil
}

// Publish validates ev, stamps published_at and writes it as JSON.
// Validation failures are returned as validation errors; broker failures as bus errors.
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, ev event.Event) error {
	if ev == nil {
		return errs.Validation("bus.publish", errors.New("nil event"))
	}
	if err := ev.Validate(); err != nil {
		return errs.Validation("bus.publish", err)
	}
	ev.Stamp(p.now())
	payload, err := json.Marshal(ev)
	if err != nil {
		return errs.Validation("bus.publish", err)
	}
	msg := kafka.Message{Topic: topic, Value: payload}
	if key := ev.PartitionKey(); key != "" {
		msg.Key = []byte(key)
	}
	writeCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		return errs.Bus("bus.publish", err)
	}
	return nil
}

// Close flushes and closes the Kafka writer. Nil-safe.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
