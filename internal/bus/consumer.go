package bus

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"omnichannel-support/internal/errs"
)

// Message is one record read from a subscribed topic.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
}

// Handler processes one message. A nil return commits the offset. A non-nil return stops the
// consumer without committing, so the message is redelivered after restart.
type Handler func(ctx context.Context, msg Message) error

// messageReader is the subset of *kafka.Reader used by Consumer.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer is a single consumer-group member over one or more topics.
type Consumer struct {
	reader messageReader
	name   string
}

// NewConsumer joins groupID on topics. dialer may be nil for plaintext brokers.
// Offsets are committed explicitly after each handled message.
func NewConsumer(brokers, topics []string, groupID string, dialer *kafka.Dialer) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("bus: at least one broker is required")
	}
	if len(topics) == 0 || groupID == "" {
		return nil, errors.New("bus: topics and group id are required")
	}
	rc := kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	}
	if dialer != nil {
		rc.Dialer = dialer
	}
	return &Consumer{reader: kafka.NewReader(rc), name: groupID}, nil
}

// Run fetches messages until ctx is cancelled or an error occurs. It returns nil on cancellation.
// Fetch and commit failures end the loop with a bus error; the process is expected to restart
// and resume from the last committed offset.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	for {
		km, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("bus: %s stopped", c.name)
				return nil
			}
			return errs.Bus("bus.fetch", err)
		}
		msg := Message{
			Topic:     km.Topic,
			Partition: km.Partition,
			Offset:    km.Offset,
			Key:       km.Key,
			Value:     km.Value,
			Time:      km.Time,
		}
		if err := h(ctx, msg); err != nil {
			return err
		}
		if err := c.reader.CommitMessages(ctx, km); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errs.Bus("bus.commit", err)
		}
	}
}

// Close leaves the consumer group. Nil-safe.
func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}
