// Package sink holds the consumers of the metrics and dead-letter topics. Each persists what it
// reads and optionally forwards the raw event to observability backends.
package sink

import (
	"context"
	"log"

	"omnichannel-support/internal/bus"
	"omnichannel-support/internal/errs"
	"omnichannel-support/internal/event"
	"omnichannel-support/internal/telemetry"
)

// Metrics persists metric events. Metrics are best-effort: invalid events and write failures
// are logged and dropped, and the offset is committed either way.
type Metrics struct {
	store     MetricStore
	forwarder telemetry.Forwarder
}

// NewMetrics returns a metrics sink. forwarder may be nil.
func NewMetrics(store MetricStore, forwarder telemetry.Forwarder) *Metrics {
	return &Metrics{store: store, forwarder: forwarder}
}

// Handle is the bus handler for the metrics topic. It never returns an error.
func (s *Metrics) Handle(ctx context.Context, msg bus.Message) error {
	m, err := event.DecodeMetric(msg.Value)
	if err != nil {
		log.Printf("sink: dropping invalid metric event at %s/%d/%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
		return nil
	}
	if err := s.store.InsertMetric(ctx, m); err != nil {
		log.Printf("sink: dropping metric for conversation %s: %v", m.ConversationID, err)
	}
	telemetry.ForwardAsync(s.forwarder, record(msg))
	return nil
}

// DeadLetters persists dead-letter events for later inspection.
type DeadLetters struct {
	store     DeadLetterStore
	forwarder telemetry.Forwarder
}

// NewDeadLetters returns a dead-letter sink. forwarder may be nil.
func NewDeadLetters(store DeadLetterStore, forwarder telemetry.Forwarder) *DeadLetters {
	return &DeadLetters{store: store, forwarder: forwarder}
}

// Handle is the bus handler for the dead-letter topic. Undecodable events are logged and
// skipped. A write failure is returned so the offset stays uncommitted and the event is read
// again after restart.
func (s *DeadLetters) Handle(ctx context.Context, msg bus.Message) error {
	d, err := event.DecodeDeadLetter(msg.Value)
	if err != nil {
		log.Printf("sink: skipping invalid dead-letter event at %s/%d/%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
		return nil
	}
	if err := s.store.InsertDeadLetter(ctx, d); err != nil {
		return errs.Persistence("sink.insert_dead_letter", err)
	}
	log.Printf("sink: stored dead letter %s/%s (%s)", d.OriginalMessage.Channel, d.OriginalMessage.ChannelMessageID, d.ErrorKind)
	telemetry.ForwardAsync(s.forwarder, record(msg))
	return nil
}

func record(msg bus.Message) telemetry.Record {
	return telemetry.Record{Topic: msg.Topic, Key: string(msg.Key), Payload: msg.Value}
}
