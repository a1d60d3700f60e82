package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Instrument names recorded by the message processor.
const (
	EventsProcessed     = "support.events.processed"
	EventsFailed        = "support.events.failed"
	Escalations         = "support.escalations"
	EscalationFailures  = "support.escalation.failures"
	DeliveryFailures    = "support.delivery.failures"
	GenerationFallbacks = "support.generation.fallbacks"
	EventLatency        = "support.event.latency_ms"
)

// Instruments are the processor's counters and latency histogram.
type Instruments struct {
	processed          otelmetric.Int64Counter
	failed             otelmetric.Int64Counter
	escalations        otelmetric.Int64Counter
	escalationFailures otelmetric.Int64Counter
	deliveryFailures   otelmetric.Int64Counter
	fallbacks          otelmetric.Int64Counter
	latency            otelmetric.Int64Histogram
}

// NewInstruments creates the instruments on meter.
func NewInstruments(meter otelmetric.Meter) (*Instruments, error) {
	var in Instruments
	var err error
	counters := []struct {
		dst  *otelmetric.Int64Counter
		name string
		desc string
	}{
		{&in.processed, EventsProcessed, "Inbound events fully processed."},
		{&in.failed, EventsFailed, "Inbound events routed to the dead-letter topic."},
		{&in.escalations, Escalations, "Tickets escalated to human support."},
		{&in.escalationFailures, EscalationFailures, "Escalations decided but not recorded."},
		{&in.deliveryFailures, DeliveryFailures, "Replies the dispatcher failed to deliver."},
		{&in.fallbacks, GenerationFallbacks, "Replies produced by the fallback policy after a generation error."},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, otelmetric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}
	in.latency, err = meter.Int64Histogram(EventLatency,
		otelmetric.WithDescription("End-to-end processing latency of one inbound event."),
		otelmetric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func channelAttr(channel string) otelmetric.MeasurementOption {
	return otelmetric.WithAttributes(attribute.String("channel", channel))
}

// Processed records a completed event and its latency.
func (in *Instruments) Processed(ctx context.Context, channel, status string, latencyMs int64) {
	attrs := otelmetric.WithAttributes(attribute.String("channel", channel), attribute.String("status", status))
	in.processed.Add(ctx, 1, attrs)
	in.latency.Record(ctx, latencyMs, attrs)
}

// Failed records a dead-lettered event.
func (in *Instruments) Failed(ctx context.Context, channel, kind string, latencyMs int64) {
	attrs := otelmetric.WithAttributes(attribute.String("channel", channel), attribute.String("error_kind", kind))
	in.failed.Add(ctx, 1, attrs)
	in.latency.Record(ctx, latencyMs, attrs)
}

// Escalated records a successful escalation.
func (in *Instruments) Escalated(ctx context.Context, channel string) {
	in.escalations.Add(ctx, 1, channelAttr(channel))
}

// EscalationFailed records an escalation that could not be persisted.
func (in *Instruments) EscalationFailed(ctx context.Context, channel string) {
	in.escalationFailures.Add(ctx, 1, channelAttr(channel))
}

// DeliveryFailed records a failed dispatch.
func (in *Instruments) DeliveryFailed(ctx context.Context, channel string) {
	in.deliveryFailures.Add(ctx, 1, channelAttr(channel))
}

// FellBack records a fallback reply caused by a generation error.
func (in *Instruments) FellBack(ctx context.Context, channel string) {
	in.fallbacks.Add(ctx, 1, channelAttr(channel))
}
