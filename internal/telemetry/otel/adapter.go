package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"omnichannel-support/internal/event"
	"omnichannel-support/internal/telemetry"
)

const loggerName = "omnichannel-support.events"

// NewEventForwarder returns a Forwarder that emits records as OTel log records via provider.
// If provider is nil, returns a no-op forwarder.
func NewEventForwarder(provider *sdklog.LoggerProvider) telemetry.Forwarder {
	if provider == nil {
		return noopForwarder{}
	}
	return &otelForwarder{logger: provider.Logger(loggerName)}
}

type noopForwarder struct{}

func (noopForwarder) Forward(context.Context, telemetry.Record) error { return nil }

type otelForwarder struct {
	logger otellog.Logger
}

// recordFields are the attributes lifted from metric and dead-letter payloads.
type recordFields struct {
	ConversationID string `json:"conversation_id"`
	Channel        string `json:"channel"`
	Status         string `json:"status"`
	ErrorKind      string `json:"error_kind"`
	IsEscalated    *bool  `json:"is_escalated"`
	LatencyMs      *int64 `json:"latency_ms"`
	PublishedAt    string `json:"published_at"`
}

// Forward converts the record to an OTel log record and emits it. Never fails.
func (f *otelForwarder) Forward(ctx context.Context, rec telemetry.Record) error {
	lr := otellog.Record{}
	lr.SetBody(otellog.BytesValue(rec.Payload))
	lr.AddAttributes(otellog.String("topic", rec.Topic))
	if rec.Key != "" {
		lr.AddAttributes(otellog.String("key", rec.Key))
	}
	var fields recordFields
	if err := json.Unmarshal(rec.Payload, &fields); err == nil {
		if fields.ConversationID != "" {
			lr.AddAttributes(otellog.String("conversation_id", fields.ConversationID))
		}
		if fields.Channel != "" {
			lr.AddAttributes(otellog.String("channel", fields.Channel))
		}
		if fields.Status != "" {
			lr.AddAttributes(otellog.String("status", fields.Status))
		}
		if fields.ErrorKind != "" {
			lr.AddAttributes(otellog.String("error_kind", fields.ErrorKind))
			lr.SetSeverity(otellog.SeverityError)
		}
		if fields.IsEscalated != nil {
			lr.AddAttributes(otellog.Bool("is_escalated", *fields.IsEscalated))
		}
		if fields.LatencyMs != nil {
			lr.AddAttributes(otellog.Int64("latency_ms", *fields.LatencyMs))
		}
		if fields.PublishedAt != "" {
			if t, err := event.ParseTimestamp(fields.PublishedAt); err == nil {
				lr.SetTimestamp(t)
			}
		}
	}
	if lr.Timestamp().IsZero() {
		lr.SetTimestamp(time.Now().UTC())
	}
	f.logger.Emit(ctx, lr)
	return nil
}
