package otel

import (
	"context"
	"sync"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"omnichannel-support/internal/telemetry"
)

// captureProcessor keeps every emitted record.
type captureProcessor struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (c *captureProcessor) OnEmit(_ context.Context, rec *sdklog.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec.Clone())
	return nil
}

func (c *captureProcessor) Enabled(context.Context, sdklog.EnabledParameters) bool { return true }

func (c *captureProcessor) Shutdown(context.Context) error   { return nil }
func (c *captureProcessor) ForceFlush(context.Context) error { return nil }

func newCapture(t *testing.T) (*captureProcessor, telemetry.Forwarder) {
	t.Helper()
	cp := &captureProcessor{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(cp))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return cp, NewEventForwarder(provider)
}

func attrsOf(rec sdklog.Record) map[string]otellog.Value {
	out := map[string]otellog.Value{}
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value
		return true
	})
	return out
}

func TestNewEventForwarder_NilProvider_ReturnsNoop(t *testing.T) {
	f := NewEventForwarder(nil)
	if f == nil {
		t.Fatal("NewEventForwarder(nil) returned nil")
	}
	if err := f.Forward(context.Background(), telemetry.Record{Topic: "t"}); err != nil {
		t.Errorf("noop Forward: %v", err)
	}
}

func TestForward_MetricEventMapping(t *testing.T) {
	cp, f := newCapture(t)
	payload := `{"conversation_id":"c-1","channel":"email","status":"processed","is_escalated":true,"latency_ms":42,"published_at":"2026-03-01T10:00:00Z"}`
	if err := f.Forward(context.Background(), telemetry.Record{Topic: "fte.metrics", Key: "c-1", Payload: []byte(payload)}); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(cp.records) != 1 {
		t.Fatalf("records = %d, want 1", len(cp.records))
	}
	rec := cp.records[0]
	if string(rec.Body().AsBytes()) != payload {
		t.Errorf("body = %q", rec.Body().AsBytes())
	}
	attrs := attrsOf(rec)
	for k, v := range map[string]string{"topic": "fte.metrics", "key": "c-1", "conversation_id": "c-1", "channel": "email", "status": "processed"} {
		if attrs[k].AsString() != v {
			t.Errorf("attr %s = %q, want %q", k, attrs[k].AsString(), v)
		}
	}
	if !attrs["is_escalated"].AsBool() {
		t.Error("is_escalated should be true")
	}
	if attrs["latency_ms"].AsInt64() != 42 {
		t.Errorf("latency_ms = %d, want 42", attrs["latency_ms"].AsInt64())
	}
	if want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC); !rec.Timestamp().Equal(want) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), want)
	}
}

func TestForward_DeadLetterIsError(t *testing.T) {
	cp, f := newCapture(t)
	payload := `{"error":"db down","error_kind":"persistence","latency_ms":7}`
	if err := f.Forward(context.Background(), telemetry.Record{Topic: "fte.dlq", Payload: []byte(payload)}); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	rec := cp.records[0]
	if rec.Severity() != otellog.SeverityError {
		t.Errorf("severity = %v, want error", rec.Severity())
	}
	if attrsOf(rec)["error_kind"].AsString() != "persistence" {
		t.Error("error_kind attribute missing")
	}
}

func TestForward_UnparseablePayloadSetsCurrentTime(t *testing.T) {
	cp, f := newCapture(t)
	before := time.Now().UTC()
	if err := f.Forward(context.Background(), telemetry.Record{Topic: "fte.dlq", Payload: []byte("garbage")}); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	after := time.Now().UTC()
	ts := cp.records[0].Timestamp()
	if ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp = %v, should be between %v and %v", ts, before, after)
	}
	if _, ok := attrsOf(cp.records[0])["key"]; ok {
		t.Error("key attribute should be absent when the record has no key")
	}
}
