// Package telemetry forwards consumed bus events to observability backends (OTel logs, Loki).
// Forwarding is best-effort: callers log and ignore errors.
package telemetry

import "context"

// Record is one consumed event as it appeared on the bus.
type Record struct {
	Topic   string
	Key     string
	Payload []byte
}

// Forwarder ships a record to an observability backend.
type Forwarder interface {
	Forward(ctx context.Context, rec Record) error
}

// Multi fans a record out to every forwarder. All are attempted; the first error is returned.
type Multi []Forwarder

// Forward calls every non-nil forwarder.
func (m Multi) Forward(ctx context.Context, rec Record) error {
	var first error
	for _, f := range m {
		if f == nil {
			continue
		}
		if err := f.Forward(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}
