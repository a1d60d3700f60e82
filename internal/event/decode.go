package event

import (
	"encoding/json"
	"fmt"

	"omnichannel-support/internal/errs"
)

// DecodeInbound unmarshals and validates an InboundMessage. The returned message is non-nil
// whenever the JSON parsed, even if validation failed, so it can be dead-lettered intact.
func DecodeInbound(raw []byte) (*InboundMessage, error) {
	var m InboundMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errs.Validation("event.decode_inbound", fmt.Errorf("decode: %w", err))
	}
	if err := m.Validate(); err != nil {
		return &m, errs.Validation("event.decode_inbound", err)
	}
	return &m, nil
}

// DecodeMetric unmarshals and validates a MetricEvent.
func DecodeMetric(raw []byte) (*MetricEvent, error) {
	var m MetricEvent
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errs.Validation("event.decode_metric", fmt.Errorf("decode: %w", err))
	}
	if err := m.Validate(); err != nil {
		return &m, errs.Validation("event.decode_metric", err)
	}
	return &m, nil
}

// DecodeDeadLetter unmarshals and validates a DeadLetterEvent.
func DecodeDeadLetter(raw []byte) (*DeadLetterEvent, error) {
	var d DeadLetterEvent
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, errs.Validation("event.decode_dead_letter", fmt.Errorf("decode: %w", err))
	}
	if err := d.Validate(); err != nil {
		return &d, errs.Validation("event.decode_dead_letter", err)
	}
	return &d, nil
}
