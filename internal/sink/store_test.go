package sink

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"omnichannel-support/internal/db/dbtest"
	"omnichannel-support/internal/event"
)

func TestPostgresStore_Inserts(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	store := NewPostgresStore(conn)

	convID := uuid.NewString()
	if err := store.InsertMetric(ctx, &event.MetricEvent{
		ConversationID: convID,
		Channel:        event.ChannelEmail,
		LatencyMs:      2500,
		SentimentScore: 0.2,
		IsEscalated:    true,
		Status:         event.StatusProcessed,
		DeliveryStatus: "sent",
		PublishedAt:    "2026-03-01T10:00:00Z",
	}); err != nil {
		t.Fatalf("InsertMetric: %v", err)
	}
	var seconds float64
	var escalated bool
	if err := conn.QueryRowContext(ctx,
		`SELECT response_time_seconds, is_escalated FROM agent_metrics WHERE conversation_id = $1`, convID).
		Scan(&seconds, &escalated); err != nil {
		t.Fatalf("select metric: %v", err)
	}
	if seconds != 2.5 || !escalated {
		t.Errorf("row = %v, %v; want 2.5, true", seconds, escalated)
	}

	msgID := uuid.NewString()
	if err := store.InsertDeadLetter(ctx, &event.DeadLetterEvent{
		OriginalMessage: event.InboundMessage{Channel: event.ChannelChat, ChannelMessageID: msgID, Content: "hi"},
		Error:           "boom",
		LatencyMs:       7,
	}); err != nil {
		t.Fatalf("InsertDeadLetter: %v", err)
	}
	var content string
	if err := conn.QueryRowContext(ctx,
		`SELECT original_message->>'content' FROM dead_letters WHERE channel_message_id = $1`, msgID).
		Scan(&content); err != nil {
		t.Fatalf("select dead letter: %v", err)
	}
	if content != "hi" {
		t.Errorf("original content = %q, want hi", content)
	}
}
