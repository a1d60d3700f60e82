package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"omnichannel-support/internal/db"
	"omnichannel-support/internal/event"
)

// MetricStore appends metric events.
type MetricStore interface {
	InsertMetric(ctx context.Context, m *event.MetricEvent) error
}

// DeadLetterStore appends dead-letter events.
type DeadLetterStore interface {
	InsertDeadLetter(ctx context.Context, d *event.DeadLetterEvent) error
}

// PostgresStore writes the agent_metrics and dead_letters tables. Rows are never updated.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a store backed by conn.
func NewPostgresStore(conn *sql.DB) *PostgresStore {
	return &PostgresStore{db: conn}
}

// InsertMetric stores one row per metric event. Latency is stored in seconds.
func (s *PostgresStore) InsertMetric(ctx context.Context, m *event.MetricEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_metrics (id, conversation_id, ticket_id, channel, response_time_seconds, sentiment_score,
		   is_escalated, escalation_failed, status, delivery_status, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.New().String(), m.ConversationID, db.NullString(m.TicketID), string(m.Channel),
		float64(m.LatencyMs)/1000, m.SentimentScore, m.IsEscalated, m.EscalationFailed,
		m.Status, m.DeliveryStatus, publishedAt(m.PublishedAt))
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}

// InsertDeadLetter stores the event with its original message as JSON for later inspection.
func (s *PostgresStore) InsertDeadLetter(ctx context.Context, d *event.DeadLetterEvent) error {
	original, err := json.Marshal(d.OriginalMessage)
	if err != nil {
		return fmt.Errorf("encode original message: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dead_letters (id, channel, channel_message_id, original_message, raw_payload, error, error_kind,
		   latency_ms, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New().String(), db.NullString(string(d.OriginalMessage.Channel)), db.NullString(d.OriginalMessage.ChannelMessageID),
		string(original), db.NullString(d.RawPayload), d.Error, db.NullString(d.ErrorKind), d.LatencyMs, publishedAt(d.PublishedAt))
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

func publishedAt(s string) sql.NullTime {
	if s == "" {
		return sql.NullTime{}
	}
	t, err := event.ParseTimestamp(s)
	if err != nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.In(time.UTC), Valid: true}
}
