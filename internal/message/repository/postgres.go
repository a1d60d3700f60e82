package repository

import (
	"context"
	"database/sql"

	"omnichannel-support/internal/db"
	"omnichannel-support/internal/message/domain"
)

const messageColumns = `id, conversation_id, channel, direction, role, content, channel_message_id, idempotency_key, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a message repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Append inserts the message and touches the conversation in one transaction.
func (r *PostgresRepository) Append(ctx context.Context, m *domain.Message) (bool, error) {
	inserted := false
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, conversation_id, channel, direction, role, content, channel_message_id, idempotency_key, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING`,
			m.ID, m.ConversationID, m.Channel, string(m.Direction), string(m.Role), m.Content,
			db.NullString(m.ChannelMessageID), db.NullString(m.IdempotencyKey), m.CreatedAt)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		inserted = true
		_, err = tx.ExecContext(ctx,
			`UPDATE conversations SET last_activity = GREATEST(last_activity, $1) WHERE id = $2`,
			m.CreatedAt, m.ConversationID)
		return err
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// GetByIdempotencyKey returns the message for key, or nil if not found.
func (r *PostgresRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Message, error) {
	if key == "" {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE idempotency_key = $1`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanMessage(rows)
}

// ListByConversation returns the conversation's messages in creation order.
func (r *PostgresRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC, id ASC LIMIT $2`,
		conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMessage(rows *sql.Rows) (*domain.Message, error) {
	var (
		m                  domain.Message
		direction, role    string
		channelMsgID, ikey sql.NullString
	)
	if err := rows.Scan(&m.ID, &m.ConversationID, &m.Channel, &direction, &role, &m.Content, &channelMsgID, &ikey, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Direction = domain.Direction(direction)
	m.Role = domain.Role(role)
	m.ChannelMessageID = db.StringOrEmpty(channelMsgID)
	m.IdempotencyKey = db.StringOrEmpty(ikey)
	return &m, nil
}
