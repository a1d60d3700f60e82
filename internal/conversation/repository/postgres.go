package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"omnichannel-support/internal/conversation/domain"
	"omnichannel-support/internal/db"
)

const conversationColumns = `id, customer_id, initial_channel, status, sentiment_score, escalated_to, created_at, last_activity`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a conversation repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// FindActiveSince returns the newest reusable conversation, or nil if none.
func (r *PostgresRepository) FindActiveSince(ctx context.Context, customerID string, since time.Time) (*domain.Conversation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE customer_id = $1 AND status = 'active' AND last_activity > $2
		 ORDER BY last_activity DESC
		 LIMIT 1`,
		customerID, since)
	return scanOptional(row)
}

// GetByID returns the conversation for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
	return scanOptional(row)
}

// Create persists c. c.ID must be set.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Conversation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (id, customer_id, initial_channel, status, created_at, last_activity)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.CustomerID, c.InitialChannel, string(c.Status), c.CreatedAt, c.LastActivity)
	return err
}

// UpdateSentiment stores score as the conversation's latest sentiment.
func (r *PostgresRepository) UpdateSentiment(ctx context.Context, id string, score float64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET sentiment_score = $1, last_activity = GREATEST(last_activity, $2) WHERE id = $3`,
		score, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("conversation: not found")
	}
	return nil
}

func scanOptional(row *sql.Row) (*domain.Conversation, error) {
	var (
		c           domain.Conversation
		status      string
		sentiment   sql.NullFloat64
		escalatedTo sql.NullString
	)
	err := row.Scan(&c.ID, &c.CustomerID, &c.InitialChannel, &status, &sentiment, &escalatedTo, &c.CreatedAt, &c.LastActivity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.Status = domain.Status(status)
	if sentiment.Valid {
		v := sentiment.Float64
		c.SentimentScore = &v
	}
	c.EscalatedTo = db.StringOrEmpty(escalatedTo)
	return &c, nil
}
