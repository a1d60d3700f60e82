package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	convdomain "omnichannel-support/internal/conversation/domain"
	"omnichannel-support/internal/db"
	"omnichannel-support/internal/ticket/domain"
)

const ticketColumns = `id, customer_id, conversation_id, source_channel, category, priority, status, idempotency_key, created_at, updated_at, resolved_at`

// ErrNotFound is returned by state transitions on unknown tickets.
var ErrNotFound = errors.New("ticket: not found")

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a ticket repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// CreateIdempotent upserts on idempotency_key; an existing row is returned unchanged.
func (r *PostgresRepository) CreateIdempotent(ctx context.Context, t *domain.Ticket) (*domain.Ticket, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO tickets (id, customer_id, conversation_id, source_channel, category, priority, status, idempotency_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		 ON CONFLICT (idempotency_key) DO NOTHING
		 RETURNING `+ticketColumns,
		t.ID, t.CustomerID, t.ConversationID, t.SourceChannel, t.Category, string(t.Priority), string(t.Status), t.IdempotencyKey, t.CreatedAt)
	created, err := scanTicket(row)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}
	existing, err := scanTicket(r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE idempotency_key = $1`, t.IdempotencyKey))
	if err != nil {
		return nil, false, fmt.Errorf("load existing ticket: %w", err)
	}
	return existing, false, nil
}

// GetByID returns the ticket for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// Escalate raises the ticket and hands its conversation to human support.
// Escalating an already escalated ticket leaves the priority as is.
func (r *PostgresRepository) Escalate(ctx context.Context, id string, at time.Time) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var (
			conversationID string
			priority       string
			status         string
		)
		err := tx.QueryRowContext(ctx,
			`SELECT conversation_id, priority, status FROM tickets WHERE id = $1 FOR UPDATE`, id).
			Scan(&conversationID, &priority, &status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		next := domain.Priority(priority)
		if domain.Status(status) == domain.StatusOpen {
			next = next.Raise()
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE tickets SET status = $1, priority = $2, updated_at = $3 WHERE id = $4`,
			string(domain.StatusInProgress), string(next), at, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE conversations SET status = $1, escalated_to = $2 WHERE id = $3 AND status <> $4`,
			string(convdomain.StatusEscalated), convdomain.EscalationTarget, conversationID, string(convdomain.StatusResolved))
		return err
	})
}

// Resolve marks the ticket resolved and closes its conversation.
func (r *PostgresRepository) Resolve(ctx context.Context, id string, at time.Time) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var conversationID string
		err := tx.QueryRowContext(ctx,
			`UPDATE tickets SET status = $1, resolved_at = $2, updated_at = $2 WHERE id = $3 RETURNING conversation_id`,
			string(domain.StatusResolved), at, id).Scan(&conversationID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE conversations SET status = $1 WHERE id = $2`, string(convdomain.StatusResolved), conversationID)
		return err
	})
}

func scanTicket(row *sql.Row) (*domain.Ticket, error) {
	var (
		t                domain.Ticket
		priority, status string
		resolvedAt       sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.CustomerID, &t.ConversationID, &t.SourceChannel, &t.Category,
		&priority, &status, &t.IdempotencyKey, &t.CreatedAt, &t.UpdatedAt, &resolvedAt); err != nil {
		return nil, err
	}
	t.Priority = domain.Priority(priority)
	t.Status = domain.Status(status)
	if resolvedAt.Valid {
		v := resolvedAt.Time
		t.ResolvedAt = &v
	}
	return &t, nil
}
