package repository

import (
	"context"
	"database/sql"
	"errors"

	"omnichannel-support/internal/customer/domain"
	"omnichannel-support/internal/db"
)

const customerColumns = `id, name, email, phone, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a customer repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByEmail returns the customer for email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return r.getOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE email = $1`, email)
}

// GetByPhone returns the customer for phone, or nil if not found.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	return r.getOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone = $1`, phone)
}

// Create inserts the customer. c.ID must be set. On a unique-contact conflict the row that
// won the race is returned.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO customers (id, name, email, phone, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT DO NOTHING
		 RETURNING `+customerColumns,
		c.ID, c.Name, db.NullString(c.Email), db.NullString(c.Phone), c.CreatedAt)
	created, err := scanCustomer(row)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	var existing *domain.Customer
	if c.Email != "" {
		existing, err = r.GetByEmail(ctx, c.Email)
	}
	if existing == nil && err == nil && c.Phone != "" {
		existing, err = r.GetByPhone(ctx, c.Phone)
	}
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errors.New("customer: insert conflicted but no existing row found")
	}
	return existing, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*domain.Customer, error) {
	c, err := scanCustomer(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func scanCustomer(row *sql.Row) (*domain.Customer, error) {
	var (
		c            domain.Customer
		email, phone sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &email, &phone, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Email = db.StringOrEmpty(email)
	c.Phone = db.StringOrEmpty(phone)
	return &c, nil
}
