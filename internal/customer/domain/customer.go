package domain

import "time"

// DefaultName is stored when the inbound event carries no display name.
const DefaultName = "Unknown Customer"

// Customer is identified by email or phone; at least one is set. Never deleted.
type Customer struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
}
