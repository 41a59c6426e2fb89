package auth

import (
	"context"
	"time"
)

// UserStore describes the persistence operations required by the auth
// subsystem. Implementations must treat email as a unique key.
type UserStore interface {
	// Create persists a new record, assigning an ID when missing.
	// Returns ErrDuplicateEmail when the email is already registered.
	Create(ctx context.Context, u *User) error
	// FindByEmail returns ErrNotFound when the email is unknown.
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FindByID returns ErrNotFound when the id is unknown.
	FindByID(ctx context.Context, id string) (*User, error)
	// Update replaces the mutable fields of an existing record keyed by ID.
	// Returns ErrNotFound when the record does not exist.
	Update(ctx context.Context, u *User) error
}

// Mailer delivers one-time reset codes to registered addresses. Delivery
// failures surface as errors; the auth core performs no retries.
type Mailer interface {
	SendResetCode(ctx context.Context, to, code string, ttl time.Duration) error
}
