package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// User is the durable account record, including the security state
// mutated by the authentication flow and the reconciliation jobs.
//
// AccountLocked is only ever set after FailedLoginAttempts reached the
// configured threshold; the counter resets to zero on any successful
// authentication or on scheduled unlock.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	Enabled      bool

	FailedLoginAttempts int
	LastFailedLoginTime *time.Time
	AccountLocked       bool
	AccountExpired      bool
	CredentialsExpired  bool

	AccountExpirationDate time.Time
	PasswordLastUpdated   time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary is the user-safe projection returned alongside a token.
type Summary struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

func (u User) Summary() Summary {
	return Summary{ID: u.ID, Username: u.Username, Email: u.Email}
}

// Repository abstracts durable account storage.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByID(ctx context.Context, id uuid.UUID) (User, error)
	Create(ctx context.Context, u User) error
	Save(ctx context.Context, u User) error
	// SaveAll persists a reconciliation batch in one round trip.
	SaveAll(ctx context.Context, us []User) error

	// FindLockedBefore returns locked accounts whose last failed login
	// is older than t.
	FindLockedBefore(ctx context.Context, t time.Time) ([]User, error)
	// FindExpiringBefore returns accounts past their expiration date
	// that are not yet flagged expired.
	FindExpiringBefore(ctx context.Context, t time.Time) ([]User, error)
	// FindCredentialsStaleBefore returns accounts whose password was
	// last updated before t and are not yet flagged credential-expired.
	FindCredentialsStaleBefore(ctx context.Context, t time.Time) ([]User, error)
}
