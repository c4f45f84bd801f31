package oneaccount

import (
	"context"
	"errors"
)

// Sentinel error kinds surfaced by every UserStore implementation. Handlers
// branch on these; anything else is an infrastructure error and propagates
// to the host's error handler.
var (
	// ErrUserNotFound is returned by lookups that match no user.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is the duplicate-key condition: the email is already
	// bound to another account. Email uniqueness is enforced by the backing
	// store, not by application-level locking; a check-then-insert signup
	// can race and this error is the backstop.
	ErrEmailTaken = errors.New("email already in use")
)

// UserStore is the persistence contract for User records.
//
// Implementations store and look up emails in their normalized (lowercase)
// form, and map their native duplicate-key condition for the email
// constraint onto ErrEmailTaken.
type UserStore interface {
	// CreateUser persists a new user. An empty ID is assigned by the store.
	CreateUser(ctx context.Context, user *User) error

	// GetUserById retrieves a user by its opaque id.
	GetUserById(ctx context.Context, userId string) (*User, error)

	// GetUserByEmail retrieves a user by normalized email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetUserByProvider retrieves the user holding the given
	// provider-assigned subject id (e.g. a Google subject id).
	GetUserByProvider(ctx context.Context, provider, subjectID string) (*User, error)

	// SaveUser updates an existing user.
	SaveUser(ctx context.Context, user *User) error

	// DeleteUser removes a user permanently. Hard delete, no tombstone.
	DeleteUser(ctx context.Context, userId string) error
}
