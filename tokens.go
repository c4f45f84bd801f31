package oneaccount

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrTokenNotFound is returned when a token does not exist or has expired.
var ErrTokenNotFound = errors.New("token not found")

// TokenType represents different kinds of one-time auth tokens.
type TokenType string

const (
	TokenTypePasswordReset TokenType = "password_reset"
)

// TokenExpiryPasswordReset is the default lifetime of a reset token.
const TokenExpiryPasswordReset = 1 * time.Hour

// AuthToken is a one-time token mailed to a user, e.g. a password-reset
// token. Tokens are deleted after a single use.
type AuthToken struct {
	Token     string    `json:"token"`
	Type      TokenType `json:"type"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenStore manages one-time auth tokens.
type TokenStore interface {
	CreateToken(ctx context.Context, userID, email string, tokenType TokenType, expiry time.Duration) (*AuthToken, error)
	GetToken(ctx context.Context, token string) (*AuthToken, error)
	DeleteToken(ctx context.Context, token string) error
}

// GenerateSecureToken generates a cryptographically secure random token:
// 32 bytes, hex-encoded to 64 characters.
func GenerateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// IsExpired checks if a token has expired.
func (t *AuthToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsValid checks that a token matches the expected type and has not expired.
func (t *AuthToken) IsValid(expectedType TokenType) bool {
	return t.Type == expectedType && !t.IsExpired()
}
