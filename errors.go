package oneaccount

import "net/http"

// Error codes attached to AuthError values.
const (
	ErrCodeMissingField     = "missing_field"
	ErrCodeInvalidEmail     = "invalid_email"
	ErrCodeInvalidCreds     = "invalid_credentials"
	ErrCodeEmailNotFound    = "email_not_found"
	ErrCodeEmailExists      = "email_exists"
	ErrCodeWeakPassword     = "weak_password"
	ErrCodePasswordMismatch = "password_mismatch"
	ErrCodeRateLimited      = "rate_limited"
)

// AuthError is a recoverable, user-surfaced authentication or validation
// failure. Message is safe to show to the end user; Field names the form
// field at fault, when there is one.
type AuthError struct {
	Code    string
	Message string
	Field   string
}

func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

func (e *AuthError) Error() string {
	return e.Message
}

// AuthErrorHandler lets hosts override how a recoverable auth error is
// surfaced. Returning true means the error was handled.
type AuthErrorHandler func(err *AuthError, w http.ResponseWriter, r *http.Request) bool
