package oneaccount

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// Strategy is a pluggable credential-verification mechanism. Concrete
// strategies additionally implement CredentialStrategy (direct credential
// submission, e.g. local password) or RedirectStrategy (browser redirect
// flows, e.g. OAuth providers).
type Strategy interface {
	Provider() string
}

// CredentialStrategy verifies directly submitted credentials.
type CredentialStrategy interface {
	Strategy

	// Authenticate returns the verified user, an *AuthError for a
	// recoverable credential failure, or any other error for
	// infrastructure trouble.
	Authenticate(ctx context.Context, email, password string) (*User, error)
}

// RedirectStrategy runs a redirect-based flow: Begin sends the browser to
// the provider, Callback completes the exchange.
type RedirectStrategy interface {
	Strategy
	Begin(w http.ResponseWriter, r *http.Request)
	Callback(w http.ResponseWriter, r *http.Request)
}

// StrategyRegistry holds the registered strategies by provider name. New
// variants register here without any route-table changes: the generic
// /auth/{provider} routes dispatch through the registry.
type StrategyRegistry struct {
	mu     sync.RWMutex
	byName map[string]Strategy
}

func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{byName: map[string]Strategy{}}
}

// Use registers a strategy under its provider name, replacing any previous
// registration for that name.
func (reg *StrategyRegistry) Use(s Strategy) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.byName[s.Provider()] = s
}

// Get returns the strategy registered for the provider name.
func (reg *StrategyRegistry) Get(provider string) (Strategy, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	s, ok := reg.byName[provider]
	return s, ok
}

// Redirect returns the provider's strategy only if it runs a redirect flow.
func (reg *StrategyRegistry) Redirect(provider string) (RedirectStrategy, bool) {
	s, ok := reg.Get(provider)
	if !ok {
		return nil, false
	}
	rs, ok := s.(RedirectStrategy)
	return rs, ok
}

// LocalStrategy authenticates email/password against the user store.
type LocalStrategy struct {
	Users  UserStore
	Logger zerolog.Logger
}

func (s *LocalStrategy) Provider() string { return "local" }

// Authenticate looks the user up by lowercase email and compares the
// password against the stored hash. The failure message names the cause:
// the login page distinguishes an unknown email from a bad password.
func (s *LocalStrategy) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)

	user, err := s.Users.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, NewAuthError(ErrCodeEmailNotFound, fmt.Sprintf("Email %s not found.", email), "email")
	}
	if err != nil {
		return nil, err
	}

	if !user.ComparePassword(password) {
		s.Logger.Debug().Str("email", email).Msg("password mismatch")
		return nil, NewAuthError(ErrCodeInvalidCreds, "Invalid email or password.", "password")
	}
	return user, nil
}
