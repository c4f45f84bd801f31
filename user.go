package oneaccount

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Profile holds the optional, independently overwritable profile fields of
// an account.
type Profile struct {
	Name     string `json:"name,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Location string `json:"location,omitempty"`
	Website  string `json:"website,omitempty"`
}

// ProviderToken is a stored credential proving the user's linkage to an
// external OAuth provider. A user holds at most one token per Kind.
type ProviderToken struct {
	Kind         string    `json:"kind"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// User is the sole persisted entity: a unique account identified by an
// opaque id and a lowercase, globally unique email address.
//
// PasswordHash is write-only: it never appears in rendered pages, logs or
// JSON payloads. Stores persist it through their own storage records.
type User struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	PasswordHash string  `json:"-"`
	Profile      Profile `json:"profile"`

	// One entry per linked provider, membership tested by Kind.
	Tokens []ProviderToken `json:"tokens,omitempty"`

	// Subject ids assigned by the providers on a successful OAuth callback.
	GoogleID string `json:"google_id,omitempty"`
	GitHubID string `json:"github_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeEmail folds an email to the canonical lowercase form used for
// storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SetPassword replaces the user's password, hashing it with bcrypt. The
// plaintext is never retained.
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// ComparePassword reports whether the candidate matches the stored hash.
func (u *User) ComparePassword(candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(candidate)) == nil
}

// TokenFor returns the token linked for the given provider kind, if any.
func (u *User) TokenFor(kind string) (ProviderToken, bool) {
	for _, t := range u.Tokens {
		if t.Kind == kind {
			return t, true
		}
	}
	return ProviderToken{}, false
}

// LinkProvider records a provider linkage: the provider-assigned subject id
// plus the token entry, replacing any previous token of the same kind.
func (u *User) LinkProvider(kind, subjectID string, token ProviderToken) {
	token.Kind = kind
	u.setProviderSubject(kind, subjectID)

	kept := u.Tokens[:0]
	for _, t := range u.Tokens {
		if t.Kind != kind {
			kept = append(kept, t)
		}
	}
	u.Tokens = append(kept, token)
}

// UnlinkProvider clears the provider's subject id and removes every token
// entry of that kind.
func (u *User) UnlinkProvider(kind string) {
	u.setProviderSubject(kind, "")

	kept := u.Tokens[:0]
	for _, t := range u.Tokens {
		if t.Kind != kind {
			kept = append(kept, t)
		}
	}
	u.Tokens = kept
}

// ProviderSubject returns the stored subject id for a provider kind, or ""
// when the provider is unknown or not linked.
func (u *User) ProviderSubject(kind string) string {
	switch kind {
	case "google":
		return u.GoogleID
	case "github":
		return u.GitHubID
	}
	return ""
}

func (u *User) setProviderSubject(kind, subject string) {
	switch kind {
	case "google":
		u.GoogleID = subject
	case "github":
		u.GitHubID = subject
	}
}

// NewUserID generates a cryptographically secure opaque user id. Stores that
// assign their own ids (e.g. Mongo object ids) may ignore it.
func NewUserID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
