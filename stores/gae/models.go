package gae

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/datastore"

	oa "github.com/panyam/oneaccount"
)

// Kind constants for Datastore entities.
const (
	KindUser      = "User"
	KindEmail     = "Email"
	KindAuthToken = "AuthToken"
)

// UserEntity is the Datastore shape of a user. Provider tokens are kept as
// an unindexed JSON blob; the subject ids are indexed for provider login.
type UserEntity struct {
	Key          *datastore.Key `datastore:"__key__"`
	Email        string         `datastore:"email"`
	PasswordHash string         `datastore:"password_hash,noindex"`

	Name     string `datastore:"name,noindex"`
	Gender   string `datastore:"gender,noindex"`
	Location string `datastore:"location,noindex"`
	Website  string `datastore:"website,noindex"`

	GoogleID string `datastore:"google_id"`
	GitHubID string `datastore:"github_id"`

	Tokens []byte `datastore:"tokens,noindex"`

	CreatedAt time.Time `datastore:"created_at,noindex"`
	UpdatedAt time.Time `datastore:"updated_at,noindex"`
}

func (e *UserEntity) ToUser() *oa.User {
	var tokens []oa.ProviderToken
	if e.Tokens != nil {
		json.Unmarshal(e.Tokens, &tokens)
	}
	return &oa.User{
		ID:           e.Key.Name,
		Email:        e.Email,
		PasswordHash: e.PasswordHash,
		Profile: oa.Profile{
			Name:     e.Name,
			Gender:   e.Gender,
			Location: e.Location,
			Website:  e.Website,
		},
		Tokens:    tokens,
		GoogleID:  e.GoogleID,
		GitHubID:  e.GitHubID,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func UserToEntity(u *oa.User, key *datastore.Key) *UserEntity {
	var tokenBytes []byte
	if u.Tokens != nil {
		tokenBytes, _ = json.Marshal(u.Tokens)
	}
	return &UserEntity{
		Key:          key,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Name:         u.Profile.Name,
		Gender:       u.Profile.Gender,
		Location:     u.Profile.Location,
		Website:      u.Profile.Website,
		GoogleID:     u.GoogleID,
		GitHubID:     u.GitHubID,
		Tokens:       tokenBytes,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// EmailEntity reserves an address. The entity key is the normalized email,
// which is what makes uniqueness enforceable in a transaction.
type EmailEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	UserID    string         `datastore:"user_id"`
	CreatedAt time.Time      `datastore:"created_at,noindex"`
}

// AuthTokenEntity is the Datastore shape of a one-time token.
type AuthTokenEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	Type      string         `datastore:"type"`
	UserID    string         `datastore:"user_id"`
	Email     string         `datastore:"email,noindex"`
	CreatedAt time.Time      `datastore:"created_at,noindex"`
	ExpiresAt time.Time      `datastore:"expires_at"`
}

func (e *AuthTokenEntity) ToAuthToken() *oa.AuthToken {
	return &oa.AuthToken{
		Token:     e.Key.Name,
		Type:      oa.TokenType(e.Type),
		UserID:    e.UserID,
		Email:     e.Email,
		CreatedAt: e.CreatedAt,
		ExpiresAt: e.ExpiresAt,
	}
}
