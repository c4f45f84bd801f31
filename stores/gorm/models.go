package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	oa "github.com/panyam/oneaccount"
)

// TokenList stores the user's provider tokens as a JSON column.
type TokenList []oa.ProviderToken

func (l TokenList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *TokenList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return nil
}

// UserModel is the GORM model for users. Email uniqueness is enforced by
// the database, not the application.
type UserModel struct {
	ID           string `gorm:"primaryKey;size:64"`
	Email        string `gorm:"size:255;uniqueIndex"`
	PasswordHash string `gorm:"size:128"`

	Name     string `gorm:"size:255"`
	Gender   string `gorm:"size:32"`
	Location string `gorm:"size:255"`
	Website  string `gorm:"size:255"`

	GoogleID string `gorm:"size:64;index"`
	GitHubID string `gorm:"size:64;index"`

	Tokens TokenList `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUser() *oa.User {
	return &oa.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Profile: oa.Profile{
			Name:     m.Name,
			Gender:   m.Gender,
			Location: m.Location,
			Website:  m.Website,
		},
		Tokens:    m.Tokens,
		GoogleID:  m.GoogleID,
		GitHubID:  m.GitHubID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func UserToModel(u *oa.User) *UserModel {
	return &UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Name:         u.Profile.Name,
		Gender:       u.Profile.Gender,
		Location:     u.Profile.Location,
		Website:      u.Profile.Website,
		GoogleID:     u.GoogleID,
		GitHubID:     u.GitHubID,
		Tokens:       TokenList(u.Tokens),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// AuthTokenModel is the GORM model for one-time tokens.
type AuthTokenModel struct {
	Token     string       `gorm:"primaryKey;size:128"`
	Type      oa.TokenType `gorm:"size:32;index"`
	UserID    string       `gorm:"size:64;index"`
	Email     string       `gorm:"size:255"`
	CreatedAt time.Time    `gorm:"autoCreateTime"`
	ExpiresAt time.Time    `gorm:"index"`
}

func (AuthTokenModel) TableName() string {
	return "auth_tokens"
}

func (m *AuthTokenModel) ToAuthToken() *oa.AuthToken {
	return &oa.AuthToken{
		Token:     m.Token,
		Type:      m.Type,
		UserID:    m.UserID,
		Email:     m.Email,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
	}
}
