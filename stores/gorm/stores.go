package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	oa "github.com/panyam/oneaccount"
)

// AutoMigrate runs database migrations for all account tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&AuthTokenModel{},
	)
}

// UserStore implements oneaccount.UserStore on a GORM database.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateUser(ctx context.Context, user *oa.User) error {
	if user.ID == "" {
		user.ID = oa.NewUserID()
	}
	user.Email = oa.NormalizeEmail(user.Email)

	model := UserToModel(user)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return oa.ErrEmailTaken
		}
		return err
	}
	user.CreatedAt = model.CreatedAt
	user.UpdatedAt = model.UpdatedAt
	return nil
}

func (s *UserStore) GetUserById(ctx context.Context, userId string) (*oa.User, error) {
	var model UserModel
	err := s.db.WithContext(ctx).First(&model, "id = ?", userId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, oa.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*oa.User, error) {
	var model UserModel
	err := s.db.WithContext(ctx).First(&model, "email = ?", oa.NormalizeEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, oa.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetUserByProvider(ctx context.Context, provider, subjectID string) (*oa.User, error) {
	if subjectID == "" {
		return nil, oa.ErrUserNotFound
	}

	var column string
	switch provider {
	case "google":
		column = "google_id"
	case "github":
		column = "git_hub_id"
	default:
		return nil, oa.ErrUserNotFound
	}

	var model UserModel
	err := s.db.WithContext(ctx).First(&model, column+" = ?", subjectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, oa.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) SaveUser(ctx context.Context, user *oa.User) error {
	user.Email = oa.NormalizeEmail(user.Email)
	model := UserToModel(user)
	err := s.db.WithContext(ctx).Save(model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return oa.ErrEmailTaken
	}
	return err
}

func (s *UserStore) DeleteUser(ctx context.Context, userId string) error {
	result := s.db.WithContext(ctx).Delete(&UserModel{}, "id = ?", userId)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return oa.ErrUserNotFound
	}
	return nil
}

// TokenStore implements oneaccount.TokenStore on a GORM database.
type TokenStore struct {
	db *gorm.DB
}

func NewTokenStore(db *gorm.DB) *TokenStore {
	return &TokenStore{db: db}
}

func (s *TokenStore) CreateToken(ctx context.Context, userID, email string, tokenType oa.TokenType, expiry time.Duration) (*oa.AuthToken, error) {
	token, err := oa.GenerateSecureToken()
	if err != nil {
		return nil, err
	}

	model := &AuthTokenModel{
		Token:     token,
		Type:      tokenType,
		UserID:    userID,
		Email:     email,
		ExpiresAt: time.Now().Add(expiry),
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return nil, err
	}
	return model.ToAuthToken(), nil
}

func (s *TokenStore) GetToken(ctx context.Context, token string) (*oa.AuthToken, error) {
	var model AuthTokenModel
	err := s.db.WithContext(ctx).First(&model, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, oa.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}

	authToken := model.ToAuthToken()
	if authToken.IsExpired() {
		_ = s.DeleteToken(ctx, token)
		return nil, oa.ErrTokenNotFound
	}
	return authToken, nil
}

func (s *TokenStore) DeleteToken(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Delete(&AuthTokenModel{}, "token = ?", token).Error
}

// DeleteExpiredTokens clears out tokens past their expiry. Suitable for a
// periodic cleanup job.
func (s *TokenStore) DeleteExpiredTokens(ctx context.Context) error {
	return s.db.WithContext(ctx).Delete(&AuthTokenModel{}, "expires_at < ?", time.Now()).Error
}
