package gae

import (
	"context"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	oa "github.com/panyam/oneaccount"
)

// UserStore implements oneaccount.UserStore on Google Cloud Datastore.
// Email uniqueness is enforced with a reservation entity keyed by the
// normalized address, claimed in the same transaction as the user write.
type UserStore struct {
	client    *datastore.Client
	namespace string
}

func NewUserStore(client *datastore.Client, namespace string) *UserStore {
	return &UserStore{client: client, namespace: namespace}
}

func (s *UserStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *UserStore) CreateUser(ctx context.Context, user *oa.User) error {
	if user.ID == "" {
		user.ID = oa.NewUserID()
	}
	user.Email = oa.NormalizeEmail(user.Email)
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	userKey := s.namespacedKey(KindUser, user.ID)
	emailKey := s.namespacedKey(KindEmail, user.Email)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing EmailEntity
		err := tx.Get(emailKey, &existing)
		if err == nil {
			return oa.ErrEmailTaken
		}
		if err != datastore.ErrNoSuchEntity {
			return err
		}

		if _, err := tx.Put(emailKey, &EmailEntity{Key: emailKey, UserID: user.ID, CreatedAt: now}); err != nil {
			return err
		}
		_, err = tx.Put(userKey, UserToEntity(user, userKey))
		return err
	})
	return err
}

func (s *UserStore) GetUserById(ctx context.Context, userId string) (*oa.User, error) {
	key := s.namespacedKey(KindUser, userId)
	var entity UserEntity
	if err := s.client.Get(ctx, key, &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, oa.ErrUserNotFound
		}
		return nil, err
	}
	return entity.ToUser(), nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*oa.User, error) {
	emailKey := s.namespacedKey(KindEmail, oa.NormalizeEmail(email))
	var entry EmailEntity
	if err := s.client.Get(ctx, emailKey, &entry); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, oa.ErrUserNotFound
		}
		return nil, err
	}
	return s.GetUserById(ctx, entry.UserID)
}

func (s *UserStore) GetUserByProvider(ctx context.Context, provider, subjectID string) (*oa.User, error) {
	if subjectID == "" {
		return nil, oa.ErrUserNotFound
	}

	var field string
	switch provider {
	case "google":
		field = "google_id"
	case "github":
		field = "github_id"
	default:
		return nil, oa.ErrUserNotFound
	}

	query := datastore.NewQuery(KindUser).FilterField(field, "=", subjectID).Limit(1)
	if s.namespace != "" {
		query = query.Namespace(s.namespace)
	}

	it := s.client.Run(ctx, query)
	var entity UserEntity
	_, err := it.Next(&entity)
	if err == iterator.Done {
		return nil, oa.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return entity.ToUser(), nil
}

func (s *UserStore) SaveUser(ctx context.Context, user *oa.User) error {
	user.Email = oa.NormalizeEmail(user.Email)
	user.UpdatedAt = time.Now()
	userKey := s.namespacedKey(KindUser, user.ID)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing UserEntity
		if err := tx.Get(userKey, &existing); err != nil {
			if err == datastore.ErrNoSuchEntity {
				return oa.ErrUserNotFound
			}
			return err
		}
		user.CreatedAt = existing.CreatedAt

		if existing.Email != user.Email {
			newEmailKey := s.namespacedKey(KindEmail, user.Email)
			var taken EmailEntity
			err := tx.Get(newEmailKey, &taken)
			if err == nil && taken.UserID != user.ID {
				return oa.ErrEmailTaken
			}
			if err != nil && err != datastore.ErrNoSuchEntity {
				return err
			}
			if err := tx.Delete(s.namespacedKey(KindEmail, existing.Email)); err != nil && err != datastore.ErrNoSuchEntity {
				return err
			}
			if _, err := tx.Put(newEmailKey, &EmailEntity{Key: newEmailKey, UserID: user.ID, CreatedAt: time.Now()}); err != nil {
				return err
			}
		}

		_, err := tx.Put(userKey, UserToEntity(user, userKey))
		return err
	})
	return err
}

func (s *UserStore) DeleteUser(ctx context.Context, userId string) error {
	userKey := s.namespacedKey(KindUser, userId)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity UserEntity
		if err := tx.Get(userKey, &entity); err != nil {
			if err == datastore.ErrNoSuchEntity {
				return oa.ErrUserNotFound
			}
			return err
		}
		if err := tx.Delete(s.namespacedKey(KindEmail, entity.Email)); err != nil && err != datastore.ErrNoSuchEntity {
			return err
		}
		return tx.Delete(userKey)
	})
	return err
}

// TokenStore implements oneaccount.TokenStore on Google Cloud Datastore.
type TokenStore struct {
	client    *datastore.Client
	namespace string
}

func NewTokenStore(client *datastore.Client, namespace string) *TokenStore {
	return &TokenStore{client: client, namespace: namespace}
}

func (s *TokenStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *TokenStore) CreateToken(ctx context.Context, userID, email string, tokenType oa.TokenType, expiry time.Duration) (*oa.AuthToken, error) {
	token, err := oa.GenerateSecureToken()
	if err != nil {
		return nil, err
	}

	key := s.namespacedKey(KindAuthToken, token)
	now := time.Now()
	entity := &AuthTokenEntity{
		Key:       key,
		Type:      string(tokenType),
		UserID:    userID,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(expiry),
	}
	if _, err := s.client.Put(ctx, key, entity); err != nil {
		return nil, err
	}
	return entity.ToAuthToken(), nil
}

func (s *TokenStore) GetToken(ctx context.Context, token string) (*oa.AuthToken, error) {
	key := s.namespacedKey(KindAuthToken, token)
	var entity AuthTokenEntity
	if err := s.client.Get(ctx, key, &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, oa.ErrTokenNotFound
		}
		return nil, err
	}

	authToken := entity.ToAuthToken()
	if authToken.IsExpired() {
		_ = s.DeleteToken(ctx, token)
		return nil, oa.ErrTokenNotFound
	}
	return authToken, nil
}

func (s *TokenStore) DeleteToken(ctx context.Context, token string) error {
	return s.client.Delete(ctx, s.namespacedKey(KindAuthToken, token))
}

// DeleteUserTokens removes every token of one type belonging to a user.
func (s *TokenStore) DeleteUserTokens(ctx context.Context, userID string, tokenType oa.TokenType) error {
	query := datastore.NewQuery(KindAuthToken).
		FilterField("user_id", "=", userID).
		FilterField("type", "=", string(tokenType)).
		KeysOnly()
	if s.namespace != "" {
		query = query.Namespace(s.namespace)
	}

	keys, err := s.client.GetAll(ctx, query, nil)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.DeleteMulti(ctx, keys)
}
