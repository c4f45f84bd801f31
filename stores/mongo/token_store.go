package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	oa "github.com/panyam/oneaccount"
)

const tokenCollection = "auth_tokens"

// TokenStore implements oneaccount.TokenStore on a MongoDB collection. A
// TTL index lets Mongo expire tokens on its own.
type TokenStore struct {
	coll *mongo.Collection
}

func NewTokenStore(db *mongo.Database) *TokenStore {
	return &TokenStore{coll: db.Collection(tokenCollection)}
}

// EnsureIndexes creates the TTL index on the expiry field.
func (s *TokenStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("creating token indexes: %w", err)
	}
	return nil
}

type mongoAuthToken struct {
	Token     string    `bson:"_id"`
	Type      string    `bson:"type"`
	UserID    string    `bson:"user_id"`
	Email     string    `bson:"email"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

func (s *TokenStore) CreateToken(ctx context.Context, userID, email string, tokenType oa.TokenType, expiry time.Duration) (*oa.AuthToken, error) {
	token, err := oa.GenerateSecureToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	doc := mongoAuthToken{
		Token:     token,
		Type:      string(tokenType),
		UserID:    userID,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(expiry),
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert token: %w", err)
	}
	return &oa.AuthToken{
		Token:     token,
		Type:      tokenType,
		UserID:    userID,
		Email:     email,
		CreatedAt: doc.CreatedAt,
		ExpiresAt: doc.ExpiresAt,
	}, nil
}

func (s *TokenStore) GetToken(ctx context.Context, token string) (*oa.AuthToken, error) {
	var doc mongoAuthToken
	if err := s.coll.FindOne(ctx, bson.M{"_id": token}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, oa.ErrTokenNotFound
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	authToken := &oa.AuthToken{
		Token:     doc.Token,
		Type:      oa.TokenType(doc.Type),
		UserID:    doc.UserID,
		Email:     doc.Email,
		CreatedAt: doc.CreatedAt,
		ExpiresAt: doc.ExpiresAt,
	}

	// The TTL monitor is not instantaneous; double-check here.
	if authToken.IsExpired() {
		_ = s.DeleteToken(ctx, token)
		return nil, oa.ErrTokenNotFound
	}
	return authToken, nil
}

func (s *TokenStore) DeleteToken(ctx context.Context, token string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": token})
	return err
}

// DeleteUserTokens removes every token of one type belonging to a user.
func (s *TokenStore) DeleteUserTokens(ctx context.Context, userID string, tokenType oa.TokenType) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{"user_id": userID, "type": string(tokenType)})
	return err
}
