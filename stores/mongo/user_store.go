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

const userCollection = "users"

// UserStore implements oneaccount.UserStore on a MongoDB collection. Email
// uniqueness rides on a unique index; call EnsureIndexes once at startup.
type UserStore struct {
	coll *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{coll: db.Collection(userCollection)}
}

// EnsureIndexes creates the unique email index and the provider subject
// indexes.
func (s *UserStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "google_id", Value: 1}}},
		{Keys: bson.D{{Key: "github_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating user indexes: %w", err)
	}
	return nil
}

type mongoToken struct {
	Kind         string    `bson:"kind"`
	AccessToken  string    `bson:"access_token"`
	RefreshToken string    `bson:"refresh_token,omitempty"`
	Expiry       time.Time `bson:"expiry,omitempty"`
}

type mongoUser struct {
	ID           string `bson:"_id"`
	Email        string `bson:"email"`
	PasswordHash string `bson:"password_hash,omitempty"`

	Name     string `bson:"name,omitempty"`
	Gender   string `bson:"gender,omitempty"`
	Location string `bson:"location,omitempty"`
	Website  string `bson:"website,omitempty"`

	GoogleID string `bson:"google_id,omitempty"`
	GitHubID string `bson:"github_id,omitempty"`

	Tokens []mongoToken `bson:"tokens,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toDoc(u *oa.User) mongoUser {
	doc := mongoUser{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Name:         u.Profile.Name,
		Gender:       u.Profile.Gender,
		Location:     u.Profile.Location,
		Website:      u.Profile.Website,
		GoogleID:     u.GoogleID,
		GitHubID:     u.GitHubID,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	for _, t := range u.Tokens {
		doc.Tokens = append(doc.Tokens, mongoToken(t))
	}
	return doc
}

func (d *mongoUser) toUser() *oa.User {
	user := &oa.User{
		ID:           d.ID,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Profile: oa.Profile{
			Name:     d.Name,
			Gender:   d.Gender,
			Location: d.Location,
			Website:  d.Website,
		},
		GoogleID:  d.GoogleID,
		GitHubID:  d.GitHubID,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, t := range d.Tokens {
		user.Tokens = append(user.Tokens, oa.ProviderToken(t))
	}
	return user
}

func (s *UserStore) CreateUser(ctx context.Context, user *oa.User) error {
	if user.ID == "" {
		user.ID = oa.NewUserID()
	}
	user.Email = oa.NormalizeEmail(user.Email)
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := s.coll.InsertOne(ctx, toDoc(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return oa.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) GetUserById(ctx context.Context, userId string) (*oa.User, error) {
	return s.findOne(ctx, bson.M{"_id": userId})
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*oa.User, error) {
	return s.findOne(ctx, bson.M{"email": oa.NormalizeEmail(email)})
}

func (s *UserStore) GetUserByProvider(ctx context.Context, provider, subjectID string) (*oa.User, error) {
	if subjectID == "" {
		return nil, oa.ErrUserNotFound
	}
	switch provider {
	case "google":
		return s.findOne(ctx, bson.M{"google_id": subjectID})
	case "github":
		return s.findOne(ctx, bson.M{"github_id": subjectID})
	}
	return nil, oa.ErrUserNotFound
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*oa.User, error) {
	var doc mongoUser
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, oa.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toUser(), nil
}

func (s *UserStore) SaveUser(ctx context.Context, user *oa.User) error {
	user.Email = oa.NormalizeEmail(user.Email)
	user.UpdatedAt = time.Now()

	result, err := s.coll.ReplaceOne(ctx, bson.M{"_id": user.ID}, toDoc(user))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return oa.ErrEmailTaken
		}
		return fmt.Errorf("save user: %w", err)
	}
	if result.MatchedCount == 0 {
		return oa.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) DeleteUser(ctx context.Context, userId string) error {
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": userId})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if result.DeletedCount == 0 {
		return oa.ErrUserNotFound
	}
	return nil
}
