package stores

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	oa "github.com/panyam/oneaccount"
)

// FSUserStore stores users as JSON files: one file per user under users/,
// plus an emails/ index mapping each address to its user id so email
// uniqueness survives restarts. A process-wide mutex serializes writes.
type FSUserStore struct {
	StoragePath string

	mu sync.Mutex
}

func NewFSUserStore(storagePath string) *FSUserStore {
	return &FSUserStore{StoragePath: storagePath}
}

func (s *FSUserStore) userPath(userId string) string {
	return filepath.Join(s.StoragePath, "users", userId+".json")
}

func (s *FSUserStore) emailPath(email string) string {
	return filepath.Join(s.StoragePath, "emails", url.PathEscape(email)+".json")
}

type emailIndexEntry struct {
	UserId string `json:"user_id"`
}

// fsUserRecord is the on-disk shape. The password hash is excluded from the
// user's own JSON representation, so the store carries it separately.
type fsUserRecord struct {
	oa.User
	PasswordHash string `json:"password_hash,omitempty"`
}

func (s *FSUserStore) writeUser(user *oa.User) error {
	record := fsUserRecord{User: *user, PasswordHash: user.PasswordHash}
	return writeJSONFile(s.userPath(user.ID), record)
}

func (s *FSUserStore) CreateUser(ctx context.Context, user *oa.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = oa.NewUserID()
	}
	user.Email = oa.NormalizeEmail(user.Email)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	if _, err := os.Stat(s.emailPath(user.Email)); err == nil {
		return oa.ErrEmailTaken
	}

	if err := s.writeUser(user); err != nil {
		return err
	}
	return writeJSONFile(s.emailPath(user.Email), emailIndexEntry{UserId: user.ID})
}

func (s *FSUserStore) GetUserById(ctx context.Context, userId string) (*oa.User, error) {
	var record fsUserRecord
	if err := readJSONFile(s.userPath(userId), &record); err != nil {
		if os.IsNotExist(err) {
			return nil, oa.ErrUserNotFound
		}
		return nil, err
	}
	user := record.User
	user.PasswordHash = record.PasswordHash
	return &user, nil
}

func (s *FSUserStore) GetUserByEmail(ctx context.Context, email string) (*oa.User, error) {
	email = oa.NormalizeEmail(email)
	var entry emailIndexEntry
	if err := readJSONFile(s.emailPath(email), &entry); err != nil {
		if os.IsNotExist(err) {
			return nil, oa.ErrUserNotFound
		}
		return nil, err
	}
	return s.GetUserById(ctx, entry.UserId)
}

// GetUserByProvider scans the user files for a matching provider subject
// id. Linear, but provider login is rare enough that an index is not worth
// the bookkeeping at this store's scale.
func (s *FSUserStore) GetUserByProvider(ctx context.Context, provider, subjectID string) (*oa.User, error) {
	if subjectID == "" {
		return nil, oa.ErrUserNotFound
	}
	usersDir := filepath.Join(s.StoragePath, "users")
	entries, err := os.ReadDir(usersDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, oa.ErrUserNotFound
		}
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var record fsUserRecord
		if err := readJSONFile(filepath.Join(usersDir, entry.Name()), &record); err != nil {
			continue
		}
		if record.ProviderSubject(provider) == subjectID {
			user := record.User
			user.PasswordHash = record.PasswordHash
			return &user, nil
		}
	}
	return nil, oa.ErrUserNotFound
}

func (s *FSUserStore) SaveUser(ctx context.Context, user *oa.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.GetUserById(ctx, user.ID)
	if err != nil {
		return err
	}

	user.Email = oa.NormalizeEmail(user.Email)
	if user.Email != existing.Email {
		var entry emailIndexEntry
		if err := readJSONFile(s.emailPath(user.Email), &entry); err == nil && entry.UserId != user.ID {
			return oa.ErrEmailTaken
		}
		if err := writeJSONFile(s.emailPath(user.Email), emailIndexEntry{UserId: user.ID}); err != nil {
			return err
		}
		os.Remove(s.emailPath(existing.Email))
	}

	user.UpdatedAt = time.Now()
	return s.writeUser(user)
}

func (s *FSUserStore) DeleteUser(ctx context.Context, userId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.GetUserById(ctx, userId)
	if err != nil {
		return err
	}
	os.Remove(s.emailPath(user.Email))
	return os.Remove(s.userPath(userId))
}
