package stores

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	oa "github.com/panyam/oneaccount"
)

// FSTokenStore stores one-time auth tokens (password reset links) as JSON
// files under tokens/.
type FSTokenStore struct {
	StoragePath string
}

func NewFSTokenStore(storagePath string) *FSTokenStore {
	return &FSTokenStore{StoragePath: storagePath}
}

func (s *FSTokenStore) tokenPath(token string) string {
	return filepath.Join(s.StoragePath, "tokens", token+".json")
}

func (s *FSTokenStore) CreateToken(ctx context.Context, userID, email string, tokenType oa.TokenType, expiry time.Duration) (*oa.AuthToken, error) {
	token, err := oa.GenerateSecureToken()
	if err != nil {
		return nil, err
	}

	authToken := &oa.AuthToken{
		Token:     token,
		Type:      tokenType,
		UserID:    userID,
		Email:     email,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(expiry),
	}
	if err := writeJSONFile(s.tokenPath(token), authToken); err != nil {
		return nil, err
	}
	return authToken, nil
}

func (s *FSTokenStore) GetToken(ctx context.Context, token string) (*oa.AuthToken, error) {
	var authToken oa.AuthToken
	if err := readJSONFile(s.tokenPath(token), &authToken); err != nil {
		if os.IsNotExist(err) {
			return nil, oa.ErrTokenNotFound
		}
		return nil, err
	}

	// Expired tokens are garbage-collected on read.
	if authToken.IsExpired() {
		_ = s.DeleteToken(ctx, token)
		return nil, oa.ErrTokenNotFound
	}
	return &authToken, nil
}

func (s *FSTokenStore) DeleteToken(ctx context.Context, token string) error {
	err := os.Remove(s.tokenPath(token))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// DeleteUserTokens removes every token of one type belonging to a user,
// e.g. to invalidate outstanding reset links after a password change.
func (s *FSTokenStore) DeleteUserTokens(ctx context.Context, userID string, tokenType oa.TokenType) error {
	tokensDir := filepath.Join(s.StoragePath, "tokens")
	entries, err := os.ReadDir(tokensDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var authToken oa.AuthToken
		if err := readJSONFile(filepath.Join(tokensDir, entry.Name()), &authToken); err != nil {
			continue
		}
		if authToken.UserID == userID && authToken.Type == tokenType {
			_ = os.Remove(filepath.Join(tokensDir, entry.Name()))
		}
	}
	return nil
}
