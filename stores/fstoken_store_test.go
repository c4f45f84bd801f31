package stores_test

import (
	"context"
	"errors"
	"testing"
	"time"

	oa "github.com/panyam/oneaccount"
	"github.com/panyam/oneaccount/stores"
)

func TestFSTokenStoreLifecycle(t *testing.T) {
	store := stores.NewFSTokenStore(t.TempDir())
	ctx := context.Background()

	token, err := store.CreateToken(ctx, "user-1", "t@example.com", oa.TokenTypePasswordReset, time.Hour)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if len(token.Token) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(token.Token))
	}

	got, err := store.GetToken(ctx, token.Token)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got.UserID != "user-1" || got.Email != "t@example.com" {
		t.Errorf("GetToken = %+v", got)
	}
	if !got.IsValid(oa.TokenTypePasswordReset) {
		t.Error("Fresh token should be valid")
	}

	if err := store.DeleteToken(ctx, token.Token); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if _, err := store.GetToken(ctx, token.Token); !errors.Is(err, oa.ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound, got %v", err)
	}

	// Deleting again is a no-op.
	if err := store.DeleteToken(ctx, token.Token); err != nil {
		t.Errorf("Repeated delete should not error: %v", err)
	}
}

func TestFSTokenStoreExpiry(t *testing.T) {
	store := stores.NewFSTokenStore(t.TempDir())
	ctx := context.Background()

	token, err := store.CreateToken(ctx, "user-1", "t@example.com", oa.TokenTypePasswordReset, -time.Minute)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	if _, err := store.GetToken(ctx, token.Token); !errors.Is(err, oa.ErrTokenNotFound) {
		t.Errorf("Expired token should be reported missing, got %v", err)
	}
}

func TestFSTokenStoreDeleteUserTokens(t *testing.T) {
	store := stores.NewFSTokenStore(t.TempDir())
	ctx := context.Background()

	mine1, _ := store.CreateToken(ctx, "user-1", "a@example.com", oa.TokenTypePasswordReset, time.Hour)
	mine2, _ := store.CreateToken(ctx, "user-1", "a@example.com", oa.TokenTypePasswordReset, time.Hour)
	theirs, _ := store.CreateToken(ctx, "user-2", "b@example.com", oa.TokenTypePasswordReset, time.Hour)

	if err := store.DeleteUserTokens(ctx, "user-1", oa.TokenTypePasswordReset); err != nil {
		t.Fatalf("DeleteUserTokens: %v", err)
	}

	for _, tok := range []string{mine1.Token, mine2.Token} {
		if _, err := store.GetToken(ctx, tok); !errors.Is(err, oa.ErrTokenNotFound) {
			t.Errorf("Token %s should be gone, got %v", tok, err)
		}
	}
	if _, err := store.GetToken(ctx, theirs.Token); err != nil {
		t.Errorf("Other user's token must survive: %v", err)
	}
}
