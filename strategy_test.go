package oneaccount_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"

	oa "github.com/panyam/oneaccount"
	"github.com/panyam/oneaccount/stores"
)

func newLocalStrategy(t *testing.T) (*oa.LocalStrategy, *stores.FSUserStore) {
	tmpDir, err := os.MkdirTemp("", "oneaccount-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	users := stores.NewFSUserStore(tmpDir)
	return &oa.LocalStrategy{Users: users}, users
}

func TestLocalStrategyAuthenticate(t *testing.T) {
	strategy, users := newLocalStrategy(t)

	user := &oa.User{Email: "local@example.com"}
	if err := user.SetPassword("correct horse"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if err := users.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantCode string
		wantMsg  string
	}{
		{
			name:     "success",
			email:    "local@example.com",
			password: "correct horse",
		},
		{
			name:     "case-insensitive email",
			email:    "LOCAL@EXAMPLE.COM",
			password: "correct horse",
		},
		{
			name:     "unknown email",
			email:    "missing@example.com",
			password: "correct horse",
			wantCode: oa.ErrCodeEmailNotFound,
			wantMsg:  "Email missing@example.com not found.",
		},
		{
			name:     "wrong password",
			email:    "local@example.com",
			password: "incorrect horse",
			wantCode: oa.ErrCodeInvalidCreds,
			wantMsg:  "Invalid email or password.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := strategy.Authenticate(context.Background(), tt.email, tt.password)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Authenticate: %v", err)
				}
				if got.ID != user.ID {
					t.Errorf("Expected user %s, got %s", user.ID, got.ID)
				}
				return
			}

			var authErr *oa.AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("Expected *AuthError, got %v", err)
			}
			if authErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", authErr.Code, tt.wantCode)
			}
			if authErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", authErr.Message, tt.wantMsg)
			}
		})
	}
}

type fakeRedirectStrategy struct {
	name string
}

func (f *fakeRedirectStrategy) Provider() string { return f.name }

func (f *fakeRedirectStrategy) Begin(w http.ResponseWriter, r *http.Request) {}

func (f *fakeRedirectStrategy) Callback(w http.ResponseWriter, r *http.Request) {}

func TestStrategyRegistry(t *testing.T) {
	reg := oa.NewStrategyRegistry()
	local, _ := newLocalStrategy(t)
	reg.Use(local)
	reg.Use(&fakeRedirectStrategy{name: "acme"})

	if _, ok := reg.Get("local"); !ok {
		t.Error("local strategy should be registered")
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("unregistered provider should not resolve")
	}

	if _, ok := reg.Redirect("acme"); !ok {
		t.Error("acme should resolve as a redirect strategy")
	}
	if _, ok := reg.Redirect("local"); ok {
		t.Error("local is not a redirect strategy")
	}

	// Re-registering replaces.
	replacement := &fakeRedirectStrategy{name: "acme"}
	reg.Use(replacement)
	got, _ := reg.Redirect("acme")
	if got != replacement {
		t.Error("Use should replace an existing registration")
	}
}
