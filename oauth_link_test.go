package oneaccount_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	oa "github.com/panyam/oneaccount"
)

// stubGithubStrategy short-circuits the provider round trip: its callback
// hands canned user info straight to the controller, exercising the real
// link-or-login-or-create pipeline without a provider server.
type stubGithubStrategy struct {
	accounts *oa.Accounts
	info     map[string]any
}

func (s *stubGithubStrategy) Provider() string { return "github" }

func (s *stubGithubStrategy) Begin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/auth/github/callback", http.StatusFound)
}

func (s *stubGithubStrategy) Callback(w http.ResponseWriter, r *http.Request) {
	token := &oauth2.Token{AccessToken: "stub-access-token"}
	s.accounts.HandleOAuthUser("oauth", "github", token, s.info, w, r)
}

func setupOAuthEnv(t *testing.T, info map[string]any) *testEnv {
	env := setupTestAccounts(t)
	env.accounts.Auth.Strategies.Use(&stubGithubStrategy{accounts: env.accounts, info: info})
	return env
}

func TestOAuthCreatesAccountAndLogsIn(t *testing.T) {
	env := setupOAuthEnv(t, map[string]any{
		// GitHub returns numeric ids.
		"id":    float64(12345),
		"email": "OAuth@Example.com",
		"name":  "Octo Cat",
	})

	resp, body := env.get(t, "/auth/github")
	if resp.Request.URL.Path != "/" {
		t.Fatalf("Expected callback to land on /, got %s (body: %s)", resp.Request.URL.Path, body)
	}
	if !strings.Contains(body, "Account Management") {
		t.Errorf("Expected account page, got: %s", body)
	}

	user, err := env.users.GetUserByEmail(context.Background(), "oauth@example.com")
	if err != nil {
		t.Fatalf("Created user not found: %v", err)
	}
	if user.GitHubID != "12345" {
		t.Errorf("GitHubID = %q, want %q", user.GitHubID, "12345")
	}
	if tok, ok := user.TokenFor("github"); !ok || tok.AccessToken != "stub-access-token" {
		t.Errorf("Expected stored github token, got %+v (ok=%v)", tok, ok)
	}
	if user.Profile.Name != "Octo Cat" {
		t.Errorf("Name = %q, want %q", user.Profile.Name, "Octo Cat")
	}
}

func TestOAuthLogsInExistingAccountBySubject(t *testing.T) {
	env := setupOAuthEnv(t, map[string]any{
		"id":    "777",
		"email": "repeat@example.com",
	})

	env.get(t, "/auth/github")
	first, err := env.users.GetUserByProvider(context.Background(), "github", "777")
	if err != nil {
		t.Fatalf("GetUserByProvider: %v", err)
	}
	env.get(t, "/logout")

	resp, body := env.get(t, "/auth/github")
	if resp.Request.URL.Path != "/" {
		t.Fatalf("Expected repeat login to land on /, got %s", resp.Request.URL.Path)
	}
	if !strings.Contains(body, "Success! You are logged in.") {
		t.Errorf("Expected login flash, got: %s", body)
	}

	again, err := env.users.GetUserByProvider(context.Background(), "github", "777")
	if err != nil {
		t.Fatalf("GetUserByProvider: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("Repeat callback created a new account: %s vs %s", again.ID, first.ID)
	}
}

func TestOAuthLinksToSignedInAccount(t *testing.T) {
	env := setupOAuthEnv(t, map[string]any{
		"id":    "424242",
		"email": "elsewhere@example.com",
	})
	env.signup(t, "linkme@example.com", "password123")

	resp, body := env.get(t, "/auth/github")
	if resp.Request.URL.Path != "/" {
		t.Fatalf("Expected link to land on /, got %s", resp.Request.URL.Path)
	}
	if !strings.Contains(body, "github account has been linked.") {
		t.Errorf("Expected link flash, got: %s", body)
	}

	user, err := env.users.GetUserByEmail(context.Background(), "linkme@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if user.GitHubID != "424242" {
		t.Errorf("GitHubID = %q, want %q", user.GitHubID, "424242")
	}

	// And the unlink route now passes the authorization gate.
	resp, body = env.get(t, "/unlink/github")
	if resp.Request.URL.Path != "/" {
		t.Fatalf("Expected unlink to land on /, got %s", resp.Request.URL.Path)
	}
	if !strings.Contains(body, "github account has been unlinked.") {
		t.Errorf("Expected unlink flash, got: %s", body)
	}

	user, _ = env.users.GetUserByEmail(context.Background(), "linkme@example.com")
	if user.GitHubID != "" || len(user.Tokens) != 0 {
		t.Errorf("Expected cleared linkage, got subject %q, tokens %v", user.GitHubID, user.Tokens)
	}
}

func TestOAuthEmailConflictRefused(t *testing.T) {
	env := setupOAuthEnv(t, map[string]any{
		"id":    "999",
		"email": "claimed@example.com",
	})
	env.signup(t, "claimed@example.com", "password123")
	env.get(t, "/logout")

	resp, body := env.get(t, "/auth/github")
	if resp.Request.URL.Path != "/login" {
		t.Fatalf("Expected conflict to land on /login, got %s", resp.Request.URL.Path)
	}
	if !strings.Contains(body, "There is already an account using this email address.") {
		t.Errorf("Expected conflict flash, got: %s", body)
	}

	// The local account must be untouched.
	user, err := env.users.GetUserByEmail(context.Background(), "claimed@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if user.GitHubID != "" {
		t.Errorf("Conflict must not link, got subject %q", user.GitHubID)
	}
}

func TestLoginRateLimiter(t *testing.T) {
	env := setupTestAccounts(t)
	env.signup(t, "limited@example.com", "password123")
	env.get(t, "/logout")

	env.accounts.RateLimiter = denyAllLimiter{}

	_, body := env.postForm(t, "/login", url.Values{
		"email":    {"limited@example.com"},
		"password": {"password123"},
	})
	if !strings.Contains(body, "Too many login attempts.") {
		t.Errorf("Expected rate limit flash, got: %s", body)
	}
}

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(ctx context.Context, key string) bool { return false }
