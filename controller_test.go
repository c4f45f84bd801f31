package oneaccount_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/alexedwards/scs/v2"

	oa "github.com/panyam/oneaccount"
	"github.com/panyam/oneaccount/stores"
)

// captureEmailSender records reset links instead of sending them.
type captureEmailSender struct {
	lastTo   string
	lastLink string
}

func (c *captureEmailSender) SendPasswordResetEmail(to, resetLink string) error {
	c.lastTo = to
	c.lastLink = resetLink
	return nil
}

type testEnv struct {
	server   *httptest.Server
	client   *http.Client
	users    *stores.FSUserStore
	emails   *captureEmailSender
	accounts *oa.Accounts
	tmpDir   string
	baseURL  string
}

// setupTestAccounts wires a complete account component on temp-dir stores
// and returns a cookie-carrying client pointed at it.
func setupTestAccounts(t *testing.T) *testEnv {
	tmpDir, err := os.MkdirTemp("", "oneaccount-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	users := stores.NewFSUserStore(tmpDir)
	session := scs.New()

	auth := oa.NewAuth(users, session)
	auth.JWTSecretKey = "test-secret-key"
	auth.Strategies.Use(&oa.LocalStrategy{Users: users})

	emails := &captureEmailSender{}
	accounts := oa.NewAccounts(users, auth)
	accounts.Tokens = stores.NewFSTokenStore(tmpDir)
	accounts.EmailSender = emails

	server := httptest.NewServer(accounts.Handler())
	accounts.BaseURL = server.URL

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("Failed to create cookie jar: %v", err)
	}

	env := &testEnv{
		server:   server,
		client:   &http.Client{Jar: jar},
		users:    users,
		emails:   emails,
		accounts: accounts,
		tmpDir:   tmpDir,
		baseURL:  server.URL,
	}
	t.Cleanup(func() {
		server.Close()
		if err := os.RemoveAll(tmpDir); err != nil {
			t.Logf("Warning: failed to cleanup temp dir: %v", err)
		}
	})
	return env
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.Get(e.baseURL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp, readBody(t, resp)
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.PostForm(e.baseURL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, readBody(t, resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return string(body)
}

func (e *testEnv) signup(t *testing.T, email, password string) {
	t.Helper()
	resp, body := e.postForm(t, "/signup", url.Values{
		"email":           {email},
		"password":        {password},
		"confirmPassword": {password},
	})
	if resp.Request.URL.Path != "/" {
		t.Fatalf("Expected signup to land on /, got %s (body: %s)", resp.Request.URL.Path, body)
	}
}

func TestSignupFlow(t *testing.T) {
	env := setupTestAccounts(t)
	env.signup(t, "taken@example.com", "password123")
	env.get(t, "/logout")

	tests := []struct {
		name      string
		formData  map[string]string
		wantPath  string
		checkBody string
	}{
		{
			name: "duplicate email",
			formData: map[string]string{
				"email":           "taken@example.com",
				"password":        "password123",
				"confirmPassword": "password123",
			},
			wantPath:  "/signup",
			checkBody: "Account with that email address already exists.",
		},
		{
			name: "short password",
			formData: map[string]string{
				"email":           "new@example.com",
				"password":        "abc",
				"confirmPassword": "abc",
			},
			wantPath:  "/signup",
			checkBody: "Password must be at least 4 characters long",
		},
		{
			name: "mismatched confirmation",
			formData: map[string]string{
				"email":           "new@example.com",
				"password":        "password123",
				"confirmPassword": "different",
			},
			wantPath:  "/signup",
			checkBody: "Passwords do not match",
		},
		{
			name: "invalid email",
			formData: map[string]string{
				"email":           "not-an-email",
				"password":        "password123",
				"confirmPassword": "password123",
			},
			wantPath:  "/signup",
			checkBody: "Email is not valid",
		},
		{
			name: "successful signup",
			formData: map[string]string{
				"email":           "new@example.com",
				"password":        "password123",
				"confirmPassword": "password123",
			},
			wantPath:  "/",
			checkBody: "Account Management",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{}
			for k, v := range tt.formData {
				form.Set(k, v)
			}
			resp, body := env.postForm(t, "/signup", form)
			if resp.Request.URL.Path != tt.wantPath {
				t.Errorf("Expected to land on %s, got %s", tt.wantPath, resp.Request.URL.Path)
			}
			if tt.checkBody != "" && !strings.Contains(body, tt.checkBody) {
				t.Errorf("Expected body to contain %q, got: %s", tt.checkBody, body)
			}
		})
	}
}

func TestLoginFlow(t *testing.T) {
	env := setupTestAccounts(t)
	env.signup(t, "login@example.com", "password123")
	env.get(t, "/logout")

	tests := []struct {
		name      string
		email     string
		password  string
		wantPath  string
		checkBody string
	}{
		{
			name:      "unknown email",
			email:     "nobody@example.com",
			password:  "password123",
			wantPath:  "/login",
			checkBody: "Email nobody@example.com not found.",
		},
		{
			name:      "wrong password",
			email:     "login@example.com",
			password:  "wrongpass",
			wantPath:  "/login",
			checkBody: "Invalid email or password.",
		},
		{
			name:      "blank password",
			email:     "login@example.com",
			password:  "",
			wantPath:  "/login",
			checkBody: "Password cannot be blank",
		},
		{
			name:      "uppercase email logs in",
			email:     "LOGIN@Example.COM",
			password:  "password123",
			wantPath:  "/",
			checkBody: "Success! You are logged in.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.postForm(t, "/login", url.Values{
				"email":    {tt.email},
				"password": {tt.password},
			})
			if resp.Request.URL.Path != tt.wantPath {
				t.Errorf("Expected to land on %s, got %s", tt.wantPath, resp.Request.URL.Path)
			}
			if !strings.Contains(body, tt.checkBody) {
				t.Errorf("Expected body to contain %q, got: %s", tt.checkBody, body)
			}
			// A test case that logged in would leak into the next one.
			if tt.wantPath == "/" {
				env.get(t, "/logout")
			}
		})
	}
}

func TestLogoutEndsSession(t *testing.T) {
	env := setupTestAccounts(t)
	env.signup(t, "bye@example.com", "password123")

	resp, _ := env.get(t, "/logout")
	if resp.Request.URL.Path != "/" && resp.Request.URL.Path != "/login" {
		t.Errorf("Unexpected landing page after logout: %s", resp.Request.URL.Path)
	}

	// The account page must now bounce to login.
	resp, _ = env.get(t, "/")
	if resp.Request.URL.Path != "/login" {
		t.Errorf("Expected redirect to /login, landed on %s", resp.Request.URL.Path)
	}
}

func TestLoginReturnsToRequestedPage(t *testing.T) {
	env := setupTestAccounts(t)
	env.signup(t, "returnto@example.com", "password123")
	env.get(t, "/logout")

	// Hitting the protected page logged-out records the target.
	resp, _ := env.get(t, "/")
	if resp.Request.URL.Path != "/login" {
		t.Fatalf("Expected gate to land on /login, got %s", resp.Request.URL.Path)
	}

	resp, body := env.postForm(t, "/login", url.Values{
		"email":    {"returnto@example.com"},
		"password": {"password123"},
	})
	if resp.Request.URL.Path != "/" {
		t.Errorf("Expected login to return to /, got %s", resp.Request.URL.Path)
	}
	if !strings.Contains(body, "Account Management") {
		t.Errorf("Expected account page after login, got: %s", body)
	}
}

func TestProfileUpdate(t *testing.T) {
	env := setupTestAccounts(t)
	env.signup(t, "profile@example.com", "password123")

	resp, body := env.postForm(t, "/profile", url.Values{
		"email":    {"profile@example.com"},
		"name":     {"Ada Lovelace"},
		"gender":   {"female"},
		"location": {"London"},
		"website":  {"https://example.com"},
	})
	if resp.Request.URL.Path != "/" {
		t.Fatalf("Expected redirect to /, got %s", resp.Request.URL.Path)
	}
	if !strings.Contains(body, "Profile information has been updated.") {
		t.Errorf("Expected success flash, got: %s", body)
	}
	if !strings.Contains(body, "Ada Lovelace") {
		t.Errorf("Expected updated name on page, got: %s", body)
	}

	// Omitted fields blank their stored values.
	_, body = env.postForm(t, "/profile", url.Values{
		"email": {"profile@example.com"},
	})
	if strings.Contains(body, "Ada Lovelace") {
		t.Errorf("Expected name to be blanked, still present: %s", body)
	}

	user, err := env.users.GetUserByEmail(context.Background(), "profile@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if user.Profile.Name != "" || user.Profile.Location != "" {
		t.Errorf("Expected blanked profile, got %+v", user.Profile)
	}
}

func TestProfileEmailConflict(t *testing.T) {
	env := setupTestAccounts(t)
	env.signup(t, "first@example.com", "password123")
	env.get(t, "/logout")
	env.signup(t, "second@example.com", "password123")

	_, body := env.postForm(t, "/profile", url.Values{
		"email": {"first@example.com"},
	})
	if !strings.Contains(body, "The email address you have entered is already associated with an account.") {
		t.Errorf("Expected conflict flash, got: %s", body)
	}

	// The conflicting update must not have gone through.
	if _, err := env.users.GetUserByEmail(context.Background(), "second@example.com"); err != nil {
		t.Errorf("Original email should still resolve: %v", err)
	}
}

func TestPasswordChange(t *testing.T) {
	env := setupTestAccounts(t)
	env.signup(t, "pw@example.com", "oldpassword")

	_, body := env.postForm(t, "/password", url.Values{
		"password":        {"newpassword"},
		"confirmPassword": {"newpassword"},
	})
	if !strings.Contains(body, "Password has been changed.") {
		t.Errorf("Expected success flash, got: %s", body)
	}

	env.get(t, "/logout")

	_, body = env.postForm(t, "/login", url.Values{
		"email":    {"pw@example.com"},
		"password": {"oldpassword"},
	})
	if !strings.Contains(body, "Invalid email or password.") {
		t.Errorf("Old password should be rejected, got: %s", body)
	}

	resp, _ := env.postForm(t, "/login", url.Values{
		"email":    {"pw@example.com"},
		"password": {"newpassword"},
	})
	if resp.Request.URL.Path != "/" {
		t.Errorf("New password should log in, landed on %s", resp.Request.URL.Path)
	}
}

func TestDeleteAccount(t *testing.T) {
	env := setupTestAccounts(t)
	env.signup(t, "gone@example.com", "password123")

	resp, body := env.postForm(t, "/delete", url.Values{})
	if !strings.Contains(body, "Your account has been deleted.") {
		t.Errorf("Expected deletion flash, got: %s", body)
	}
	_ = resp

	if _, err := env.users.GetUserByEmail(context.Background(), "gone@example.com"); !errors.Is(err, oa.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound after delete, got %v", err)
	}

	resp, _ = env.get(t, "/")
	if resp.Request.URL.Path != "/login" {
		t.Errorf("Deleted account session should be gone, landed on %s", resp.Request.URL.Path)
	}
}

var resetLinkRe = regexp.MustCompile(`/reset/([0-9a-f]+)`)

func TestForgotResetPasswordFlow(t *testing.T) {
	env := setupTestAccounts(t)
	env.signup(t, "forgot@example.com", "oldpassword")
	env.get(t, "/logout")

	// Unknown email: same response, no email sent.
	_, body := env.postForm(t, "/forgot", url.Values{"email": {"unknown@example.com"}})
	if !strings.Contains(body, "a password reset link has been sent") {
		t.Errorf("Expected neutral flash, got: %s", body)
	}
	if env.emails.lastLink != "" {
		t.Errorf("No email should be sent for unknown address, got %s", env.emails.lastLink)
	}

	_, body = env.postForm(t, "/forgot", url.Values{"email": {"forgot@example.com"}})
	if !strings.Contains(body, "a password reset link has been sent") {
		t.Errorf("Expected neutral flash, got: %s", body)
	}
	if env.emails.lastTo != "forgot@example.com" {
		t.Fatalf("Expected reset email to forgot@example.com, got %q", env.emails.lastTo)
	}

	match := resetLinkRe.FindStringSubmatch(env.emails.lastLink)
	if match == nil {
		t.Fatalf("No reset token in link %q", env.emails.lastLink)
	}
	token := match[1]

	resp, body := env.get(t, "/reset/"+token)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Reset Password") {
		t.Fatalf("Expected reset form, got %d: %s", resp.StatusCode, body)
	}

	resp, body = env.postForm(t, "/reset/"+token, url.Values{
		"password":        {"brandnewpass"},
		"confirmPassword": {"brandnewpass"},
	})
	if resp.Request.URL.Path != "/" {
		t.Errorf("Expected reset to land on /, got %s", resp.Request.URL.Path)
	}
	if !strings.Contains(body, "Success! Your password has been changed.") {
		t.Errorf("Expected success flash, got: %s", body)
	}

	// The token is single-use.
	env.get(t, "/logout")
	resp, body = env.get(t, "/reset/"+token)
	if resp.Request.URL.Path != "/forgot" {
		t.Errorf("Used token should bounce to /forgot, got %s", resp.Request.URL.Path)
	}
	if !strings.Contains(body, "Password reset token is invalid or has expired.") {
		t.Errorf("Expected invalid-token flash, got: %s", body)
	}

	resp, _ = env.postForm(t, "/login", url.Values{
		"email":    {"forgot@example.com"},
		"password": {"brandnewpass"},
	})
	if resp.Request.URL.Path != "/" {
		t.Errorf("New password should log in, landed on %s", resp.Request.URL.Path)
	}
}
