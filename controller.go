package oneaccount

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Accounts is the account controller: one handler per user-facing
// operation. Handlers hold no state between invocations; everything flows
// through the collaborators.
type Accounts struct {
	Users UserStore
	Auth  *Auth
	Flash *Flash

	// Renderer draws the pages. Defaults to the built-in plain-HTML one.
	Renderer Renderer

	// Optional token store + email sender enabling the forgot/reset
	// password flow. Both must be set for the flow to do anything.
	Tokens      TokenStore
	EmailSender SendEmail

	// BaseURL is used to build absolute links in outgoing emails.
	BaseURL string

	// Optional throttle consulted by the login handler, keyed by email.
	RateLimiter RateLimiter

	// OnAuthError lets hosts intercept recoverable credential failures
	// (wrong password, unknown email) before the default flash-and-redirect.
	OnAuthError AuthErrorHandler

	// OnServerError is called for unexpected infrastructure errors. If nil,
	// a plain 500 is written.
	OnServerError func(w http.ResponseWriter, r *http.Request, err error)

	Logger zerolog.Logger
}

// NewAccounts wires a controller with defaults filled in.
func NewAccounts(users UserStore, auth *Auth) *Accounts {
	a := &Accounts{Users: users, Auth: auth}
	return a.EnsureDefaults()
}

// EnsureDefaults fills in unset collaborators.
func (a *Accounts) EnsureDefaults() *Accounts {
	if a.Flash == nil && a.Auth != nil {
		a.Flash = &Flash{Session: a.Auth.Session}
	}
	if a.Renderer == nil {
		a.Renderer = NewBasicRenderer()
	}
	return a
}

// GetLogin renders the login page, skipping straight home for an already
// authenticated session.
func (a *Accounts) GetLogin(w http.ResponseWriter, r *http.Request) {
	if a.Auth.CurrentUser(r) != nil {
		http.Redirect(w, r, a.Auth.HomePath(), http.StatusFound)
		return
	}
	a.render(w, r, "login", "Login", nil)
}

// PostLogin authenticates email/password and establishes the session.
func (a *Accounts) PostLogin(w http.ResponseWriter, r *http.Request) {
	form := LoginForm{
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	}
	if msgs := ValidateForm(form, map[string]string{
		"Email":    "Email is not valid",
		"Password": "Password cannot be blank",
	}); len(msgs) > 0 {
		a.Flash.Add(r.Context(), FlashErrors, msgs...)
		http.Redirect(w, r, a.Auth.LoginPath(), http.StatusSeeOther)
		return
	}

	email := NormalizeEmail(form.Email)
	if a.RateLimiter != nil && !a.RateLimiter.Allow(r.Context(), "login:"+email) {
		a.Flash.Add(r.Context(), FlashErrors, "Too many login attempts. Please try again later.")
		http.Redirect(w, r, a.Auth.LoginPath(), http.StatusSeeOther)
		return
	}

	user, err := a.Auth.AuthenticateLocal(r.Context(), email, form.Password)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			if a.OnAuthError != nil && a.OnAuthError(authErr, w, r) {
				return
			}
			a.Flash.Add(r.Context(), FlashErrors, authErr.Message)
			http.Redirect(w, r, a.Auth.LoginPath(), http.StatusSeeOther)
			return
		}
		a.serverError(w, r, err)
		return
	}

	a.Auth.LoginUser(user, w, r)
	a.Flash.Add(r.Context(), FlashSuccess, "Success! You are logged in.")
	http.Redirect(w, r, a.Auth.ConsumeReturnTo(r), http.StatusSeeOther)
}

// Logout terminates the session.
func (a *Accounts) Logout(w http.ResponseWriter, r *http.Request) {
	a.Auth.LogoutUser(w, r)
	http.Redirect(w, r, a.Auth.HomePath(), http.StatusFound)
}

// GetSignup renders the signup page, skipping home if already logged in.
func (a *Accounts) GetSignup(w http.ResponseWriter, r *http.Request) {
	if a.Auth.CurrentUser(r) != nil {
		http.Redirect(w, r, a.Auth.HomePath(), http.StatusFound)
		return
	}
	a.render(w, r, "signup", "Create Account", nil)
}

// PostSignup creates a new local account and logs it in. Email uniqueness
// is checked up front for a friendly message, with the store's
// duplicate-key error as the backstop for the signup race.
func (a *Accounts) PostSignup(w http.ResponseWriter, r *http.Request) {
	form := SignupForm{
		Email:           r.FormValue("email"),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirmPassword"),
	}
	if msgs := ValidateForm(form, map[string]string{
		"Email":           "Email is not valid",
		"Password":        "Password must be at least 4 characters long",
		"ConfirmPassword": "Passwords do not match",
	}); len(msgs) > 0 {
		a.Flash.Add(r.Context(), FlashErrors, msgs...)
		http.Redirect(w, r, a.Auth.SignupPath(), http.StatusSeeOther)
		return
	}

	email := NormalizeEmail(form.Email)
	_, err := a.Users.GetUserByEmail(r.Context(), email)
	if err == nil {
		a.Flash.Add(r.Context(), FlashErrors, "Account with that email address already exists.")
		http.Redirect(w, r, a.Auth.SignupPath(), http.StatusSeeOther)
		return
	}
	if !errors.Is(err, ErrUserNotFound) {
		a.serverError(w, r, err)
		return
	}

	user := &User{Email: email}
	if err := user.SetPassword(form.Password); err != nil {
		a.serverError(w, r, err)
		return
	}
	if err := a.Users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			a.Flash.Add(r.Context(), FlashErrors, "Account with that email address already exists.")
			http.Redirect(w, r, a.Auth.SignupPath(), http.StatusSeeOther)
			return
		}
		a.serverError(w, r, err)
		return
	}

	a.Logger.Info().Str("userId", user.ID).Msg("account created")
	a.Auth.LoginUser(user, w, r)
	http.Redirect(w, r, a.Auth.HomePath(), http.StatusSeeOther)
}

// GetAccount renders the profile page. Runs behind RequireAuthenticated.
func (a *Accounts) GetAccount(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "profile", "Account Management", nil)
}

// PostUpdateProfile overwrites the email and profile sub-fields. Fields
// absent from the request blank their stored values.
func (a *Accounts) PostUpdateProfile(w http.ResponseWriter, r *http.Request) {
	form := ProfileForm{
		Email:    r.FormValue("email"),
		Name:     r.FormValue("name"),
		Gender:   r.FormValue("gender"),
		Location: r.FormValue("location"),
		Website:  r.FormValue("website"),
	}
	if msgs := ValidateForm(form, map[string]string{
		"Email": "Please enter a valid email address.",
	}); len(msgs) > 0 {
		a.Flash.Add(r.Context(), FlashErrors, msgs...)
		http.Redirect(w, r, a.Auth.HomePath(), http.StatusSeeOther)
		return
	}

	user := a.Auth.CurrentUser(r)
	if user == nil {
		http.Redirect(w, r, a.Auth.LoginPath(), http.StatusSeeOther)
		return
	}

	user.Email = NormalizeEmail(form.Email)
	user.Profile.Name = form.Name
	user.Profile.Gender = form.Gender
	user.Profile.Location = form.Location
	user.Profile.Website = form.Website

	if err := a.Users.SaveUser(r.Context(), user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			a.Flash.Add(r.Context(), FlashErrors, "The email address you have entered is already associated with an account.")
			http.Redirect(w, r, a.Auth.HomePath(), http.StatusSeeOther)
			return
		}
		a.serverError(w, r, err)
		return
	}

	a.Flash.Add(r.Context(), FlashSuccess, "Profile information has been updated.")
	http.Redirect(w, r, a.Auth.HomePath(), http.StatusSeeOther)
}

// PostUpdatePassword replaces the current password.
func (a *Accounts) PostUpdatePassword(w http.ResponseWriter, r *http.Request) {
	form := PasswordForm{
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirmPassword"),
	}
	if msgs := ValidateForm(form, map[string]string{
		"Password":        "Password must be at least 4 characters long",
		"ConfirmPassword": "Passwords do not match",
	}); len(msgs) > 0 {
		a.Flash.Add(r.Context(), FlashErrors, msgs...)
		http.Redirect(w, r, a.Auth.HomePath(), http.StatusSeeOther)
		return
	}

	user := a.Auth.CurrentUser(r)
	if user == nil {
		http.Redirect(w, r, a.Auth.LoginPath(), http.StatusSeeOther)
		return
	}

	if err := user.SetPassword(form.Password); err != nil {
		a.serverError(w, r, err)
		return
	}
	if err := a.Users.SaveUser(r.Context(), user); err != nil {
		a.serverError(w, r, err)
		return
	}

	a.Flash.Add(r.Context(), FlashSuccess, "Password has been changed.")
	http.Redirect(w, r, a.Auth.HomePath(), http.StatusSeeOther)
}

// PostDeleteAccount hard-deletes the user and terminates the session. If
// the delete fails the session is left intact and the error propagates.
func (a *Accounts) PostDeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := a.Auth.CurrentUser(r)
	if user == nil {
		http.Redirect(w, r, a.Auth.LoginPath(), http.StatusSeeOther)
		return
	}

	if err := a.Users.DeleteUser(r.Context(), user.ID); err != nil {
		a.serverError(w, r, err)
		return
	}

	a.Auth.LogoutUser(w, r)
	a.Flash.Add(r.Context(), FlashInfo, "Your account has been deleted.")
	a.Logger.Info().Str("userId", user.ID).Msg("account deleted")
	http.Redirect(w, r, a.Auth.HomePath(), http.StatusSeeOther)
}

// GetOauthUnlink removes a provider linkage: the provider's subject id is
// cleared and every token of that kind dropped. Runs behind both gates.
func (a *Accounts) GetOauthUnlink(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	user := a.Auth.CurrentUser(r)
	if user == nil {
		http.Redirect(w, r, a.Auth.LoginPath(), http.StatusFound)
		return
	}

	user.UnlinkProvider(provider)
	if err := a.Users.SaveUser(r.Context(), user); err != nil {
		a.serverError(w, r, err)
		return
	}

	a.Flash.Add(r.Context(), FlashInfo, fmt.Sprintf("%s account has been unlinked.", provider))
	http.Redirect(w, r, a.Auth.HomePath(), http.StatusFound)
}

// GetForgotPassword renders the reset-request page.
func (a *Accounts) GetForgotPassword(w http.ResponseWriter, r *http.Request) {
	if a.Auth.CurrentUser(r) != nil {
		http.Redirect(w, r, a.Auth.HomePath(), http.StatusFound)
		return
	}
	a.render(w, r, "forgot", "Forgot Password", nil)
}

// PostForgotPassword mails a one-time reset link. The response is identical
// whether or not the email is registered.
func (a *Accounts) PostForgotPassword(w http.ResponseWriter, r *http.Request) {
	form := ForgotForm{Email: r.FormValue("email")}
	if msgs := ValidateForm(form, map[string]string{
		"Email": "Please enter a valid email address.",
	}); len(msgs) > 0 {
		a.Flash.Add(r.Context(), FlashErrors, msgs...)
		http.Redirect(w, r, a.Auth.ForgotPath(), http.StatusSeeOther)
		return
	}

	email := NormalizeEmail(form.Email)
	if a.Tokens != nil && a.EmailSender != nil {
		user, err := a.Users.GetUserByEmail(r.Context(), email)
		if err == nil {
			token, err := a.Tokens.CreateToken(r.Context(), user.ID, email, TokenTypePasswordReset, TokenExpiryPasswordReset)
			if err != nil {
				a.Logger.Error().Err(err).Msg("error creating reset token")
			} else {
				resetLink := fmt.Sprintf("%s%s/%s", strings.TrimSuffix(a.BaseURL, "/"), a.Auth.pathWithPrefix("/reset"), token.Token)
				if err := a.EmailSender.SendPasswordResetEmail(email, resetLink); err != nil {
					a.Logger.Error().Err(err).Msg("error sending reset email")
				}
			}
		} else if !errors.Is(err, ErrUserNotFound) {
			a.Logger.Error().Err(err).Msg("error looking up email for reset")
		}
	}

	a.Flash.Add(r.Context(), FlashInfo, "If that email address exists, a password reset link has been sent.")
	http.Redirect(w, r, a.Auth.ForgotPath(), http.StatusSeeOther)
}

// GetResetPassword renders the reset form for a valid, unexpired token.
func (a *Accounts) GetResetPassword(w http.ResponseWriter, r *http.Request) {
	if a.Auth.CurrentUser(r) != nil {
		http.Redirect(w, r, a.Auth.HomePath(), http.StatusFound)
		return
	}
	token := mux.Vars(r)["token"]
	if _, err := a.validResetToken(r, token); err != nil {
		a.Flash.Add(r.Context(), FlashErrors, "Password reset token is invalid or has expired.")
		http.Redirect(w, r, a.Auth.ForgotPath(), http.StatusFound)
		return
	}
	a.render(w, r, "reset", "Reset Password", map[string]any{"Token": token})
}

// PostResetPassword consumes the token, rehashes the password and logs the
// user in.
func (a *Accounts) PostResetPassword(w http.ResponseWriter, r *http.Request) {
	if a.Auth.CurrentUser(r) != nil {
		http.Redirect(w, r, a.Auth.HomePath(), http.StatusFound)
		return
	}

	form := PasswordForm{
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirmPassword"),
	}
	if msgs := ValidateForm(form, map[string]string{
		"Password":        "Password must be at least 4 characters long",
		"ConfirmPassword": "Passwords do not match",
	}); len(msgs) > 0 {
		a.Flash.Add(r.Context(), FlashErrors, msgs...)
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}

	tokenValue := mux.Vars(r)["token"]
	authToken, err := a.validResetToken(r, tokenValue)
	if err != nil {
		a.Flash.Add(r.Context(), FlashErrors, "Password reset token is invalid or has expired.")
		http.Redirect(w, r, a.Auth.ForgotPath(), http.StatusSeeOther)
		return
	}

	user, err := a.resetTokenUser(r, authToken)
	if err != nil {
		a.Flash.Add(r.Context(), FlashErrors, "Password reset token is invalid or has expired.")
		http.Redirect(w, r, a.Auth.ForgotPath(), http.StatusSeeOther)
		return
	}

	if err := user.SetPassword(form.Password); err != nil {
		a.serverError(w, r, err)
		return
	}
	if err := a.Users.SaveUser(r.Context(), user); err != nil {
		a.serverError(w, r, err)
		return
	}
	if err := a.Tokens.DeleteToken(r.Context(), tokenValue); err != nil {
		a.Logger.Warn().Err(err).Msg("failed to delete reset token")
	}

	a.Auth.LoginUser(user, w, r)
	a.Flash.Add(r.Context(), FlashSuccess, "Success! Your password has been changed.")
	http.Redirect(w, r, a.Auth.HomePath(), http.StatusSeeOther)
}

func (a *Accounts) validResetToken(r *http.Request, token string) (*AuthToken, error) {
	if a.Tokens == nil || token == "" {
		return nil, fmt.Errorf("password reset not configured")
	}
	authToken, err := a.Tokens.GetToken(r.Context(), token)
	if err != nil {
		return nil, err
	}
	if !authToken.IsValid(TokenTypePasswordReset) {
		return nil, fmt.Errorf("token expired or wrong type")
	}
	return authToken, nil
}

func (a *Accounts) resetTokenUser(r *http.Request, authToken *AuthToken) (*User, error) {
	if authToken.UserID != "" {
		return a.Users.GetUserById(r.Context(), authToken.UserID)
	}
	return a.Users.GetUserByEmail(r.Context(), authToken.Email)
}

// HandleOAuthUser is the success callback shared by every redirect
// strategy. Depending on session state it links the provider to the current
// account, logs in the account already holding this subject id, or creates
// a fresh account from the provider profile.
func (a *Accounts) HandleOAuthUser(authtype, provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) {
	subject := stringValue(userInfo["id"])
	email := NormalizeEmail(stringValue(userInfo["email"]))
	name := stringValue(userInfo["name"])

	if subject == "" {
		a.Flash.Add(r.Context(), FlashErrors, fmt.Sprintf("%s did not return a user id.", provider))
		http.Redirect(w, r, a.Auth.LoginPath(), http.StatusFound)
		return
	}

	providerToken := ProviderToken{Kind: provider}
	if token != nil {
		providerToken.AccessToken = token.AccessToken
		providerToken.RefreshToken = token.RefreshToken
		providerToken.Expiry = token.Expiry
	}

	// Already signed in: this is a linking flow.
	if current := a.Auth.CurrentUser(r); current != nil {
		current.LinkProvider(provider, subject, providerToken)
		if err := a.Users.SaveUser(r.Context(), current); err != nil {
			a.serverError(w, r, err)
			return
		}
		a.Flash.Add(r.Context(), FlashInfo, fmt.Sprintf("%s account has been linked.", provider))
		http.Redirect(w, r, a.Auth.HomePath(), http.StatusFound)
		return
	}

	// Known subject id: refresh the stored token and log in.
	existing, err := a.Users.GetUserByProvider(r.Context(), provider, subject)
	if err == nil {
		existing.LinkProvider(provider, subject, providerToken)
		if err := a.Users.SaveUser(r.Context(), existing); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to refresh provider token")
		}
		a.Auth.LoginUser(existing, w, r)
		a.Flash.Add(r.Context(), FlashSuccess, "Success! You are logged in.")
		http.Redirect(w, r, a.Auth.ConsumeReturnTo(r), http.StatusFound)
		return
	}
	if !errors.Is(err, ErrUserNotFound) {
		a.serverError(w, r, err)
		return
	}

	if email == "" {
		a.Flash.Add(r.Context(), FlashErrors, fmt.Sprintf("%s did not return an email address.", provider))
		http.Redirect(w, r, a.Auth.LoginPath(), http.StatusFound)
		return
	}

	// Same email already registered under another account: refuse rather
	// than silently merge.
	if _, err := a.Users.GetUserByEmail(r.Context(), email); err == nil {
		a.Flash.Add(r.Context(), FlashErrors,
			fmt.Sprintf("There is already an account using this email address. Sign in to that account and link it with %s manually from Account Settings.", provider))
		http.Redirect(w, r, a.Auth.LoginPath(), http.StatusFound)
		return
	} else if !errors.Is(err, ErrUserNotFound) {
		a.serverError(w, r, err)
		return
	}

	user := &User{Email: email, Profile: Profile{Name: name}}
	user.LinkProvider(provider, subject, providerToken)
	if err := a.Users.CreateUser(r.Context(), user); err != nil {
		a.serverError(w, r, err)
		return
	}

	a.Logger.Info().Str("userId", user.ID).Str("provider", provider).Msg("account created via oauth")
	a.Auth.LoginUser(user, w, r)
	http.Redirect(w, r, a.Auth.ConsumeReturnTo(r), http.StatusFound)
}

func (a *Accounts) render(w http.ResponseWriter, r *http.Request, name, title string, extra map[string]any) {
	locals := map[string]any{
		"Title":  title,
		"User":   a.Auth.CurrentUser(r),
		"Prefix": strings.TrimSuffix(a.Auth.Prefix, "/"),
		"Flash":  a.Flash.PopAll(r.Context()),
	}
	for k, v := range extra {
		locals[k] = v
	}
	if err := a.Renderer.Render(w, r, name, locals); err != nil {
		a.serverError(w, r, err)
	}
}

func (a *Accounts) serverError(w http.ResponseWriter, r *http.Request, err error) {
	if a.OnServerError != nil {
		a.OnServerError(w, r, err)
		return
	}
	a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// stringValue renders a userInfo field as a string. Providers disagree on
// numeric vs string ids (GitHub returns a number).
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
