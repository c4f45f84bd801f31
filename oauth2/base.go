// Package oauth2 provides redirect-based login strategies for OAuth2
// providers. Each strategy begins the provider redirect, validates the
// state cookie on callback, exchanges the code and hands the provider's
// user info to the application's HandleUserFunc.
package oauth2

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// HandleUserFunc receives the authenticated provider identity. The
// application decides whether this logs in an existing account, links the
// provider to the current account, or creates a new one.
type HandleUserFunc func(authtype string, provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request)

const stateCookieName = "oauthstate"

// BaseOAuth2 carries everything common to the provider strategies: the
// oauth2 config, the state-cookie CSRF dance, and the failure redirect.
type BaseOAuth2 struct {
	Name         string
	ClientId     string
	ClientSecret string
	CallbackURL  string
	HandleUser   HandleUserFunc

	// AuthFailureUrl is where the browser goes when the flow fails.
	// Defaults to "/login".
	AuthFailureUrl string

	// HTTPClient used for provider API calls. Defaults to
	// http.DefaultClient; tests inject their own.
	HTTPClient *http.Client

	Logger zerolog.Logger

	oauthConfig oauth2.Config
}

// Provider returns the registry name for this strategy.
func (b *BaseOAuth2) Provider() string { return b.Name }

// Begin starts the redirect flow: set the state cookie and send the browser
// to the provider's consent page.
func (b *BaseOAuth2) Begin(w http.ResponseWriter, r *http.Request) {
	state := b.setStateCookie(w)
	http.Redirect(w, r, b.oauthConfig.AuthCodeURL(state), http.StatusFound)
}

func (b *BaseOAuth2) setStateCookie(w http.ResponseWriter) string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		b.Logger.Error().Err(err).Msg("error generating oauth state")
	}
	state := base64.URLEncoding.EncodeToString(buf)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Now().Add(10 * time.Minute),
		MaxAge:   600,
	})
	return state
}

// validateState compares the state echoed by the provider against the
// cookie set by Begin. On mismatch the cookie is cleared and a 400 written.
func (b *BaseOAuth2) validateState(w http.ResponseWriter, r *http.Request) bool {
	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" {
		http.Error(w, "missing oauth state", http.StatusBadRequest)
		return false
	}
	if r.FormValue("state") != cookie.Value {
		http.SetCookie(w, &http.Cookie{Name: stateCookieName, Path: "/", MaxAge: -1})
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return false
	}
	return true
}

// ExchangeContext is the context used for the code exchange and user info
// fetch. It carries the injectable HTTP client so tests can point the
// strategy at a fake provider.
func (b *BaseOAuth2) ExchangeContext() context.Context {
	ctx := context.Background()
	if b.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, b.HTTPClient)
	}
	return ctx
}

func (b *BaseOAuth2) getHTTPClient() *http.Client {
	if b.HTTPClient != nil {
		return b.HTTPClient
	}
	return http.DefaultClient
}

func (b *BaseOAuth2) failureRedirect(w http.ResponseWriter, r *http.Request) {
	target := b.AuthFailureUrl
	if target == "" {
		target = "/login"
	}
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}
