package oauth2

import (
	"fmt"
	"os"
	"strings"

	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// GoogleOAuth2 authenticates against Google. User info is fetched through
// the official API client rather than a hand-rolled userinfo request.
type GoogleOAuth2 struct {
	*BaseOAuth2
}

// NewGoogleOAuth2 builds the Google strategy. Empty arguments fall back to
// the OAUTH2_GOOGLE_* environment variables.
func NewGoogleOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) *GoogleOAuth2 {
	if clientId == "" {
		clientId = strings.TrimSpace(os.Getenv("OAUTH2_GOOGLE_CLIENT_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET"))
	}
	if callbackUrl == "" {
		callbackUrl = strings.TrimSpace(os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL"))
	}

	out := &GoogleOAuth2{
		BaseOAuth2: &BaseOAuth2{
			Name:         "google",
			ClientId:     clientId,
			ClientSecret: clientSecret,
			CallbackURL:  callbackUrl,
			HandleUser:   handleUser,
		},
	}
	out.oauthConfig = oauth2.Config{
		ClientID:     clientId,
		ClientSecret: clientSecret,
		RedirectURL:  callbackUrl,
		Endpoint:     google.Endpoint,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
	}
	return out
}

// Callback completes the Google flow.
func (g *GoogleOAuth2) Callback(w http.ResponseWriter, r *http.Request) {
	if !g.validateState(w, r) {
		return
	}

	ctx := g.ExchangeContext()
	token, err := g.oauthConfig.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		g.Logger.Warn().Err(err).Msg("google code exchange failed")
		g.failureRedirect(w, r)
		return
	}

	userInfo, err := g.fetchUserInfo(token)
	if err != nil {
		g.Logger.Warn().Err(err).Msg("google userinfo fetch failed")
		g.failureRedirect(w, r)
		return
	}

	g.HandleUser("oauth", "google", token, userInfo, w, r)
}

func (g *GoogleOAuth2) fetchUserInfo(token *oauth2.Token) (map[string]any, error) {
	ctx := g.ExchangeContext()
	opts := []option.ClientOption{
		option.WithTokenSource(g.oauthConfig.TokenSource(ctx, token)),
	}
	if g.HTTPClient != nil {
		opts = []option.ClientOption{option.WithHTTPClient(g.HTTPClient)}
	}
	svc, err := goauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating oauth2 service: %w", err)
	}
	info, err := svc.Userinfo.Get().Do()
	if err != nil {
		return nil, fmt.Errorf("fetching userinfo: %w", err)
	}
	return map[string]any{
		"id":      info.Id,
		"email":   info.Email,
		"name":    info.Name,
		"picture": info.Picture,
	}, nil
}
