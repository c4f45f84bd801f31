package oauth2

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GithubOAuth2 authenticates against GitHub.
type GithubOAuth2 struct {
	*BaseOAuth2

	// UserInfoURL is the URL to fetch user info from. Defaults to GitHub's
	// API; tests override it.
	UserInfoURL string
}

// NewGithubOAuth2 builds the GitHub strategy. Empty arguments fall back to
// the OAUTH2_GITHUB_* environment variables.
func NewGithubOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) *GithubOAuth2 {
	if clientId == "" {
		clientId = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CLIENT_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CLIENT_SECRET"))
	}
	if callbackUrl == "" {
		callbackUrl = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CALLBACK_URL"))
	}

	out := &GithubOAuth2{
		BaseOAuth2: &BaseOAuth2{
			Name:         "github",
			ClientId:     clientId,
			ClientSecret: clientSecret,
			CallbackURL:  callbackUrl,
			HandleUser:   handleUser,
		},
		UserInfoURL: "https://api.github.com/user",
	}
	out.oauthConfig = oauth2.Config{
		ClientID:     clientId,
		ClientSecret: clientSecret,
		RedirectURL:  callbackUrl,
		Endpoint:     github.Endpoint,
		Scopes:       []string{"read:user", "user:email"},
	}
	return out
}

// Callback completes the GitHub flow.
func (g *GithubOAuth2) Callback(w http.ResponseWriter, r *http.Request) {
	if !g.validateState(w, r) {
		return
	}

	token, err := g.oauthConfig.Exchange(g.ExchangeContext(), r.FormValue("code"))
	if err != nil {
		g.Logger.Warn().Err(err).Msg("github code exchange failed")
		g.failureRedirect(w, r)
		return
	}

	userInfo, err := g.fetchUserInfo(token)
	if err != nil {
		g.Logger.Warn().Err(err).Msg("github userinfo fetch failed")
		g.failureRedirect(w, r)
		return
	}

	g.HandleUser("oauth", "github", token, userInfo, w, r)
}

func (g *GithubOAuth2) fetchUserInfo(token *oauth2.Token) (map[string]any, error) {
	req, err := http.NewRequest("GET", g.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	response, err := g.getHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching user info: %w", err)
	}
	defer response.Body.Close()

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var userInfo map[string]any
	if err := json.Unmarshal(contents, &userInfo); err != nil {
		return nil, fmt.Errorf("parsing user info: %w", err)
	}
	return userInfo, nil
}
