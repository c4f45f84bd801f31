package oneaccount

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

type userContextKey int

const currentUserKey userContextKey = 0

// Session variable names.
const (
	sessionUserKey     = "loggedInUserId"
	sessionReturnToKey = "returnTo"
)

// Auth is the policy provider: it owns how a session reduces to a durable
// identity and back, and exposes the request gates protected routes are
// built from. Construct it with the collaborators and pass it explicitly to
// the controller and route table; nothing here is process-global.
type Auth struct {
	Session    *scs.SessionManager
	Users      UserStore
	Strategies *StrategyRegistry

	// Prefix is the mount point of the account routes ("" for root). All
	// redirect targets are prefix-relative so the component can be mounted
	// at any sub-path.
	Prefix string

	// Optional name used as a prefix for cookie/session variable names.
	AppName string

	// Remember-me JWT settings. The signed token is set as a cookie on
	// login and consulted when the server-side session has no user.
	JwtIssuer          string
	JWTSecretKey       string
	RememberCookieName string

	// How long a login is valid for. Defaults to 1 day.
	SessionTimeoutInSeconds int

	Logger zerolog.Logger
}

// NewAuth builds a policy provider with reasonable defaults and an empty
// strategy registry.
func NewAuth(users UserStore, session *scs.SessionManager) *Auth {
	a := &Auth{
		Session:    session,
		Users:      users,
		Strategies: NewStrategyRegistry(),
	}
	return a.EnsureDefaults()
}

// EnsureDefaults fills in unset config values.
func (a *Auth) EnsureDefaults() *Auth {
	if a.AppName == "" {
		a.AppName = "OneAccount"
	}
	if a.SessionTimeoutInSeconds <= 0 {
		a.SessionTimeoutInSeconds = 86400
	}
	if a.JwtIssuer == "" {
		a.JwtIssuer = fmt.Sprintf("%s-Issuer", a.AppName)
	}
	if a.RememberCookieName == "" {
		a.RememberCookieName = fmt.Sprintf("%sAuthToken", a.AppName)
	}
	if a.JWTSecretKey == "" {
		a.JWTSecretKey = strings.TrimSpace(os.Getenv("ONEACCOUNT_JWT_SECRET_KEY"))
	}
	if a.Strategies == nil {
		a.Strategies = NewStrategyRegistry()
	}
	return a
}

// AuthenticateLocal verifies email/password through the registered local
// strategy. On success the caller is expected to establish a session via
// LoginUser.
func (a *Auth) AuthenticateLocal(ctx context.Context, email, password string) (*User, error) {
	s, ok := a.Strategies.Get("local")
	if !ok {
		return nil, fmt.Errorf("no local strategy registered")
	}
	cs, ok := s.(CredentialStrategy)
	if !ok {
		return nil, fmt.Errorf("local strategy does not accept credentials")
	}
	return cs.Authenticate(ctx, email, password)
}

// SerializeUser reduces a user to the durable identity kept in the session.
func (a *Auth) SerializeUser(u *User) string { return u.ID }

// DeserializeUser resolves a serialized identity back to a user. A missing
// user (deleted since login) degrades to nil, never an error: the session
// simply becomes unauthenticated.
func (a *Auth) DeserializeUser(ctx context.Context, userId string) *User {
	if userId == "" {
		return nil
	}
	user, err := a.Users.GetUserById(ctx, userId)
	if err != nil {
		a.Logger.Debug().Str("userId", userId).Err(err).Msg("session user no longer resolvable")
		return nil
	}
	return user
}

// CurrentUser returns the user bound to this request, or nil. The lookup
// order is: request context (set by the gates), the scs session, then the
// remember-me JWT cookie.
func (a *Auth) CurrentUser(r *http.Request) *User {
	if u, ok := r.Context().Value(currentUserKey).(*User); ok && u != nil {
		return u
	}
	return a.DeserializeUser(r.Context(), a.loggedInUserId(r))
}

func (a *Auth) loggedInUserId(r *http.Request) string {
	if id := a.Session.GetString(r.Context(), sessionUserKey); id != "" {
		return id
	}

	// Fall back to the remember-me cookie.
	cookie, err := r.Cookie(a.RememberCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	userId, err := a.verifyRememberToken(cookie.Value)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("invalid remember token")
		return ""
	}
	return userId
}

// LoginUser establishes a session bound to the user's id and sets the
// remember-me cookie. The session token is renewed to prevent fixation.
func (a *Auth) LoginUser(u *User, w http.ResponseWriter, r *http.Request) {
	a.EnsureDefaults()
	if err := a.Session.RenewToken(r.Context()); err != nil {
		a.Logger.Warn().Err(err).Msg("error renewing session token")
	}
	a.Session.Put(r.Context(), sessionUserKey, a.SerializeUser(u))

	tokenString, err := a.signRememberToken(u)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("error signing remember token")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     a.RememberCookieName,
		Value:    tokenString,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   a.SessionTimeoutInSeconds,
		Expires:  time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)),
	})
}

// LogoutUser terminates the session and clears the remember-me cookie.
func (a *Auth) LogoutUser(w http.ResponseWriter, r *http.Request) {
	a.EnsureDefaults()
	if err := a.Session.Destroy(r.Context()); err != nil {
		a.Logger.Warn().Err(err).Msg("error destroying session")
	}
	http.SetCookie(w, &http.Cookie{
		Name:     a.RememberCookieName,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
		Expires:  time.Now(),
	})
}

func (a *Auth) signRememberToken(u *User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": u.ID,
		"iss": a.JwtIssuer,
		"iat": now.Unix(),
		"exp": now.Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)).Unix(),
	})
	return token.SignedString([]byte(a.JWTSecretKey))
}

func (a *Auth) verifyRememberToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(a.JWTSecretKey), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", fmt.Errorf("subject not found")
	}
	return sub, nil
}

// RequireAuthenticated gates protected routes: the request proceeds with the
// resolved user in its context, or is redirected to the login page with the
// original path remembered for the post-login redirect.
func (a *Auth) RequireAuthenticated(next http.Handler) http.Handler {
	a.EnsureDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := a.DeserializeUser(r.Context(), a.loggedInUserId(r))
		if user == nil {
			a.Session.Put(r.Context(), sessionReturnToKey, r.URL.Path)
			http.Redirect(w, r, a.LoginPath(), http.StatusFound)
			return
		}
		next.ServeHTTP(w, a.withUser(r, user))
	})
}

// RequireAuthorized gates provider-specific account actions: the target
// provider is the last segment of the request path, and the current user
// must hold a token of that kind. Otherwise the request is redirected to the
// provider's auth entry point. Runs downstream of RequireAuthenticated.
func (a *Auth) RequireAuthorized(next http.Handler) http.Handler {
	a.EnsureDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provider := path.Base(r.URL.Path)
		user := a.CurrentUser(r)
		if user == nil {
			http.Redirect(w, r, a.LoginPath(), http.StatusFound)
			return
		}
		if _, ok := user.TokenFor(provider); !ok {
			http.Redirect(w, r, a.AuthStartPath(provider), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Auth) withUser(r *http.Request, u *User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// ConsumeReturnTo pops the pre-auth target path recorded by the gate, or
// returns the home path.
func (a *Auth) ConsumeReturnTo(r *http.Request) string {
	if target := a.Session.PopString(r.Context(), sessionReturnToKey); target != "" {
		return target
	}
	return a.HomePath()
}

// Path helpers. Everything is mount-relative so the component works under
// any prefix.

func (a *Auth) HomePath() string { return a.pathWithPrefix("/") }

func (a *Auth) LoginPath() string { return a.pathWithPrefix("/login") }

func (a *Auth) SignupPath() string { return a.pathWithPrefix("/signup") }

func (a *Auth) ForgotPath() string { return a.pathWithPrefix("/forgot") }

// AuthStartPath is where a redirect flow for the provider begins.
func (a *Auth) AuthStartPath(provider string) string {
	return a.pathWithPrefix("/auth/" + provider)
}

func (a *Auth) pathWithPrefix(p string) string {
	prefix := strings.TrimSuffix(a.Prefix, "/")
	if prefix == "" {
		return p
	}
	return prefix + p
}
