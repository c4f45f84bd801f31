package oneaccount

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Routes builds the canonical route table on the given (sub)router. Every
// protected route goes through the gates here, never inside a handler, so
// the full policy for a path is readable in one place:
//
//	GET  /                   auth            account page
//	GET  /login                              login page
//	POST /login                              local authentication
//	GET  /logout             auth            end session
//	GET  /signup                             signup page
//	POST /signup                             create local account
//	POST /profile            auth            update profile fields
//	POST /password           auth            change password
//	POST /delete             auth            delete account
//	GET  /unlink/{provider}  auth + authz    remove provider link
//	GET  /auth/{provider}                    begin provider redirect flow
//	GET  /auth/{provider}/callback           complete provider flow
//	GET  /forgot                             reset-request page
//	POST /forgot                             send reset email
//	GET  /reset/{token}                      reset form
//	POST /reset/{token}                      apply new password
func (a *Accounts) Routes(r *mux.Router) {
	a.EnsureDefaults()
	auth := a.Auth.RequireAuthenticated
	authz := a.Auth.RequireAuthorized

	r.Handle("/", auth(http.HandlerFunc(a.GetAccount))).Methods("GET")

	r.HandleFunc("/login", a.GetLogin).Methods("GET")
	r.HandleFunc("/login", a.PostLogin).Methods("POST")
	r.Handle("/logout", auth(http.HandlerFunc(a.Logout))).Methods("GET")

	r.HandleFunc("/signup", a.GetSignup).Methods("GET")
	r.HandleFunc("/signup", a.PostSignup).Methods("POST")

	r.Handle("/profile", auth(http.HandlerFunc(a.PostUpdateProfile))).Methods("POST")
	r.Handle("/password", auth(http.HandlerFunc(a.PostUpdatePassword))).Methods("POST")
	r.Handle("/delete", auth(http.HandlerFunc(a.PostDeleteAccount))).Methods("POST")

	r.Handle("/unlink/{provider}", auth(authz(http.HandlerFunc(a.GetOauthUnlink)))).Methods("GET")

	r.HandleFunc("/auth/{provider}", a.BeginOAuth).Methods("GET")
	r.HandleFunc("/auth/{provider}/callback", a.OAuthCallback).Methods("GET")

	r.HandleFunc("/forgot", a.GetForgotPassword).Methods("GET")
	r.HandleFunc("/forgot", a.PostForgotPassword).Methods("POST")
	r.HandleFunc("/reset/{token}", a.GetResetPassword).Methods("GET")
	r.HandleFunc("/reset/{token}", a.PostResetPassword).Methods("POST")
}

// Handler returns the complete account component mounted under Auth.Prefix,
// wrapped in session middleware. Hosts that manage their own session
// middleware can call Routes directly instead.
func (a *Accounts) Handler() http.Handler {
	a.EnsureDefaults()
	root := mux.NewRouter()
	sub := root
	if prefix := a.Auth.Prefix; prefix != "" && prefix != "/" {
		sub = root.PathPrefix(prefix).Subrouter()
	}
	a.Routes(sub)
	return a.Auth.Session.LoadAndSave(root)
}

// BeginOAuth starts the redirect flow for the provider named in the path.
// Unknown providers 404: the route is generic but the registry is the
// source of truth.
func (a *Accounts) BeginOAuth(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	strategy, ok := a.Auth.Strategies.Redirect(provider)
	if !ok {
		http.NotFound(w, r)
		return
	}
	strategy.Begin(w, r)
}

// OAuthCallback completes the redirect flow for the provider named in the
// path.
func (a *Accounts) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	strategy, ok := a.Auth.Strategies.Redirect(provider)
	if !ok {
		http.NotFound(w, r)
		return
	}
	strategy.Callback(w, r)
}
