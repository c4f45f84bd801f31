// Package oneaccount is a session-based account management component that
// can be embedded into a web application. It covers local email/password
// signup and login, profile and password management, account deletion, and
// linking/unlinking of OAuth providers, with pluggable user storage.
//
// A minimal host looks like:
//
//	sessionManager := scs.New()
//	userStore := stores.NewFSUserStore("./data")
//
//	auth := oneaccount.NewAuth(userStore, sessionManager)
//	auth.Strategies.Use(&oneaccount.LocalStrategy{Users: userStore})
//
//	accounts := oneaccount.NewAccounts(userStore, auth)
//	auth.Strategies.Use(oauth2.NewGoogleOAuth2(clientID, clientSecret,
//		"http://localhost:8080/auth/google/callback", accounts.HandleOAuthUser))
//
//	http.ListenAndServe(":8080", accounts.Handler())
//
// Every route the component serves is mount-relative: set Auth.Prefix to
// mount the whole surface under a sub-path.
package oneaccount
