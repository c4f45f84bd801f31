package oneaccount

import (
	"html/template"
	"net/http"
)

// Renderer renders a named page with the given locals. View rendering is an
// external collaborator: hosts plug in their own template engine here. The
// locals always include "Title", "User" (may be nil), "Prefix" and "Flash"
// (map of severity to messages).
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request, name string, locals map[string]any) error
}

// basicRenderer is a minimal html/template implementation so the module
// works stand-alone without a host template engine, in the same spirit as
// serving a bare HTML form when no page exists yet.
type basicRenderer struct {
	templates *template.Template
}

// NewBasicRenderer returns the built-in renderer with plain HTML pages for
// login, signup, profile, forgot and reset.
func NewBasicRenderer() Renderer {
	return &basicRenderer{templates: template.Must(template.New("pages").Parse(basicPages))}
}

func (b *basicRenderer) Render(w http.ResponseWriter, r *http.Request, name string, locals map[string]any) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return b.templates.ExecuteTemplate(w, name, locals)
}

const basicPages = `
{{define "flash"}}
{{range $severity, $msgs := .Flash}}{{range $msgs}}<p class="flash flash-{{$severity}}">{{.}}</p>
{{end}}{{end}}
{{end}}

{{define "login"}}<!DOCTYPE html>
<html><head><title>{{.Title}}</title></head><body>
<h1>{{.Title}}</h1>
{{template "flash" .}}
<form method="POST" action="{{.Prefix}}/login">
	<label>Email: <input type="email" name="email" required></label>
	<label>Password: <input type="password" name="password" required></label>
	<button type="submit">Login</button>
</form>
<p><a href="{{.Prefix}}/signup">Create an account</a> &middot; <a href="{{.Prefix}}/forgot">Forgot password?</a></p>
</body></html>{{end}}

{{define "signup"}}<!DOCTYPE html>
<html><head><title>{{.Title}}</title></head><body>
<h1>{{.Title}}</h1>
{{template "flash" .}}
<form method="POST" action="{{.Prefix}}/signup">
	<label>Email: <input type="email" name="email" required></label>
	<label>Password: <input type="password" name="password" required minlength="4"></label>
	<label>Confirm Password: <input type="password" name="confirmPassword" required></label>
	<button type="submit">Signup</button>
</form>
</body></html>{{end}}

{{define "profile"}}<!DOCTYPE html>
<html><head><title>{{.Title}}</title></head><body>
<h1>{{.Title}}</h1>
{{template "flash" .}}
<form method="POST" action="{{.Prefix}}/profile">
	<label>Email: <input type="email" name="email" value="{{.User.Email}}"></label>
	<label>Name: <input type="text" name="name" value="{{.User.Profile.Name}}"></label>
	<label>Gender: <input type="text" name="gender" value="{{.User.Profile.Gender}}"></label>
	<label>Location: <input type="text" name="location" value="{{.User.Profile.Location}}"></label>
	<label>Website: <input type="url" name="website" value="{{.User.Profile.Website}}"></label>
	<button type="submit">Update Profile</button>
</form>
<form method="POST" action="{{.Prefix}}/password">
	<label>New Password: <input type="password" name="password" minlength="4"></label>
	<label>Confirm Password: <input type="password" name="confirmPassword"></label>
	<button type="submit">Change Password</button>
</form>
<form method="POST" action="{{.Prefix}}/delete">
	<button type="submit">Delete my account</button>
</form>
{{range .User.Tokens}}<p><a href="{{$.Prefix}}/unlink/{{.Kind}}">Unlink {{.Kind}}</a></p>
{{end}}
<p><a href="{{.Prefix}}/logout">Logout</a></p>
</body></html>{{end}}

{{define "forgot"}}<!DOCTYPE html>
<html><head><title>{{.Title}}</title></head><body>
<h1>{{.Title}}</h1>
{{template "flash" .}}
<form method="POST" action="{{.Prefix}}/forgot">
	<label>Email: <input type="email" name="email" required></label>
	<button type="submit">Send Reset Link</button>
</form>
</body></html>{{end}}

{{define "reset"}}<!DOCTYPE html>
<html><head><title>{{.Title}}</title></head><body>
<h1>{{.Title}}</h1>
{{template "flash" .}}
<form method="POST" action="{{.Prefix}}/reset/{{.Token}}">
	<label>New Password: <input type="password" name="password" required minlength="4"></label>
	<label>Confirm Password: <input type="password" name="confirmPassword" required></label>
	<button type="submit">Reset Password</button>
</form>
</body></html>{{end}}
`
