package oneaccount

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is shared across forms; validator instances cache struct
// metadata and are safe for concurrent use.
var validate = validator.New()

// LoginForm carries a login submission.
type LoginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// SignupForm carries a signup submission. Passwords must be at least 4
// characters.
type SignupForm struct {
	Email           string `validate:"required,email"`
	Password        string `validate:"required,min=4"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

// ProfileForm carries a profile update. Absent optional fields overwrite
// their stored values with blanks.
type ProfileForm struct {
	Email    string `validate:"required,email"`
	Name     string
	Gender   string
	Location string
	Website  string
}

// PasswordForm carries a password change or reset submission.
type PasswordForm struct {
	Password        string `validate:"required,min=4"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

// ForgotForm carries a password-reset request.
type ForgotForm struct {
	Email string `validate:"required,email"`
}

// ValidateForm validates a form struct and returns user-facing messages.
// overrides maps "Field" or "Field.tag" to an exact message so each handler
// controls its own wording; anything unmatched falls back to a humanized
// default.
func ValidateForm(form any, overrides map[string]string) []string {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{"Invalid input."}
	}

	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		if msg, ok := overrides[fe.Field()+"."+fe.Tag()]; ok {
			msgs = append(msgs, msg)
			continue
		}
		if msg, ok := overrides[fe.Field()]; ok {
			msgs = append(msgs, msg)
			continue
		}
		msgs = append(msgs, fieldError(fe))
	}
	return msgs
}

// fieldError converts a single ValidationError into a human-readable message.
func fieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " cannot be blank"
	case "email":
		return field + " is not valid"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "eqfield":
		return "Passwords do not match"
	default:
		return fmt.Sprintf("%s failed validation (%s)", strings.ToLower(field), fe.Tag())
	}
}
