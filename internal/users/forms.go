// ABOUTME: User add and edit forms with struct-tag validation.
// ABOUTME: Field errors are reported under the forms' JSON names.

package users

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/2389/hbx/internal/api"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// EditForm edits an existing user. An empty password keeps the current one.
type EditForm struct {
	Username        string `json:"username" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm" validate:"eqfield=Password"`
	Admin           bool   `json:"admin"`
}

// AddForm creates a user; the password is mandatory.
type AddForm struct {
	Username        string `json:"username" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"eqfield=Password"`
	Admin           bool   `json:"admin"`
}

// EditFormFor prefills an edit form from a user record.
func EditFormFor(u api.User) EditForm {
	return EditForm{Username: u.Username, Name: u.Name, Admin: u.Admin}
}

func (f EditForm) Validate() error { return check(f) }

func (f AddForm) Validate() error { return check(f) }

func (f EditForm) input() api.UserInput {
	return api.UserInput{Username: f.Username, Name: f.Name, Password: f.Password, Admin: f.Admin}
}

func (f AddForm) input() api.UserInput {
	return api.UserInput{Username: f.Username, Name: f.Name, Password: f.Password, Admin: f.Admin}
}

// FieldError is one invalid form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors lists every invalid field of a form.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(v.Errors))
	for i, e := range v.Errors {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return "validation failed: " + strings.Join(messages, "; ")
}

// Has reports whether field failed validation.
func (v *ValidationErrors) Has(field string) bool {
	for _, e := range v.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}

func check(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationErrors{}
	for _, e := range verrs {
		out.Errors = append(out.Errors, FieldError{Field: e.Field(), Message: message(e)})
	}
	return out
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "eqfield":
		return "passwords do not match"
	default:
		return fmt.Sprintf("%s failed %s validation", e.Field(), e.Tag())
	}
}
