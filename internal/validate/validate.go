// Package validate performs schema validation of inbound commands and owns
// the ValidationError type surfaced for every user-correctable failure.
package validate

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	usernameMessage = "Username must has minimum 5 and maximum 20 characters, contain only alphanumeric characters"
	passwordMessage = "Password must has minimum 5 and maximum 20 characters, at least one uppercase letter, one lowercase letter, one number and one special character"
)

// ValidationError carries one message per violated field. For non-schema
// violations (duplicate email, provider rejection) Fields holds a single
// entry keyed by the offending field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, m := range e.Fields {
		msgs = append(msgs, m)
	}
	return "validation: " + strings.Join(msgs, "; ")
}

// NewValidationError builds a single-field validation failure.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

var v = newValidator()

func newValidator() *validator.Validate {
	vd := validator.New(validator.WithRequiredStructEnabled())
	_ = vd.RegisterValidation("username", validUsername)
	_ = vd.RegisterValidation("userpassword", validPassword)
	return vd
}

func validUsername(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) < 5 || len(s) > 20 {
		return false
	}
	for _, r := range s {
		if !isAlnum(r) {
			return false
		}
	}
	return true
}

// validPassword enforces length 5-20 over the allowed charset with at least
// one lowercase, one uppercase, one digit and one of @$!%*?&.
func validPassword(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) < 5 || len(s) > 20 {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune("@$!%*?&", r):
			special = true
		default:
			return false
		}
	}
	return lower && upper && digit && special
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// Struct validates in against its `validate` tags and translates failures
// into a ValidationError with one human-readable message per field.
func Struct(in any) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldName(fe)] = message(fe)
	}
	return &ValidationError{Fields: fields}
}

func fieldName(fe validator.FieldError) string {
	// StructField is exported Go casing; commands use lowerCamel json names.
	f := fe.StructField()
	return strings.ToLower(f[:1]) + f[1:]
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fieldName(fe) + " is a required field"
	case "email":
		return fieldName(fe) + " must be a valid email"
	case "username":
		return usernameMessage
	case "userpassword":
		return passwordMessage
	case "max":
		return fieldName(fe) + " must be at most " + fe.Param() + " characters"
	default:
		return fieldName(fe) + " is invalid"
	}
}
