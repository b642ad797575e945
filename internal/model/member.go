// Package model defines data structures used throughout the application.
package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultImageURL is used whenever a member has no usable portrait.
const DefaultImageURL = "/mona.jpeg"

// Validation constants.
const (
	MinFieldLength = 2
	MaxFieldLength = 50
)

// ErrInvalidFields is matched by every *ValidationError.
var ErrInvalidFields = errors.New("invalid member fields")

var rosterNamePattern = regexp.MustCompile(`^[a-zA-Z\s\-'.]{2,50}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("rostername", func(fl validator.FieldLevel) bool {
		return rosterNamePattern.MatchString(fl.Field().String())
	})
	return v
}

// Member is a single roster record. Identity is ID; the remaining fields are
// replaced through the store only.
type Member struct {
	ID       string `json:"id"`
	ImageURL string `json:"imageUrl"`
	UserName string `json:"userName"`
	JobTitle string `json:"jobTitle"`
}

// Fields returns the display fields of the member.
func (m Member) Fields() MemberFields {
	return MemberFields{UserName: m.UserName, JobTitle: m.JobTitle}
}

// MemberFields holds the user-editable display fields of a member.
type MemberFields struct {
	UserName string `json:"userName" validate:"required,rostername"`
	JobTitle string `json:"jobTitle" validate:"required,rostername"`
}

// Normalize trims surrounding whitespace from every field.
func (f MemberFields) Normalize() MemberFields {
	return MemberFields{
		UserName: strings.TrimSpace(f.UserName),
		JobTitle: strings.TrimSpace(f.JobTitle),
	}
}

// Validate checks the trimmed fields. The returned error is a
// *ValidationError keyed by JSON field name.
func (f MemberFields) Validate() error {
	n := f.Normalize()
	err := validate.Struct(n)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validating member fields: %w", err)
	}

	verr := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		key, label := fieldNames(fe.StructField())
		verr.Fields[key] = fieldMessage(label, fe.Tag())
	}
	return verr
}

func fieldNames(structField string) (jsonKey, label string) {
	switch structField {
	case "UserName":
		return "userName", "Name"
	case "JobTitle":
		return "jobTitle", "Title"
	default:
		return strings.ToLower(structField), structField
	}
}

func fieldMessage(label, tag string) string {
	if tag == "required" {
		return label + " is required"
	}
	return fmt.Sprintf(
		"%s can only contain letters, spaces, hyphens, and apostrophes (%d-%d characters)",
		label, MinFieldLength, MaxFieldLength,
	)
}

// ValidationError reports per-field validation failures.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := []string{"userName", "jobTitle"}
	parts := make([]string, 0, len(e.Fields))
	for _, k := range keys {
		if msg, ok := e.Fields[k]; ok {
			parts = append(parts, msg)
		}
	}
	if len(parts) == 0 {
		return ErrInvalidFields.Error()
	}
	return strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrInvalidFields) hold for validation failures.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidFields
}
