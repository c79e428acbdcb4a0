// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package validate checks sign-up, profile and promotion input and reports every
failing field in one VALIDATION_ERROR.

Services run it on domain input before touching storage. Handlers run it on
path ids and query filters.

	err := (&validate.Validator{}).
		Required("username", in.Username).
		Username("username", in.Username).
		Email("email", in.Email).
		Err()
*/
package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/pkg/uuid"
)

// Bounds shared by member and administrator accounts.
const (
	UsernameMinLen = 4
	UsernameMaxLen = 20
	PasswordMinLen = 8
	PasswordMaxLen = 64
	NicknameMaxLen = 30
	IntroMaxLen    = 1000
)

// Usernames reach the validator already folded by canon.Username.
var usernamePattern = regexp.MustCompile(`^[a-z0-9._-]+$`)

// ErrInvalidJSON is returned for a body that does not decode.
var ErrInvalidJSON = apperr.ValidationError("Invalid JSON payload")

// Validator accumulates field errors so a form reports every problem at once.
// Use a fresh one per operation.
type Validator struct {
	errs []apperr.FieldError
}

// Required fails if the trimmed value is empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, "This field is required")
	}
	return v
}

// MaxLen fails if the Unicode character count exceeds max.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.add(field, fmt.Sprintf("Maximum %d characters", max))
	}
	return v
}

// MinLen fails if the Unicode character count is below min.
func (v *Validator) MinLen(field, value string, min int) *Validator {
	if utf8.RuneCountInString(value) < min {
		v.add(field, fmt.Sprintf("Minimum %d characters", min))
	}
	return v
}

// Email fails if the value is not a valid RFC 5322 email address.
func (v *Validator) Email(field, value string) *Validator {
	if _, err := mail.ParseAddress(value); err != nil {
		v.add(field, "Must be a valid email address")
	}
	return v
}

// Username fails if the canonical username has characters outside the allowed set.
func (v *Validator) Username(field, value string) *Validator {
	if !usernamePattern.MatchString(value) {
		v.add(field, "Only lowercase letters, digits, '.', '_' and '-' are allowed")
	}
	return v
}

// Password enforces the length bounds and requires both a letter and a digit.
func (v *Validator) Password(field, value string) *Validator {
	count := utf8.RuneCountInString(value)
	if count < PasswordMinLen || count > PasswordMaxLen {
		v.add(field, fmt.Sprintf("Must be between %d and %d characters", PasswordMinLen, PasswordMaxLen))
		return v
	}

	var letter, digit bool
	for _, r := range value {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	if !letter || !digit {
		v.add(field, "Must contain at least one letter and one digit")
	}
	return v
}

// UUID fails if the value is not a valid UUID string.
func (v *Validator) UUID(field, value string) *Validator {
	if !uuid.Valid(value) {
		v.add(field, "Must be a valid UUID")
	}
	return v
}

// OneOf fails if the value is not in the allowed set of strings.
func (v *Validator) OneOf(field, value string, allowed ...string) *Validator {
	if !slices.Contains(allowed, value) {
		v.add(field, "Must be one of: "+strings.Join(allowed, ", "))
	}
	return v
}

// Err ends the chain: nil when every rule passed, otherwise one VALIDATION_ERROR
// listing the failures in the order they were checked.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return apperr.ValidationError("Validation failed", v.errs...)
}

// HasErrors reports whether any validation rule has failed so far.
func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

func (v *Validator) add(field, message string) {
	v.errs = append(v.errs, apperr.FieldError{Field: field, Message: message})
}

// RequiredError builds a VALIDATION_ERROR for a single field.
func RequiredError(field, message string) *apperr.AppError {
	return apperr.ValidationError("Validation failed", apperr.FieldError{
		Field:   field,
		Message: message,
	})
}
