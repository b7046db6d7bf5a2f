package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateAccount is returned when signing up with an e-mail already in use.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrUnauthorized means no authenticated principal was supplied.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the principal lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation marks malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks an operation rejected because of the current state.
	ErrConflict = errors.New("conflict")
	// ErrTransient marks network or service faults from the store or auth backend.
	ErrTransient = errors.New("service temporarily unavailable")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// ValidationError carries per-field messages and unwraps to ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError from field messages.
func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// FieldErrors extracts per-field messages from err, if any.
func FieldErrors(err error) map[string]string {
	var verr *ValidationError
	if errors.As(err, &verr) && verr != nil {
		return verr.Fields
	}
	return nil
}

// Transient wraps a collaborator failure so callers can classify it.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransient) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}

// UserMessage maps an error to the single message shown to the operator.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, ErrDuplicateAccount):
		return "An account with this email already exists"
	case errors.Is(err, ErrUnauthorized):
		return "Please sign in to continue"
	case errors.Is(err, ErrForbidden):
		return "You don't have permission to perform this action"
	case errors.Is(err, ErrValidation):
		if fields := FieldErrors(err); len(fields) > 0 {
			return (&ValidationError{Fields: fields}).Error()
		}
		return "Some fields are invalid"
	case errors.Is(err, ErrConflict):
		return "This item was already processed"
	case errors.Is(err, ErrNotFound):
		return "The requested item no longer exists"
	case errors.Is(err, ErrTransient):
		return "The service is temporarily unavailable, please try again"
	default:
		return "Something went wrong, please try again"
	}
}
