package application

import (
	"errors"
	"fmt"

	"github.com/example/taskplanner/internal/persistence"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrUnauthenticated is returned for missing, malformed or expired session tokens.
	ErrUnauthenticated = errors.New("application: unauthenticated")
	// ErrForbidden is returned when a valid principal lacks the required role.
	ErrForbidden = errors.New("application: forbidden")
	// ErrInvalidCredentials is returned when a submitted access code matches nothing.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAlreadyExists is returned when a unique field is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrDependency wraps failures of external collaborators.
	ErrDependency = errors.New("application: dependency failure")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// dependencyError tags a collaborator failure so the transport maps it to a server error.
func dependencyError(collaborator string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDependency, collaborator, err)
}

// storeError translates persistence sentinels into application errors.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
