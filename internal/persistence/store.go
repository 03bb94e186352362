package persistence

import (
	"context"
	"fmt"
	"regexp"
)

// Store is the generic keyed-collection contract shared by every entity.
//
// Implementations assign ids and lifecycle timestamps, merge partial updates,
// and serialise mutations per collection so that concurrent writers never lose
// updates. Readers never observe a partially written collection.
type Store interface {
	// GetAll returns the collection in creation order. A missing or malformed
	// collection yields an empty slice.
	GetAll(ctx context.Context, entity string) ([]Record, error)
	// GetByID returns ErrNotFound when no record carries the id.
	GetByID(ctx context.Context, entity string, id int64) (Record, error)
	// Create stores fields as a new record and returns it as persisted.
	Create(ctx context.Context, entity string, fields Record) (Record, error)
	// Update merges fields into an existing record. ErrNotFound when absent.
	Update(ctx context.Context, entity string, id int64, fields Record) (Record, error)
	// Delete removes a record and reports whether one was removed.
	Delete(ctx context.Context, entity string, id int64) (bool, error)
}

var entityPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidateEntity rejects collection names that are not lower-case identifiers.
func ValidateEntity(entity string) error {
	if !entityPattern.MatchString(entity) {
		return fmt.Errorf("%w: %q", ErrInvalidEntity, entity)
	}
	return nil
}
