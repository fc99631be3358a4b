package shared

import (
	"errors"
	"fmt"
)

// Error kinds classify every domain failure so the HTTP layer can map them
// to status codes without knowing individual sentinels. Duplicate submissions
// of idempotent commands are NOT errors; they surface as flagged results.
var (
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a state-machine or uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrNotFound indicates a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInternal indicates a storage or transaction failure.
	ErrInternal = errors.New("internal error")
)

// E builds a sentinel error carrying one of the kinds above.
func E(kind error, msg string) error {
	return fmt.Errorf("%s: %w", msg, kind)
}
