// Package history implements the durable fraud-count store shared across
// scoring runs. Two backends exist: a single-document JSON file with atomic
// replace semantics, and a SQLite database. Both serialize same-identity
// mutations and persist every increment before returning it to the caller.
package history

import (
	"context"
	"errors"
	"fmt"
)

// Store errors.
var (
	// ErrPersistence indicates a durable write failed. A lost increment
	// corrupts recurring-fraud detection going forward, so callers must
	// treat this as fatal for the run.
	ErrPersistence = errors.New("history persistence failed")

	// ErrEmptyIdentity indicates a caller passed an empty identity.
	ErrEmptyIdentity = errors.New("identity must not be empty")
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context must not be nil")
	}
	return ctx.Err()
}

func validateIdentity(identity string) error {
	if identity == "" {
		return ErrEmptyIdentity
	}
	return nil
}
