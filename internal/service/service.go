// Package service implements the use cases behind the HTTP handlers.
package service

import (
	"errors"

	"github.com/google/uuid"

	"github.com/makeasinger/studio/internal/store"
)

// ErrInvalidID is returned for identifiers that cannot name any record.
// It wraps store.ErrNotFound so callers treat both alike.
var ErrInvalidID = errors.New("malformed id")

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.Join(ErrInvalidID, store.ErrNotFound)
	}
	return nil
}
