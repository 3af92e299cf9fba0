package model

import "errors"

// Sentinel errors shared by the store, the mutation service and the client
// mirror. Callers match them with errors.Is.
var (
	// ErrNotFound means a board, column, card, tag or preset referenced by
	// id or key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized means the password check failed on a protected board.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrExists means an entity keyed by a unique key (tag title, preset
	// name) is already present.
	ErrExists = errors.New("already exists")
)
