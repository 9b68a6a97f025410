package errors

import "errors"

var (
	ErrNotFound = errors.New("link not found")

	// ErrDuplicateKey means another writer already inserted a link with the
	// same dedup key.
	ErrDuplicateKey = errors.New("link with the same dedup key already exists")
)
