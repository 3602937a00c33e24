package entries

import "errors"

var (
	// ErrNotFound indicates the entry id is unknown to the store.
	ErrNotFound = errors.New("reflection not found")
	// ErrValidation wraps every field validation failure.
	ErrValidation = errors.New("validation failed")
	// ErrStorage indicates the backing file could not be written.
	ErrStorage = errors.New("storage failure")
)
