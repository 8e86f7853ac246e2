package store

import "errors"

// Error kinds surfaced by store operations. Handlers match these with
// errors.Is to pick response codes; validation details are wrapped around
// ErrValidation with %w.
var (
	ErrItemNotFound  = errors.New("item not found")
	ErrDuplicateCode = errors.New("item code already exists")
	ErrValidation    = errors.New("invalid input")
	ErrEmptyRequest  = errors.New("no ids supplied")
)
