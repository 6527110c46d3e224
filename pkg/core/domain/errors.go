package domain

import "errors"

// Error taxonomy shared by services and transport. Services wrap these with
// detail, callers match them with errors.Is.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("redirect not found")
	ErrConflict     = errors.New("redirect already exists")
	ErrCorrupted    = errors.New("stored value is corrupted")
	ErrInternal     = errors.New("internal error")
)
