package models

import "errors"

// Sentinel errors for common failure conditions. Evaluated login and
// quota outcomes are not errors; they travel as decision values.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
)
