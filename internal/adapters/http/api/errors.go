package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrNotFound    = errors.New("not found")
	ErrNoSelection = errors.New("no counter selected")
	ErrUnavailable = errors.New("feature not configured")
)
