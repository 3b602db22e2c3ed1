package catalog

import "errors"

// Sentinel kinds for catalog lookup errors.
var (
	ErrNotFound  = errors.New("catalog: pokemon not found")
	ErrBadStatus = errors.New("catalog: unexpected response status")
	ErrNoName    = errors.New("catalog: name is required")
)
