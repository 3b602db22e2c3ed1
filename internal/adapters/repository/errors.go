package repository

import "errors"

// Sentinel kinds for key-value store errors.
var (
	ErrEmptyKey = errors.New("empty key")
	ErrClosed   = errors.New("store closed")
)
