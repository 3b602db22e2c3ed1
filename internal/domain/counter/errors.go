package counter

import "errors"

// Sentinel kinds reported by Persistence.Read for individual keys.
var (
	ErrCorruptValue = errors.New("corrupt persisted value")
	ErrReadFailed   = errors.New("persisted value unreadable")
)
