package service

import "errors"

// Sentinel errors returned by the Service.
var (
	ErrNotStarted      = errors.New("service not started")
	ErrUnknownCounter  = errors.New("unknown counter")
	ErrCatalogDisabled = errors.New("catalog lookups are disabled")
)
