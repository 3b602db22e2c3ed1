package obs

import "errors"

// Sentinel kinds for OBS client errors.
var (
	ErrNotConnected      = errors.New("obs: not connected")
	ErrPasswordRequired  = errors.New("obs: server requires a password")
	ErrHandshake         = errors.New("obs: handshake failed")
	ErrRequestFailed     = errors.New("obs: request failed")
	ErrRequestTimeout    = errors.New("obs: request timed out")
	ErrConnectionDropped = errors.New("obs: connection dropped")
)
