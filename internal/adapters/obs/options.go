package obs

import (
	"time"

	"github.com/ceejiggy/shinycounter/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithPassword sets the obs-websocket server password.
func WithPassword(password string) Option {
	return func(c *Client) {
		c.password = password
	}
}

// WithOrigin sets the Origin header sent on dial.
func WithOrigin(origin string) Option {
	return func(c *Client) {
		if origin != "" {
			c.origin = origin
		}
	}
}

// WithTimeout bounds the dial and handshake.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRequestTimeout bounds the wait for each request response.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithOnConnect registers fn to run after each successful handshake.
func WithOnConnect(fn func()) Option {
	return func(c *Client) {
		if fn != nil {
			c.onConnect = append(c.onConnect, fn)
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
