package catalog

import (
	"net/http"
	"strings"

	"github.com/ceejiggy/shinycounter/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithAPIBase sets the PokeAPI root, e.g. https://pokeapi.co/api/v2.
func WithAPIBase(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.apiBase = strings.TrimRight(base, "/")
		}
	}
}

// WithSpriteBase sets the root that sprite ids are appended to.
func WithSpriteBase(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.spriteBase = strings.TrimRight(base, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithEmbedImages toggles downloading sprites into data URLs.
func WithEmbedImages(embed bool) Option {
	return func(c *Client) {
		c.embed = embed
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
