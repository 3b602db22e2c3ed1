// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	Storage Storage `koanf:"storage"`
	Persist Persist `koanf:"persist"`
	OBS     OBS     `koanf:"obs"`
	Catalog Catalog `koanf:"catalog"`
}

// Storage selects where counter state lives.
type Storage struct {
	// Path of the SQLite file. Empty keeps state in memory.
	Path          string `koanf:"path"`
	BusyTimeoutMS int    `koanf:"busy_timeout_ms"`
}

// Persist sizes the asynchronous write path.
type Persist struct {
	QueueSize int `koanf:"queue_size"`
	Workers   int `koanf:"workers"`
}

// OBS configures the obs-websocket mirroring sink.
type OBS struct {
	Enabled          bool   `koanf:"enabled"`
	URL              string `koanf:"url"`
	Password         string `koanf:"password"`
	DialTimeoutMS    int    `koanf:"dial_timeout_ms"`
	RequestTimeoutMS int    `koanf:"request_timeout_ms"`
}

// Catalog configures pokemon lookups.
type Catalog struct {
	APIBase     string `koanf:"api_base"`
	SpriteBase  string `koanf:"sprite_base"`
	TimeoutMS   int    `koanf:"timeout_ms"`
	EmbedImages bool   `koanf:"embed_images"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":9080",
		Storage: Storage{
			Path:          "",
			BusyTimeoutMS: 5000,
		},
		Persist: Persist{
			QueueSize: 64,
			Workers:   max(1, runtime.NumCPU()/4),
		},
		OBS: OBS{
			Enabled:          false,
			URL:              "ws://127.0.0.1:4455",
			DialTimeoutMS:    5000,
			RequestTimeoutMS: 5000,
		},
		Catalog: Catalog{
			APIBase:     "https://pokeapi.co/api/v2",
			SpriteBase:  "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/other/home/shiny",
			TimeoutMS:   10000,
			EmbedImages: true,
		},
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Persist.QueueSize <= 0:
		return fmt.Errorf("%w: persist.queue_size must be positive, got %d", ErrInvalidConfig, c.Persist.QueueSize)
	case c.Persist.Workers <= 0:
		return fmt.Errorf("%w: persist.workers must be positive, got %d", ErrInvalidConfig, c.Persist.Workers)
	case c.OBS.Enabled && strings.TrimSpace(c.OBS.URL) == "":
		return fmt.Errorf("%w: obs.url is required when obs.enabled is set", ErrInvalidConfig)
	case c.Storage.BusyTimeoutMS < 0:
		return fmt.Errorf("%w: storage.busy_timeout_ms must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
