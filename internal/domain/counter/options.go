package counter

import (
	"github.com/ceejiggy/shinycounter/internal/domain/model"
	"github.com/ceejiggy/shinycounter/pkg/logger"
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithPersistence sets where Load reads from and Flush writes to.
func WithPersistence(p *Persistence) Option {
	return func(s *Store) {
		if p != nil {
			s.persistence = p
		}
	}
}

// WithEnqueuer sets the sink for asynchronous snapshot persistence.
func WithEnqueuer(e Enqueuer) Option {
	return func(s *Store) {
		if e != nil {
			s.enqueuer = e
		}
	}
}

// WithIDGenerator replaces the random id source.
func WithIDGenerator(fn func() model.ID) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}
