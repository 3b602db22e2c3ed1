package repository

import "time"

// Option applies a configuration option to the SQLiteKV.
type Option func(*SQLiteKV)

// WithBusyTimeout sets how long SQLite waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *SQLiteKV) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithTable overrides the table holding key-value rows.
func WithTable(name string) Option {
	return func(s *SQLiteKV) {
		if name != "" {
			s.table = name
		}
	}
}
