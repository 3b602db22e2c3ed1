package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

const (
	defaultTable       = "kv"
	defaultBusyTimeout = 5 * time.Second
	memoryPath         = ":memory:"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteKV is a KV persisted in a single SQLite table.
type SQLiteKV struct {
	db          *sql.DB
	table       string
	busyTimeout time.Duration
	closed      atomic.Bool
}

// OpenSQLite opens or creates the database at path and applies migrations.
// The path ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteKV, error) {
	s := &SQLiteKV{table: defaultTable, busyTimeout: defaultBusyTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if !tableName.MatchString(s.table) {
		return nil, fmt.Errorf("invalid table name %q", s.table)
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != memoryPath {
		path = filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	dsn, err := sqliteDSN(path, s.busyTimeout)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == memoryPath {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s.db = db
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// sqliteDSN builds a file: URI with the path escaped, so '?' or '#' in a
// directory name cannot cut into the pragma query.
func sqliteDSN(path string, busyTimeout time.Duration) (string, error) {
	query := url.Values{}
	query.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	query.Add("_pragma", "journal_mode(WAL)")
	query.Add("_pragma", "synchronous(NORMAL)")

	u := url.URL{Scheme: "file", RawQuery: query.Encode()}
	if path == memoryPath {
		u.Opaque = memoryPath
		return u.String(), nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve storage path: %w", err)
	}
	u.Path = filepath.ToSlash(abs)
	return u.String(), nil
}

func (s *SQLiteKV) migrate(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteKV) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteKV) Get(ctx context.Context, key string) (string, bool, error) {
	if err := s.check(key); err != nil {
		return "", false, err
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM `+s.table+` WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteKV) Set(ctx context.Context, key, value string) error {
	if err := s.check(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.upsertSQL(), key, value, now()); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// SetMany upserts every pair in one transaction; either all land or none.
func (s *SQLiteKV) SetMany(ctx context.Context, values map[string]string) (err error) {
	for key := range values {
		if err := s.check(key); err != nil {
			return err
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, s.upsertSQL())
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	ts := now()
	for key, value := range values {
		if _, err = stmt.ExecContext(ctx, key, value, ts); err != nil {
			return fmt.Errorf("set %q: %w", key, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteKV) upsertSQL() string {
	return `INSERT INTO ` + s.table + ` (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (s *SQLiteKV) Remove(ctx context.Context, key string) error {
	if err := s.check(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteKV) check(key string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}
