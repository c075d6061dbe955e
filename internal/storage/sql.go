package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectSQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

const defaultOpTimeout = 5 * time.Second

// SQLStorage stores items in a single kv_storage table. The same schema and
// upsert work on Postgres and SQLite; only the placeholder style differs.
type SQLStorage struct {
	db        *sql.DB
	dialect   Dialect
	opTimeout time.Duration
	nowFunc   func() time.Time
}

func NewPostgresStorage(db *sql.DB, opTimeout time.Duration) (*SQLStorage, error) {
	return newSQLStorage(db, DialectPostgres, opTimeout)
}

func NewSQLiteStorage(db *sql.DB, opTimeout time.Duration) (*SQLStorage, error) {
	return newSQLStorage(db, DialectSQLite, opTimeout)
}

func newSQLStorage(db *sql.DB, dialect Dialect, opTimeout time.Duration) (*SQLStorage, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	s := &SQLStorage{
		db:        db,
		dialect:   dialect,
		opTimeout: opTimeout,
		nowFunc:   time.Now,
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(path string) (*sql.DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir sqlite dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	return db, nil
}

// OpenPostgres opens and pings a Postgres database.
func OpenPostgres(dsn string) (*sql.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func (s *SQLStorage) Dialect() Dialect {
	return s.dialect
}

func (s *SQLStorage) ensureSchema() error {
	const q = `
CREATE TABLE IF NOT EXISTS kv_storage (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("ensure kv_storage schema: %w", err)
	}
	return nil
}

func (s *SQLStorage) GetItem(key string) (string, bool, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return "", false, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	var value string
	q := s.rebind(`SELECT value FROM kv_storage WHERE key = ?`)
	if err := s.db.QueryRowContext(ctx, q, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("query storage item %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLStorage) SetItem(key, value string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	q := s.rebind(`
INSERT INTO kv_storage (key, value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value,
	updated_at = EXCLUDED.updated_at`)
	if _, err := s.db.ExecContext(ctx, q, key, value, s.nowFunc().UTC()); err != nil {
		return fmt.Errorf("upsert storage item %s: %w", key, err)
	}
	return nil
}

func (s *SQLStorage) RemoveItem(key string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	q := s.rebind(`DELETE FROM kv_storage WHERE key = ?`)
	if _, err := s.db.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("delete storage item %s: %w", key, err)
	}
	return nil
}

func (s *SQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStorage) rebind(q string) string {
	if s.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
