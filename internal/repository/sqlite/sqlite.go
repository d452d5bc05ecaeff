// Package sqlite implements the repository interfaces using SQLite as the
// storage backend. It is the local-development store — production deployments
// set DATABASE_URL and get the postgres package instead.
//
// WHY SQLITE FOR DEV?
// SQLite is an embedded database — it lives inside the Go binary as a single
// file. No separate database server to install, configure, or manage, and
// ":memory:" gives tests a real SQL engine with zero setup.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C
// compiler installed and cross-compilation becomes painful. modernc.org/sqlite
// is a pure Go translation of the SQLite C code — works everywhere Go works.
package sqlite

import (
	"database/sql"
	"fmt"

	// BLANK IMPORT:
	// The underscore import is a "side-effect only" import. The sqlite
	// package's init() registers itself with database/sql as a driver named
	// "sqlite". After this import, sql.Open("sqlite", ...) knows how to talk
	// to SQLite. This is Go's plugin pattern — drivers register at init time.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and hands out the per-entity stores.
// Users and posts each get their own repository type — they share the pool
// but nothing else, and a GetByID on one can never be confused with the
// other's.
type DB struct {
	conn  *sql.DB
	users *UserStore
	posts *PostStore
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/postforge.db" → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Ping forces an immediate connection so a bad path or permissions
	// issue surfaces here, not on the first unlucky query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is in progress —
	// necessary for a web server where multiple requests hit the DB.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite (backwards compatibility).
	// posts.user_id references users, so we want referential integrity on.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{
		conn:  conn,
		users: &UserStore{conn: conn},
		posts: &PostStore{conn: conn},
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Users returns the user repository backed by this connection.
func (db *DB) Users() *UserStore {
	return db.users
}

// Posts returns the post repository backed by this connection.
func (db *DB) Posts() *PostStore {
	return db.posts
}

// Close closes the database connection pool. The server defers this during
// graceful shutdown so the WAL is flushed and the file lock released.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps this
// idempotent — safe to run on every startup against an existing file.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id          TEXT PRIMARY KEY,
			linkedin_id TEXT NOT NULL DEFAULT '',
			email       TEXT NOT NULL UNIQUE,
			name        TEXT NOT NULL DEFAULT '',
			picture_url TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL REFERENCES users(id),
			theme         TEXT NOT NULL,
			post_type     TEXT NOT NULL,
			length        TEXT NOT NULL,
			tone          TEXT NOT NULL,
			brand_context TEXT NOT NULL DEFAULT '',
			content       TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL DEFAULT 'draft',
			publish_id    TEXT NOT NULL DEFAULT '',
			published_at  DATETIME,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts(user_id);
		CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating posts table: %w", err)
	}

	return nil
}
