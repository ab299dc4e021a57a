// Package sqlite is the local, single-process store backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/promptguild/promptguild/internal/store/sqlstore"
)

// Open opens (or creates) a SQLite database at the given path with WAL journaling.
// Access is serialized over a single connection.
func Open(path string) (*sql.DB, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New opens path, applies the schema and returns the store.
func New(ctx context.Context, path string, opts sqlstore.Options) (*sqlstore.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	s := sqlstore.New(db, Dialect{}, opts)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Dialect implements sqlstore.Dialect for SQLite.
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) Rebind(query string) string { return query }

func (Dialect) MemberFilter() string {
	return `EXISTS (SELECT 1 FROM json_each(guilds.member_ids) WHERE json_each.value = ?)`
}

func (Dialect) IsRetryable(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

func (Dialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS prompts (
            id          TEXT PRIMARY KEY,
            owner_id    TEXT NOT NULL,
            guild_id    TEXT NOT NULL DEFAULT '',
            title       TEXT NOT NULL,
            content     TEXT NOT NULL,
            category    TEXT,
            use_count   INTEGER NOT NULL DEFAULT 0,
            ratings     TEXT NOT NULL DEFAULT '{}',
            avg_rating  REAL NOT NULL DEFAULT 0,
            ai_summary  TEXT NOT NULL DEFAULT '',
            ai_use_case TEXT NOT NULL DEFAULT '',
            ai_tags     TEXT NOT NULL DEFAULT '[]',
            created_at  INTEGER NOT NULL,
            updated_at  INTEGER NOT NULL,
            revision    INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE INDEX IF NOT EXISTS prompts_owner_idx ON prompts (owner_id, guild_id, updated_at)`,
		`CREATE INDEX IF NOT EXISTS prompts_guild_idx ON prompts (guild_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS prompt_versions (
            id        TEXT PRIMARY KEY,
            prompt_id TEXT NOT NULL,
            title     TEXT NOT NULL,
            content   TEXT NOT NULL,
            category  TEXT,
            saved_at  INTEGER NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS prompt_versions_prompt_idx ON prompt_versions (prompt_id, saved_at)`,
		`CREATE TABLE IF NOT EXISTS guilds (
            id         TEXT PRIMARY KEY,
            name       TEXT NOT NULL,
            members    TEXT NOT NULL DEFAULT '{}',
            member_ids TEXT NOT NULL DEFAULT '[]',
            created_at INTEGER NOT NULL,
            updated_at INTEGER NOT NULL,
            revision   INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS users (
            user_id      TEXT PRIMARY KEY,
            email        TEXT NOT NULL DEFAULT '',
            display_name TEXT NOT NULL DEFAULT '',
            created_at   INTEGER NOT NULL,
            last_seen_at INTEGER NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS users_email_idx ON users (lower(email))`,
	}
}
