// Package postgres is the shared, multi-instance store backend.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/promptguild/promptguild/internal/store/sqlstore"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New opens dsn, applies the schema and returns the store.
func New(ctx context.Context, dsn string, opts sqlstore.Options) (*sqlstore.Store, error) {
	db, err := Open(dsn)
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

// Bootstrap performs a connectivity check to ensure Postgres is reachable.
func Bootstrap(ctx context.Context, dsn string) error {
	if dsn == "" {
		return fmt.Errorf("postgres DSN is empty")
	}

	db, err := Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return db.PingContext(ctx)
}

// Dialect implements sqlstore.Dialect for PostgreSQL.
type Dialect struct{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) Rebind(query string) string { return sqlstore.RebindDollar(query) }

func (Dialect) MemberFilter() string {
	return `guilds.member_ids @> jsonb_build_array(CAST(? AS TEXT))`
}

// IsRetryable matches serialization failures and deadlocks.
func (Dialect) IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01":
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
            use_count   BIGINT NOT NULL DEFAULT 0,
            ratings     TEXT NOT NULL DEFAULT '{}',
            avg_rating  DOUBLE PRECISION NOT NULL DEFAULT 0,
            ai_summary  TEXT NOT NULL DEFAULT '',
            ai_use_case TEXT NOT NULL DEFAULT '',
            ai_tags     TEXT NOT NULL DEFAULT '[]',
            created_at  BIGINT NOT NULL,
            updated_at  BIGINT NOT NULL,
            revision    BIGINT NOT NULL DEFAULT 1
        )`,
		`CREATE INDEX IF NOT EXISTS prompts_owner_idx ON prompts (owner_id, guild_id, updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS prompts_guild_idx ON prompts (guild_id, updated_at DESC)`,
		`CREATE TABLE IF NOT EXISTS prompt_versions (
            id        TEXT PRIMARY KEY,
            prompt_id TEXT NOT NULL,
            title     TEXT NOT NULL,
            content   TEXT NOT NULL,
            category  TEXT,
            saved_at  BIGINT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS prompt_versions_prompt_idx ON prompt_versions (prompt_id, saved_at DESC)`,
		`CREATE TABLE IF NOT EXISTS guilds (
            id         TEXT PRIMARY KEY,
            name       TEXT NOT NULL,
            members    TEXT NOT NULL DEFAULT '{}',
            member_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
            created_at BIGINT NOT NULL,
            updated_at BIGINT NOT NULL,
            revision   BIGINT NOT NULL DEFAULT 1
        )`,
		`CREATE INDEX IF NOT EXISTS guilds_member_ids_idx ON guilds USING GIN (member_ids)`,
		`CREATE TABLE IF NOT EXISTS users (
            user_id      TEXT PRIMARY KEY,
            email        TEXT NOT NULL DEFAULT '',
            display_name TEXT NOT NULL DEFAULT '',
            created_at   BIGINT NOT NULL,
            last_seen_at BIGINT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS users_email_idx ON users (lower(email))`,
	}
}
