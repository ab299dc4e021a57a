package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/promptguild/promptguild/internal/model"
)

type users struct{ s *Store }

func (u *users) Upsert(ctx context.Context, in *model.User) (*model.User, error) {
	now := u.s.now()
	_, err := u.s.db.ExecContext(ctx, u.s.q(`
        INSERT INTO users (user_id, email, display_name, created_at, last_seen_at)
        VALUES (?,?,?,?,?)
        ON CONFLICT (user_id) DO UPDATE SET
            email = CASE WHEN excluded.email <> '' THEN excluded.email ELSE users.email END,
            display_name = CASE WHEN excluded.display_name <> '' THEN excluded.display_name ELSE users.display_name END,
            last_seen_at = excluded.last_seen_at
    `), in.UserID, strings.TrimSpace(in.Email), in.DisplayName, toMicros(now), toMicros(now))
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u.Get(ctx, in.UserID)
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	row := u.s.db.QueryRowContext(ctx, u.s.q(`SELECT `+userColumns+` FROM users WHERE user_id=?`), userID)
	return scanUser(row)
}

func (u *users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, model.ErrNotFound
	}
	row := u.s.db.QueryRowContext(ctx, u.s.q(`SELECT `+userColumns+` FROM users
        WHERE lower(email) = lower(?) ORDER BY last_seen_at DESC LIMIT 1`), email)
	return scanUser(row)
}
