package sqlstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/promptguild/promptguild/internal/model"
)

const promptColumns = `id, owner_id, guild_id, title, content, category, use_count, ratings, avg_rating,
ai_summary, ai_use_case, ai_tags, created_at, updated_at, revision`

const versionColumns = `id, prompt_id, title, content, category, saved_at`

// member_ids is JSONB on Postgres; the cast keeps the scan type uniform.
const guildColumns = `id, name, members, CAST(member_ids AS TEXT), created_at, updated_at, revision`

const userColumns = `user_id, email, display_name, created_at, last_seen_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrompt(r rowScanner) (*model.Prompt, error) {
	var (
		p                model.Prompt
		category         sql.NullString
		ratings, tags    string
		created, updated int64
	)
	err := r.Scan(&p.PromptID, &p.OwnerID, &p.GuildID, &p.Title, &p.Content, &category, &p.UseCount,
		&ratings, &p.AvgRating, &p.AISummary, &p.AIUseCase, &tags, &created, &updated, &p.Revision)
	if err != nil {
		return nil, notFound(err)
	}
	p.Category = fromNullString(category)
	p.Ratings = map[string]int{}
	if err := unmarshalJSON(ratings, &p.Ratings); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(tags, &p.AITags); err != nil {
		return nil, err
	}
	p.CreatedAt = fromMicros(created)
	p.UpdatedAt = fromMicros(updated)
	return &p, nil
}

func scanVersion(r rowScanner) (*model.Version, error) {
	var (
		v        model.Version
		category sql.NullString
		saved    int64
	)
	if err := r.Scan(&v.VersionID, &v.PromptID, &v.Title, &v.Content, &category, &saved); err != nil {
		return nil, notFound(err)
	}
	v.Category = fromNullString(category)
	v.SavedAt = fromMicros(saved)
	return &v, nil
}

func scanGuild(r rowScanner) (*model.Guild, error) {
	var (
		g                model.Guild
		members, ids     string
		created, updated int64
	)
	if err := r.Scan(&g.GuildID, &g.Name, &members, &ids, &created, &updated, &g.Revision); err != nil {
		return nil, notFound(err)
	}
	g.Members = map[string]model.Role{}
	if err := unmarshalJSON(members, &g.Members); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(ids, &g.MemberIDs); err != nil {
		return nil, err
	}
	if g.MemberIDs == nil {
		g.MemberIDs = []string{}
	}
	g.CreatedAt = fromMicros(created)
	g.UpdatedAt = fromMicros(updated)
	return &g, nil
}

func scanUser(r rowScanner) (*model.User, error) {
	var (
		u             model.User
		created, seen int64
	)
	if err := r.Scan(&u.UserID, &u.Email, &u.DisplayName, &created, &seen); err != nil {
		return nil, notFound(err)
	}
	u.CreatedAt = fromMicros(created)
	u.LastSeenAt = fromMicros(seen)
	return &u, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalJSON(s string, v any) error {
	if s == "" || s == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func toMicros(t time.Time) int64 { return t.UnixMicro() }

func fromMicros(v int64) time.Time { return time.UnixMicro(v).UTC() }
