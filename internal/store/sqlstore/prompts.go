package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/promptguild/promptguild/internal/events"
	"github.com/promptguild/promptguild/internal/model"
)

type prompts struct{ s *Store }

func (p *prompts) Create(ctx context.Context, in *model.Prompt) (*model.Prompt, error) {
	out := *in
	if out.PromptID == "" {
		out.PromptID = uuid.New().String()
	}
	now := p.s.now()
	out.CreatedAt, out.UpdatedAt = now, now
	out.UseCount = 0
	out.Ratings = map[string]int{}
	out.AvgRating = 0
	out.Revision = 1

	ratings, err := marshalJSON(out.Ratings)
	if err != nil {
		return nil, err
	}
	tags, err := marshalJSON(out.AITags)
	if err != nil {
		return nil, err
	}
	_, err = p.s.db.ExecContext(ctx, p.s.q(`
        INSERT INTO prompts (id, owner_id, guild_id, title, content, category, use_count, ratings, avg_rating,
            ai_summary, ai_use_case, ai_tags, created_at, updated_at, revision)
        VALUES (?,?,?,?,?,?,0,?,0,?,?,?,?,?,1)
    `), out.PromptID, out.OwnerID, out.GuildID, out.Title, out.Content, nullString(out.Category), ratings,
		out.AISummary, out.AIUseCase, tags, toMicros(now), toMicros(now))
	if err != nil {
		return nil, fmt.Errorf("insert prompt: %w", err)
	}
	p.s.publish(ctx, promptEvent(events.EventPromptCreated, &out))
	return &out, nil
}

func (p *prompts) Get(ctx context.Context, promptID string) (*model.Prompt, error) {
	return getPrompt(ctx, p.s, p.s.db, promptID)
}

func (p *prompts) ListPersonal(ctx context.Context, ownerID string) ([]*model.Prompt, error) {
	return p.list(ctx, `owner_id=? AND guild_id=''`, ownerID)
}

func (p *prompts) ListShared(ctx context.Context, guildID string) ([]*model.Prompt, error) {
	if guildID == "" {
		return []*model.Prompt{}, nil
	}
	return p.list(ctx, `guild_id=?`, guildID)
}

func (p *prompts) list(ctx context.Context, where string, arg string) ([]*model.Prompt, error) {
	rows, err := p.s.db.QueryContext(ctx, p.s.q(`SELECT `+promptColumns+` FROM prompts WHERE `+where+
		` ORDER BY updated_at DESC, id`), arg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := []*model.Prompt{}
	for rows.Next() {
		pr, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, pr)
	}
	return res, rows.Err()
}

func (p *prompts) Delete(ctx context.Context, promptID string) error {
	existing, err := p.Get(ctx, promptID)
	if err != nil {
		return err
	}
	res, err := p.s.db.ExecContext(ctx, p.s.q(`DELETE FROM prompts WHERE id=?`), promptID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	p.s.publish(ctx, promptEvent(events.EventPromptDeleted, existing))
	return nil
}

func (p *prompts) IncrementUseCount(ctx context.Context, promptID string) (*model.Prompt, error) {
	res, err := p.s.db.ExecContext(ctx, p.s.q(`
        UPDATE prompts SET use_count = use_count + 1, revision = revision + 1 WHERE id=?
    `), promptID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	out, err := p.Get(ctx, promptID)
	if err != nil {
		return nil, err
	}
	p.s.publish(ctx, promptEvent(events.EventPromptUpdated, out))
	return out, nil
}

func (p *prompts) SetAnalysis(ctx context.Context, promptID string, a model.Analysis) error {
	tags, err := marshalJSON(a.Tags)
	if err != nil {
		return err
	}
	res, err := p.s.db.ExecContext(ctx, p.s.q(`
        UPDATE prompts SET ai_summary=?, ai_use_case=?, ai_tags=?, revision = revision + 1 WHERE id=?
    `), a.Summary, a.UseCase, tags, promptID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	if out, err := p.Get(ctx, promptID); err == nil {
		p.s.publish(ctx, promptEvent(events.EventPromptUpdated, out))
	}
	return nil
}

func (p *prompts) ListUnanalyzed(ctx context.Context, limit int) ([]*model.Prompt, error) {
	if limit <= 0 {
		return []*model.Prompt{}, nil
	}
	rows, err := p.s.db.QueryContext(ctx, p.s.q(`SELECT `+promptColumns+` FROM prompts WHERE ai_summary=''
        ORDER BY created_at, id LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := []*model.Prompt{}
	for rows.Next() {
		pr, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, pr)
	}
	return res, rows.Err()
}

func getPrompt(ctx context.Context, s *Store, db execer, promptID string) (*model.Prompt, error) {
	row := db.QueryRowContext(ctx, s.q(`SELECT `+promptColumns+` FROM prompts WHERE id=?`), promptID)
	return scanPrompt(row)
}

func promptEvent(kind events.EventKind, p *model.Prompt) events.Event {
	return events.Event{Kind: kind, PromptID: p.PromptID, OwnerID: p.OwnerID, GuildID: p.GuildID}
}

type versions struct{ s *Store }

func (v *versions) List(ctx context.Context, promptID string) ([]*model.Version, error) {
	rows, err := v.s.db.QueryContext(ctx, v.s.q(`SELECT `+versionColumns+` FROM prompt_versions
        WHERE prompt_id=? ORDER BY saved_at DESC, id DESC`), promptID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := []*model.Version{}
	for rows.Next() {
		ver, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, ver)
	}
	return res, rows.Err()
}
