package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/promptguild/promptguild/internal/events"
	"github.com/promptguild/promptguild/internal/model"
)

// txn implements store.Tx. Events are held until commit.
type txn struct {
	s       *Store
	tx      *sql.Tx
	pending []events.Event
}

func (t *txn) GetPrompt(ctx context.Context, promptID string) (*model.Prompt, error) {
	return getPrompt(ctx, t.s, t.tx, promptID)
}

func (t *txn) UpdatePrompt(ctx context.Context, p *model.Prompt, touch bool) error {
	updated := p.UpdatedAt
	if touch {
		updated = t.s.nextAfter(p.UpdatedAt)
	}
	ratings, err := marshalJSON(p.Ratings)
	if err != nil {
		return err
	}
	tags, err := marshalJSON(p.AITags)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, t.s.q(`
        UPDATE prompts SET title=?, content=?, category=?, ratings=?, avg_rating=?,
            ai_summary=?, ai_use_case=?, ai_tags=?, updated_at=?, revision=?
        WHERE id=? AND revision=?
    `), p.Title, p.Content, nullString(p.Category), ratings, p.AvgRating,
		p.AISummary, p.AIUseCase, tags, toMicros(updated), p.Revision+1,
		p.PromptID, p.Revision)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("prompt %s revision %d: %w", p.PromptID, p.Revision, model.ErrConflict)
	}
	p.Revision++
	p.UpdatedAt = updated
	t.pending = append(t.pending, promptEvent(events.EventPromptUpdated, p))
	return nil
}

func (t *txn) AddVersion(ctx context.Context, v *model.Version) error {
	if v.VersionID == "" {
		v.VersionID = uuid.New().String()
	}
	_, err := t.tx.ExecContext(ctx, t.s.q(`
        INSERT INTO prompt_versions (id, prompt_id, title, content, category, saved_at)
        VALUES (?,?,?,?,?,?)
    `), v.VersionID, v.PromptID, v.Title, v.Content, nullString(v.Category), toMicros(v.SavedAt))
	return err
}

func (t *txn) GetGuild(ctx context.Context, guildID string) (*model.Guild, error) {
	return getGuild(ctx, t.s, t.tx, guildID)
}

func (t *txn) UpdateGuild(ctx context.Context, g *model.Guild) error {
	prev, err := getGuild(ctx, t.s, t.tx, g.GuildID)
	if err != nil {
		return err
	}
	members, err := marshalJSON(g.Members)
	if err != nil {
		return err
	}
	ids, err := marshalJSON(g.MemberIDs)
	if err != nil {
		return err
	}
	updated := t.s.nextAfter(prev.UpdatedAt)
	res, err := t.tx.ExecContext(ctx, t.s.q(`
        UPDATE guilds SET name=?, members=?, member_ids=?, updated_at=?, revision=?
        WHERE id=? AND revision=?
    `), g.Name, members, ids, toMicros(updated), g.Revision+1, g.GuildID, g.Revision)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("guild %s revision %d: %w", g.GuildID, g.Revision, model.ErrConflict)
	}
	g.Revision++
	g.UpdatedAt = updated
	t.pending = append(t.pending, events.Event{
		Kind:      events.EventGuildChanged,
		GuildID:   g.GuildID,
		MemberIDs: unionIDs(prev.MemberIDs, g.MemberIDs),
	})
	return nil
}

func unionIDs(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
