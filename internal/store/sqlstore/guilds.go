package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/promptguild/promptguild/internal/events"
	"github.com/promptguild/promptguild/internal/model"
)

type guilds struct{ s *Store }

func (g *guilds) Create(ctx context.Context, in *model.Guild) (*model.Guild, error) {
	out := *in
	if out.GuildID == "" {
		out.GuildID = uuid.New().String()
	}
	if out.MemberIDs == nil {
		out.MemberIDs = model.MemberIDsOf(out.Members)
	}
	now := g.s.now()
	out.CreatedAt, out.UpdatedAt = now, now
	out.Revision = 1

	members, err := marshalJSON(out.Members)
	if err != nil {
		return nil, err
	}
	ids, err := marshalJSON(out.MemberIDs)
	if err != nil {
		return nil, err
	}
	_, err = g.s.db.ExecContext(ctx, g.s.q(`
        INSERT INTO guilds (id, name, members, member_ids, created_at, updated_at, revision)
        VALUES (?,?,?,?,?,?,1)
    `), out.GuildID, out.Name, members, ids, toMicros(now), toMicros(now))
	if err != nil {
		return nil, fmt.Errorf("insert guild: %w", err)
	}
	g.s.publish(ctx, events.Event{Kind: events.EventGuildChanged, GuildID: out.GuildID, MemberIDs: out.MemberIDs})
	return &out, nil
}

func (g *guilds) Get(ctx context.Context, guildID string) (*model.Guild, error) {
	return getGuild(ctx, g.s, g.s.db, guildID)
}

func (g *guilds) ListForMember(ctx context.Context, userID string) ([]*model.Guild, error) {
	rows, err := g.s.db.QueryContext(ctx, g.s.q(`SELECT `+guildColumns+` FROM guilds WHERE `+
		g.s.d.MemberFilter()+` ORDER BY created_at, id`), userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := []*model.Guild{}
	for rows.Next() {
		gd, err := scanGuild(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, gd)
	}
	return res, rows.Err()
}

func (g *guilds) Delete(ctx context.Context, guildID string) (int, error) {
	var (
		removed int
		members []string
	)
	err := g.s.runTx(ctx, func(ctx context.Context, t *txn) error {
		existing, err := getGuild(ctx, g.s, t.tx, guildID)
		if err != nil {
			return err
		}
		members = existing.MemberIDs

		res, err := t.tx.ExecContext(ctx, g.s.q(`DELETE FROM prompts WHERE guild_id=?`), guildID)
		if err != nil {
			return fmt.Errorf("delete shared prompts: %w", err)
		}
		n, _ := res.RowsAffected()
		removed = int(n)

		if _, err := t.tx.ExecContext(ctx, g.s.q(`DELETE FROM guilds WHERE id=?`), guildID); err != nil {
			return fmt.Errorf("delete guild: %w", err)
		}
		t.pending = append(t.pending, events.Event{Kind: events.EventGuildDeleted, GuildID: guildID, MemberIDs: members})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func getGuild(ctx context.Context, s *Store, db execer, guildID string) (*model.Guild, error) {
	row := db.QueryRowContext(ctx, s.q(`SELECT `+guildColumns+` FROM guilds WHERE id=?`), guildID)
	return scanGuild(row)
}
