package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/promptguild/promptguild/internal/events"
	"github.com/promptguild/promptguild/internal/metrics"
	"github.com/promptguild/promptguild/internal/model"
	"github.com/promptguild/promptguild/internal/store"
	"github.com/promptguild/promptguild/internal/validate"
)

// GuildService is the guild repository: membership and lifecycle of shared collections.
// Member management is reserved to the guild owner; ownership is not transferable.
type GuildService struct {
	store      store.Store
	bus        *events.Bus
	log        zerolog.Logger
	liveBuffer int
}

func NewGuildService(s store.Store, bus *events.Bus, log zerolog.Logger, liveBuffer int) *GuildService {
	return &GuildService{store: s, bus: bus, log: log, liveBuffer: liveBuffer}
}

func observeGuild(op string, err *error) {
	metrics.GuildOps.WithLabelValues(op, codeLabel(*err)).Inc()
}

// Create makes ownerID the single owner of a new guild.
func (s *GuildService) Create(ctx context.Context, name, ownerID string) (g *model.Guild, err error) {
	defer observeGuild("create", &err)

	if ownerID == "" {
		return nil, model.Unauthenticated("sign in required")
	}
	name = strings.TrimSpace(name)
	if err := validate.GuildName(name); err != nil {
		return nil, err
	}
	members := map[string]model.Role{ownerID: model.RoleOwner}
	created, err := s.store.Guilds().Create(ctx, &model.Guild{
		Name:      name,
		Members:   members,
		MemberIDs: model.MemberIDsOf(members),
	})
	if err != nil {
		return nil, classify(err, "guild")
	}
	s.log.Info().Str("guild_id", created.GuildID).Str("owner_id", ownerID).Msg("guild created")
	return created, nil
}

// Get returns the guild if callerID is a member.
func (s *GuildService) Get(ctx context.Context, guildID, callerID string) (g *model.Guild, err error) {
	defer observeGuild("get", &err)

	if callerID == "" {
		return nil, model.Unauthenticated("sign in required")
	}
	g, err = s.store.Guilds().Get(ctx, guildID)
	if err != nil {
		return nil, classify(err, "guild")
	}
	if _, ok := g.RoleOf(callerID); !ok {
		return nil, model.PermissionDenied("not a member of this guild")
	}
	return g, nil
}

// List returns the guilds callerID belongs to.
func (s *GuildService) List(ctx context.Context, callerID string) (gs []*model.Guild, err error) {
	defer observeGuild("list", &err)

	if callerID == "" {
		return nil, model.Unauthenticated("sign in required")
	}
	gs, err = s.store.Guilds().ListForMember(ctx, callerID)
	return gs, classify(err, "guild")
}

// Delete removes the guild and all of its shared prompts in one transaction.
// It returns the number of prompts removed.
func (s *GuildService) Delete(ctx context.Context, guildID, callerID string) (n int, err error) {
	defer observeGuild("delete", &err)

	if _, err := s.requireOwner(ctx, guildID, callerID); err != nil {
		return 0, err
	}
	n, err = s.store.Guilds().Delete(ctx, guildID)
	if err != nil {
		return 0, classify(err, "guild")
	}
	s.log.Info().Str("guild_id", guildID).Int("prompts_removed", n).Msg("guild deleted")
	return n, nil
}

func (s *GuildService) requireOwner(ctx context.Context, guildID, callerID string) (*model.Guild, error) {
	if callerID == "" {
		return nil, model.Unauthenticated("sign in required")
	}
	g, err := s.store.Guilds().Get(ctx, guildID)
	if err != nil {
		return nil, classify(err, "guild")
	}
	role, ok := g.RoleOf(callerID)
	if !ok {
		return nil, model.PermissionDenied("not a member of this guild")
	}
	if role != model.RoleOwner {
		return nil, model.PermissionDenied("only the guild owner can do this")
	}
	return g, nil
}

// mutateMembers runs change against the current guild inside a transaction and
// writes members and member ids together. The caller must own the guild.
func (s *GuildService) mutateMembers(ctx context.Context, guildID, callerID string, change func(g *model.Guild) error) (*model.Guild, error) {
	if _, err := s.requireOwner(ctx, guildID, callerID); err != nil {
		return nil, err
	}
	var out *model.Guild
	err := s.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		g, err := tx.GetGuild(ctx, guildID)
		if err != nil {
			return err
		}
		owner := g.Owner()
		if owner != callerID {
			return model.PermissionDenied("only the guild owner can do this")
		}
		if err := change(g); err != nil {
			return err
		}
		if err := validate.Members(g.Members, g.MemberIDs); err != nil {
			return err
		}
		if g.Owner() != owner {
			return model.FailedPrecondition("guild ownership cannot be transferred")
		}
		if err := tx.UpdateGuild(ctx, g); err != nil {
			return err
		}
		out = g
		return nil
	})
	if err != nil {
		return nil, classify(err, "guild")
	}
	return out, nil
}

// UpdateMembers replaces the membership. memberIDs must be exactly the keys of
// members, with one owner who must be the current owner.
func (s *GuildService) UpdateMembers(ctx context.Context, guildID, callerID string, members map[string]model.Role, memberIDs []string) (g *model.Guild, err error) {
	defer observeGuild("update_members", &err)

	if callerID == "" {
		return nil, model.Unauthenticated("sign in required")
	}
	if err := validate.Members(members, memberIDs); err != nil {
		return nil, err
	}
	return s.mutateMembers(ctx, guildID, callerID, func(g *model.Guild) error {
		g.Members = make(map[string]model.Role, len(members))
		for id, r := range members {
			g.Members[id] = r
		}
		g.MemberIDs = append([]string(nil), memberIDs...)
		return nil
	})
}

// InviteByEmail adds the user registered under email with role.
func (s *GuildService) InviteByEmail(ctx context.Context, guildID, callerID, email string, role model.Role) (g *model.Guild, err error) {
	defer observeGuild("invite", &err)

	if callerID == "" {
		return nil, model.Unauthenticated("sign in required")
	}
	if err := validate.Email(email); err != nil {
		return nil, err
	}
	if err := validate.InviteRole(role); err != nil {
		return nil, err
	}
	u, err := s.ResolveUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, model.NotFound("no user is registered with that email")
	}
	return s.mutateMembers(ctx, guildID, callerID, func(g *model.Guild) error {
		if _, ok := g.Members[u.UserID]; ok {
			return model.AlreadyExists("user is already a member")
		}
		g.Members[u.UserID] = role
		g.MemberIDs = model.MemberIDsOf(g.Members)
		return nil
	})
}

// RemoveMember drops userID from the guild. The owner cannot be removed.
func (s *GuildService) RemoveMember(ctx context.Context, guildID, callerID, userID string) (g *model.Guild, err error) {
	defer observeGuild("remove_member", &err)

	return s.mutateMembers(ctx, guildID, callerID, func(g *model.Guild) error {
		role, ok := g.Members[userID]
		if !ok {
			return model.NotFound("member not found")
		}
		if role == model.RoleOwner {
			return model.FailedPrecondition("the owner cannot be removed")
		}
		delete(g.Members, userID)
		g.MemberIDs = model.MemberIDsOf(g.Members)
		return nil
	})
}

// ChangeRole sets the role of an existing non-owner member.
func (s *GuildService) ChangeRole(ctx context.Context, guildID, callerID, userID string, role model.Role) (g *model.Guild, err error) {
	defer observeGuild("change_role", &err)

	if err := validate.InviteRole(role); err != nil {
		return nil, err
	}
	return s.mutateMembers(ctx, guildID, callerID, func(g *model.Guild) error {
		cur, ok := g.Members[userID]
		if !ok {
			return model.NotFound("member not found")
		}
		if cur == model.RoleOwner {
			return model.FailedPrecondition("the owner's role cannot be changed")
		}
		g.Members[userID] = role
		return nil
	})
}

// ResolveUserByEmail returns the user registered under email, or nil without
// an error when there is none.
func (s *GuildService) ResolveUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := s.store.Users().GetByEmail(ctx, email)
	if errIsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "user")
	}
	return u, nil
}

// Subscribe starts a live query over the guilds callerID belongs to. It
// refreshes whenever a guild change touches the caller, whether joining or leaving.
func (s *GuildService) Subscribe(callerID string) (sub *Subscription[*model.Guild], err error) {
	defer observeGuild("subscribe", &err)

	if callerID == "" {
		return nil, model.Unauthenticated("sign in required")
	}
	q := liveQuery[*model.Guild]{
		match: func(evt events.Event) bool {
			return (evt.Kind == events.EventGuildChanged || evt.Kind == events.EventGuildDeleted) && evt.HasMember(callerID)
		},
		load: func(ctx context.Context) ([]*model.Guild, error) {
			gs, err := s.store.Guilds().ListForMember(ctx, callerID)
			return gs, classify(err, "guild")
		},
		log: s.log.With().Str("live", "guilds").Logger(),
	}
	return startSubscription(s.bus, s.liveBuffer, q), nil
}
