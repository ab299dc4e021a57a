package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/promptguild/promptguild/internal/events"
	"github.com/promptguild/promptguild/internal/metrics"
	"github.com/promptguild/promptguild/internal/model"
	"github.com/promptguild/promptguild/internal/store"
	"github.com/promptguild/promptguild/internal/validate"
)

// PromptService is the prompt repository: personal and guild-shared prompts,
// their usage counters, ratings and version history.
type PromptService struct {
	store      store.Store
	bus        *events.Bus
	log        zerolog.Logger
	liveBuffer int
}

func NewPromptService(s store.Store, bus *events.Bus, log zerolog.Logger, liveBuffer int) *PromptService {
	return &PromptService{store: s, bus: bus, log: log, liveBuffer: liveBuffer}
}

func observePrompt(op string, scope model.Scope, err *error) {
	metrics.PromptOps.WithLabelValues(op, string(scope.Kind), codeLabel(*err)).Inc()
}

// authorize checks that the scope's actor may read (or, with write, modify) prompts in scope.
func (s *PromptService) authorize(ctx context.Context, scope model.Scope, write bool) error {
	if scope.ActorID == "" {
		return model.Unauthenticated("sign in required")
	}
	if !scope.IsShared() {
		return nil
	}
	if scope.GuildID == "" {
		return model.InvalidArgument("guildId", "is required")
	}
	g, err := s.store.Guilds().Get(ctx, scope.GuildID)
	if err != nil {
		return classify(err, "guild")
	}
	role, ok := g.RoleOf(scope.ActorID)
	if !ok {
		return model.PermissionDenied("not a member of this guild")
	}
	if write && !role.CanEdit() {
		return model.PermissionDenied("viewers cannot modify shared prompts")
	}
	return nil
}

// load reads promptID and hides prompts outside scope as not found.
func (s *PromptService) load(ctx context.Context, promptID string, scope model.Scope) (*model.Prompt, error) {
	p, err := s.store.Prompts().Get(ctx, promptID)
	if err != nil {
		return nil, classify(err, "prompt")
	}
	if !scope.Contains(p) {
		return nil, model.NotFound("prompt not found")
	}
	return p, nil
}

// Create stores a new prompt in scope with zero use count and no ratings.
func (s *PromptService) Create(ctx context.Context, scope model.Scope, in model.PromptInput) (p *model.Prompt, err error) {
	defer observePrompt("create", scope, &err)

	if scope.ActorID == "" {
		return nil, model.Unauthenticated("sign in required")
	}
	if err := validate.CreatePrompt(in); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, scope, true); err != nil {
		return nil, err
	}
	created, err := s.store.Prompts().Create(ctx, &model.Prompt{
		OwnerID:  scope.ActorID,
		GuildID:  scope.GuildID,
		Title:    in.Title,
		Content:  in.Content,
		Category: in.CategoryOrNil(),
	})
	if err != nil {
		return nil, classify(err, "prompt")
	}
	s.log.Debug().Str("prompt_id", created.PromptID).Str("scope", string(scope.Kind)).Msg("prompt created")
	return created, nil
}

func (s *PromptService) Get(ctx context.Context, promptID string, scope model.Scope) (p *model.Prompt, err error) {
	defer observePrompt("get", scope, &err)

	if err := s.authorize(ctx, scope, false); err != nil {
		return nil, err
	}
	return s.load(ctx, promptID, scope)
}

// List returns the prompts in scope, most recently updated first.
func (s *PromptService) List(ctx context.Context, scope model.Scope) (ps []*model.Prompt, err error) {
	defer observePrompt("list", scope, &err)

	if err := s.authorize(ctx, scope, false); err != nil {
		return nil, err
	}
	return s.list(ctx, scope)
}

func (s *PromptService) list(ctx context.Context, scope model.Scope) ([]*model.Prompt, error) {
	var (
		ps  []*model.Prompt
		err error
	)
	if scope.IsShared() {
		ps, err = s.store.Prompts().ListShared(ctx, scope.GuildID)
	} else {
		ps, err = s.store.Prompts().ListPersonal(ctx, scope.ActorID)
	}
	return ps, classify(err, "prompt")
}

// Update applies patch and records the pre-update content as a version.
// Both writes commit together.
func (s *PromptService) Update(ctx context.Context, promptID string, scope model.Scope, patch model.PromptPatch) (p *model.Prompt, err error) {
	defer observePrompt("update", scope, &err)

	if scope.ActorID == "" {
		return nil, model.Unauthenticated("sign in required")
	}
	if err := validate.UpdatePrompt(patch); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, scope, true); err != nil {
		return nil, err
	}

	var out *model.Prompt
	err = s.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.GetPrompt(ctx, promptID)
		if err != nil {
			return err
		}
		if !scope.Contains(cur) {
			return model.ErrNotFound
		}
		savedAt := cur.UpdatedAt
		if savedAt.IsZero() {
			savedAt = cur.CreatedAt
		}
		if err := tx.AddVersion(ctx, &model.Version{
			PromptID: cur.PromptID,
			Title:    cur.Title,
			Content:  cur.Content,
			Category: cur.Category,
			SavedAt:  savedAt,
		}); err != nil {
			return err
		}
		patch.Apply(cur)
		if err := tx.UpdatePrompt(ctx, cur, true); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, classify(err, "prompt")
	}
	return out, nil
}

// Delete removes the prompt. Its versions are left behind.
func (s *PromptService) Delete(ctx context.Context, promptID string, scope model.Scope) (err error) {
	defer observePrompt("delete", scope, &err)

	if err := s.authorize(ctx, scope, true); err != nil {
		return err
	}
	if _, err := s.load(ctx, promptID, scope); err != nil {
		return err
	}
	return classify(s.store.Prompts().Delete(ctx, promptID), "prompt")
}

// IncrementUseCount records one use (e.g. a copy) atomically in the store.
func (s *PromptService) IncrementUseCount(ctx context.Context, promptID string, scope model.Scope) (p *model.Prompt, err error) {
	defer observePrompt("use", scope, &err)

	if err := s.authorize(ctx, scope, false); err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, promptID, scope); err != nil {
		return nil, err
	}
	out, err := s.store.Prompts().IncrementUseCount(ctx, promptID)
	if err != nil {
		return nil, classify(err, "prompt")
	}
	return out, nil
}

// Rate sets the actor's rating and recomputes the average in one transaction.
// updatedAt is left unchanged.
func (s *PromptService) Rate(ctx context.Context, promptID string, scope model.Scope, rating int) (p *model.Prompt, err error) {
	defer observePrompt("rate", scope, &err)

	if scope.ActorID == "" {
		return nil, model.Unauthenticated("sign in required")
	}
	if err := validate.Rating(rating); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, scope, false); err != nil {
		return nil, err
	}

	var out *model.Prompt
	err = s.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.GetPrompt(ctx, promptID)
		if err != nil {
			return err
		}
		if !scope.Contains(cur) {
			return model.ErrNotFound
		}
		cur.SetRating(scope.ActorID, rating)
		if err := tx.UpdatePrompt(ctx, cur, false); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, classify(err, "prompt")
	}
	return out, nil
}

// ListVersions returns the history of promptID, newest first. Never nil.
func (s *PromptService) ListVersions(ctx context.Context, promptID string, scope model.Scope) (vs []*model.Version, err error) {
	defer observePrompt("list_versions", scope, &err)

	if err := s.authorize(ctx, scope, false); err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, promptID, scope); err != nil {
		return nil, err
	}
	out, err := s.store.Versions().List(ctx, promptID)
	if err != nil {
		return nil, classify(err, "prompt")
	}
	if out == nil {
		out = []*model.Version{}
	}
	return out, nil
}

// Subscribe starts a live query over the prompts in scope. For shared scope the
// subscription closes itself once the actor loses membership or the guild is deleted.
func (s *PromptService) Subscribe(ctx context.Context, scope model.Scope) (sub *Subscription[*model.Prompt], err error) {
	defer observePrompt("subscribe", scope, &err)

	if err := s.authorize(ctx, scope, false); err != nil {
		return nil, err
	}
	q := liveQuery[*model.Prompt]{
		log: s.log.With().Str("live", "prompts").Str("scope", string(scope.Kind)).Str("guild_id", scope.GuildID).Logger(),
	}
	if scope.IsShared() {
		q.match = func(evt events.Event) bool { return evt.GuildID == scope.GuildID }
		q.load = func(ctx context.Context) ([]*model.Prompt, error) {
			if err := s.authorize(ctx, scope, false); err != nil {
				return nil, err
			}
			return s.list(ctx, scope)
		}
	} else {
		q.match = func(evt events.Event) bool {
			return isPromptEvent(evt) && evt.GuildID == "" && evt.OwnerID == scope.ActorID
		}
		q.load = func(ctx context.Context) ([]*model.Prompt, error) { return s.list(ctx, scope) }
	}
	return startSubscription(s.bus, s.liveBuffer, q), nil
}

func isPromptEvent(evt events.Event) bool {
	switch evt.Kind {
	case events.EventPromptCreated, events.EventPromptUpdated, events.EventPromptDeleted:
		return true
	}
	return false
}

// errIsNotFound reports whether err is a not-found classification.
func errIsNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound) || model.IsCode(err, model.CodeNotFound)
}
