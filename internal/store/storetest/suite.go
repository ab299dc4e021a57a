// Package storetest holds a compliance suite shared by every store.Store backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/promptguild/promptguild/internal/events"
	"github.com/promptguild/promptguild/internal/model"
	"github.com/promptguild/promptguild/internal/store"
)

// Run exercises the compliance suite against a store.Store implementation.
// makeStore must return a store publishing committed changes on bus.
func Run(t *testing.T, makeStore func(t *testing.T, bus *events.Bus) store.Store) {
	t.Helper()

	t.Run("Users", func(t *testing.T) { testUsers(t, makeStore(t, nil)) })
	t.Run("PromptLifecycle", func(t *testing.T) { testPromptLifecycle(t, makeStore) })
	t.Run("ConcurrentIncrements", func(t *testing.T) { testConcurrentIncrements(t, makeStore(t, nil)) })
	t.Run("TransactionRetry", func(t *testing.T) { testTransactionRetry(t, makeStore(t, nil)) })
	t.Run("ConcurrentRatings", func(t *testing.T) { testConcurrentRatings(t, makeStore(t, nil)) })
	t.Run("Guilds", func(t *testing.T) { testGuilds(t, makeStore) })
	t.Run("Unanalyzed", func(t *testing.T) { testUnanalyzed(t, makeStore(t, nil)) })
}

func testUnanalyzed(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := uniq("owner")
	done, err := s.Prompts().Create(ctx, &model.Prompt{OwnerID: owner, Title: "done", Content: "x"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	open, err := s.Prompts().Create(ctx, &model.Prompt{OwnerID: owner, Title: "open", Content: "y"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Prompts().SetAnalysis(ctx, done.PromptID, model.Analysis{Summary: "s"}); err != nil {
		t.Fatalf("SetAnalysis: %v", err)
	}

	ps, err := s.Prompts().ListUnanalyzed(ctx, 100000)
	if err != nil {
		t.Fatalf("ListUnanalyzed: %v", err)
	}
	found := map[string]bool{}
	for _, p := range ps {
		found[p.PromptID] = true
	}
	if !found[open.PromptID] || found[done.PromptID] {
		t.Fatalf("ListUnanalyzed: open=%v done=%v", found[open.PromptID], found[done.PromptID])
	}

	one, err := s.Prompts().ListUnanalyzed(ctx, 1)
	if err != nil || len(one) != 1 {
		t.Fatalf("ListUnanalyzed limit 1: got %d err=%v", len(one), err)
	}
	if none, err := s.Prompts().ListUnanalyzed(ctx, 0); err != nil || len(none) != 0 {
		t.Fatalf("ListUnanalyzed limit 0: got %d err=%v", len(none), err)
	}
}

func uniq(prefix string) string { return prefix + "-" + uuid.New().String() }

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	userID := uniq("u")
	email := userID + "@Example.test"

	if _, err := s.Users().Get(ctx, userID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get missing user: want ErrNotFound, got %v", err)
	}
	u, err := s.Users().Upsert(ctx, &model.User{UserID: userID, Email: email, DisplayName: "Ada"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if u.Email != email || u.DisplayName != "Ada" || u.CreatedAt.IsZero() {
		t.Fatalf("Upsert returned %+v", u)
	}

	// Re-sign-in without a display name keeps the old one.
	again, err := s.Users().Upsert(ctx, &model.User{UserID: userID, Email: email})
	if err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	if again.DisplayName != "Ada" || !again.CreatedAt.Equal(u.CreatedAt) {
		t.Fatalf("second Upsert clobbered fields: %+v", again)
	}

	got, err := s.Users().GetByEmail(ctx, strings.ToUpper(email))
	if err != nil || got.UserID != userID {
		t.Fatalf("GetByEmail case-insensitive: got=%v err=%v", got, err)
	}
	if _, err := s.Users().GetByEmail(ctx, uniq("nobody")+"@example.test"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetByEmail missing: want ErrNotFound, got %v", err)
	}
}

func testPromptLifecycle(t *testing.T, makeStore func(t *testing.T, bus *events.Bus) store.Store) {
	ctx := context.Background()
	bus := events.NewBus(64)
	evts, cancel := bus.Subscribe(64)
	defer cancel()
	s := makeStore(t, bus)

	owner := uniq("owner")
	category := "writing"
	first, err := s.Prompts().Create(ctx, &model.Prompt{OwnerID: owner, Title: "A", Content: "x", Category: &category})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.PromptID == "" || first.UseCount != 0 || first.AvgRating != 0 || len(first.Ratings) != 0 {
		t.Fatalf("Create defaults wrong: %+v", first)
	}
	if !first.CreatedAt.Equal(first.UpdatedAt) {
		t.Fatalf("createdAt != updatedAt on create")
	}
	expectEvent(t, evts, events.EventPromptCreated, first.PromptID)

	second, err := s.Prompts().Create(ctx, &model.Prompt{OwnerID: owner, Title: "B", Content: "y"})
	if err != nil {
		t.Fatalf("Create second: %v", err)
	}
	expectEvent(t, evts, events.EventPromptCreated, second.PromptID)

	shared, err := s.Prompts().Create(ctx, &model.Prompt{OwnerID: owner, GuildID: uniq("g"), Title: "S", Content: "z"})
	if err != nil {
		t.Fatalf("Create shared: %v", err)
	}
	expectEvent(t, evts, events.EventPromptCreated, shared.PromptID)

	got, err := s.Prompts().Get(ctx, first.PromptID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "A" || got.Category == nil || *got.Category != "writing" || got.Ratings == nil {
		t.Fatalf("Get returned %+v", got)
	}

	// Update first inside a transaction with a version snapshot.
	err = s.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetPrompt(ctx, first.PromptID)
		if err != nil {
			return err
		}
		if err := tx.AddVersion(ctx, &model.Version{PromptID: p.PromptID, Title: p.Title, Content: p.Content,
			Category: p.Category, SavedAt: p.UpdatedAt}); err != nil {
			return err
		}
		p.Title = "A2"
		return tx.UpdatePrompt(ctx, p, true)
	})
	if err != nil {
		t.Fatalf("RunTx update: %v", err)
	}
	expectEvent(t, evts, events.EventPromptUpdated, first.PromptID)

	updated, _ := s.Prompts().Get(ctx, first.PromptID)
	if updated.Title != "A2" || !updated.UpdatedAt.After(first.UpdatedAt) || updated.Revision != first.Revision+1 {
		t.Fatalf("update not applied: %+v", updated)
	}

	// Personal list excludes shared prompts and is ordered by updatedAt desc.
	personal, err := s.Prompts().ListPersonal(ctx, owner)
	if err != nil {
		t.Fatalf("ListPersonal: %v", err)
	}
	if len(personal) != 2 || personal[0].PromptID != first.PromptID || personal[1].PromptID != second.PromptID {
		t.Fatalf("ListPersonal order: %v", ids(personal))
	}
	inGuild, err := s.Prompts().ListShared(ctx, shared.GuildID)
	if err != nil || len(inGuild) != 1 || inGuild[0].PromptID != shared.PromptID {
		t.Fatalf("ListShared: %v err=%v", ids(inGuild), err)
	}

	vers, err := s.Versions().List(ctx, first.PromptID)
	if err != nil || len(vers) != 1 || vers[0].Title != "A" || !vers[0].SavedAt.Equal(first.UpdatedAt) {
		t.Fatalf("Versions: %+v err=%v", vers, err)
	}
	if none, err := s.Versions().List(ctx, second.PromptID); err != nil || none == nil || len(none) != 0 {
		t.Fatalf("Versions of untouched prompt: %v err=%v", none, err)
	}

	if err := s.Prompts().SetAnalysis(ctx, second.PromptID, model.Analysis{Summary: "s", UseCase: "u", Tags: []string{"t1"}}); err != nil {
		t.Fatalf("SetAnalysis: %v", err)
	}
	expectEvent(t, evts, events.EventPromptUpdated, second.PromptID)
	analysed, _ := s.Prompts().Get(ctx, second.PromptID)
	if analysed.AISummary != "s" || analysed.AIUseCase != "u" || len(analysed.AITags) != 1 {
		t.Fatalf("analysis not stored: %+v", analysed)
	}

	if err := s.Prompts().Delete(ctx, first.PromptID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	expectEvent(t, evts, events.EventPromptDeleted, first.PromptID)
	if _, err := s.Prompts().Get(ctx, first.PromptID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get deleted: want ErrNotFound, got %v", err)
	}
	if err := s.Prompts().Delete(ctx, first.PromptID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Delete twice: want ErrNotFound, got %v", err)
	}
	// Versions are orphaned, not deleted.
	if vers, _ := s.Versions().List(ctx, first.PromptID); len(vers) != 1 {
		t.Fatalf("versions removed with prompt")
	}
	if _, err := s.Prompts().IncrementUseCount(ctx, first.PromptID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("IncrementUseCount deleted: want ErrNotFound, got %v", err)
	}
}

func testConcurrentIncrements(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, err := s.Prompts().Create(ctx, &model.Prompt{OwnerID: uniq("owner"), Title: "count", Content: "c"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Prompts().IncrementUseCount(ctx, p.PromptID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("IncrementUseCount: %v", err)
	}

	got, _ := s.Prompts().Get(ctx, p.PromptID)
	if got.UseCount != n {
		t.Fatalf("useCount = %d, want %d", got.UseCount, n)
	}
	if !got.UpdatedAt.Equal(p.UpdatedAt) {
		t.Fatalf("increment moved updatedAt")
	}
}

func testTransactionRetry(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, err := s.Prompts().Create(ctx, &model.Prompt{OwnerID: uniq("owner"), Title: "t", Content: "c"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	attempts := 0
	err = s.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		attempts++
		cur, err := tx.GetPrompt(ctx, p.PromptID)
		if err != nil {
			return err
		}
		if attempts == 1 {
			cur.Revision-- // behave like a writer that read before a concurrent commit
		}
		cur.SetRating("u1", 5)
		return tx.UpdatePrompt(ctx, cur, false)
	})
	if err != nil {
		t.Fatalf("RunTx: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
	got, _ := s.Prompts().Get(ctx, p.PromptID)
	if got.AvgRating != 5 || !got.UpdatedAt.Equal(p.UpdatedAt) {
		t.Fatalf("rating write: %+v", got)
	}

	// Non-conflict errors are returned as-is without a retry.
	attempts = 0
	sentinel := fmt.Errorf("stop")
	err = s.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		attempts++
		return sentinel
	})
	if !errors.Is(err, sentinel) || attempts != 1 {
		t.Fatalf("RunTx business error: err=%v attempts=%d", err, attempts)
	}

	// Permanent conflicts surface as ErrConflict.
	err = s.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.GetPrompt(ctx, p.PromptID)
		if err != nil {
			return err
		}
		cur.Revision = -1
		return tx.UpdatePrompt(ctx, cur, true)
	})
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func testConcurrentRatings(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, err := s.Prompts().Create(ctx, &model.Prompt{OwnerID: uniq("owner"), Title: "r", Content: "c"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
				cur, err := tx.GetPrompt(ctx, p.PromptID)
				if err != nil {
					return err
				}
				cur.SetRating(fmt.Sprintf("user-%d", i), i+1)
				return tx.UpdatePrompt(ctx, cur, false)
			})
			if err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("rate: %v", err)
	}

	got, _ := s.Prompts().Get(ctx, p.PromptID)
	if len(got.Ratings) != n {
		t.Fatalf("lost ratings: %v", got.Ratings)
	}
	if got.AvgRating != 3 {
		t.Fatalf("avgRating = %v, want 3", got.AvgRating)
	}
}

func testGuilds(t *testing.T, makeStore func(t *testing.T, bus *events.Bus) store.Store) {
	ctx := context.Background()
	bus := events.NewBus(64)
	evts, cancel := bus.Subscribe(64)
	defer cancel()
	s := makeStore(t, bus)

	owner, editor := uniq("owner"), uniq("editor")
	g, err := s.Guilds().Create(ctx, &model.Guild{Name: "team", Members: map[string]model.Role{owner: model.RoleOwner}})
	if err != nil {
		t.Fatalf("Create guild: %v", err)
	}
	if len(g.MemberIDs) != 1 || g.MemberIDs[0] != owner {
		t.Fatalf("member ids: %v", g.MemberIDs)
	}
	expectEvent(t, evts, events.EventGuildChanged, "")

	other, err := s.Guilds().Create(ctx, &model.Guild{Name: "other", Members: map[string]model.Role{editor: model.RoleOwner}})
	if err != nil {
		t.Fatalf("Create other guild: %v", err)
	}
	expectEvent(t, evts, events.EventGuildChanged, "")

	mine, err := s.Guilds().ListForMember(ctx, owner)
	if err != nil || len(mine) != 1 || mine[0].GuildID != g.GuildID {
		t.Fatalf("ListForMember: %v err=%v", mine, err)
	}

	err = s.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.GetGuild(ctx, g.GuildID)
		if err != nil {
			return err
		}
		cur.Members[editor] = model.RoleEditor
		cur.MemberIDs = model.MemberIDsOf(cur.Members)
		return tx.UpdateGuild(ctx, cur)
	})
	if err != nil {
		t.Fatalf("UpdateGuild: %v", err)
	}
	evt := expectEvent(t, evts, events.EventGuildChanged, "")
	if !evt.HasMember(editor) || !evt.HasMember(owner) {
		t.Fatalf("guild change event members: %v", evt.MemberIDs)
	}
	if list, _ := s.Guilds().ListForMember(ctx, editor); len(list) != 2 {
		t.Fatalf("editor should see two guilds, got %d", len(list))
	}

	// Cascade delete removes only the guild's prompts.
	var sharedIDs []string
	for i := 0; i < 3; i++ {
		p, err := s.Prompts().Create(ctx, &model.Prompt{OwnerID: owner, GuildID: g.GuildID, Title: fmt.Sprint(i), Content: "c"})
		if err != nil {
			t.Fatalf("Create shared: %v", err)
		}
		sharedIDs = append(sharedIDs, p.PromptID)
	}
	keepShared, _ := s.Prompts().Create(ctx, &model.Prompt{OwnerID: editor, GuildID: other.GuildID, Title: "keep", Content: "c"})
	keepPersonal, _ := s.Prompts().Create(ctx, &model.Prompt{OwnerID: owner, Title: "mine", Content: "c"})

	n, err := s.Guilds().Delete(ctx, g.GuildID)
	if err != nil || n != 3 {
		t.Fatalf("Delete guild: n=%d err=%v", n, err)
	}
	if _, err := s.Guilds().Get(ctx, g.GuildID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("guild still present: %v", err)
	}
	for _, id := range sharedIDs {
		if _, err := s.Prompts().Get(ctx, id); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("shared prompt %s survived cascade", id)
		}
	}
	for _, id := range []string{keepShared.PromptID, keepPersonal.PromptID} {
		if _, err := s.Prompts().Get(ctx, id); err != nil {
			t.Fatalf("unrelated prompt %s removed: %v", id, err)
		}
	}
	if _, err := s.Guilds().Delete(ctx, g.GuildID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Delete missing guild: want ErrNotFound, got %v", err)
	}
}

// expectEvent drains evts until one of kind arrives. promptID is checked when non-empty.
func expectEvent(t *testing.T, evts <-chan events.Event, kind events.EventKind, promptID string) events.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case evt := <-evts:
			if evt.Kind == kind && (promptID == "" || evt.PromptID == promptID) {
				return evt
			}
		case <-timeout:
			t.Fatalf("no %s event for %q", kind, promptID)
			return events.Event{}
		}
	}
}

func ids(ps []*model.Prompt) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.PromptID)
	}
	return out
}
