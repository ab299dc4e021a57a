package store

import (
	"context"

	"github.com/promptguild/promptguild/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (sqlite, postgres).
//
// Lookups of missing records return an error matching model.ErrNotFound.
// Every committed write publishes a change event on the bus the store was built with.
type Store interface {
	Prompts() Prompts
	Versions() Versions
	Guilds() Guilds
	Users() Users

	// RunTx runs fn inside an optimistic read-write transaction. When a
	// revision-checked write loses to a concurrent writer, or the driver
	// reports a serialization failure, the whole of fn is re-run against a
	// fresh transaction. Once attempts are exhausted the error matches
	// model.ErrConflict. fn must be safe to run more than once.
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Close() error
}

type Prompts interface {
	// Create assigns id (when empty), timestamps and revision.
	Create(ctx context.Context, p *model.Prompt) (*model.Prompt, error)
	Get(ctx context.Context, promptID string) (*model.Prompt, error)
	// ListPersonal returns the personal prompts of ownerID, newest update first.
	ListPersonal(ctx context.Context, ownerID string) ([]*model.Prompt, error)
	// ListShared returns the prompts of guildID, newest update first.
	ListShared(ctx context.Context, guildID string) ([]*model.Prompt, error)
	// Delete removes the prompt only; its versions are left in place.
	Delete(ctx context.Context, promptID string) error
	// IncrementUseCount is a single atomic server-side increment.
	IncrementUseCount(ctx context.Context, promptID string) (*model.Prompt, error)
	SetAnalysis(ctx context.Context, promptID string, a model.Analysis) error
	// ListUnanalyzed returns up to limit prompts without an AI summary, oldest first.
	ListUnanalyzed(ctx context.Context, limit int) ([]*model.Prompt, error)
}

type Versions interface {
	// List returns the versions of promptID by savedAt descending.
	List(ctx context.Context, promptID string) ([]*model.Version, error)
}

type Guilds interface {
	Create(ctx context.Context, g *model.Guild) (*model.Guild, error)
	Get(ctx context.Context, guildID string) (*model.Guild, error)
	// ListForMember returns the guilds whose member ids contain userID.
	ListForMember(ctx context.Context, userID string) ([]*model.Guild, error)
	// Delete removes the guild and every prompt shared into it atomically and
	// returns the number of prompts removed.
	Delete(ctx context.Context, guildID string) (int, error)
}

type Users interface {
	// Upsert records a sign-in: inserts the user or refreshes email,
	// display name and last seen time.
	Upsert(ctx context.Context, u *model.User) (*model.User, error)
	Get(ctx context.Context, userID string) (*model.User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// Tx is the read-write view available inside RunTx.
type Tx interface {
	GetPrompt(ctx context.Context, promptID string) (*model.Prompt, error)
	// UpdatePrompt writes p if its revision is still current. When touch is
	// set UpdatedAt moves forward to store time; otherwise it is kept.
	// On success p carries the new revision and timestamps.
	UpdatePrompt(ctx context.Context, p *model.Prompt, touch bool) error
	AddVersion(ctx context.Context, v *model.Version) error

	GetGuild(ctx context.Context, guildID string) (*model.Guild, error)
	// UpdateGuild writes name, members and member ids in one statement if
	// the revision is still current.
	UpdateGuild(ctx context.Context, g *model.Guild) error
}
