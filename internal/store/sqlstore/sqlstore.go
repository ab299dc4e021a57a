// Package sqlstore implements store.Store on database/sql. Queries are written
// with ? placeholders; each driver package supplies a Dialect that rebinds them
// and owns the schema.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/promptguild/promptguild/internal/events"
	"github.com/promptguild/promptguild/internal/model"
	"github.com/promptguild/promptguild/internal/store"
)

// Dialect captures the differences between the SQL backends.
type Dialect interface {
	Name() string
	// Rebind rewrites ? placeholders into the driver's native form.
	Rebind(query string) string
	// MemberFilter is a boolean expression over guilds.member_ids with a
	// single placeholder for the user id.
	MemberFilter() string
	// Schema returns idempotent DDL statements.
	Schema() []string
	// IsRetryable reports driver errors that warrant re-running a transaction.
	IsRetryable(err error) bool
}

// Options configures a Store.
type Options struct {
	// Bus receives an event after every committed write. Optional.
	Bus *events.Bus
	// Relay is called with every committed event, e.g. to notify other instances. Optional.
	Relay func(ctx context.Context, evt events.Event)
	// MaxAttempts bounds RunTx re-runs. Defaults to 8.
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// OnRetry is called each time a transaction is re-run. Optional.
	OnRetry func()
	// Now is the store clock. Defaults to time.Now.
	Now func() time.Time
	Log zerolog.Logger
}

// Store is a database/sql backed store.Store.
type Store struct {
	db   *sql.DB
	d    Dialect
	opts Options

	// last is the most recent timestamp handed out, in microseconds.
	last atomic.Int64
}

var _ store.Store = (*Store)(nil)

// New wraps db. Call Migrate before first use on a fresh database.
func New(db *sql.DB, d Dialect, opts Options) *Store {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 8
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 5 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 250 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{db: db, d: d, opts: opts}
}

// Migrate applies the dialect schema.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.d.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s schema: %w", s.d.Name(), err)
		}
	}
	return nil
}

// DB exposes the underlying connection pool.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Prompts() store.Prompts   { return &prompts{s: s} }
func (s *Store) Versions() store.Versions { return &versions{s: s} }
func (s *Store) Guilds() store.Guilds     { return &guilds{s: s} }
func (s *Store) Users() store.Users       { return &users{s: s} }

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error { return s.db.Close() }

// RunTx implements store.Store.
func (s *Store) RunTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return s.runTx(ctx, func(ctx context.Context, t *txn) error { return fn(ctx, t) })
}

func (s *Store) runTx(ctx context.Context, fn func(ctx context.Context, t *txn) error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.opts.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = s.opts.MaxBackoff
	exp.Reset()

	attempts := 0
	for {
		evts, err := s.runOnce(ctx, fn)
		if err == nil {
			s.publish(ctx, evts...)
			return nil
		}
		if !s.retryable(err) {
			return err
		}
		attempts++
		if attempts >= s.opts.MaxAttempts {
			s.opts.Log.Warn().Err(err).Int("attempts", attempts).Msg("transaction retries exhausted")
			if errors.Is(err, model.ErrConflict) {
				return err
			}
			return fmt.Errorf("%w: %v", model.ErrConflict, err)
		}
		if s.opts.OnRetry != nil {
			s.opts.OnRetry()
		}
		select {
		case <-time.After(exp.NextBackOff()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Store) retryable(err error) bool {
	return errors.Is(err, model.ErrConflict) || s.d.IsRetryable(err)
}

func (s *Store) runOnce(ctx context.Context, fn func(ctx context.Context, t *txn) error) ([]events.Event, error) {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = sqlTx.Rollback() }()

	t := &txn{s: s, tx: sqlTx}
	if err := fn(ctx, t); err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, err
	}
	return t.pending, nil
}

func (s *Store) publish(ctx context.Context, evts ...events.Event) {
	for _, evt := range evts {
		if s.opts.Bus != nil {
			if dropped := s.opts.Bus.Publish(evt); dropped > 0 {
				s.opts.Log.Warn().Str("kind", string(evt.Kind)).Int("dropped", dropped).Msg("event buffer full")
			}
		}
		if s.opts.Relay != nil {
			s.opts.Relay(ctx, evt)
		}
	}
}

// now returns the store clock in UTC at the stored resolution. Successive
// calls never return the same instant.
func (s *Store) now() time.Time {
	for {
		t := s.opts.Now().UnixMicro()
		prev := s.last.Load()
		if t <= prev {
			t = prev + 1
		}
		if s.last.CompareAndSwap(prev, t) {
			return fromMicros(t)
		}
	}
}

// nextAfter returns store time, forced strictly after prev.
func (s *Store) nextAfter(prev time.Time) time.Time {
	t := s.now()
	if !t.After(prev) {
		t = prev.Add(time.Microsecond)
	}
	return t
}

func (s *Store) q(query string) string { return s.d.Rebind(query) }

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
