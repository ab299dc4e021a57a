package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/promptguild/promptguild/internal/config"
	"github.com/promptguild/promptguild/internal/events"
	"github.com/promptguild/promptguild/internal/metrics"
	storepg "github.com/promptguild/promptguild/internal/store/postgres"
	"github.com/promptguild/promptguild/internal/store/sqlite"
	"github.com/promptguild/promptguild/internal/store/sqlstore"
)

// Storage is the opened store plus the cross-instance listener that Postgres
// deployments must run. Listener is nil for SQLite.
type Storage struct {
	Store    *sqlstore.Store
	Listener *storepg.Listener
}

// NewStore opens the backend selected by cfg.DBDriver, applies the schema and
// publishes committed changes on bus.
func NewStore(ctx context.Context, cfg *config.Config, bus *events.Bus, log zerolog.Logger) (*Storage, error) {
	opts := sqlstore.Options{
		Bus:         bus,
		MaxAttempts: cfg.TxMaxAttempts,
		OnRetry:     metrics.TxRetries.Inc,
		Log:         log.With().Str("component", "store").Logger(),
	}

	switch cfg.DBDriver {
	case "sqlite":
		s, err := sqlite.New(ctx, cfg.SQLitePath, opts)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("sqlite store ready")
		return &Storage{Store: s}, nil

	case "postgres":
		dsn := cfg.PostgresDSN
		if dsn == "" {
			return nil, fmt.Errorf("PROMPTGUILD_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
		bootstrapCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.BootstrapTimeoutSeconds)*time.Second)
		err := storepg.Bootstrap(bootstrapCtx, dsn)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres bootstrap check: %w", err)
		}

		db, err := storepg.Open(dsn)
		if err != nil {
			return nil, err
		}
		origin := uuid.New().String()
		opts.Relay = storepg.NewRelay(db, origin, log)
		s := sqlstore.New(db, storepg.Dialect{}, opts)
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		log.Info().Str("origin", origin).Msg("postgres store ready")
		return &Storage{
			Store:    s,
			Listener: storepg.NewListener(dsn, origin, bus, log.With().Str("component", "pg_listener").Logger()),
		}, nil

	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}
