package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/promptguild/promptguild/internal/health"
	"github.com/promptguild/promptguild/internal/model"
)

// NewStoreHealthChecker monitors store health. Stores implementing
// health.HealthPinger are pinged directly; others are pinged with a user lookup.
func NewStoreHealthChecker(s Store, log zerolog.Logger, pingTimeout time.Duration) *health.PingChecker {
	p, ok := s.(health.HealthPinger)
	if !ok {
		p = lookupPinger{s: s}
	}
	return health.NewPingChecker("store", p, log, pingTimeout)
}

type lookupPinger struct{ s Store }

func (l lookupPinger) HealthPing(ctx context.Context) error {
	_, err := l.s.Users().Get(ctx, "__health_check__")
	// ErrNotFound is acceptable - means the store is responsive
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}
	return nil
}
